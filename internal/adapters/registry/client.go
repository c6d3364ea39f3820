package registry

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"permit-enrichment-service/internal/core/domain"

	"github.com/gocolly/colly/v2"
)

// fetchClient — общее ядро клиентов открытых реестров: JSON API, отдающее
// массив строк с именованными полями. Минимальная пауза между запросами
// задается правилом лимита коллектора и наследуется всеми его клонами —
// это клиентский пейсинг, политики повторов здесь нет.
type fetchClient struct {
	collector *colly.Collector
	source    domain.SourceID
	baseURL   string
}

func newFetchClient(source domain.SourceID, baseURL string, delay, timeout time.Duration, appToken string) (*fetchClient, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("registry %s: invalid base URL %q: %w", source, baseURL, err)
	}

	// родительский коллектор
	c := colly.NewCollector(colly.AllowedDomains(parsed.Hostname()), colly.AllowURLRevisit())
	c.SetRequestTimeout(timeout)

	// Правило наследуется всеми клонами коллектора
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       delay,
	}); err != nil {
		return nil, fmt.Errorf("registry %s: failed to set limit rule: %w", source, err)
	}

	if appToken != "" {
		c.OnRequest(func(r *colly.Request) {
			r.Headers.Set("X-App-Token", appToken)
		})
	}

	return &fetchClient{
		collector: c,
		source:    source,
		baseURL:   baseURL,
	}, nil
}

// fetchRows выполняет один запрос к реестру и возвращает сырые строки.
// Пустой массив — нормальный ответ "участка в реестре нет". Сбои сети,
// таймауты, 429 и 5xx заворачиваются в *domain.TransientError; остальные
// ошибки терминальны для этой записи.
func (c *fetchClient) fetchRows(params url.Values) ([]domain.FieldSet, error) {
	collector := c.collector.Clone()

	var rows []domain.FieldSet
	var fetchErr error

	collector.OnResponse(func(r *colly.Response) {
		if fetchErr != nil {
			return
		}

		var raw []map[string]any
		if err := json.Unmarshal(r.Body, &raw); err != nil {
			fetchErr = fmt.Errorf("registry %s: failed to decode response: %w", c.source, err)
			return
		}

		rows = make([]domain.FieldSet, 0, len(raw))
		for _, rawRow := range raw {
			row := make(domain.FieldSet, len(rawRow))
			for field, value := range rawRow {
				row[field] = stringifyValue(value)
			}
			rows = append(rows, row)
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		if fetchErr != nil {
			return
		}
		fetchErr = classifyFetchError(c.source, r.StatusCode, err)
	})

	requestURL := c.baseURL + "?" + params.Encode()
	visitErr := collector.Visit(requestURL)
	collector.Wait() // Ждем завершения HTTP-запроса и колбэков

	if fetchErr != nil {
		return nil, fetchErr
	}
	if visitErr != nil {
		// Сюда попадают ошибки самого коллектора (запрещенный домен и
		// т.п.): сетевые сбои уже классифицированы в OnError.
		return nil, fmt.Errorf("registry %s: visit failed: %w", c.source, visitErr)
	}
	return rows, nil
}

// classifyFetchError разделяет временные и терминальные сбои запроса.
// statusCode == 0 означает транспортную ошибку (сеть, таймаут).
func classifyFetchError(source domain.SourceID, statusCode int, err error) error {
	if statusCode == 0 || statusCode == http.StatusTooManyRequests || statusCode >= http.StatusInternalServerError {
		return &domain.TransientError{
			Source: source,
			Err:    fmt.Errorf("status %d: %w", statusCode, err),
		}
	}
	return fmt.Errorf("registry %s: request rejected with status %d: %w", source, statusCode, err)
}

// stringifyValue приводит значение поля к строке. Открытые датасеты отдают
// числа то строками, то числами в зависимости от версии схемы.
func stringifyValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		// Вложенные объекты (геометрия и т.п.) конвейеру не нужны.
		return ""
	}
}

// singleRowResult собирает RegistryResult источника, от которого ожидается
// одна строка на участок: лишние строки не отбрасываются молча, а
// помечаются флагом Ambiguous — политику "взять первую" применяет и
// логирует оркестратор.
func singleRowResult(rows []domain.FieldSet) *domain.RegistryResult {
	return &domain.RegistryResult{
		Rows:      rows,
		Ambiguous: len(rows) > 1,
	}
}
