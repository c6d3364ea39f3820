package registry

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"permit-enrichment-service/internal/constants"
	"permit-enrichment-service/internal/contextkeys"
	"permit-enrichment-service/internal/core/domain"
	"permit-enrichment-service/internal/core/port"
)

// Сколько последних документов участка запрашивать у мастера ACRIS.
const acrisDocumentLimit = 25

// AcrisAdapter — клиент реестра сделок ACRIS. Источник агрегирующий:
// несколько строк на участок — его нормальная форма (история сделок),
// поэтому адаптер сам сводит их к полям последней продажи, а не выставляет
// Disambiguation. Двухшаговый запрос: документы участка по боро/блоку/лоту,
// затем детали документов типа DEED.
type AcrisAdapter struct {
	client        *fetchClient
	masterBaseURL string
}

// NewAcrisAdapter создает клиент ACRIS. masterBaseURL — датасет деталей
// документов; пустое значение отключает второй шаг, и источник отдает
// только факт наличия сделок.
func NewAcrisAdapter(baseURL, masterBaseURL string, delay, timeout time.Duration, appToken string) (*AcrisAdapter, error) {
	client, err := newFetchClient(domain.SourceAcris, baseURL, delay, timeout, appToken)
	if err != nil {
		return nil, err
	}
	return &AcrisAdapter{
		client:        client,
		masterBaseURL: masterBaseURL,
	}, nil
}

func (a *AcrisAdapter) SourceID() domain.SourceID { return domain.SourceAcris }

// Fetch сводит историю сделок участка к дате и цене последней продажи.
func (a *AcrisAdapter) Fetch(ctx context.Context, key domain.ParcelKey) (*domain.RegistryResult, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	fetchLogger := logger.WithFields(port.Fields{
		"component":  "AcrisAdapter",
		"parcel_key": string(key),
	})
	fetchLogger.Debug("Fetching ACRIS document references", nil)

	params := url.Values{
		"borough": {key.Borough()},
		"block":   {stripLeadingZeros(key.Block())},
		"lot":     {stripLeadingZeros(key.Lot())},
		"$order":  {"good_through_date DESC"},
		"$limit":  {fmt.Sprintf("%d", acrisDocumentLimit)},
	}
	legalRows, err := a.client.fetchRows(params)
	if err != nil {
		return nil, err
	}
	if len(legalRows) == 0 || a.masterBaseURL == "" {
		return &domain.RegistryResult{}, nil
	}

	documentIDs := make([]string, 0, len(legalRows))
	for _, row := range legalRows {
		if id := row["document_id"]; id != "" {
			documentIDs = append(documentIDs, id)
		}
	}
	if len(documentIDs) == 0 {
		return &domain.RegistryResult{}, nil
	}

	deeds, err := a.fetchDeeds(documentIDs)
	if err != nil {
		return nil, err
	}
	if len(deeds) == 0 {
		// Документы есть, но продаж среди них нет — для реестра сделок
		// это нормальный пустой исход.
		return &domain.RegistryResult{}, nil
	}

	// Последняя продажа — по максимальной дате документа.
	sort.Slice(deeds, func(i, j int) bool {
		return deeds[i]["document_date"] > deeds[j]["document_date"]
	})
	latest := deeds[0]

	row := domain.FieldSet{
		constants.FieldLastSaleDate:  latest["document_date"],
		constants.FieldLastSalePrice: latest["document_amt"],
	}
	return &domain.RegistryResult{Rows: []domain.FieldSet{row}}, nil
}

// fetchDeeds возвращает детали документов типа DEED для списка document_id.
func (a *AcrisAdapter) fetchDeeds(documentIDs []string) ([]domain.FieldSet, error) {
	master := &fetchClient{
		collector: a.client.collector,
		source:    domain.SourceAcris,
		baseURL:   a.masterBaseURL,
	}

	quoted := make([]string, 0, len(documentIDs))
	for _, id := range documentIDs {
		quoted = append(quoted, "'"+strings.ReplaceAll(id, "'", "''")+"'")
	}
	where := fmt.Sprintf("document_id in(%s) AND doc_type='DEED'", strings.Join(quoted, ","))

	return master.fetchRows(url.Values{"$where": {where}})
}
