package registry

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"permit-enrichment-service/internal/constants"
	"permit-enrichment-service/internal/contextkeys"
	"permit-enrichment-service/internal/core/domain"
	"permit-enrichment-service/internal/core/port"
)

// HPDAdapter — клиент жилищного реестра HPD. Двухшаговый источник:
// регистрация здания ищется по боро/блоку/лоту, затем по ее номеру
// подтягивается контакт владельца из датасета контактов регистраций.
// Оба запроса идут через один коллектор и делят одну паузу пейсинга.
type HPDAdapter struct {
	client          *fetchClient
	contactsBaseURL string
}

// NewHPDAdapter создает клиент HPD. contactsBaseURL — датасет контактов
// регистраций; пустое значение отключает второй шаг.
func NewHPDAdapter(baseURL, contactsBaseURL string, delay, timeout time.Duration, appToken string) (*HPDAdapter, error) {
	client, err := newFetchClient(domain.SourceHPD, baseURL, delay, timeout, appToken)
	if err != nil {
		return nil, err
	}
	return &HPDAdapter{
		client:          client,
		contactsBaseURL: contactsBaseURL,
	}, nil
}

func (a *HPDAdapter) SourceID() domain.SourceID { return domain.SourceHPD }

// Fetch запрашивает регистрацию здания и владельца по ней.
func (a *HPDAdapter) Fetch(ctx context.Context, key domain.ParcelKey) (*domain.RegistryResult, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	fetchLogger := logger.WithFields(port.Fields{
		"component":  "HPDAdapter",
		"parcel_key": string(key),
	})
	fetchLogger.Debug("Fetching HPD registration", nil)

	params := url.Values{
		"boroid": {key.Borough()},
		"block":  {stripLeadingZeros(key.Block())},
		"lot":    {stripLeadingZeros(key.Lot())},
	}
	rawRows, err := a.client.fetchRows(params)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.FieldSet, 0, len(rawRows))
	for _, raw := range rawRows {
		row := domain.FieldSet{
			constants.FieldRegistrationID: raw["registrationid"],
		}
		rows = append(rows, row)
	}

	result := singleRowResult(rows)
	if result.Empty() || a.contactsBaseURL == "" {
		return result, nil
	}

	// Второй шаг: владелец по номеру регистрации первой строки. Отказ
	// контактов не роняет весь Fetch — регистрация сама по себе ценна.
	registrationID := rows[0][constants.FieldRegistrationID]
	if registrationID == "" {
		return result, nil
	}
	owner, err := a.fetchOwnerContact(registrationID)
	if err != nil {
		fetchLogger.Warn("Failed to fetch HPD registration contact", port.Fields{
			"registration_id": registrationID,
			"error":           err.Error(),
		})
		return result, nil
	}
	if owner != "" {
		rows[0][constants.FieldOwnerName] = owner
	}

	return result, nil
}

// fetchOwnerContact возвращает имя владельца по регистрации:
// юрлицо целиком либо имя и фамилию физлица.
func (a *HPDAdapter) fetchOwnerContact(registrationID string) (string, error) {
	contacts := &fetchClient{
		collector: a.client.collector,
		source:    domain.SourceHPD,
		baseURL:   a.contactsBaseURL,
	}

	params := url.Values{
		"registrationid": {registrationID},
		"type":           {"IndividualOwner"},
	}
	rows, err := contacts.fetchRows(params)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		// Физлица нет — пробуем юрлицо.
		params.Set("type", "CorporateOwner")
		rows, err = contacts.fetchRows(params)
		if err != nil {
			return "", err
		}
		if len(rows) == 0 {
			return "", nil
		}
	}

	contact := rows[0]
	if corporation := contact["corporationname"]; corporation != "" {
		return corporation, nil
	}
	first := contact["firstname"]
	last := contact["lastname"]
	switch {
	case first != "" && last != "":
		return fmt.Sprintf("%s %s", first, last), nil
	case last != "":
		return last, nil
	default:
		return first, nil
	}
}
