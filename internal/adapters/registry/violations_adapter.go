package registry

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"permit-enrichment-service/internal/constants"
	"permit-enrichment-service/internal/contextkeys"
	"permit-enrichment-service/internal/core/domain"
	"permit-enrichment-service/internal/core/port"
)

// ViolationsAdapter — клиент реестра нарушений DOB. Источник агрегирующий:
// строки нарушений сводятся к счетчикам, несколько строк — нормальная форма
// ответа, а не Disambiguation.
type ViolationsAdapter struct {
	client *fetchClient
}

// NewViolationsAdapter создает клиент реестра нарушений.
func NewViolationsAdapter(baseURL string, delay, timeout time.Duration, appToken string) (*ViolationsAdapter, error) {
	client, err := newFetchClient(domain.SourceViolations, baseURL, delay, timeout, appToken)
	if err != nil {
		return nil, err
	}
	return &ViolationsAdapter{client: client}, nil
}

func (a *ViolationsAdapter) SourceID() domain.SourceID { return domain.SourceViolations }

// Fetch считает нарушения участка. В этой схеме блок и лот хранятся с
// ведущими нулями — сегменты ключа подходят как есть.
func (a *ViolationsAdapter) Fetch(ctx context.Context, key domain.ParcelKey) (*domain.RegistryResult, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	fetchLogger := logger.WithFields(port.Fields{
		"component":  "ViolationsAdapter",
		"parcel_key": string(key),
	})
	fetchLogger.Debug("Fetching DOB violations", nil)

	params := url.Values{
		"boro":  {key.Borough()},
		"block": {key.Block()},
		"lot":   {key.Lot()},
	}
	rawRows, err := a.client.fetchRows(params)
	if err != nil {
		return nil, err
	}
	if len(rawRows) == 0 {
		return &domain.RegistryResult{}, nil
	}

	open := 0
	for _, raw := range rawRows {
		if strings.Contains(strings.ToUpper(raw["violation_category"]), "ACTIVE") {
			open++
		}
	}

	row := domain.FieldSet{
		constants.FieldTotalViolations: strconv.Itoa(len(rawRows)),
		constants.FieldOpenViolations:  strconv.Itoa(open),
	}
	return &domain.RegistryResult{Rows: []domain.FieldSet{row}}, nil
}
