package registry

import (
	"context"
	"net/url"
	"strings"
	"time"

	"permit-enrichment-service/internal/constants"
	"permit-enrichment-service/internal/contextkeys"
	"permit-enrichment-service/internal/core/domain"
	"permit-enrichment-service/internal/core/port"
)

// TaxRollAdapter — клиент налоговой ведомости DOF: владелец по налоговому
// реестру и независимая от PLUTO оценка стоимости. Датасет хранит строки по
// годам, поэтому запрос упорядочен по убыванию года: свежайшая оценка идет
// первой, а несколько строк одного участка помечаются как Disambiguation.
type TaxRollAdapter struct {
	client *fetchClient
}

// NewTaxRollAdapter создает клиент налоговой ведомости.
func NewTaxRollAdapter(baseURL string, delay, timeout time.Duration, appToken string) (*TaxRollAdapter, error) {
	client, err := newFetchClient(domain.SourceTaxRoll, baseURL, delay, timeout, appToken)
	if err != nil {
		return nil, err
	}
	return &TaxRollAdapter{client: client}, nil
}

func (a *TaxRollAdapter) SourceID() domain.SourceID { return domain.SourceTaxRoll }

// Fetch запрашивает ведомость по боро/блоку/лоту. В этой схеме блок и лот —
// числа без ведущих нулей.
func (a *TaxRollAdapter) Fetch(ctx context.Context, key domain.ParcelKey) (*domain.RegistryResult, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	fetchLogger := logger.WithFields(port.Fields{
		"component":  "TaxRollAdapter",
		"parcel_key": string(key),
	})
	fetchLogger.Debug("Fetching tax roll rows", nil)

	params := url.Values{
		"boro":   {key.Borough()},
		"block":  {stripLeadingZeros(key.Block())},
		"lot":    {stripLeadingZeros(key.Lot())},
		"$order": {"year DESC"},
	}
	rawRows, err := a.client.fetchRows(params)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.FieldSet, 0, len(rawRows))
	for _, raw := range rawRows {
		rows = append(rows, mapTaxRollRow(raw))
	}
	return singleRowResult(rows), nil
}

// mapTaxRollRow переводит строку налоговой ведомости в канонические имена.
func mapTaxRollRow(raw domain.FieldSet) domain.FieldSet {
	return domain.FieldSet{
		constants.FieldOwnerName:     raw["owner"],
		constants.FieldAssessedTotal: raw["avtot"],
		constants.FieldAssessedLand:  raw["avland"],
		constants.FieldYearBuilt:     raw["yrbuilt"],
	}
}

// stripLeadingZeros убирает ведущие нули сегмента ключа для схем,
// хранящих блок и лот числами.
func stripLeadingZeros(s string) string {
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}
