package registry

import (
	"context"
	"net/url"
	"time"

	"permit-enrichment-service/internal/constants"
	"permit-enrichment-service/internal/contextkeys"
	"permit-enrichment-service/internal/core/domain"
	"permit-enrichment-service/internal/core/port"
)

// PlutoAdapter — клиент кадастрового датасета PLUTO: первичный источник
// владельца, характеристик здания и оценочной стоимости. Датасет ведет
// одну строку на участок, поэтому несколько строк — это Disambiguation.
type PlutoAdapter struct {
	client *fetchClient
}

// NewPlutoAdapter создает клиент PLUTO.
func NewPlutoAdapter(baseURL string, delay, timeout time.Duration, appToken string) (*PlutoAdapter, error) {
	client, err := newFetchClient(domain.SourcePluto, baseURL, delay, timeout, appToken)
	if err != nil {
		return nil, err
	}
	return &PlutoAdapter{client: client}, nil
}

func (a *PlutoAdapter) SourceID() domain.SourceID { return domain.SourcePluto }

// Fetch запрашивает PLUTO по полному BBL.
func (a *PlutoAdapter) Fetch(ctx context.Context, key domain.ParcelKey) (*domain.RegistryResult, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	fetchLogger := logger.WithFields(port.Fields{
		"component":  "PlutoAdapter",
		"parcel_key": string(key),
	})
	fetchLogger.Debug("Fetching PLUTO rows", nil)

	params := url.Values{"bbl": {string(key)}}
	rawRows, err := a.client.fetchRows(params)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.FieldSet, 0, len(rawRows))
	for _, raw := range rawRows {
		rows = append(rows, mapPlutoRow(raw))
	}
	return singleRowResult(rows), nil
}

// mapPlutoRow переводит строку схемы PLUTO в канонические имена полей.
func mapPlutoRow(raw domain.FieldSet) domain.FieldSet {
	return domain.FieldSet{
		constants.FieldOwnerName:     raw["ownername"],
		constants.FieldAssessedTotal: raw["assesstot"],
		constants.FieldAssessedLand:  raw["assessland"],
		constants.FieldYearBuilt:     raw["yearbuilt"],
		constants.FieldNumFloors:     raw["numfloors"],
		constants.FieldUnitsRes:      raw["unitsres"],
		constants.FieldBldgClass:     raw["bldgclass"],
		constants.FieldZoning:        raw["zonedist1"],
		constants.FieldLandUse:       raw["landuse"],
		constants.FieldLotArea:       raw["lotarea"],
	}
}
