package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"permit-enrichment-service/internal/contextkeys"
	"permit-enrichment-service/internal/core/domain"
	"permit-enrichment-service/internal/core/port"
)

// EnrichFromSourceUseCase — проход обогащения из одного реестра: выбирает
// участки без данных источника (или с устаревшими), опрашивает реестр и
// вливает ответ в запись через реконсиляцию.
type EnrichFromSourceUseCase struct {
	properties port.PropertyStoragePort
	precedence domain.PrecedencePolicy
	staleAfter time.Duration
}

func NewEnrichFromSourceUseCase(properties port.PropertyStoragePort,
	precedence domain.PrecedencePolicy,
	staleAfter time.Duration) *EnrichFromSourceUseCase {
	return &EnrichFromSourceUseCase{
		properties: properties,
		precedence: precedence,
		staleAfter: staleAfter,
	}
}

// Execute обрабатывает до batchSize участков для одного источника.
// Временный сбой реестра не прерывает пачку: запись остается в рабочем
// наборе и будет повторена следующим запуском — отдельных циклов retry нет.
func (uc *EnrichFromSourceUseCase) Execute(ctx context.Context, source port.RegistrySourcePort, batchSize int) (domain.StepStats, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	sourceID := source.SourceID()
	ucLogger := logger.WithFields(port.Fields{
		"use_case": "EnrichFromSource",
		"source":   string(sourceID),
	})

	stats := domain.StepStats{Step: string(sourceID)}

	cutoff := time.Now().UTC().Add(-uc.staleAfter)
	records, err := uc.properties.GetMissingOrStale(ctx, sourceID, cutoff, batchSize)
	if err != nil {
		ucLogger.Error("Failed to select properties missing source data", err, nil)
		return stats, fmt.Errorf("failed to select properties for source %s: %w", sourceID, err)
	}
	stats.Selected = len(records)

	if len(records) == 0 {
		ucLogger.Debug("No properties missing or stale for source", nil)
		return stats, nil
	}

	ucLogger.Info("Enrichment pass started", port.Fields{"selected": stats.Selected})

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			ucLogger.Warn("Enrichment pass cancelled mid-batch", port.Fields{"processed": stats.Succeeded + stats.Empty + stats.Transient + stats.Failed})
			return stats, err
		}

		result, err := source.Fetch(ctx, record.ParcelKey)
		if err != nil {
			var transient *domain.TransientError
			if errors.As(err, &transient) {
				ucLogger.Warn("Transient registry failure, parcel left for next run", port.Fields{
					"parcel_key": string(record.ParcelKey),
					"cause":      transient.Err.Error(),
				})
				stats.Transient++
				continue
			}
			ucLogger.Error("Registry fetch failed", err, port.Fields{"parcel_key": string(record.ParcelKey)})
			stats.Failed++
			continue
		}

		merged := record.Clone()
		if result.Empty() {
			// Нормальный исход: участка в этом реестре нет. Отметка прохода
			// все равно ставится, чтобы запись покинула рабочий набор до
			// истечения горизонта устаревания.
			stats.Empty++
		} else {
			row := result.Rows[0]
			if result.Ambiguous {
				// Именованный fallback "берем первую строку" — применяется
				// только здесь и только с записью в лог.
				ucLogger.Warn("Registry returned multiple rows for parcel, applying first-row fallback", port.Fields{
					"parcel_key": string(record.ParcelKey),
					"rows":       len(result.Rows),
				})
				stats.Ambiguous++
			}
			merged = domain.Reconcile(record, row, sourceID, uc.precedence)
			stats.Succeeded++
		}

		merged.EnrichedAt[sourceID] = time.Now().UTC()
		merged.UpdatedAt = time.Now().UTC()

		if err := uc.properties.Save(ctx, merged); err != nil {
			ucLogger.Error("Failed to save enriched property record", err, port.Fields{"parcel_key": string(record.ParcelKey)})
			if stats.Empty > 0 && result.Empty() {
				stats.Empty--
			} else if stats.Succeeded > 0 {
				stats.Succeeded--
			}
			stats.Failed++
			continue
		}
	}

	ucLogger.Info("Enrichment pass finished", port.Fields{
		"selected":  stats.Selected,
		"enriched":  stats.Succeeded,
		"empty":     stats.Empty,
		"transient": stats.Transient,
		"ambiguous": stats.Ambiguous,
		"failed":    stats.Failed,
	})

	return stats, nil
}
