package usecase

import (
	"context"
	"errors"
	"fmt"

	"permit-enrichment-service/internal/contextkeys"
	"permit-enrichment-service/internal/core/domain"
	"permit-enrichment-service/internal/core/port"
)

// DeriveParcelKeysUseCase — проход разрешения идентичности: выбирает
// разрешения без ключа участка, выводит ключ из сырых block/lot и подсказки
// боро и идемпотентно дозаполняет хранилище.
type DeriveParcelKeysUseCase struct {
	permits    port.PermitStoragePort
	properties port.PropertyStoragePort
}

func NewDeriveParcelKeysUseCase(permits port.PermitStoragePort,
	properties port.PropertyStoragePort) *DeriveParcelKeysUseCase {
	return &DeriveParcelKeysUseCase{
		permits:    permits,
		properties: properties,
	}
}

// Execute обрабатывает до batchSize разрешений. Один плохой вход никогда не
// прерывает пачку: отказ вывода логируется с сырыми значениями, помечается
// в хранилище и проход идет дальше.
func (uc *DeriveParcelKeysUseCase) Execute(ctx context.Context, batchSize int) (domain.StepStats, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	ucLogger := logger.WithFields(port.Fields{"use_case": "DeriveParcelKeys"})

	stats := domain.StepStats{Step: domain.StepDeriveParcelKeys}

	permits, err := uc.permits.GetPermitsMissingParcelKey(ctx, batchSize)
	if err != nil {
		ucLogger.Error("Failed to select permits missing parcel key", err, nil)
		return stats, fmt.Errorf("failed to select permits missing parcel key: %w", err)
	}
	stats.Selected = len(permits)

	if len(permits) == 0 {
		ucLogger.Debug("No permits missing parcel key, nothing to derive", nil)
		return stats, nil
	}

	ucLogger.Info("Derivation pass started", port.Fields{"selected": stats.Selected})

	for _, permit := range permits {
		if err := ctx.Err(); err != nil {
			// Прерванный запуск просто оставляет остаток пачки следующему.
			ucLogger.Warn("Derivation pass cancelled mid-batch", port.Fields{"processed": stats.Succeeded + stats.Rejected + stats.Failed})
			return stats, err
		}

		key, err := domain.DeriveParcelKey(permit.BlockRaw, permit.LotRaw, permit.BoroughHint())
		if err != nil {
			var rejection *domain.DerivationError
			if errors.As(err, &rejection) {
				// Терминальный отказ данных: логируем сырые значения для
				// ручного разбора и выводим запись из рабочего набора.
				ucLogger.Warn("Parcel key derivation rejected", port.Fields{
					"permit_number": permit.PermitNumber,
					"reason":        string(rejection.Reason),
					"block_raw":     rejection.BlockRaw,
					"lot_raw":       rejection.LotRaw,
					"borough_hint":  rejection.BoroughHint,
				})
				if markErr := uc.permits.MarkDerivationRejected(ctx, permit.PermitNumber, rejection.Reason); markErr != nil {
					ucLogger.Error("Failed to mark derivation rejection", markErr, port.Fields{"permit_number": permit.PermitNumber})
					stats.Failed++
					continue
				}
				stats.Rejected++
				continue
			}

			// Нарушение внутреннего инварианта деривации.
			ucLogger.Error("Parcel key derivation failed unexpectedly", err, port.Fields{"permit_number": permit.PermitNumber})
			stats.Failed++
			continue
		}

		if err := uc.permits.SetParcelKey(ctx, permit.PermitNumber, key); err != nil {
			ucLogger.Error("Failed to persist parcel key", err, port.Fields{
				"permit_number": permit.PermitNumber,
				"parcel_key":    string(key),
			})
			stats.Failed++
			continue
		}

		// У нового ключа может еще не быть записи участка — создаем пустую,
		// источники обогащения дозаполнят ее своими проходами.
		if err := uc.properties.EnsureExists(ctx, key, permit.Address); err != nil {
			ucLogger.Error("Failed to ensure property record exists", err, port.Fields{
				"permit_number": permit.PermitNumber,
				"parcel_key":    string(key),
			})
			stats.Failed++
			continue
		}

		stats.Succeeded++
	}

	ucLogger.Info("Derivation pass finished", port.Fields{
		"selected": stats.Selected,
		"derived":  stats.Succeeded,
		"rejected": stats.Rejected,
		"failed":   stats.Failed,
	})

	return stats, nil
}
