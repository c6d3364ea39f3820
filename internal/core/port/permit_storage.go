package port

import (
	"context"

	"permit-enrichment-service/internal/core/domain"
)

// PermitStoragePort — доступ к разрешениям в хранилище. Сами записи создает
// внешний скрапер; конвейер только дозаполняет ParcelKey.
type PermitStoragePort interface {
	// GetPermitsMissingParcelKey выбирает разрешения без ключа участка,
	// у которых при этом есть сырые block/lot и нет терминального отказа.
	GetPermitsMissingParcelKey(ctx context.Context, limit int) ([]domain.PermitRecord, error)

	// SetParcelKey однократно заполняет ключ участка у разрешения.
	// Уже заполненный ключ не перезаписывается.
	SetParcelKey(ctx context.Context, permitNumber string, key domain.ParcelKey) error

	// MarkDerivationRejected фиксирует терминальный отказ вывода ключа,
	// выводя запись из рабочего набора до ручного разбора.
	MarkDerivationRejected(ctx context.Context, permitNumber string, reason domain.RejectionReason) error
}
