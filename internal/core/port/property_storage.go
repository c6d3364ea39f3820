package port

import (
	"context"
	"time"

	"permit-enrichment-service/internal/core/domain"
)

// PropertyStoragePort — доступ к записям участков. Конвейер только
// добавляет и дозаполняет: записи участков никогда не удаляются.
type PropertyStoragePort interface {
	// EnsureExists создает пустую запись участка, если ее еще нет.
	// Существующая запись не трогается.
	EnsureExists(ctx context.Context, key domain.ParcelKey, address string) error

	// GetMissingOrStale выбирает участки, у которых нет данных источника
	// или последний успешный проход источника старше cutoff. Это и есть
	// весь механизм повторов: упавшие записи просто остаются в выборке.
	GetMissingOrStale(ctx context.Context, source domain.SourceID, cutoff time.Time, limit int) ([]domain.PropertyRecord, error)

	// Save сохраняет запись участка целиком (upsert одной строкой).
	Save(ctx context.Context, record domain.PropertyRecord) error
}
