package port

import (
	"context"

	"permit-enrichment-service/internal/core/domain"
)

// RegistrySourcePort — контракт конкретного внешнего реестра.
//
// Три исхода Fetch: строки найдены; строк нет (участок законно отсутствует
// в реестре — для части источников это 30-70% участков); *TransientError
// (сеть/лимиты/5xx — запись будет повторена следующим запуском).
// Минимальную паузу между вызовами обязан выдерживать сам клиент.
type RegistrySourcePort interface {
	SourceID() domain.SourceID

	Fetch(ctx context.Context, key domain.ParcelKey) (*domain.RegistryResult, error)
}
