package usecases_port

import (
	"context"

	"permit-enrichment-service/internal/core/domain"
)

// DeriveParcelKeysUseCasePort — проход выведения ключей участков.
type DeriveParcelKeysUseCasePort interface {
	Execute(ctx context.Context, batchSize int) (domain.StepStats, error)
}
