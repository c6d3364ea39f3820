package usecases_port

import (
	"context"

	"permit-enrichment-service/internal/core/domain"
)

// RunEnrichmentUseCasePort — полный запуск оркестратора.
type RunEnrichmentUseCasePort interface {
	Execute(ctx context.Context, batchSize int) (*domain.RunSummary, error)
}
