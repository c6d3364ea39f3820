package usecases_port

import (
	"context"

	"permit-enrichment-service/internal/core/domain"
	"permit-enrichment-service/internal/core/port"
)

// EnrichFromSourceUseCasePort — проход обогащения из одного реестра.
type EnrichFromSourceUseCasePort interface {
	Execute(ctx context.Context, source port.RegistrySourcePort, batchSize int) (domain.StepStats, error)
}
