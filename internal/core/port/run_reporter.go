package port

import (
	"context"

	"permit-enrichment-service/internal/core/domain"
)

// RunReporterPort сохраняет итог запуска оркестратора для истории запусков.
type RunReporterPort interface {
	SaveRunSummary(ctx context.Context, summary domain.RunSummary) error
}
