package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"permit-enrichment-service/internal/core/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RunReportAdapter сохраняет итоги запусков оркестратора.
// Историю запусков читает дашборд.
type RunReportAdapter struct {
	pool *pgxpool.Pool
}

// NewRunReportAdapter создает новый экземпляр адаптера.
func NewRunReportAdapter(pool *pgxpool.Pool) (*RunReportAdapter, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	return &RunReportAdapter{pool: pool}, nil
}

// SaveRunSummary записывает итог запуска, включая прерванные запуски.
func (a *RunReportAdapter) SaveRunSummary(ctx context.Context, summary domain.RunSummary) error {
	stepsJSON, err := json.Marshal(summary.Steps)
	if err != nil {
		return fmt.Errorf("failed to encode run steps: %w", err)
	}

	query := `
		INSERT INTO enrichment_runs (run_id, started_at, finished_at, steps, aborted, abort_reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			steps = EXCLUDED.steps,
			aborted = EXCLUDED.aborted,
			abort_reason = EXCLUDED.abort_reason;
	`
	if _, err := a.pool.Exec(ctx, query,
		summary.RunID, summary.StartedAt, summary.FinishedAt, stepsJSON,
		summary.Aborted, summary.AbortReason); err != nil {
		return fmt.Errorf("failed to save run summary %s: %w", summary.RunID, err)
	}
	return nil
}
