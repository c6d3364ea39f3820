package usecase

import (
	"context"
	"fmt"
	"time"

	"permit-enrichment-service/internal/contextkeys"
	"permit-enrichment-service/internal/core/domain"
	"permit-enrichment-service/internal/core/port"
	"permit-enrichment-service/internal/core/port/usecases_port"

	"github.com/google/uuid"
)

// RunEnrichmentUseCase — оркестратор запуска. Порядок шагов фиксирован:
// сначала выведение ключей (обогащение адресуется по ParcelKey и без него
// невозможно), затем источники в порядке domain.EnrichmentSourceOrder.
//
// Критические шаги — выведение ключей и PLUTO (первичный источник
// владельца и характеристик): доля сбоев выше порога прерывает оставшиеся
// шаги. Остальные источники — best-effort: их сбои, вплоть до полного
// отказа источника, лишь предупреждение в логе.
type RunEnrichmentUseCase struct {
	derive    usecases_port.DeriveParcelKeysUseCasePort
	enrich    usecases_port.EnrichFromSourceUseCasePort
	sources   []port.RegistrySourcePort
	reporter  port.RunReporterPort
	threshold float64
}

func NewRunEnrichmentUseCase(derive usecases_port.DeriveParcelKeysUseCasePort,
	enrich usecases_port.EnrichFromSourceUseCasePort,
	sources []port.RegistrySourcePort,
	reporter port.RunReporterPort,
	criticalFailureThreshold float64) *RunEnrichmentUseCase {
	return &RunEnrichmentUseCase{
		derive:    derive,
		enrich:    enrich,
		sources:   sources,
		reporter:  reporter,
		threshold: criticalFailureThreshold,
	}
}

// критические шаги запуска
var criticalSteps = map[string]bool{
	domain.StepDeriveParcelKeys: true,
	string(domain.SourcePluto):  true,
}

// Execute выполняет один запуск. Повторный запуск по тем же данным —
// no-op для уже обогащенных полей: рабочие наборы образуются только
// предикатами "missing or stale". Итог запуска сохраняется всегда,
// включая прерванные запуски.
func (uc *RunEnrichmentUseCase) Execute(ctx context.Context, batchSize int) (*domain.RunSummary, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	runID := uuid.New()
	runLogger := logger.WithFields(port.Fields{
		"use_case": "RunEnrichment",
		"run_id":   runID.String(),
	})
	ctx = contextkeys.ContextWithLogger(ctx, runLogger)

	summary := &domain.RunSummary{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
	}

	runLogger.Info("Enrichment run started", port.Fields{"batch_size": batchSize})

	// Шаг 1: разрешение идентичности (критический).
	deriveStats, err := uc.derive.Execute(ctx, batchSize)
	summary.Steps = append(summary.Steps, deriveStats)
	if err != nil {
		uc.abort(ctx, summary, fmt.Sprintf("derivation step failed: %v", err))
		return summary, fmt.Errorf("derivation step failed: %w", err)
	}
	if uc.overThreshold(deriveStats) {
		reason := fmt.Sprintf("critical step %s failure rate %.2f exceeds threshold %.2f",
			deriveStats.Step, deriveStats.FailureRate(), uc.threshold)
		uc.abort(ctx, summary, reason)
		return summary, fmt.Errorf("enrichment run aborted: %s", reason)
	}

	// Шаг 2: источники, строго последовательно.
	for _, source := range uc.sources {
		stepName := string(source.SourceID())
		critical := criticalSteps[stepName]

		stats, err := uc.enrich.Execute(ctx, source, batchSize)
		summary.Steps = append(summary.Steps, stats)

		if err != nil {
			if critical {
				uc.abort(ctx, summary, fmt.Sprintf("critical source %s failed: %v", stepName, err))
				return summary, fmt.Errorf("critical source %s failed: %w", stepName, err)
			}
			// Best-effort источник: даже полный отказ не блокирует
			// следующие шаги.
			runLogger.Warn("Best-effort source failed, continuing run", port.Fields{
				"source": stepName,
				"error":  err.Error(),
			})
			continue
		}

		if critical && uc.overThreshold(stats) {
			reason := fmt.Sprintf("critical step %s failure rate %.2f exceeds threshold %.2f",
				stepName, stats.FailureRate(), uc.threshold)
			uc.abort(ctx, summary, reason)
			return summary, fmt.Errorf("enrichment run aborted: %s", reason)
		}
		if !critical && stats.FailureRate() > 0 {
			runLogger.Warn("Best-effort source finished with failures", port.Fields{
				"source":       stepName,
				"failure_rate": stats.FailureRate(),
			})
		}
	}

	summary.FinishedAt = time.Now().UTC()
	uc.report(ctx, summary)

	runLogger.Info("Enrichment run finished", port.Fields{
		"steps":    len(summary.Steps),
		"duration": summary.FinishedAt.Sub(summary.StartedAt).String(),
	})

	return summary, nil
}

func (uc *RunEnrichmentUseCase) overThreshold(stats domain.StepStats) bool {
	return stats.Selected > 0 && stats.FailureRate() > uc.threshold
}

func (uc *RunEnrichmentUseCase) abort(ctx context.Context, summary *domain.RunSummary, reason string) {
	logger := contextkeys.LoggerFromContext(ctx)
	logger.Error("Enrichment run aborted", nil, port.Fields{"reason": reason})

	summary.Aborted = true
	summary.AbortReason = reason
	summary.FinishedAt = time.Now().UTC()
	uc.report(ctx, summary)
}

func (uc *RunEnrichmentUseCase) report(ctx context.Context, summary *domain.RunSummary) {
	logger := contextkeys.LoggerFromContext(ctx)
	if err := uc.reporter.SaveRunSummary(ctx, *summary); err != nil {
		// Сам запуск уже отработал; несохраненный отчет не повод его ронять.
		logger.Error("Failed to save run summary", err, port.Fields{"run_id": summary.RunID.String()})
	}
}
