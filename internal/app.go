package internal

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	logger_adapter "permit-enrichment-service/internal/adapters/logger"
	postgres_adapter "permit-enrichment-service/internal/adapters/postgres"
	registry_adapter "permit-enrichment-service/internal/adapters/registry"
	"permit-enrichment-service/internal/configs"
	"permit-enrichment-service/internal/contextkeys"
	"permit-enrichment-service/internal/core/domain"
	"permit-enrichment-service/internal/core/port"
	"permit-enrichment-service/internal/core/usecase"
	fluentlogger "permit-enrichment-service/pkg/fluent_logger"
	"permit-enrichment-service/pkg/postgres"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// App — пакетное приложение обогащения: один вызов Run выполняет один
// запуск оркестратора и завершается. Расписание задает внешний cron.
type App struct {
	config *configs.AppConfig
	pool   *pgxpool.Pool

	orchestrator *usecase.RunEnrichmentUseCase

	logger       port.LoggerPort
	fluentClient *fluent.Fluent // для корректного закрытия
}

func NewApp() (*App, error) {
	appConfig, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading application configuration: %w", err)
	}

	// --- 1. Инициализация логгеров ---
	var activeLoggers []port.LoggerPort

	slogCfg := logger_adapter.SlogConfig{
		Level:    parseLogLevel(appConfig.StdoutLogger.Level),
		IsJSON:   false, // текстовый формат
		UseColor: true,
	}
	stdoutLogger := logger_adapter.NewSlogAdapter(slogCfg)
	activeLoggers = append(activeLoggers, stdoutLogger)

	// Добавляем Fluent Bit логгер, если он включен в конфигурации
	var fluentClient *fluent.Fluent
	if appConfig.FluentBit.Enabled {
		fluentClient, err = fluentlogger.NewClient(fluentlogger.Config{
			Host:      appConfig.FluentBit.Host,
			Port:      appConfig.FluentBit.Port,
			TagPrefix: appConfig.AppName,
		})
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit client", err, nil)
			return nil, fmt.Errorf("failed to create fluentbit client: %w", err)
		}

		fluentAdapter, err := logger_adapter.NewFluentLoggerAdapter(fluentClient, parseLogLevel(appConfig.FluentBit.Level))
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit adapter", err, nil)
			fluentClient.Close()
			return nil, err
		}
		activeLoggers = append(activeLoggers, fluentAdapter)
	}

	multiLogger, err := logger_adapter.NewMultiloggerAdapter(activeLoggers...)
	if err != nil {
		return nil, fmt.Errorf("failed to create multi-logger: %w", err)
	}

	baseLogger := multiLogger.WithFields(port.Fields{
		"service_name": appConfig.AppName,
	})

	appLogger := baseLogger.WithFields(port.Fields{"component": "app"})
	appLogger.Info("Logger system initialized", port.Fields{
		"active_loggers": len(activeLoggers), "fluent_enabled": appConfig.FluentBit.Enabled,
	})

	// --- 2. Подключение к PostgreSQL ---
	pool, err := postgres.NewClient(context.Background(), postgres.Config{
		DatabaseURL: appConfig.Database.URL,
	})
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", err, nil)
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	appLogger.Info("PostgreSQL connection pool initialized.", nil)

	permitStorage, err := postgres_adapter.NewPermitStorageAdapter(pool)
	if err != nil {
		return nil, fmt.Errorf("failed to create permit storage adapter: %w", err)
	}
	propertyStorage, err := postgres_adapter.NewPropertyStorageAdapter(pool)
	if err != nil {
		return nil, fmt.Errorf("failed to create property storage adapter: %w", err)
	}
	runReporter, err := postgres_adapter.NewRunReportAdapter(pool)
	if err != nil {
		return nil, fmt.Errorf("failed to create run report adapter: %w", err)
	}

	// --- 3. Клиенты реестров, в фиксированном порядке обхода ---
	sources, err := buildRegistrySources(appConfig)
	if err != nil {
		appLogger.Error("Failed to create registry clients", err, nil)
		return nil, err
	}
	appLogger.Info("Registry clients initialized", port.Fields{"sources": len(sources)})

	// --- 4. Use cases (ядро бизнес-логики) ---
	deriveUseCase := usecase.NewDeriveParcelKeysUseCase(permitStorage, propertyStorage)
	enrichUseCase := usecase.NewEnrichFromSourceUseCase(propertyStorage, appConfig.PrecedencePolicy(), appConfig.Enrichment.StaleAfter)
	orchestrator := usecase.NewRunEnrichmentUseCase(deriveUseCase, enrichUseCase, sources, runReporter, appConfig.Enrichment.CriticalFailureThreshold)

	appLogger.Info("All use cases initialized", nil)

	application := &App{
		config:       appConfig,
		pool:         pool,
		orchestrator: orchestrator,
		logger:       baseLogger,
		fluentClient: fluentClient,
	}

	return application, nil
}

// buildRegistrySources создает клиентов реестров в порядке обхода.
func buildRegistrySources(cfg *configs.AppConfig) ([]port.RegistrySourcePort, error) {
	timeout := cfg.Registry.RequestTimeout
	token := cfg.Registry.AppToken

	sources := make([]port.RegistrySourcePort, 0, len(domain.EnrichmentSourceOrder))
	for _, sourceID := range domain.EnrichmentSourceOrder {
		sourceCfg, ok := cfg.Registry.Sources[sourceID]
		if !ok {
			return nil, fmt.Errorf("no configuration for registry source %s", sourceID)
		}

		var client port.RegistrySourcePort
		var err error
		switch sourceID {
		case domain.SourcePluto:
			client, err = registry_adapter.NewPlutoAdapter(sourceCfg.BaseURL, sourceCfg.Delay, timeout, token)
		case domain.SourceTaxRoll:
			client, err = registry_adapter.NewTaxRollAdapter(sourceCfg.BaseURL, sourceCfg.Delay, timeout, token)
		case domain.SourceHPD:
			client, err = registry_adapter.NewHPDAdapter(sourceCfg.BaseURL, cfg.Registry.HPDContactsBaseURL, sourceCfg.Delay, timeout, token)
		case domain.SourceAcris:
			client, err = registry_adapter.NewAcrisAdapter(sourceCfg.BaseURL, cfg.Registry.AcrisMasterBaseURL, sourceCfg.Delay, timeout, token)
		case domain.SourceViolations:
			client, err = registry_adapter.NewViolationsAdapter(sourceCfg.BaseURL, sourceCfg.Delay, timeout, token)
		default:
			err = fmt.Errorf("unknown registry source %s", sourceID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create client for source %s: %w", sourceID, err)
		}
		sources = append(sources, client)
	}
	return sources, nil
}

// Run выполняет один запуск оркестратора и управляет жизненным циклом.
func (a *App) Run() error {
	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	defer func() {
		a.logger.Info("Shutdown sequence initiated...", nil)

		if a.pool != nil {
			a.pool.Close()
		}

		a.logger.Info("Application shut down gracefully.", nil)

		if a.fluentClient != nil {
			if err := a.fluentClient.Close(); err != nil {
				// Логируем в stdout, так как fluent может быть уже недоступен
				fmt.Printf("ERROR: Error closing fluent client: %v\n", err)
			}
		}
	}()

	traceID := uuid.New().String()
	runCtx := contextkeys.ContextWithLogger(appCtx, a.logger.WithFields(port.Fields{"trace_id": traceID}))
	runCtx = contextkeys.ContextWithTraceID(runCtx, traceID)

	// Сигнал ОС отменяет контекст: прерванный запуск просто оставляет
	// часть участков необработанными, их подберет следующий запуск.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		receivedSignal, ok := <-quit
		if ok {
			a.logger.Warn("Received OS signal, cancelling current run...", port.Fields{"signal": receivedSignal.String()})
			cancelApp()
		}
	}()
	defer func() {
		signal.Stop(quit)
		close(quit)
	}()

	a.logger.Info("Application is starting enrichment run...", port.Fields{"batch_size": a.config.Enrichment.BatchSize})

	summary, err := a.orchestrator.Execute(runCtx, a.config.Enrichment.BatchSize)
	if err != nil {
		a.logger.Error("Enrichment run failed", err, nil)
		return err
	}

	a.logger.Info("Enrichment run completed", port.Fields{
		"run_id":   summary.RunID.String(),
		"steps":    len(summary.Steps),
		"duration": summary.FinishedAt.Sub(summary.StartedAt).String(),
	})

	return nil
}

func parseLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		// Возвращаем безопасное значение по умолчанию и логируем предупреждение
		log.Printf("Warning: Unknown log level '%s'. Defaulting to 'info'.", levelStr)
		return slog.LevelInfo
	}
}
