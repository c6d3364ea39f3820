package configs

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"permit-enrichment-service/internal/constants"
	"permit-enrichment-service/internal/core/domain"

	"github.com/joho/godotenv"
)

// DatabaseConfig хранит конфигурацию подключения к PostgreSQL
type DatabaseConfig struct {
	URL string
}

// RegistrySourceConfig — настройки одного внешнего реестра
type RegistrySourceConfig struct {
	BaseURL string
	// Delay — минимальная пауза между запросами к реестру. Это контракт
	// клиентского пейсинга, а не политика повторов.
	Delay time.Duration
}

// RegistryConfig — общие настройки клиентов реестров
type RegistryConfig struct {
	RequestTimeout time.Duration
	AppToken       string
	Sources        map[domain.SourceID]RegistrySourceConfig
	// Вторые датасеты двухшаговых источников.
	HPDContactsBaseURL string
	AcrisMasterBaseURL string
}

// EnrichmentConfig — параметры оркестратора
type EnrichmentConfig struct {
	BatchSize int
	// StaleAfter — горизонт устаревания данных источника: старше него
	// запись снова попадает в рабочий набор.
	StaleAfter time.Duration
	// CriticalFailureThreshold — доля сбоев критического шага,
	// при превышении которой запуск прерывается.
	CriticalFailureThreshold float64
	// AssessedValuePrecedence — порядок старшинства источников для
	// конкурирующих оценочных стоимостей (первый — самый приоритетный).
	AssessedValuePrecedence []domain.SourceID
}

type StdoutLogConfig struct {
	Level string
}

type FluentBitConfig struct {
	Host    string
	Port    int
	Enabled bool
	Level   string
}

// AppConfig хранит всю конфигурацию приложения
type AppConfig struct {
	AppName      string
	Database     DatabaseConfig
	Registry     RegistryConfig
	Enrichment   EnrichmentConfig
	StdoutLogger StdoutLogConfig
	FluentBit    FluentBitConfig
}

// Датасеты NYC Open Data, которые опрашивает конвейер.
const (
	defaultPlutoBaseURL      = "https://data.cityofnewyork.us/resource/64uk-42ks.json"
	defaultTaxRollBaseURL    = "https://data.cityofnewyork.us/resource/yjxr-fw8i.json"
	defaultHPDBaseURL        = "https://data.cityofnewyork.us/resource/tesw-yqqr.json"
	defaultAcrisBaseURL      = "https://data.cityofnewyork.us/resource/8h5j-fqxa.json"
	defaultViolationsBaseURL = "https://data.cityofnewyork.us/resource/3h2n-5cm9.json"

	defaultHPDContactsBaseURL = "https://data.cityofnewyork.us/resource/feqr-mpwv.json"
	defaultAcrisMasterBaseURL = "https://data.cityofnewyork.us/resource/bnx9-e6tj.json"
)

// LoadConfig загружает конфигурацию из переменных окружения
func LoadConfig(envPath ...string) (*AppConfig, error) {
	var err error
	if len(envPath) > 0 {
		err = godotenv.Load(envPath[0])
	} else {
		err = godotenv.Load()
	}
	if err != nil {
		// Для cron-запуска нормально жить без .env: конфигурация приходит
		// из окружения процесса.
		log.Printf("Info: Could not load .env file (path: %v): %v. Using process environment.\n", envPath, err)
	}

	cfg := &AppConfig{}

	cfg.AppName = getEnvAsString("APP_NAME", "permit-enrichment-service")

	// Строка подключения обязательна, молчаливого значения по умолчанию нет.
	cfg.Database.URL = os.Getenv("DATABASE_URL")
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	cfg.Enrichment.BatchSize = getEnvAsInt("BATCH_SIZE", 200)
	if cfg.Enrichment.BatchSize <= 0 {
		return nil, fmt.Errorf("BATCH_SIZE must be positive, got %d", cfg.Enrichment.BatchSize)
	}

	cfg.Enrichment.StaleAfter, err = getEnvAsDuration("STALE_AFTER", 30*24*time.Hour)
	if err != nil {
		return nil, err
	}

	cfg.Enrichment.CriticalFailureThreshold = getEnvAsFloat("CRITICAL_FAILURE_THRESHOLD", 0.5)
	if cfg.Enrichment.CriticalFailureThreshold < 0 || cfg.Enrichment.CriticalFailureThreshold > 1 {
		return nil, fmt.Errorf("CRITICAL_FAILURE_THRESHOLD must be within [0,1], got %f", cfg.Enrichment.CriticalFailureThreshold)
	}

	cfg.Enrichment.AssessedValuePrecedence, err = parseSourceList(getEnvAsString("ASSESSED_VALUE_PRECEDENCE", "pluto,taxroll"))
	if err != nil {
		return nil, fmt.Errorf("invalid ASSESSED_VALUE_PRECEDENCE: %w", err)
	}

	cfg.Registry.RequestTimeout, err = getEnvAsDuration("REGISTRY_REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.Registry.AppToken = os.Getenv("REGISTRY_APP_TOKEN")

	defaultDelay, err := getEnvAsDuration("REGISTRY_FETCH_DELAY", time.Second)
	if err != nil {
		return nil, err
	}

	cfg.Registry.Sources = make(map[domain.SourceID]RegistrySourceConfig)
	sourceDefaults := []struct {
		id         domain.SourceID
		envPrefix  string
		defaultURL string
	}{
		{domain.SourcePluto, "PLUTO", defaultPlutoBaseURL},
		{domain.SourceTaxRoll, "TAXROLL", defaultTaxRollBaseURL},
		{domain.SourceHPD, "HPD", defaultHPDBaseURL},
		{domain.SourceAcris, "ACRIS", defaultAcrisBaseURL},
		{domain.SourceViolations, "VIOLATIONS", defaultViolationsBaseURL},
	}
	for _, src := range sourceDefaults {
		delay, err := getEnvAsDuration(src.envPrefix+"_FETCH_DELAY", defaultDelay)
		if err != nil {
			return nil, err
		}
		cfg.Registry.Sources[src.id] = RegistrySourceConfig{
			BaseURL: getEnvAsString(src.envPrefix+"_BASE_URL", src.defaultURL),
			Delay:   delay,
		}
	}

	cfg.Registry.HPDContactsBaseURL = getEnvAsString("HPD_CONTACTS_BASE_URL", defaultHPDContactsBaseURL)
	cfg.Registry.AcrisMasterBaseURL = getEnvAsString("ACRIS_MASTER_BASE_URL", defaultAcrisMasterBaseURL)

	cfg.StdoutLogger.Level = getEnvAsString("STDOUT_LOG_LEVEL", "debug")

	cfg.FluentBit.Enabled = getEnvAsBool("FLUENTBIT_ENABLED", false)
	if cfg.FluentBit.Enabled {
		cfg.FluentBit.Host = os.Getenv("FLUENTBIT_HOST")
		if cfg.FluentBit.Host == "" {
			log.Println("WARNING: FLUENTBIT_ENABLED is true, but FLUENTBIT_HOST is not set. Disabling Fluent Bit.")
			cfg.FluentBit.Enabled = false
		}

		cfg.FluentBit.Port = getEnvAsInt("FLUENTBIT_PORT", 24224)
		cfg.FluentBit.Level = getEnvAsString("FLUENTBIT_LOG_LEVEL", "info")
	}

	return cfg, nil
}

// PrecedencePolicy собирает политику старшинства полей из конфигурации.
func (c *AppConfig) PrecedencePolicy() domain.PrecedencePolicy {
	return domain.PrecedencePolicy{
		constants.FieldAssessedTotal: c.Enrichment.AssessedValuePrecedence,
		constants.FieldAssessedLand:  c.Enrichment.AssessedValuePrecedence,
	}
}

var knownSources = map[domain.SourceID]bool{
	domain.SourcePluto:      true,
	domain.SourceTaxRoll:    true,
	domain.SourceAcris:      true,
	domain.SourceHPD:        true,
	domain.SourceViolations: true,
}

func parseSourceList(raw string) ([]domain.SourceID, error) {
	parts := strings.Split(raw, ",")
	sources := make([]domain.SourceID, 0, len(parts))
	for _, part := range parts {
		id := domain.SourceID(strings.TrimSpace(part))
		if id == "" {
			continue
		}
		if !knownSources[id] {
			return nil, fmt.Errorf("unknown registry source %q", id)
		}
		sources = append(sources, id)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("source list is empty")
	}
	return sources, nil
}

func getEnvAsString(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt читает переменную окружения как int или возвращает значение по умолчанию
// Логирует ошибку, если переменная есть, но не может быть преобразована в int
func getEnvAsInt(key string, defaultValue int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as int: %v. Using default value: %d\n", key, valueStr, err, defaultValue)
		return defaultValue
	}
	return valueInt
}

// getEnvAsBool читает переменную окружения как bool или возвращает значение по умолчанию
func getEnvAsBool(key string, defaultValue bool) bool {
	valStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valBool, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as bool: %v. Using default value: %t\n", key, valStr, err, defaultValue)
		return defaultValue
	}
	return valBool
}

// getEnvAsFloat читает переменную окружения как float64 или возвращает значение по умолчанию
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valFloat, err := strconv.ParseFloat(valStr, 64)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as float: %v. Using default value: %f\n", key, valStr, err, defaultValue)
		return defaultValue
	}
	return valFloat
}

// getEnvAsDuration читает переменную окружения как time.Duration.
// В отличие от int/bool хелперов возвращает ошибку: неверная длительность
// паузы или таймаута — это не то, что стоит молча подменять дефолтом.
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	valDur, err := time.ParseDuration(valStr)
	if err != nil {
		return 0, fmt.Errorf("environment variable %s (value: %s) could not be parsed as duration: %w", key, valStr, err)
	}
	if valDur < 0 {
		return 0, fmt.Errorf("environment variable %s must not be negative, got %s", key, valDur)
	}
	return valDur, nil
}
