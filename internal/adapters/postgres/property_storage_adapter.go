package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"permit-enrichment-service/internal/contextkeys"
	"permit-enrichment-service/internal/core/domain"
	"permit-enrichment-service/internal/core/port"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PropertyStorageAdapter реализует PropertyStoragePort для PostgreSQL.
// Поля записи хранятся в JSONB: набор канонических и квалифицированных
// имен открытый, а запись сохраняется целиком одним upsert.
type PropertyStorageAdapter struct {
	pool *pgxpool.Pool
}

// NewPropertyStorageAdapter создает новый экземпляр адаптера.
func NewPropertyStorageAdapter(pool *pgxpool.Pool) (*PropertyStorageAdapter, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	return &PropertyStorageAdapter{pool: pool}, nil
}

// EnsureExists создает пустую запись участка, не трогая существующую.
func (a *PropertyStorageAdapter) EnsureExists(ctx context.Context, key domain.ParcelKey, address string) error {
	record := domain.NewPropertyRecord(key, address)

	fieldsJSON, originsJSON, enrichedJSON, err := marshalRecordMaps(record)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO properties (parcel_key, address, fields, origins, enriched_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (parcel_key) DO NOTHING;
	`
	if _, err := a.pool.Exec(ctx, query,
		string(record.ParcelKey), record.Address, fieldsJSON, originsJSON, enrichedJSON,
		record.CreatedAt, record.UpdatedAt); err != nil {
		return fmt.Errorf("failed to ensure property %s exists: %w", key, err)
	}
	return nil
}

// GetMissingOrStale выбирает участки без отметки прохода источника или с
// отметкой старше cutoff. Никаких счетчиков повторов: этот предикат и есть
// весь механизм самовосстановления.
func (a *PropertyStorageAdapter) GetMissingOrStale(ctx context.Context, source domain.SourceID, cutoff time.Time, limit int) ([]domain.PropertyRecord, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	repoLogger := logger.WithFields(port.Fields{
		"component": "PropertyStorageAdapter",
		"method":    "GetMissingOrStale",
		"source":    string(source),
		"limit":     limit,
	})

	query := `
		SELECT parcel_key, address, fields, origins, enriched_at, created_at, updated_at
		FROM properties
		WHERE (enriched_at ->> $1) IS NULL
		   OR (enriched_at ->> $1)::timestamptz < $2
		ORDER BY updated_at ASC
		LIMIT $3;
	`

	rows, err := a.pool.Query(ctx, query, string(source), cutoff, limit)
	if err != nil {
		repoLogger.Error("Failed to query missing or stale properties", err, nil)
		return nil, fmt.Errorf("failed to query missing or stale properties for %s: %w", source, err)
	}
	defer rows.Close()

	var records []domain.PropertyRecord
	for rows.Next() {
		var record domain.PropertyRecord
		var keyStr string
		var fieldsJSON, originsJSON, enrichedJSON []byte
		if err := rows.Scan(&keyStr, &record.Address, &fieldsJSON, &originsJSON, &enrichedJSON, &record.CreatedAt, &record.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan property row: %w", err)
		}
		record.ParcelKey = domain.ParcelKey(keyStr)
		if err := unmarshalRecordMaps(&record, fieldsJSON, originsJSON, enrichedJSON); err != nil {
			return nil, fmt.Errorf("failed to decode property %s: %w", keyStr, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read property rows: %w", err)
	}

	return records, nil
}

// Save сохраняет запись целиком. Адрес пустым значением не затирается.
func (a *PropertyStorageAdapter) Save(ctx context.Context, record domain.PropertyRecord) error {
	fieldsJSON, originsJSON, enrichedJSON, err := marshalRecordMaps(record)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO properties (parcel_key, address, fields, origins, enriched_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (parcel_key) DO UPDATE SET
			address = CASE WHEN EXCLUDED.address <> '' THEN EXCLUDED.address ELSE properties.address END,
			fields = EXCLUDED.fields,
			origins = EXCLUDED.origins,
			enriched_at = EXCLUDED.enriched_at,
			updated_at = EXCLUDED.updated_at;
	`
	if _, err := a.pool.Exec(ctx, query,
		string(record.ParcelKey), record.Address, fieldsJSON, originsJSON, enrichedJSON,
		record.CreatedAt, record.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save property %s: %w", record.ParcelKey, err)
	}
	return nil
}

func marshalRecordMaps(record domain.PropertyRecord) (fields, origins, enriched []byte, err error) {
	fields, err = json.Marshal(record.Fields)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode property fields: %w", err)
	}
	origins, err = json.Marshal(record.Origins)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode property origins: %w", err)
	}
	enriched, err = json.Marshal(record.EnrichedAt)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode property enrichment marks: %w", err)
	}
	return fields, origins, enriched, nil
}

func unmarshalRecordMaps(record *domain.PropertyRecord, fieldsJSON, originsJSON, enrichedJSON []byte) error {
	record.Fields = make(map[string]string)
	record.Origins = make(map[string]domain.SourceID)
	record.EnrichedAt = make(map[domain.SourceID]time.Time)

	if len(fieldsJSON) > 0 {
		if err := json.Unmarshal(fieldsJSON, &record.Fields); err != nil {
			return fmt.Errorf("fields: %w", err)
		}
	}
	if len(originsJSON) > 0 {
		if err := json.Unmarshal(originsJSON, &record.Origins); err != nil {
			return fmt.Errorf("origins: %w", err)
		}
	}
	if len(enrichedJSON) > 0 {
		if err := json.Unmarshal(enrichedJSON, &record.EnrichedAt); err != nil {
			return fmt.Errorf("enriched_at: %w", err)
		}
	}
	return nil
}
