package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"permit-enrichment-service/internal/contextkeys"
	"permit-enrichment-service/internal/core/domain"
	"permit-enrichment-service/internal/core/port"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PermitStorageAdapter реализует PermitStoragePort для PostgreSQL.
// Таблицу permits наполняет внешний скрапер; адаптер только дозаполняет
// parcel_key и помечает терминальные отказы.
type PermitStorageAdapter struct {
	pool *pgxpool.Pool
}

// NewPermitStorageAdapter создает новый экземпляр адаптера.
func NewPermitStorageAdapter(pool *pgxpool.Pool) (*PermitStorageAdapter, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	return &PermitStorageAdapter{pool: pool}, nil
}

// GetPermitsMissingParcelKey выбирает рабочий набор для прохода выведения
// ключей: без ключа, с сырыми block/lot, без терминального отказа.
func (a *PermitStorageAdapter) GetPermitsMissingParcelKey(ctx context.Context, limit int) ([]domain.PermitRecord, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	repoLogger := logger.WithFields(port.Fields{
		"component": "PermitStorageAdapter",
		"method":    "GetPermitsMissingParcelKey",
		"limit":     limit,
	})

	query := `
		SELECT permit_number, address, block_raw, lot_raw, contacts, scraped_at
		FROM permits
		WHERE parcel_key IS NULL
		  AND parcel_key_error IS NULL
		  AND COALESCE(TRIM(block_raw), '') <> ''
		  AND COALESCE(TRIM(lot_raw), '') <> ''
		ORDER BY scraped_at ASC
		LIMIT $1;
	`

	rows, err := a.pool.Query(ctx, query, limit)
	if err != nil {
		repoLogger.Error("Failed to query permits missing parcel key", err, nil)
		return nil, fmt.Errorf("failed to query permits missing parcel key: %w", err)
	}
	defer rows.Close()

	var permits []domain.PermitRecord
	for rows.Next() {
		var permit domain.PermitRecord
		var contactsJSON []byte
		if err := rows.Scan(&permit.PermitNumber, &permit.Address, &permit.BlockRaw, &permit.LotRaw, &contactsJSON, &permit.ScrapedAt); err != nil {
			return nil, fmt.Errorf("failed to scan permit row: %w", err)
		}
		if len(contactsJSON) > 0 {
			if err := json.Unmarshal(contactsJSON, &permit.Contacts); err != nil {
				// Контакты не участвуют в выведении ключа, битый JSON
				// не повод выкидывать запись из прохода.
				repoLogger.Warn("Failed to decode permit contacts, leaving empty", port.Fields{
					"permit_number": permit.PermitNumber,
				})
			}
		}
		permits = append(permits, permit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read permit rows: %w", err)
	}

	return permits, nil
}

// SetParcelKey однократно заполняет ключ. Условие parcel_key IS NULL делает
// операцию идемпотентной: уже заполненный ключ не перезаписывается.
func (a *PermitStorageAdapter) SetParcelKey(ctx context.Context, permitNumber string, key domain.ParcelKey) error {
	query := `
		UPDATE permits
		SET parcel_key = $2, parcel_key_error = NULL
		WHERE permit_number = $1
		  AND parcel_key IS NULL;
	`
	if _, err := a.pool.Exec(ctx, query, permitNumber, string(key)); err != nil {
		return fmt.Errorf("failed to set parcel key for permit %s: %w", permitNumber, err)
	}
	return nil
}

// MarkDerivationRejected фиксирует причину терминального отказа. Сырые
// значения остаются в строке — их смотрят при ручном разборе; очистка
// колонки возвращает запись в рабочий набор.
func (a *PermitStorageAdapter) MarkDerivationRejected(ctx context.Context, permitNumber string, reason domain.RejectionReason) error {
	query := `
		UPDATE permits
		SET parcel_key_error = $2
		WHERE permit_number = $1
		  AND parcel_key IS NULL;
	`
	if _, err := a.pool.Exec(ctx, query, permitNumber, string(reason)); err != nil {
		return fmt.Errorf("failed to mark derivation rejection for permit %s: %w", permitNumber, err)
	}
	return nil
}
