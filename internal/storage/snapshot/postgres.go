package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
)

// PostgresStore хранит снимок в однострочной таблице catalog_snapshot.
// Compare-and-swap выполняется одним условным UPSERT по колонке version,
// поэтому гонка писателей разрешается на стороне PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore создаёт хранилище снимка поверх пула подключений.
// Схема создаётся миграциями пакета database.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Load читает снимок. Отсутствующая строка даёт пустой снимок версии 0.
func (s *PostgresStore) Load(ctx context.Context) (*Snapshot, error) {
	query := `
		SELECT version, last_position, records, updated_at
		FROM catalog_snapshot
		WHERE id = 1`

	var (
		version   int64
		cursor    int64
		raw       []byte
		updatedAt time.Time
	)
	err := s.pool.QueryRow(ctx, query).Scan(&version, &cursor, &raw, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения catalog_snapshot: %w", err)
	}

	var records []model.VideoRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("ошибка десериализации records: %w", err)
	}

	return &Snapshot{
		Version:   uint64(version), //nolint:gosec // G115: version всегда >= 0
		Cursor:    cursor,
		UpdatedAt: updatedAt,
		Records:   records,
	}, nil
}

// CompareAndSwap записывает снимок, если версия в таблице равна expectedVersion.
func (s *PostgresStore) CompareAndSwap(ctx context.Context, expectedVersion uint64, next Snapshot) (*Snapshot, error) {
	records := next.Records
	if records == nil {
		records = []model.VideoRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации records: %w", err)
	}

	query := `
		INSERT INTO catalog_snapshot (id, version, last_position, records, updated_at)
		VALUES (1, $1 + 1, $2, $3::jsonb, now())
		ON CONFLICT (id) DO UPDATE
		SET version = EXCLUDED.version,
		    last_position = EXCLUDED.last_position,
		    records = EXCLUDED.records,
		    updated_at = EXCLUDED.updated_at
		WHERE catalog_snapshot.version = $1
		RETURNING version, updated_at`

	var (
		version   int64
		updatedAt time.Time
	)
	expected := int64(expectedVersion) //nolint:gosec // G115: версии не выходят за int64
	err = s.pool.QueryRow(ctx, query, expected, next.Cursor, string(data)).Scan(&version, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: ожидалась версия %d", ErrVersionConflict, expectedVersion)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка записи catalog_snapshot: %w", err)
	}

	return &Snapshot{
		Version:   uint64(version), //nolint:gosec // G115: version всегда >= 0
		Cursor:    next.Cursor,
		UpdatedAt: updatedAt,
		Records:   records,
	}, nil
}
