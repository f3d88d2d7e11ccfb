package devicestore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLoader loads the devices table once at startup into an in-memory
// Store. Writes to the table are out of scope for this core.
type PostgresLoader struct {
	pool *pgxpool.Pool
}

// NewPostgresLoader opens a pooled connection to dsn and pings it.
func NewPostgresLoader(ctx context.Context, dsn string) (*PostgresLoader, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse credentials dsn: %w", err)
	}

	cfg.MaxConns = 5
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create credentials pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping credentials database: %w", err)
	}

	return &PostgresLoader{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (l *PostgresLoader) Close() {
	l.pool.Close()
}

// Load reads every row of devices(device_id, shared_secret, created_at) and
// builds an immutable Store, failing on any duplicate device_id or
// undersized shared_secret (spec.md §3 invariants).
func (l *PostgresLoader) Load(ctx context.Context) (Store, error) {
	rows, err := l.pool.Query(ctx, `SELECT device_id, shared_secret, created_at FROM devices`)
	if err != nil {
		return nil, fmt.Errorf("query devices: %w", err)
	}
	defer rows.Close()

	var records []Device
	for rows.Next() {
		var (
			deviceID  string
			secretHex string
			createdAt int64
		)
		if err := rows.Scan(&deviceID, &secretHex, &createdAt); err != nil {
			return nil, fmt.Errorf("scan device row: %w", err)
		}
		records = append(records, Device{
			DeviceID:     deviceID,
			SharedSecret: []byte(secretHex),
			CreatedAt:    time.Unix(createdAt, 0).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate device rows: %w", err)
	}

	return NewMemoryStore(records)
}
