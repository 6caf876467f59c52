package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/savegress/clinicpulse/pkg/models"
)

// Postgres writes flushed batches to a Postgres events table. Inserts
// are keyed on the event ID so redelivered batches upsert instead of
// duplicating.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to Postgres and prepares the events table.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p := &Postgres{pool: pool}
	if err := p.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return p, nil
}

func (p *Postgres) initSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS ingestion_events (
			id         TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			source     TEXT NOT NULL,
			ts         TIMESTAMPTZ NOT NULL,
			seq        BIGINT NOT NULL,
			data       JSONB NOT NULL,
			metadata   JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_ingestion_events_ts ON ingestion_events (ts);
		CREATE INDEX IF NOT EXISTS idx_ingestion_events_type ON ingestion_events (event_type);
	`)
	return err
}

// Flush implements Sink.
func (p *Postgres) Flush(ctx context.Context, batch []*models.IngestionEvent) error {
	b := &pgx.Batch{}
	for _, ev := range batch {
		data, err := json.Marshal(ev.Data)
		if err != nil {
			return fmt.Errorf("failed to encode event %s: %w", ev.ID, err)
		}
		var metadata []byte
		if ev.Metadata != nil {
			metadata, err = json.Marshal(ev.Metadata)
			if err != nil {
				return fmt.Errorf("failed to encode event %s metadata: %w", ev.ID, err)
			}
		}
		b.Queue(`
			INSERT INTO ingestion_events (id, event_type, source, ts, seq, data, metadata)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING
		`, ev.ID, ev.EventType, ev.Source, ev.Timestamp, ev.Seq, data, metadata)
	}

	results := p.pool.SendBatch(ctx, b)
	defer results.Close()

	for range batch {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert batch: %w", err)
		}
	}
	return nil
}

// Query loads events within a time range, in collection order.
func (p *Postgres) Query(ctx context.Context, from, to time.Time, limit int) ([]*models.IngestionEvent, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, event_type, source, ts, seq, data, metadata
		FROM ingestion_events
		WHERE ts >= $1 AND ts <= $2
		ORDER BY ts, seq
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.IngestionEvent
	for rows.Next() {
		ev := &models.IngestionEvent{}
		var data, metadata []byte
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.Source, &ev.Timestamp, &ev.Seq, &data, &metadata); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &ev.Data); err != nil {
			return nil, err
		}
		if metadata != nil {
			if err := json.Unmarshal(metadata, &ev.Metadata); err != nil {
				return nil, err
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
