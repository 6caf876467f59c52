package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/savegress/clinicpulse/pkg/models"
)

// Embedded is a SQLite-backed sink for standalone deployments that
// have no Postgres available.
type Embedded struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// NewEmbedded creates an embedded sink under dataPath.
func NewEmbedded(dataPath string) (*Embedded, error) {
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataPath, "events.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Embedded{db: db, dbPath: dbPath}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *Embedded) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS ingestion_events (
			id         TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			source     TEXT NOT NULL,
			ts         INTEGER NOT NULL,
			seq        INTEGER NOT NULL,
			data       TEXT NOT NULL,
			metadata   TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_events_ts ON ingestion_events (ts);
		CREATE INDEX IF NOT EXISTS idx_events_type ON ingestion_events (event_type);
	`)
	return err
}

// Flush implements Sink. The batch is written in one transaction so a
// failure leaves nothing half-applied and the collector can redeliver.
func (s *Embedded) Flush(ctx context.Context, batch []*models.IngestionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO ingestion_events (id, event_type, source, ts, seq, data, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

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
		if _, err := stmt.ExecContext(ctx, ev.ID, ev.EventType, ev.Source,
			ev.Timestamp.UnixMilli(), ev.Seq, string(data), string(metadata)); err != nil {
			return fmt.Errorf("failed to insert event %s: %w", ev.ID, err)
		}
	}

	return tx.Commit()
}

// Count returns the number of stored events.
func (s *Embedded) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ingestion_events`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *Embedded) Close() error {
	return s.db.Close()
}
