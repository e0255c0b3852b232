package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // cgo driver, registered as "sqlite3"
	_ "modernc.org/sqlite"          // pure-Go driver, registered as "sqlite"

	"fathomdata/warden/pkg/usage"
)

// Driver selects which registered SQLite driver backs the store.
type Driver string

const (
	// DriverCGO uses mattn/go-sqlite3. Fastest option; requires cgo.
	DriverCGO Driver = "cgo"

	// DriverPure uses modernc.org/sqlite. Slower but builds without cgo,
	// which matters for cross-compiled deployment images.
	DriverPure Driver = "pure"
)

// SQLiteConfig contains configuration for the SQLite event store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// Driver selects the SQLite driver implementation.
	// Default: DriverCGO
	Driver Driver

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// CheckpointInterval is how often to checkpoint the WAL.
	// Default: 5 minutes
	CheckpointInterval time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:               "data/usage.db",
		Driver:             DriverCGO,
		BusyTimeout:        5 * time.Second,
		CheckpointInterval: 5 * time.Minute,
	}
}

// SQLiteStore implements usage.Store using SQLite.
//
// The schema is append-only by construction: the store prepares insert and
// select statements only, and no code path issues UPDATE or DELETE against
// the usage_events table. WAL mode is enabled for concurrent readers and a
// background loop checkpoints the log periodically.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger

	appendStmt *sql.Stmt
	sumStmt    *sql.Stmt
	listStmt   *sql.Stmt

	done      chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// sqliteTimeLayout is a fixed-width UTC encoding so that lexicographic
// comparison of the created_at column matches chronological order. The
// variable-width RFC3339Nano would sort "00Z" after "00.5Z".
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS usage_events (
	id         TEXT PRIMARY KEY,
	org_id     TEXT NOT NULL,
	event_type TEXT NOT NULL,
	quantity   INTEGER NOT NULL CHECK (quantity >= 1),
	metadata   TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_usage_events_org_type_time
	ON usage_events(org_id, event_type, created_at);
CREATE INDEX IF NOT EXISTS idx_usage_events_org_time
	ON usage_events(org_id, created_at);
`

// NewSQLiteStore creates a new SQLite-backed usage event store.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if config.Driver == "" {
		config.Driver = DriverCGO
	}
	if config.BusyTimeout == 0 {
		config.BusyTimeout = 5 * time.Second
	}
	if config.CheckpointInterval == 0 {
		config.CheckpointInterval = 5 * time.Minute
	}

	driverName, err := sqlDriverName(config.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports a single writer; serialize writes at the pool level.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		db:     db,
		config: config,
		logger: slog.Default().With("component", "usage.storage.sqlite"),
		done:   make(chan struct{}),
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	go s.checkpointLoop()

	s.logger.Info("usage event store initialized",
		"path", config.Path,
		"driver", string(config.Driver),
	)

	return s, nil
}

// sqlDriverName maps the configured driver to its registered sql name.
func sqlDriverName(d Driver) (string, error) {
	switch d {
	case DriverCGO:
		return "sqlite3", nil
	case DriverPure:
		return "sqlite", nil
	default:
		return "", fmt.Errorf("unsupported sqlite driver: %q", d)
	}
}

// initialize enables WAL mode, sets the busy timeout and creates the schema.
func (s *SQLiteStore) initialize() error {
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := s.db.Exec("PRAGMA synchronous=NORMAL;"); err != nil {
		return fmt.Errorf("failed to set synchronous mode: %w", err)
	}
	if _, err := s.db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// prepareStatements prepares SQL statements for reuse.
func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.appendStmt, err = s.db.Prepare(`
		INSERT INTO usage_events (id, org_id, event_type, quantity, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare append statement: %w", err)
	}

	s.sumStmt, err = s.db.Prepare(`
		SELECT COALESCE(SUM(quantity), 0)
		FROM usage_events
		WHERE org_id = ? AND event_type = ? AND created_at >= ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare sum statement: %w", err)
	}

	s.listStmt, err = s.db.Prepare(`
		SELECT id, org_id, event_type, quantity, metadata, created_at
		FROM usage_events
		WHERE org_id = ? AND created_at >= ?
		ORDER BY created_at ASC
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare list statement: %w", err)
	}

	return nil
}

// Append writes one event to the log.
func (s *SQLiteStore) Append(ctx context.Context, event *usage.Event) error {
	if err := validateEvent(event); err != nil {
		return err
	}

	metadataJSON, err := json.Marshal(metadataOrEmpty(event.Metadata))
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	_, err = s.appendStmt.ExecContext(ctx,
		event.ID,
		event.OrgID,
		string(event.Type),
		event.Quantity,
		string(metadataJSON),
		event.CreatedAt.UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	return nil
}

// SumSince returns the summed quantity for an organization and event type
// since the given instant.
func (s *SQLiteStore) SumSince(ctx context.Context, orgID string, eventType usage.EventType, since time.Time) (int64, error) {
	if orgID == "" {
		return 0, fmt.Errorf("org id cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}

	var total int64
	err := s.sumStmt.QueryRowContext(ctx,
		orgID,
		string(eventType),
		since.UTC().Format(sqliteTimeLayout),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum events: %w", err)
	}

	return total, nil
}

// ListSince returns all events for an organization since the given instant.
func (s *SQLiteStore) ListSince(ctx context.Context, orgID string, since time.Time) ([]*usage.Event, error) {
	if orgID == "" {
		return nil, fmt.Errorf("org id cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.listStmt.QueryContext(ctx,
		orgID,
		since.UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*usage.Event
	for rows.Next() {
		var (
			event        usage.Event
			eventType    string
			metadataJSON string
			createdAt    string
		)

		if err := rows.Scan(&event.ID, &event.OrgID, &eventType, &event.Quantity, &metadataJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}

		event.Type = usage.EventType(eventType)

		event.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse event timestamp %q: %w", createdAt, err)
		}

		if err := json.Unmarshal([]byte(metadataJSON), &event.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}

		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}

	return events, nil
}

// Close releases the prepared statements and the database.
// Close is idempotent and safe to call multiple times.
func (s *SQLiteStore) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		close(s.done)

		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		if s.appendStmt != nil {
			s.appendStmt.Close()
		}
		if s.sumStmt != nil {
			s.sumStmt.Close()
		}
		if s.listStmt != nil {
			s.listStmt.Close()
		}

		if s.db != nil {
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			closeErr = s.db.Close()
		}
	})

	return closeErr
}

// checkpointLoop runs periodic WAL checkpoints.
func (s *SQLiteStore) checkpointLoop() {
	ticker := time.NewTicker(s.config.CheckpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
		case <-s.done:
			return
		}
	}
}

// metadataOrEmpty normalizes nil metadata to an empty map so the stored
// column is always valid JSON.
func metadataOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
