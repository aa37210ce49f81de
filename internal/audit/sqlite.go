package audit

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"solari/internal/logging"
)

// SQLiteSink persists events durably in SQLite. The seq column preserves
// append order for read-back; the chain itself owns linkage, the sink is
// dumb storage.
type SQLiteSink struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteSink opens (or creates) the audit database at dbPath.
func NewSQLiteSink(dbPath string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	s := &SQLiteSink{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	logging.AuditDebug("sqlite sink ready at %s", dbPath)
	return s, nil
}

func (s *SQLiteSink) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS audit_events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		ts TEXT NOT NULL,
		kind TEXT NOT NULL,
		actor TEXT NOT NULL,
		request TEXT NOT NULL,
		result TEXT NOT NULL,
		prev_hash TEXT NOT NULL,
		hash TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_kind ON audit_events(kind);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to ensure audit schema: %w", err)
	}
	return nil
}

// Append inserts one event.
func (s *SQLiteSink) Append(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO audit_events (id, ts, kind, actor, request, result, prev_hash, hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID,
		ev.Timestamp.UTC().Format(time.RFC3339Nano),
		ev.Kind,
		ev.Actor,
		string(ev.Request),
		string(ev.Result),
		ev.PrevHash,
		ev.Hash,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// ReadAll returns every event in insertion order.
func (s *SQLiteSink) ReadAll() ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT id, ts, kind, actor, request, result, prev_hash, hash
		FROM audit_events ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var ts, request, result string
		if err := rows.Scan(&ev.ID, &ts, &ev.Kind, &ev.Actor, &request, &result, &ev.PrevHash, &ev.Hash); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("failed to parse audit timestamp %q: %w", ts, err)
		}
		ev.Timestamp = parsed
		ev.Request = []byte(request)
		ev.Result = []byte(result)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit events: %w", err)
	}
	return events, nil
}

// Close closes the database handle.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
