package eventlog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Schema for the event spool.
const schema = `
CREATE TABLE IF NOT EXISTS events (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    document_id  TEXT NOT NULL,
    timestamp_ns INTEGER NOT NULL,
    kind         TEXT NOT NULL,
    cell_id      TEXT NOT NULL,
    sequence     INTEGER NOT NULL,
    error_kind   TEXT
);

CREATE INDEX IF NOT EXISTS idx_events_document ON events(document_id, id);
`

// Spool is the SQLite-backed event mirror. One spool serves all tracked
// documents; rows are keyed by document id and trimmed to the ring cap,
// newest retained.
type Spool struct {
	db  *sql.DB
	cap int
}

// OpenSpool opens or creates the spool database at path.
func OpenSpool(path string, cap int) (*Spool, error) {
	if cap <= 0 {
		cap = DefaultCap
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create spool dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open spool: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate spool: %w", err)
	}

	return &Spool{db: db, cap: cap}, nil
}

// Append records one event for a document and trims rows beyond the cap.
func (s *Spool) Append(documentID string, e Entry) error {
	_, err := s.db.Exec(
		`INSERT INTO events (document_id, timestamp_ns, kind, cell_id, sequence, error_kind)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		documentID, e.Time.UnixNano(), e.Kind, e.UnitID, e.Sequence, e.ErrorKind,
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	_, err = s.db.Exec(
		`DELETE FROM events WHERE document_id = ? AND id NOT IN (
		     SELECT id FROM events WHERE document_id = ? ORDER BY id DESC LIMIT ?
		 )`,
		documentID, documentID, s.cap,
	)
	if err != nil {
		return fmt.Errorf("trim events: %w", err)
	}
	return nil
}

// Load returns a document's spooled events, oldest first.
func (s *Spool) Load(documentID string) ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT timestamp_ns, kind, cell_id, sequence, error_kind
		 FROM events WHERE document_id = ? ORDER BY id ASC`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ns int64
		var errorKind sql.NullString
		if err := rows.Scan(&ns, &e.Kind, &e.UnitID, &e.Sequence, &errorKind); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Time = time.Unix(0, ns).UTC()
		e.ErrorKind = errorKind.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Forget removes a document's spooled events.
func (s *Spool) Forget(documentID string) error {
	_, err := s.db.Exec(`DELETE FROM events WHERE document_id = ?`, documentID)
	return err
}

// Close closes the spool database.
func (s *Spool) Close() error {
	return s.db.Close()
}
