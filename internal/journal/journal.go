package journal

import (
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/LImboing/hostsim/internal/resolver"
)

//go:embed schema.sql
var schemaSQL string

// Event is one recorded resolution attempt.
type Event struct {
	Seq       int64
	Session   string
	Host      string
	Source    string
	QueryType string
	Code      string
	NumAddrs  int
	FromCache bool
}

// Journal records resolution events to a SQLite database. It implements
// resolver.Recorder.
type Journal struct {
	db      *sql.DB
	session string
}

// Open creates or opens a journal database at path. Each Open mints a
// fresh UUIDv7 session token; rows written through this handle carry it.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect journal: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY under interleaved use.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}

	token, err := uuid.NewV7()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("mint session token: %w", err)
	}
	return &Journal{db: db, session: token.String()}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Session returns this handle's session token.
func (j *Journal) Session() string { return j.session }

// Record appends one resolution event. Implements resolver.Recorder.
func (j *Journal) Record(rec resolver.ResolutionRecord) error {
	fromCache := 0
	if rec.FromCache {
		fromCache = 1
	}
	_, err := j.db.Exec(`
		INSERT INTO resolutions
		(session, host, source, query_type, code, num_addrs, from_cache)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		j.session,
		rec.Host,
		rec.Source.String(),
		rec.QueryType.String(),
		rec.Code.String(),
		rec.NumAddrs,
		fromCache,
	)
	if err != nil {
		return fmt.Errorf("record resolution: %w", err)
	}
	return nil
}

// Events returns this session's events in seq order.
func (j *Journal) Events() ([]Event, error) {
	return j.EventsForSession(j.session)
}

// AllEvents returns every event in the database in seq order, across
// sessions.
func (j *Journal) AllEvents() ([]Event, error) {
	rows, err := j.db.Query(`
		SELECT seq, session, host, source, query_type, code, num_addrs, from_cache
		FROM resolutions
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// EventsForSession returns one session's events in seq order.
func (j *Journal) EventsForSession(session string) ([]Event, error) {
	rows, err := j.db.Query(`
		SELECT seq, session, host, source, query_type, code, num_addrs, from_cache
		FROM resolutions
		WHERE session = ?
		ORDER BY seq
	`, session)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var out []Event
	for rows.Next() {
		var ev Event
		var fromCache int
		if err := rows.Scan(&ev.Seq, &ev.Session, &ev.Host, &ev.Source, &ev.QueryType, &ev.Code, &ev.NumAddrs, &fromCache); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		ev.FromCache = fromCache != 0
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return out, nil
}

// Sessions returns all session tokens present in the database, oldest
// first.
func (j *Journal) Sessions() ([]string, error) {
	rows, err := j.db.Query(`SELECT session FROM resolutions GROUP BY session ORDER BY MIN(seq)`)
	if err != nil {
		return nil, fmt.Errorf("read journal sessions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
