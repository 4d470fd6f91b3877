package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/segmentio/ksuid"
	"github.com/ytget/yt-fetcher/internal/model"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// DefaultListLimit caps List when no limit is given
const DefaultListLimit = 20

const sqlitePragmas = "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"

const schema = `CREATE TABLE IF NOT EXISTS task_history (
	id          TEXT PRIMARY KEY,
	task_id     TEXT NOT NULL,
	url         TEXT NOT NULL,
	kind        TEXT NOT NULL,
	quality     TEXT NOT NULL,
	format      TEXT NOT NULL,
	output_dir  TEXT NOT NULL,
	state       TEXT NOT NULL,
	error_kind  TEXT NOT NULL DEFAULT '',
	message     TEXT NOT NULL DEFAULT '',
	started_at  BIGINT NOT NULL,
	finished_at BIGINT NOT NULL
)`

const insertRecord = `INSERT INTO task_history
	(id, task_id, url, kind, quality, format, output_dir, state, error_kind, message, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectRecords = `SELECT id, task_id, url, kind, quality, format, output_dir, state, error_kind, message, started_at, finished_at
	FROM task_history
	ORDER BY finished_at DESC, id DESC
	LIMIT ?`

// Store keeps the outcome of finished downloads in SQLite or PostgreSQL.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the history database and creates the schema if needed.
// For sqlite dsn is a file path.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var source string
	switch driver {
	case DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		source = dsn + sqlitePragmas
	case DriverPostgres:
		source = dsn
	default:
		return nil, fmt.Errorf("unsupported history driver %q", driver)
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}

	// Ping makes sure the database is reachable and the DSN is valid
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create history schema: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

// Record stores rec. A history id is generated when rec.ID is empty.
func (s *Store) Record(ctx context.Context, rec model.TaskRecord) error {
	if rec.ID == "" {
		rec.ID = ksuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, s.rebind(insertRecord),
		rec.ID,
		rec.TaskID,
		rec.URL,
		string(rec.Kind),
		rec.Quality,
		rec.Format,
		rec.OutputDir,
		string(rec.State),
		string(rec.ErrorKind),
		rec.Message,
		rec.StartedAt.UnixNano(),
		rec.FinishedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record task %s: %w", rec.TaskID, err)
	}
	return nil
}

// List returns the most recently finished tasks first.
func (s *Store) List(ctx context.Context, limit int) ([]model.TaskRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(selectRecords), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []model.TaskRecord
	for rows.Next() {
		var (
			rec                 model.TaskRecord
			kind, state, errKnd string
			started, finished   int64
		)
		err := rows.Scan(&rec.ID, &rec.TaskID, &rec.URL, &kind, &rec.Quality, &rec.Format,
			&rec.OutputDir, &state, &errKnd, &rec.Message, &started, &finished)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		rec.Kind = model.Kind(kind)
		rec.State = model.TaskState(state)
		rec.ErrorKind = model.ErrorKind(errKnd)
		rec.StartedAt = time.Unix(0, started)
		rec.FinishedAt = time.Unix(0, finished)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for PostgreSQL
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	return rebindDollar(query)
}

func rebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
