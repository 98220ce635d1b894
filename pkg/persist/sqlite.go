package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

var _ Log = (*SQLiteLog)(nil)

// SQLiteOptions tunes a SQLite log.
type SQLiteOptions struct {
	FlushInterval time.Duration
	DeleteOnClose bool
	Logger        logr.Logger
}

// SQLiteLog is a write-ahead log of base table writes kept in a SQLite database.
type SQLiteLog struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	opts   SQLiteOptions
	stop   chan struct{}
	wg     sync.WaitGroup
	closed bool
	log    logr.Logger
}

// OpenSQLiteLog opens or creates the log at path.
func OpenSQLiteLog(path string, opts SQLiteOptions) (*SQLiteLog, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("log path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("log path %q is a directory", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)", cleanPath)
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open log sqlite %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping log sqlite %q: %w", cleanPath, err)
	}
	if err := migrateLogSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger := opts.Logger
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}

	l := &SQLiteLog{
		db:   db,
		path: cleanPath,
		opts: opts,
		stop: make(chan struct{}),
		log:  logger.WithName("sqlite-log"),
	}

	if opts.FlushInterval > 0 {
		l.wg.Add(1)
		go l.checkpointLoop(opts.FlushInterval)
	}

	l.log.V(1).Info("log opened", "path", cleanPath, "delete-on-close", opts.DeleteOnClose)

	return l, nil
}

func migrateLogSchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS write_log (
	seq        INTEGER PRIMARY KEY,
	table_name TEXT NOT NULL,
	kind       TEXT NOT NULL,
	payload    BLOB NOT NULL,
	created_at INTEGER NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("migrate log schema: %w", err)
	}
	return nil
}

// Path returns the database file.
func (l *SQLiteLog) Path() string { return l.path }

// Append records a write, the record is on disk when Append returns.
func (l *SQLiteLog) Append(ctx context.Context, rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal log record: %w", err)
	}
	_, err = l.db.ExecContext(ctx, `
INSERT INTO write_log (seq, table_name, kind, payload, created_at)
VALUES (?, ?, ?, ?, ?)
`, int64(rec.Seq), rec.Table, string(rec.Kind), raw, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("append log record %d: %w", rec.Seq, err)
	}
	return nil
}

// Replay calls fn on every record in sequence order.
func (l *SQLiteLog) Replay(ctx context.Context, fn func(Record) error) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	// read everything first: the single connection cannot serve fn's appends mid-query
	recs, err := l.readAll(ctx)
	l.mu.Unlock()
	if err != nil {
		return err
	}

	for _, rec := range recs {
		if err := fn(rec); err != nil {
			return fmt.Errorf("replay log record %d: %w", rec.Seq, err)
		}
	}
	return nil
}

func (l *SQLiteLog) readAll(ctx context.Context) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT seq, payload FROM write_log ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			seq int64
			raw []byte
		)
		if err := rows.Scan(&seq, &raw); err != nil {
			return nil, fmt.Errorf("scan log row: %w", err)
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode log record seq=%d: %w", seq, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log rows: %w", err)
	}
	return out, nil
}

// Len returns the number of records in the log.
func (l *SQLiteLog) Len(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, ErrClosed
	}
	var n int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM write_log`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count log rows: %w", err)
	}
	return n, nil
}

func (l *SQLiteLog) checkpointLoop(interval time.Duration) {
	defer l.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			if !l.closed {
				if _, err := l.db.Exec(`PRAGMA wal_checkpoint(PASSIVE)`); err != nil {
					l.log.Error(err, "checkpoint failed")
				}
			}
			l.mu.Unlock()
		}
	}
}

// Close closes the database and removes it if the log was opened in delete-on-close mode.
func (l *SQLiteLog) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.stop)
	l.mu.Unlock()

	l.wg.Wait()

	if err := l.db.Close(); err != nil {
		return fmt.Errorf("close log sqlite %q: %w", l.path, err)
	}

	if l.opts.DeleteOnClose {
		for _, p := range []string{l.path, l.path + "-wal", l.path + "-shm"} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove log file %q: %w", p, err)
			}
		}
		l.log.V(1).Info("log removed", "path", l.path)
	}
	return nil
}
