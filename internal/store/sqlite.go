package store

import (
	"context"
	"embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

const driverName = "sqlite"

func init() {
	// sqlx only knows the cgo driver name.
	sqlx.BindDriver(driverName, sqlx.QUESTION)
}

// SQLite is the Store backed by a single sqlite database file.
type SQLite struct {
	db     *sqlx.DB
	path   string
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

type Option func(*SQLite)

// WithLocation sets the location timestamps are returned in.
func WithLocation(loc *time.Location) Option {
	return func(s *SQLite) { s.loc = loc }
}

// WithClock replaces time.Now for created/updated stamps.
func WithClock(now func() time.Time) Option {
	return func(s *SQLite) { s.now = now }
}

// Open opens (creating if needed) the database at path and applies
// migrations.
func Open(ctx context.Context, path string, logger *zap.Logger, opts ...Option) (*SQLite, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	dsn := "file:" + path + "?" + q.Encode()

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection serializes writers and keeps transactions simple.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect database %s: %w", path, err)
	}

	s := &SQLite{
		db:     db,
		path:   path,
		loc:    time.Local,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db.DB, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	version, err := goose.GetDBVersionContext(ctx, s.db.DB)
	if err == nil {
		s.logger.Debug("database ready", zap.String("path", s.path), zap.Int64("version", version))
	}
	return nil
}

// Path returns the database file path.
func (s *SQLite) Path() string { return s.path }

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) stamp() string {
	return formatTime(s.now())
}

func (s *SQLite) parse(v string) (time.Time, error) {
	return parseTime(v, s.loc)
}

// withTx runs fn in a transaction, rolling back on error.
func (s *SQLite) withTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// inClause appends "AND column IN (...)" for a non-empty id list.
func inClause(query, column string, ids []string, args []any) (string, []any, error) {
	if len(ids) == 0 {
		return query, args, nil
	}
	q, inArgs, err := sqlx.In(" AND "+column+" IN (?)", ids)
	if err != nil {
		return "", nil, err
	}
	return query + q, append(args, inArgs...), nil
}

func trimmed(s string) string { return strings.TrimSpace(s) }
