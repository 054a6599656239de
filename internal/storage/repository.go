package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// SQLiteRepository owns the database handle shared by the category and entry
// stores and the import/export service. Construct it with Open and release it
// with Close.
type SQLiteRepository struct {
	db    *sql.DB
	now   func() time.Time
	newID func() string
}

// Option customizes a repository.
type Option func(*SQLiteRepository)

// WithClock replaces time.Now for timestamps written by the stores.
func WithClock(now func() time.Time) Option {
	return func(r *SQLiteRepository) {
		r.now = now
	}
}

// WithIDGenerator replaces the category id generator.
func WithIDGenerator(newID func() string) Option {
	return func(r *SQLiteRepository) {
		r.newID = newID
	}
}

// ErrMemoryDatabase is returned by Open for in-memory DSNs. Migrations run
// on a connection of their own, which would see a different, empty database.
var ErrMemoryDatabase = errors.New("in-memory sqlite databases are not supported")

// IsMemoryDSN reports whether dsn names an in-memory SQLite database.
func IsMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// Open opens (creating if needed) the SQLite file at dbPath and migrates it.
func Open(dbPath string, opts ...Option) (*SQLiteRepository, error) {
	if IsMemoryDSN(dbPath) {
		return nil, fmt.Errorf("open %q: %w", dbPath, ErrMemoryDatabase)
	}
	if err := ensureDirForSQLite(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// One connection: the single writer, and SQLite's own locking is the
	// only coordination the stores rely on.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:    db,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(repo)
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// Update runs fn as one atomic unit of work. Either every write fn issues is
// committed or none is. Failures other than validation errors come back as
// *core.StorageError.
func (r *SQLiteRepository) Update(ctx context.Context, op string, fn func(ctx context.Context, tx *Tx) error) error {
	err := RunInTransaction(ctx, r.db, func(ctx context.Context, sqlTx *sql.Tx) error {
		return fn(ctx, &Tx{tx: sqlTx, repo: r})
	})
	return wrapStorage(op, err)
}

// View runs fn in a transaction that is always rolled back, giving fn a
// consistent snapshot of both tables.
func (r *SQLiteRepository) View(ctx context.Context, op string, fn func(ctx context.Context, tx *Tx) error) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapStorage(op, fmt.Errorf("begin transaction: %w", err))
	}
	defer sqlTx.Rollback()

	return wrapStorage(op, fn(ctx, &Tx{tx: sqlTx, repo: r}))
}

// ensureDirForSQLite creates the parent directory of a file DSN.
func ensureDirForSQLite(dsn string) error {
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db directory %q: %w", dir, err)
	}
	return nil
}

// Now reads the repository clock.
func (r *SQLiteRepository) Now() time.Time {
	return r.now()
}
