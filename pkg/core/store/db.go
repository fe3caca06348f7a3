// Package store persists fact records and answers queries over them.
//
// Two backends share one schema: a local SQLite file (default) and PostgreSQL
// (DATABASE_URL). Schema changes are embedded goose migrations, one directory
// per dialect.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jonboulle/clockwork"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrations embed.FS

// Dialect selects the database backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Options configures Open.
type Options struct {
	Dialect Dialect
	Path    string          // SQLite file path
	URL     string          // PostgreSQL connection string
	Clock   clockwork.Clock // source of updated_at timestamps; nil means real
}

// Store is the fact store. Each write call is atomic; calls are not
// synchronized with each other.
type Store struct {
	db      *sql.DB
	dialect Dialect
	clock   clockwork.Clock
}

// Open connects to the database and applies pending migrations.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Dialect == "" {
		opts.Dialect = DialectSQLite
		if opts.URL != "" {
			opts.Dialect = DialectPostgres
		}
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	var (
		db           *sql.DB
		err          error
		gooseDialect goose.Dialect
	)
	switch opts.Dialect {
	case DialectSQLite:
		if opts.Path == "" {
			return nil, fmt.Errorf("sqlite store requires a file path")
		}
		dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", opts.Path)
		db, err = sql.Open("sqlite", dsn)
		gooseDialect = goose.DialectSQLite3
	case DialectPostgres:
		if opts.URL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable not set")
		}
		db, err = sql.Open("pgx", opts.URL)
		gooseDialect = goose.DialectPostgres
	default:
		return nil, fmt.Errorf("unsupported dialect %q", opts.Dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrate(ctx, db, gooseDialect, string(opts.Dialect)); err != nil {
		db.Close()
		return nil, err
	}

	if opts.Dialect == DialectSQLite {
		// One writer at a time for the file
		db.SetMaxOpenConns(1)
	}

	return &Store{db: db, dialect: opts.Dialect, clock: opts.Clock}, nil
}

func migrate(ctx context.Context, db *sql.DB, dialect goose.Dialect, dir string) error {
	fsys, err := fs.Sub(migrations, "migrations/"+dir)
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	for _, r := range results {
		log.Printf("[STORE] Applied migration %s (%v)", r.Source.Path, r.Duration)
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the backend in use.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// rebind rewrites '?' placeholders as $1..$n for PostgreSQL.
// Queries must not contain '?' inside string literals.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
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

// now returns the current time in the stored text format.
func (s *Store) now() string {
	return s.clock.Now().UTC().Format(time.RFC3339)
}

// placeholders returns "?, ?, ..." for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
