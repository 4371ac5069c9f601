package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver "pgx"
	"github.com/lib/pq"                 // Postgres driver "postgres"
	"github.com/mattn/go-sqlite3"       // SQLite driver "sqlite3"
	"github.com/pliu/dmchat/internal/common"
	"github.com/pliu/dmchat/internal/migrations"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // pure-Go SQLite driver "sqlite"
)

type dialect struct {
	goose  string
	dollar bool
	sqlite bool
}

var dialects = map[string]dialect{
	"sqlite3":  {goose: "sqlite3", sqlite: true},
	"sqlite":   {goose: "sqlite3", sqlite: true},
	"postgres": {goose: "postgres", dollar: true},
	"pgx":      {goose: "postgres", dollar: true},
}

// SQLStore implements store.Store over database/sql.
type SQLStore struct {
	db         *sql.DB
	driverName string
	dialect    dialect
}

// New opens the database, checks the connection and applies migrations.
func New(ctx context.Context, driverName, dataSourceName string) (*SQLStore, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}

	s, err := NewWithDB(db, driverName)
	if err != nil {
		db.Close()
		return nil, err
	}
	if s.dialect.sqlite {
		// One writer at a time; also keeps :memory: databases on a single connection.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewWithDB wraps an already opened handle without touching the schema.
func NewWithDB(db *sql.DB, driverName string) (*SQLStore, error) {
	d, ok := dialects[driverName]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driverName)
	}
	return &SQLStore{db: db, driverName: driverName, dialect: d}, nil
}

// gooseUpContext is a seam for tests.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate brings the schema up to date using the embedded migrations.
func (s *SQLStore) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(s.dialect.goose); err != nil {
		return err
	}
	return gooseUpContext(ctx, s.db, ".")
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $1, $2, ... for Postgres drivers.
func (s *SQLStore) rebind(query string) string {
	if !s.dialect.dollar {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
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

func dbError(err error) error {
	return fmt.Errorf("%w: %w", common.ErrStorage, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique || liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	// modernc.org/sqlite only exposes the numeric code through its message.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type rowScanner interface {
	Scan(dest ...any) error
}
