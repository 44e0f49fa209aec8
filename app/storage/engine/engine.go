// Package engine wraps sqlx.DB with the database engine type and a group id,
// so the same storage code can run on sqlite and postgres and keep data of several communities in one database.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-pkgz/repeater"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	_ "modernc.org/sqlite" // sqlite driver loaded here
)

// Type is a type of database engine
type Type string

// enum of supported database engines
const (
	Unknown  Type = ""
	Sqlite   Type = "sqlite"
	Postgres Type = "postgres"
)

// SQL is a wrapper for sqlx.DB with type and group id
type SQL struct {
	sqlx.DB
	gid    string // group id, a community sharing the database
	dbType Type
}

// connection retry parameters for postgres
var (
	connectRepeats = 3
	connectDelay   = 500 * time.Millisecond
)

// New makes a database engine from a connection url. Postgres is picked by postgres:// scheme,
// everything that looks like a file is sqlite.
func New(ctx context.Context, connURL, gid string) (*SQL, error) {
	if connURL == "" {
		return nil, errors.New("connection URL is empty")
	}
	switch {
	case strings.HasPrefix(connURL, "postgres://"), strings.HasPrefix(connURL, "postgresql://"):
		return NewPostgres(ctx, connURL, gid)
	case connURL == ":memory:":
		return NewSqlite(connURL, gid)
	case strings.HasPrefix(connURL, "file://"):
		return NewSqlite(strings.TrimPrefix(connURL, "file://"), gid)
	case strings.HasPrefix(connURL, "sqlite://"):
		return NewSqlite(strings.TrimPrefix(connURL, "sqlite://"), gid)
	case strings.HasPrefix(connURL, "file:"):
		return NewSqlite(strings.TrimPrefix(connURL, "file:"), gid)
	case strings.HasSuffix(connURL, ".sqlite"), strings.HasSuffix(connURL, ".db"):
		return NewSqlite(connURL, gid)
	}
	return nil, fmt.Errorf("unsupported database type in %q", connURL)
}

// NewSqlite makes a sqlite database engine
func NewSqlite(file, gid string) (*SQL, error) {
	db, err := sqlx.Connect("sqlite", file)
	if err != nil {
		return &SQL{}, err
	}
	if file == ":memory:" {
		db.SetMaxOpenConns(1) // each connection gets its own in-memory database
	}
	if err := setSqlitePragma(db); err != nil {
		return &SQL{}, err
	}
	return &SQL{DB: *db, gid: gid, dbType: Sqlite}, nil
}

// NewPostgres makes a postgres database engine. The database is created if missing.
// Connection is retried a few times as postgres may still be starting together with the service.
func NewPostgres(ctx context.Context, connURL, gid string) (*SQL, error) {
	u, err := url.Parse(connURL)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres connection url: %w", err)
	}
	dbName := strings.TrimPrefix(u.Path, "/")
	if dbName == "" {
		return nil, errors.New("database name not specified")
	}

	// connect to the maintenance database first to make sure the target one exists
	adminURL := *u
	adminURL.Path = "/postgres"
	admin, err := connectPostgres(ctx, adminURL.String())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	var exists bool
	err = admin.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", dbName)
	if err == nil && !exists {
		log.Printf("[INFO] creating postgres database %q", dbName)
		_, err = admin.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(dbName))
	}
	if cerr := admin.Close(); cerr != nil {
		log.Printf("[WARN] failed to close postgres maintenance connection, %v", cerr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to ensure database %q: %w", dbName, err)
	}

	db, err := connectPostgres(ctx, connURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &SQL{DB: *db, gid: gid, dbType: Postgres}, nil
}

func connectPostgres(ctx context.Context, connURL string) (db *sqlx.DB, err error) {
	err = repeater.NewDefault(connectRepeats, connectDelay).Do(ctx, func() error {
		var cerr error
		db, cerr = sqlx.ConnectContext(ctx, "postgres", connURL)
		if cerr != nil {
			log.Printf("[DEBUG] postgres connection attempt failed, %v", cerr)
		}
		return cerr
	})
	return db, err
}

// GID returns the group id
func (e *SQL) GID() string {
	return e.gid
}

// Type returns the database engine type
func (e *SQL) Type() Type {
	return e.dbType
}

// MakeLock makes a lock for the database engine, only sqlite needs real locking
func (e *SQL) MakeLock() RWLocker {
	if e.dbType == Sqlite {
		return new(sync.RWMutex)
	}
	return &NoopLocker{}
}

// Adopt converts "?" placeholders to "$N" for postgres, placeholders inside quoted literals are kept
func (e *SQL) Adopt(q string) string {
	if e.dbType != Postgres {
		return q
	}
	var sb strings.Builder
	sb.Grow(len(q) + 8)
	n, inQuote := 0, false
	for _, r := range q {
		switch {
		case r == '\'':
			inQuote = !inQuote
			sb.WriteRune(r)
		case r == '?' && !inQuote:
			n++
			sb.WriteString("$" + strconv.Itoa(n))
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// TableConfig describes how to create and migrate a table
type TableConfig struct {
	Name          string
	CreateTable   DBCmd
	CreateIndexes DBCmd
	MigrateFunc   func(ctx context.Context, tx *sqlx.Tx, gid string) error
	QueriesMap    *QueryMap
}

// InitTable creates the table with indexes in a transaction and calls migration for it
func InitTable(ctx context.Context, db *SQL, cfg TableConfig) error {
	if db == nil {
		return errors.New("db connection is nil")
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	createTable, err := cfg.QueriesMap.Pick(db.Type(), cfg.CreateTable)
	if err != nil {
		return fmt.Errorf("failed to get create table query: %w", err)
	}
	if _, err = tx.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create %s table: %w", cfg.Name, err)
	}

	if cfg.MigrateFunc != nil {
		if err = cfg.MigrateFunc(ctx, tx, db.GID()); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", cfg.Name, err)
		}
	}

	createIndexes, err := cfg.QueriesMap.Pick(db.Type(), cfg.CreateIndexes)
	if err != nil {
		return fmt.Errorf("failed to get create indexes query: %w", err)
	}
	if _, err = tx.ExecContext(ctx, createIndexes); err != nil {
		return fmt.Errorf("failed to create indexes for %s: %w", cfg.Name, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func setSqlitePragma(db *sqlx.DB) error {
	// WAL keeps readers of the prayer feeds from blocking on submissions
	pragmas := []string{"journal_mode = WAL", "busy_timeout = 5000"}
	for _, p := range pragmas {
		if _, err := db.Exec("PRAGMA " + p); err != nil {
			return fmt.Errorf("failed to set pragma %s: %w", p, err)
		}
	}
	return nil
}

// RWLocker is a read-write locker interface
type RWLocker interface {
	sync.Locker
	RLock()
	RUnlock()
}

// NoopLocker is a no-op locker, for engines doing their own locking
type NoopLocker struct{}

// Lock is a no-op
func (NoopLocker) Lock() {}

// Unlock is a no-op
func (NoopLocker) Unlock() {}

// RLock is a no-op
func (NoopLocker) RLock() {}

// RUnlock is a no-op
func (NoopLocker) RUnlock() {}
