package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kingdomunited/prayers/app/storage/engine"
)

// Rejected is a storage for submissions refused by server-side validation
type Rejected struct {
	*engine.SQL
	engine.RWLocker
}

// RejectedInfo is a single refused submission
type RejectedInfo struct {
	ID            int64     `db:"id" json:"id"`
	GID           string    `db:"gid" json:"-"`
	UserID        string    `db:"user_id" json:"userId"`
	Zip           string    `db:"zip" json:"zip"`
	Text          string    `db:"text" json:"text"`
	Reason        string    `db:"reason" json:"reason"`
	Inappropriate bool      `db:"inappropriate" json:"hasInappropriateContent"`
	Timestamp     time.Time `db:"timestamp" json:"timestamp"`
}

// DefaultRejectedLimit is used by Read when limit is not positive
const DefaultRejectedLimit = 100

// rejected queries
const (
	CmdCreateRejectedTable engine.DBCmd = iota + 1100
	CmdCreateRejectedIndexes
	CmdAddRejected
	CmdReadRejected
)

var rejectedQueries = engine.NewQueryMap("rejected_prayers").
	Add(CmdCreateRejectedTable, engine.Query{
		Sqlite: `CREATE TABLE IF NOT EXISTS rejected_prayers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			gid TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL DEFAULT '',
			zip TEXT NOT NULL DEFAULT '',
			text TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			inappropriate BOOLEAN NOT NULL DEFAULT 0,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		Postgres: `CREATE TABLE IF NOT EXISTS rejected_prayers (
			id SERIAL PRIMARY KEY,
			gid TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL DEFAULT '',
			zip TEXT NOT NULL DEFAULT '',
			text TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			inappropriate BOOLEAN NOT NULL DEFAULT FALSE,
			timestamp TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
	}).
	AddSame(CmdCreateRejectedIndexes, `CREATE INDEX IF NOT EXISTS idx_rejected_gid_ts ON rejected_prayers(gid, timestamp DESC)`).
	AddSame(CmdAddRejected, `INSERT INTO rejected_prayers (gid, user_id, zip, text, reason, inappropriate, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`).
	AddSame(CmdReadRejected, `SELECT id, gid, user_id, zip, text, reason, inappropriate, timestamp
		FROM rejected_prayers WHERE gid = ? ORDER BY timestamp DESC, id DESC LIMIT ?`)

// NewRejected makes Rejected storage and creates the table if needed
func NewRejected(ctx context.Context, db *engine.SQL) (*Rejected, error) {
	if db == nil {
		return nil, errors.New("no db provided")
	}
	res := &Rejected{SQL: db, RWLocker: db.MakeLock()}
	cfg := engine.TableConfig{
		Name:          "rejected_prayers",
		CreateTable:   CmdCreateRejectedTable,
		CreateIndexes: CmdCreateRejectedIndexes,
		QueriesMap:    rejectedQueries,
	}
	if err := engine.InitTable(ctx, db, cfg); err != nil {
		return nil, fmt.Errorf("failed to init rejected storage: %w", err)
	}
	return res, nil
}

// Write adds a refused submission, zero timestamp is set to now
func (r *Rejected) Write(ctx context.Context, entry RejectedInfo) error {
	r.Lock()
	defer r.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	query, err := rejectedQueries.Get(r.SQL, CmdAddRejected)
	if err != nil {
		return fmt.Errorf("failed to get insert query: %w", err)
	}
	_, err = r.ExecContext(ctx, query, r.GID(), entry.UserID, entry.Zip, entry.Text, entry.Reason,
		entry.Inappropriate, entry.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert rejected submission: %w", err)
	}
	log.Printf("[INFO] rejected submission recorded for user %q, zip %q: %s", entry.UserID, entry.Zip, entry.Reason)
	return nil
}

// Read returns up to limit most recent refused submissions
func (r *Rejected) Read(ctx context.Context, limit int) ([]RejectedInfo, error) {
	r.RLock()
	defer r.RUnlock()

	if limit <= 0 {
		limit = DefaultRejectedLimit
	}
	query, err := rejectedQueries.Get(r.SQL, CmdReadRejected)
	if err != nil {
		return nil, fmt.Errorf("failed to get select query: %w", err)
	}
	res := []RejectedInfo{}
	if err := r.SelectContext(ctx, &res, query, r.GID(), limit); err != nil {
		return nil, fmt.Errorf("failed to read rejected submissions: %w", err)
	}
	for i := range res {
		res[i].Timestamp = res[i].Timestamp.Local()
	}
	return res, nil
}
