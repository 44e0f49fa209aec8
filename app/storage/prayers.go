package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/kingdomunited/prayers/app/storage/engine"
)

// Prayers is a storage for prayer requests
type Prayers struct {
	*engine.SQL
	engine.RWLocker
}

// Prayer is a single prayer request
type Prayer struct {
	ID        string    `db:"id" json:"id"`
	GID       string    `db:"gid" json:"-"`
	UserID    string    `db:"user_id" json:"userId"`
	Zip       string    `db:"zip" json:"zip"`
	Text      string    `db:"text" json:"prayerText"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// prayers queries
const (
	CmdCreatePrayersTable engine.DBCmd = iota + 1000
	CmdCreatePrayersIndexes
	CmdAddPrayer
	CmdGetPrayer
	CmdListPrayers
	CmdListPrayersByUser
	CmdListPrayersByZip
	CmdUpdatePrayer
	CmdUpdatePrayerText
	CmdUpdatePrayerZip
	CmdDeletePrayer
)

const prayerColumns = `id, gid, user_id, zip, text, created_at, updated_at`

var prayersQueries = engine.NewQueryMap("prayers").
	Add(CmdCreatePrayersTable, engine.Query{
		Sqlite: `CREATE TABLE IF NOT EXISTS prayers (
			id TEXT PRIMARY KEY,
			gid TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL,
			zip TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		Postgres: `CREATE TABLE IF NOT EXISTS prayers (
			id TEXT PRIMARY KEY,
			gid TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL,
			zip TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
	}).
	AddSame(CmdCreatePrayersIndexes, `
		CREATE INDEX IF NOT EXISTS idx_prayers_gid_created ON prayers(gid, created_at);
		CREATE INDEX IF NOT EXISTS idx_prayers_gid_user ON prayers(gid, user_id);
		CREATE INDEX IF NOT EXISTS idx_prayers_gid_zip ON prayers(gid, zip)`).
	AddSame(CmdAddPrayer, `INSERT INTO prayers (`+prayerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`).
	AddSame(CmdGetPrayer, `SELECT `+prayerColumns+` FROM prayers WHERE gid = ? AND id = ?`).
	AddSame(CmdListPrayers, `SELECT `+prayerColumns+` FROM prayers WHERE gid = ? ORDER BY created_at DESC`).
	AddSame(CmdListPrayersByUser, `SELECT `+prayerColumns+` FROM prayers WHERE gid = ? AND user_id = ? ORDER BY created_at DESC`).
	AddSame(CmdListPrayersByZip, `SELECT `+prayerColumns+` FROM prayers WHERE gid = ? AND zip = ? ORDER BY created_at DESC`).
	AddSame(CmdUpdatePrayer, `UPDATE prayers SET text = ?, zip = ?, updated_at = ? WHERE gid = ? AND id = ?`).
	AddSame(CmdUpdatePrayerText, `UPDATE prayers SET text = ?, updated_at = ? WHERE gid = ? AND id = ?`).
	AddSame(CmdUpdatePrayerZip, `UPDATE prayers SET zip = ?, updated_at = ? WHERE gid = ? AND id = ?`).
	AddSame(CmdDeletePrayer, `DELETE FROM prayers WHERE gid = ? AND id = ?`)

// NewPrayers makes Prayers storage and creates the table if needed
func NewPrayers(ctx context.Context, db *engine.SQL) (*Prayers, error) {
	if db == nil {
		return nil, errors.New("no db provided")
	}
	res := &Prayers{SQL: db, RWLocker: db.MakeLock()}
	cfg := engine.TableConfig{
		Name:          "prayers",
		CreateTable:   CmdCreatePrayersTable,
		CreateIndexes: CmdCreatePrayersIndexes,
		QueriesMap:    prayersQueries,
	}
	if err := engine.InitTable(ctx, db, cfg); err != nil {
		return nil, fmt.Errorf("failed to init prayers storage: %w", err)
	}
	return res, nil
}

// Add stores a new prayer, id and timestamps are assigned here
func (p *Prayers) Add(ctx context.Context, prayer Prayer) (Prayer, error) {
	p.Lock()
	defer p.Unlock()

	now := time.Now().UTC()
	prayer.ID = uuid.NewString()
	prayer.GID = p.GID()
	if prayer.CreatedAt.IsZero() {
		prayer.CreatedAt = now
	}
	prayer.CreatedAt = prayer.CreatedAt.UTC()
	prayer.UpdatedAt = prayer.CreatedAt

	query, err := prayersQueries.Get(p.SQL, CmdAddPrayer)
	if err != nil {
		return Prayer{}, err
	}
	_, err = p.ExecContext(ctx, query, prayer.ID, prayer.GID, prayer.UserID, prayer.Zip, prayer.Text,
		prayer.CreatedAt, prayer.UpdatedAt)
	if err != nil {
		return Prayer{}, fmt.Errorf("failed to add prayer: %w", err)
	}
	log.Printf("[DEBUG] prayer %s added for user %s, zip %s", prayer.ID, prayer.UserID, prayer.Zip)
	return prayer, nil
}

// Get returns a prayer by id
func (p *Prayers) Get(ctx context.Context, id string) (Prayer, error) {
	p.RLock()
	defer p.RUnlock()
	return p.get(ctx, id)
}

// List returns all prayers of the group, newest first
func (p *Prayers) List(ctx context.Context) ([]Prayer, error) {
	return p.list(ctx, CmdListPrayers)
}

// ListByUser returns prayers of the user, newest first
func (p *Prayers) ListByUser(ctx context.Context, userID string) ([]Prayer, error) {
	return p.list(ctx, CmdListPrayersByUser, userID)
}

// ListByZip returns prayers for the zip code, newest first
func (p *Prayers) ListByZip(ctx context.Context, zip string) ([]Prayer, error) {
	return p.list(ctx, CmdListPrayersByZip, zip)
}

// Update replaces text and zip of the prayer and returns the updated record
func (p *Prayers) Update(ctx context.Context, id, text, zip string) (Prayer, error) {
	return p.update(ctx, id, CmdUpdatePrayer, text, zip)
}

// UpdateText replaces text of the prayer and returns the updated record
func (p *Prayers) UpdateText(ctx context.Context, id, text string) (Prayer, error) {
	return p.update(ctx, id, CmdUpdatePrayerText, text)
}

// UpdateZip replaces zip of the prayer and returns the updated record
func (p *Prayers) UpdateZip(ctx context.Context, id, zip string) (Prayer, error) {
	return p.update(ctx, id, CmdUpdatePrayerZip, zip)
}

// Delete removes the prayer, returns ErrNotFound if it doesn't exist
func (p *Prayers) Delete(ctx context.Context, id string) error {
	p.Lock()
	defer p.Unlock()

	query, err := prayersQueries.Get(p.SQL, CmdDeletePrayer)
	if err != nil {
		return err
	}
	res, err := p.ExecContext(ctx, query, p.GID(), id)
	if err != nil {
		return fmt.Errorf("failed to delete prayer %s: %w", id, err)
	}
	return checkAffected(res, id)
}

func (p *Prayers) get(ctx context.Context, id string) (Prayer, error) {
	query, err := prayersQueries.Get(p.SQL, CmdGetPrayer)
	if err != nil {
		return Prayer{}, err
	}
	var res Prayer
	if err := p.GetContext(ctx, &res, query, p.GID(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Prayer{}, fmt.Errorf("prayer %s: %w", id, ErrNotFound)
		}
		return Prayer{}, fmt.Errorf("failed to get prayer %s: %w", id, err)
	}
	return res, nil
}

func (p *Prayers) list(ctx context.Context, cmd engine.DBCmd, args ...any) ([]Prayer, error) {
	p.RLock()
	defer p.RUnlock()

	query, err := prayersQueries.Get(p.SQL, cmd)
	if err != nil {
		return nil, err
	}
	res := []Prayer{}
	if err := p.SelectContext(ctx, &res, query, append([]any{p.GID()}, args...)...); err != nil {
		return nil, fmt.Errorf("failed to list prayers: %w", err)
	}
	return res, nil
}

// update runs one of the update commands, args are the updated fields in the query order
func (p *Prayers) update(ctx context.Context, id string, cmd engine.DBCmd, args ...any) (Prayer, error) {
	p.Lock()
	defer p.Unlock()

	query, err := prayersQueries.Get(p.SQL, cmd)
	if err != nil {
		return Prayer{}, err
	}
	args = append(args, time.Now().UTC(), p.GID(), id)
	res, err := p.ExecContext(ctx, query, args...)
	if err != nil {
		return Prayer{}, fmt.Errorf("failed to update prayer %s: %w", id, err)
	}
	if err := checkAffected(res, id); err != nil {
		return Prayer{}, err
	}
	return p.get(ctx, id)
}

func checkAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("prayer %s: %w", id, ErrNotFound)
	}
	return nil
}
