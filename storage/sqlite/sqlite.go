// Package sqlite persists authclient.Storage entries in a SQLite database
// through bun, so sessions survive process restarts.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-auth-client"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

var _ authclient.Storage = (*Storage)(nil)

// Entry is one stored key
type Entry struct {
	bun.BaseModel `bun:"table:client_storage"`

	Key       string    `bun:"entry_key,pk"`
	Value     string    `bun:"entry_value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// Storage is a bun backed key value table
type Storage struct {
	db  *bun.DB
	now func() time.Time
}

// Open connects to dsn, e.g. "file:authctl.db" or ":memory:", and
// creates the table when missing.
func Open(ctx context.Context, dsn string) (*Storage, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// an in memory database only lives on one connection
	sqldb.SetMaxOpenConns(1)

	s, err := New(ctx, bun.NewDB(sqldb, sqlitedialect.New()))
	if err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing bun database
func New(ctx context.Context, db *bun.DB) (*Storage, error) {
	if db == nil {
		return nil, errors.New("sqlite storage requires a database")
	}

	_, err := db.NewCreateTable().
		Model((*Entry)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "create client_storage table")
	}

	return &Storage{db: db, now: time.Now}, nil
}

func (s *Storage) Get(ctx context.Context, key string) (string, bool, error) {
	var entry Entry
	err := s.db.NewSelect().
		Model(&entry).
		Where("entry_key = ?", key).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, errors.Wrapf(err, "get %s", key)
	}
	return entry.Value, true, nil
}

func (s *Storage) Set(ctx context.Context, key, value string) error {
	entry := &Entry{Key: key, Value: value, UpdatedAt: s.now().UTC()}

	_, err := s.db.NewInsert().
		Model(entry).
		On("CONFLICT (entry_key) DO UPDATE").
		Set("entry_value = EXCLUDED.entry_value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return errors.Wrapf(err, "set %s", key)
	}
	return nil
}

func (s *Storage) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	_, err := s.db.NewDelete().
		Model((*Entry)(nil)).
		Where("entry_key IN (?)", bun.In(keys)).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "delete keys")
	}
	return nil
}

// Close releases the database
func (s *Storage) Close() error {
	return s.db.Close()
}
