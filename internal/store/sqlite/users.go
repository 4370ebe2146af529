package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jmoiron/sqlx"

	"github.com/Lhcfl/whatdidwesaybot/internal/store"
)

const defaultUserCacheSize = 4096

// UserStore upserts author profiles. Profiles already written with identical
// fields are remembered in an LRU so repeat senders cost no write.
type UserStore struct {
	db   *sqlx.DB
	seen *lru.Cache[uint64, store.UserProfile]
}

func NewUserStore(db *sqlx.DB, cacheSize int) (*UserStore, error) {
	if cacheSize <= 0 {
		cacheSize = defaultUserCacheSize
	}
	seen, err := lru.New[uint64, store.UserProfile](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("user cache: %w", err)
	}
	return &UserStore{db: db, seen: seen}, nil
}

func (s *UserStore) Upsert(ctx context.Context, u store.UserProfile) error {
	if prev, ok := s.seen.Get(u.ID); ok && prev == u {
		return nil
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, first_name, last_name, username) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			username = excluded.username`,
		int64(u.ID), u.FirstName, nullable(u.LastName), nullable(u.Username))
	if err != nil {
		return store.Wrap("upsert user", err)
	}
	s.seen.Add(u.ID, u)
	return nil
}

// Get returns the stored profile, or nil when the user was never seen.
func (s *UserStore) Get(ctx context.Context, id uint64) (*store.UserProfile, error) {
	var row struct {
		ID        int64          `db:"id"`
		FirstName string         `db:"first_name"`
		LastName  sql.NullString `db:"last_name"`
		Username  sql.NullString `db:"username"`
	}
	err := s.db.GetContext(ctx, &row,
		`SELECT id, first_name, last_name, username FROM users WHERE id = ?`, int64(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, store.Wrap("get user", err)
	}
	return &store.UserProfile{
		ID:        uint64(row.ID),
		FirstName: row.FirstName,
		LastName:  row.LastName.String,
		Username:  row.Username.String,
	}, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
