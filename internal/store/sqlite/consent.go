package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/Lhcfl/whatdidwesaybot/internal/store"
)

// ConsentStore keeps the per (group, user) archiving switch in the configs table.
type ConsentStore struct {
	db           *sqlx.DB
	defaultAllow bool
}

func NewConsentStore(db *sqlx.DB, defaultAllow bool) *ConsentStore {
	return &ConsentStore{db: db, defaultAllow: defaultAllow}
}

// Default returns the value Get reports for users with no stored record.
func (s *ConsentStore) Default() bool { return s.defaultAllow }

func (s *ConsentStore) Get(ctx context.Context, chatID int64, userID uint64) (bool, error) {
	var allow int
	err := s.db.GetContext(ctx, &allow,
		`SELECT allow FROM configs WHERE group_id = ? AND user_id = ?`, chatID, int64(userID))
	if errors.Is(err, sql.ErrNoRows) {
		return s.defaultAllow, nil
	}
	if err != nil {
		return s.defaultAllow, store.Wrap("get consent", err)
	}
	return allow != 0, nil
}

func (s *ConsentStore) Set(ctx context.Context, chatID int64, userID uint64, allow bool) error {
	v := 0
	if allow {
		v = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO configs (group_id, user_id, allow) VALUES (?, ?, ?)
		ON CONFLICT(group_id, user_id) DO UPDATE SET allow = excluded.allow`,
		chatID, int64(userID), v)
	return store.Wrap("set consent", err)
}
