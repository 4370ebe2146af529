package store

import "context"

// Tokenizer produces the two token streams the archive needs.
type Tokenizer interface {
	SegmentForIndex(text string) []string
	SegmentForQuery(text string) []string
}

// ArchiveStore persists records together with their index projection and
// answers ranked queries against it.
type ArchiveStore interface {
	// Insert writes rec and its index row in one transaction. Whitespace-only
	// text is a no-op and returns id 0.
	Insert(ctx context.Context, rec Record) (int64, error)

	// Search returns at most limit hits in scope ordered by ascending score.
	Search(ctx context.Context, scope Scope, query string, limit int) ([]Hit, error)

	// Count returns the number of primary and index rows in the archive that
	// scope routes to, across all chats.
	Count(ctx context.Context, scope Scope) (primary, index int, err error)
}

// ConsentStore is the per (chat, user) archiving gate.
type ConsentStore interface {
	// Get returns the stored value, or the default when none is stored.
	Get(ctx context.Context, chatID int64, userID uint64) (bool, error)
	Set(ctx context.Context, chatID int64, userID uint64, allow bool) error
}

// UserStore caches author profiles.
type UserStore interface {
	Upsert(ctx context.Context, u UserProfile) error
	Get(ctx context.Context, id uint64) (*UserProfile, error)
}
