package store

// GroupLinkOffset is subtracted from abs(chat id) of a supergroup to get the
// number used in public message links.
const GroupLinkOffset = 1_000_000_000_000

// Scope identifies which archive a record belongs to: one group chat, or the
// unscoped global archive of broadcast posts.
type Scope struct {
	ChatID int64
	Valid  bool // false = global
}

// GlobalScope is the unscoped archive shared by all broadcast sources.
var GlobalScope = Scope{}

// ChatScope scopes a record to one group chat.
func ChatScope(chatID int64) Scope {
	return Scope{ChatID: chatID, Valid: true}
}

// IsGlobal reports whether s is the unscoped archive.
func (s Scope) IsGlobal() bool { return !s.Valid }

// Record is an archived message. Records in the global archive have no scope.
type Record struct {
	ID        int64
	Scope     Scope
	AuthorID  uint64
	OrdinalID int32 // platform message id within the scope
	Text      string
}

// Hit is a search match. Lower Score means a better match (bm25 convention).
type Hit struct {
	Record Record
	Score  float64
}

// UserProfile is the cached identity of a message author.
type UserProfile struct {
	ID        uint64
	FirstName string
	LastName  string // optional
	Username  string // optional
}

// StoreConfig configures the store layer.
type StoreConfig struct {
	// Path is the sqlite database file. ":memory:" opens a private in-memory database.
	Path string

	// DefaultAllow is returned by consent lookups when no record exists.
	DefaultAllow bool

	// UserCacheSize bounds the in-process profile cache. 0 uses the default.
	UserCacheSize int
}
