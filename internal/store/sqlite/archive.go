package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/Lhcfl/whatdidwesaybot/internal/segment"
	"github.com/Lhcfl/whatdidwesaybot/internal/store"
)

// DefaultSearchLimit is used when a search is given a non-positive limit.
const DefaultSearchLimit = 20

// archiveTable names the primary table and its FTS5 projection for one
// flavour of archive. Scoped and global archives differ only here.
type archiveTable struct {
	primary string
	index   string
	scoped  bool
}

var (
	chatTable   = archiveTable{primary: "messages", index: "messages_index", scoped: true}
	globalTable = archiveTable{primary: "global_messages", index: "global_messages_index"}
)

func tableFor(scope store.Scope) archiveTable {
	if scope.IsGlobal() {
		return globalTable
	}
	return chatTable
}

// Archive writes records with their index projection and serves ranked
// search over them. The record's scope selects the table pair.
type Archive struct {
	db  *sqlx.DB
	tok store.Tokenizer

	// beforeIndex runs inside the transaction between the two inserts.
	// Tests use it to force a mid-transaction failure.
	beforeIndex func(id int64) error
}

func NewArchive(db *sqlx.DB, tok store.Tokenizer) *Archive {
	return &Archive{db: db, tok: tok}
}

// Insert trims rec.Text and, if anything is left, writes the primary row and
// its index row in one transaction. Either both rows are committed or neither.
func (a *Archive) Insert(ctx context.Context, rec store.Record) (int64, error) {
	text := strings.TrimSpace(rec.Text)
	if text == "" {
		return 0, nil
	}
	t := tableFor(rec.Scope)

	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, store.Wrap("begin archive tx", err)
	}
	defer tx.Rollback()

	var q string
	var args []any
	if t.scoped {
		q = `INSERT INTO messages (text, user_id, message_id, group_id) VALUES (?, ?, ?, ?)`
		args = []any{text, int64(rec.AuthorID), rec.OrdinalID, rec.Scope.ChatID}
	} else {
		q = `INSERT INTO global_messages (text, user_id) VALUES (?, ?)`
		args = []any{text, int64(rec.AuthorID)}
	}
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, store.Wrap("insert "+t.primary, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, store.Wrap("insert "+t.primary, err)
	}

	if a.beforeIndex != nil {
		if err := a.beforeIndex(id); err != nil {
			return 0, store.Wrap("insert "+t.index, err)
		}
	}

	tokens := segment.Join(a.tok.SegmentForIndex(text))
	_, err = tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (rowid, tokens) VALUES (?, ?)`, t.index), id, tokens)
	if err != nil {
		return 0, store.Wrap("insert "+t.index, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, store.Wrap("commit archive tx", err)
	}
	return id, nil
}

type hitRow struct {
	ID        int64   `db:"id"`
	Text      string  `db:"text"`
	UserID    int64   `db:"user_id"`
	MessageID int32   `db:"message_id"`
	GroupID   int64   `db:"group_id"`
	Score     float64 `db:"score"`
}

// Search matches query against the index of scope and returns at most limit
// hits, best (lowest bm25) first. A query with no searchable tokens returns
// no hits without touching the database.
func (a *Archive) Search(ctx context.Context, scope store.Scope, query string, limit int) ([]store.Hit, error) {
	match := matchExpr(a.tok.SegmentForQuery(query))
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	var q string
	var args []any
	if scope.IsGlobal() {
		q = `SELECT m.id, m.text, m.user_id, 0 AS message_id, 0 AS group_id,
				bm25(global_messages_index) AS score
			FROM global_messages m
			JOIN global_messages_index ON global_messages_index.rowid = m.id
			WHERE global_messages_index MATCH ?
			ORDER BY score ASC
			LIMIT ?`
		args = []any{match, limit}
	} else {
		q = `SELECT m.id, m.text, m.user_id, m.message_id, m.group_id,
				bm25(messages_index) AS score
			FROM messages m
			JOIN messages_index ON messages_index.rowid = m.id
			WHERE messages_index MATCH ?
			  AND m.group_id = ?
			ORDER BY score ASC
			LIMIT ?`
		args = []any{match, scope.ChatID, limit}
	}

	var rows []hitRow
	if err := a.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, store.Wrap("search "+tableFor(scope).index, err)
	}

	hits := make([]store.Hit, len(rows))
	for i, r := range rows {
		rec := store.Record{
			ID:        r.ID,
			AuthorID:  uint64(r.UserID),
			OrdinalID: r.MessageID,
			Text:      r.Text,
		}
		if !scope.IsGlobal() {
			rec.Scope = store.ChatScope(r.GroupID)
		}
		hits[i] = store.Hit{Record: rec, Score: r.Score}
	}
	return hits, nil
}

// Count returns primary and index row counts of the archive scope routes to.
func (a *Archive) Count(ctx context.Context, scope store.Scope) (primary, index int, err error) {
	t := tableFor(scope)
	if err := a.db.GetContext(ctx, &primary, "SELECT COUNT(*) FROM "+t.primary); err != nil {
		return 0, 0, store.Wrap("count "+t.primary, err)
	}
	if err := a.db.GetContext(ctx, &index, "SELECT COUNT(*) FROM "+t.index); err != nil {
		return 0, 0, store.Wrap("count "+t.index, err)
	}
	return primary, index, nil
}

// matchExpr quotes every token as an FTS5 string so query text can never be
// parsed as FTS5 operators. Space-separated strings are an implicit AND.
func matchExpr(tokens []string) string {
	quoted := make([]string, 0, len(tokens))
	for _, t := range tokens {
		quoted = append(quoted, `"`+strings.ReplaceAll(t, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " ")
}
