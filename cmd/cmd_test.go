package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Lhcfl/whatdidwesaybot/internal/archive"
	"github.com/Lhcfl/whatdidwesaybot/internal/config"
	"github.com/Lhcfl/whatdidwesaybot/internal/segment"
	"github.com/Lhcfl/whatdidwesaybot/internal/store"
	"github.com/Lhcfl/whatdidwesaybot/internal/store/sqlite"
)

func TestDisplayWidth(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"hello", 5},
		{"Khởi động", 9}, // Vietnamese diacritics = single-width
		{"中文", 4},
		{"喵喵喵", 6},
	}
	for _, tt := range tests {
		if got := displayWidth(tt.input); got != tt.want {
			t.Errorf("displayWidth(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestRenderTable_AlignsCJK(t *testing.T) {
	out := renderTable([][]string{
		{"SCORE", "TEXT"},
		{"-1.20", "你说得对"},
		{"-0.80", "apple banana"},
	})
	lines := strings.Split(out, "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), out)
	}
	want := displayWidth(lines[0])
	for i, l := range lines {
		if w := displayWidth(l); w != want {
			t.Errorf("line %d width %d, want %d\n%s", i, w, want, out)
		}
	}
}

func TestHitRows(t *testing.T) {
	hits := []store.Hit{{
		Record: store.Record{ID: 1, Scope: store.ChatScope(-1001234567890), AuthorID: 42, OrdinalID: 5, Text: "喵喵喵"},
		Score:  -1.5,
	}}
	rows := hitRows(archive.Formatter{}, hits)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	got := rows[1]
	if got[0] != "-1.50" || got[1] != "42" || got[2] != "喵喵喵" || got[3] != "https://t.me/c/1234567890/5" {
		t.Errorf("row = %q", got)
	}
}

func TestRedactConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Telegram.Token = "123456789:ABCDEFGHIJ"

	raw := redactConfig(cfg)
	tg := raw["telegram"].(map[string]any)
	if got := tg["token"]; got != "1234****GHIJ" {
		t.Errorf("token = %v, want masked", got)
	}
	if got := tg["link_base"]; got != cfg.Telegram.LinkBase {
		t.Errorf("non-secret field changed: %v", got)
	}
}

func TestMaskSecret(t *testing.T) {
	tests := map[string]string{
		"":            "",
		"short":       "****",
		"abcdefghijk": "abcd****hijk",
	}
	for in, want := range tests {
		if got := maskSecret(in); got != want {
			t.Errorf("maskSecret(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	if parseLogLevel("DEBUG").String() != "DEBUG" || parseLogLevel("").String() != "INFO" || parseLogLevel("warning").String() != "WARN" {
		t.Error("unexpected level mapping")
	}
}

const searchChat int64 = -1001234567890

// seedSearchDB points the CLI at a fresh database holding one chat message
// and one channel post.
func seedSearchDB(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "cli.db")
	t.Setenv("WHATDIDWESAY_CONFIG", filepath.Join(dir, "absent.json5"))
	t.Setenv("WHATDIDWESAY_DB", dbPath)
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELOXIDE_TOKEN", "")

	tok, err := segment.New()
	if err != nil {
		t.Fatalf("segment.New: %v", err)
	}
	stores, err := sqlite.NewStores(store.StoreConfig{Path: dbPath, DefaultAllow: true}, tok)
	if err != nil {
		t.Fatalf("NewStores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()
	recs := []store.Record{
		{Scope: store.ChatScope(searchChat), AuthorID: 42, OrdinalID: 7, Text: "hello from the group"},
		{Scope: store.GlobalScope, OrdinalID: 3, Text: "hello from the channel"},
	}
	for _, rec := range recs {
		if _, err := stores.Archive.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	if err := root.ExecuteContext(context.Background()); err != nil {
		return out.String(), fmt.Errorf("%w: %s", err, errOut.String())
	}
	return out.String(), nil
}

func TestSearchCmd_NegativeChatID(t *testing.T) {
	seedSearchDB(t)

	for _, args := range [][]string{
		{"search", "--chat", "-1001234567890", "hello"},
		{"search", "-c", "-1001234567890", "hello"},
		{"search", "--chat=-1001234567890", "hello"},
	} {
		out, err := runCLI(t, args...)
		if err != nil {
			t.Fatalf("%q: %v\n%s", args, err, out)
		}
		if !strings.Contains(out, "hello from the group") || !strings.Contains(out, "https://t.me/c/1234567890/7") {
			t.Errorf("%q output missing the group hit:\n%s", args, out)
		}
		if strings.Contains(out, "hello from the channel") {
			t.Errorf("%q output leaked the channel post:\n%s", args, out)
		}
	}
}

func TestSearchCmd_GlobalJSON(t *testing.T) {
	seedSearchDB(t)

	out, err := runCLI(t, "search", "--global", "--json", "hello")
	if err != nil {
		t.Fatalf("search --global: %v\n%s", err, out)
	}
	var hits []store.Hit
	if err := json.Unmarshal([]byte(out), &hits); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if len(hits) != 1 || hits[0].Record.Text != "hello from the channel" || !hits[0].Record.Scope.IsGlobal() {
		t.Errorf("hits = %+v, want the channel post", hits)
	}
}

func TestSearchCmd_ScopeFlags(t *testing.T) {
	seedSearchDB(t)

	tests := []struct {
		name string
		args []string
	}{
		{"no scope", []string{"search", "hello"}},
		{"both scopes", []string{"search", "--chat", "-1", "--global", "hello"}},
		{"no query", []string{"search", "--global"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if out, err := runCLI(t, tt.args...); err == nil {
				t.Errorf("%q succeeded:\n%s", tt.args, out)
			}
		})
	}
}

func TestSearchCmd_NoResults(t *testing.T) {
	seedSearchDB(t)

	out, err := runCLI(t, "search", "--chat", "-1009", "hello")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains(out, "No results.") {
		t.Errorf("output = %q, want no results", out)
	}
}
