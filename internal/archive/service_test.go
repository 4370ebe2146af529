package archive

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Lhcfl/whatdidwesaybot/internal/segment"
	"github.com/Lhcfl/whatdidwesaybot/internal/store"
	"github.com/Lhcfl/whatdidwesaybot/internal/store/sqlite"
)

var (
	tokOnce sync.Once
	tok     *segment.Tokenizer
	tokErr  error
)

func newTestService(t *testing.T, policy FailurePolicy) (*Service, *sqlite.Stores) {
	t.Helper()
	tokOnce.Do(func() { tok, tokErr = segment.New() })
	if tokErr != nil {
		t.Fatalf("segment.New: %v", tokErr)
	}
	stores, err := sqlite.NewStores(store.StoreConfig{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		DefaultAllow: true,
	}, tok)
	if err != nil {
		t.Fatalf("NewStores: %v", err)
	}
	t.Cleanup(func() { stores.Close() })
	return NewService(stores.Archive, stores.Consents, stores.Users, Config{Policy: policy}), stores
}

// failingArchive fails every insert.
type failingArchive struct {
	store.ArchiveStore
	err error
}

func (f failingArchive) Insert(context.Context, store.Record) (int64, error) {
	return 0, f.err
}

func TestService_ArchiveAndSearch(t *testing.T) {
	svc, _ := newTestService(t, PolicyHalt)
	ctx := context.Background()
	chat := store.ChatScope(-1001234567890)

	out, err := svc.Archive(ctx, Inbound{
		Scope:     chat,
		Author:    store.UserProfile{ID: 42, FirstName: "Ada"},
		OrdinalID: 7,
		Text:      "你说得对",
	})
	if err != nil || out != Archived {
		t.Fatalf("Archive = %v, %v", out, err)
	}

	hits, err := svc.Search(ctx, chat, "你", 20)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	want := `<a href="https://t.me/c/1234567890/7">你说得对</a>`
	if got := svc.FormatSummary(hits[0]); len(got) < len(want) || got[:len(want)] != want {
		t.Errorf("summary = %s, want prefix %s", got, want)
	}
}

func TestService_ArchiveCachesAuthor(t *testing.T) {
	svc, stores := newTestService(t, PolicyHalt)
	ctx := context.Background()
	author := store.UserProfile{ID: 42, FirstName: "Ada", Username: "ada"}

	if _, err := svc.Archive(ctx, Inbound{Scope: store.ChatScope(-1001), Author: author, Text: "hi"}); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	got, err := stores.Users.Get(ctx, 42)
	if err != nil || got == nil || *got != author {
		t.Errorf("Users.Get = %+v, %v; want %+v", got, err, author)
	}
}

func TestService_SkippedMessageStillCachesAuthor(t *testing.T) {
	svc, stores := newTestService(t, PolicyHalt)
	ctx := context.Background()
	author := store.UserProfile{ID: 43, FirstName: "Grace"}

	out, err := svc.Archive(ctx, Inbound{Scope: store.ChatScope(-1001), Author: author, Text: "   "})
	if err != nil || out != SkippedEmpty {
		t.Fatalf("Archive = %v, %v; want SkippedEmpty", out, err)
	}
	got, err := stores.Users.Get(ctx, 43)
	if err != nil || got == nil || *got != author {
		t.Errorf("Users.Get = %+v, %v; want %+v", got, err, author)
	}
}

func TestService_EmptyText(t *testing.T) {
	svc, stores := newTestService(t, PolicyHalt)
	ctx := context.Background()
	chat := store.ChatScope(-1001)

	out, err := svc.Archive(ctx, Inbound{Scope: chat, Author: store.UserProfile{ID: 1}, Text: "  \n "})
	if err != nil || out != SkippedEmpty {
		t.Fatalf("Archive = %v, %v; want SkippedEmpty", out, err)
	}
	primary, _, _ := stores.Archive.Count(ctx, chat)
	if primary != 0 {
		t.Errorf("primary rows = %d, want 0", primary)
	}
}

func TestService_ConsentGate(t *testing.T) {
	svc, stores := newTestService(t, PolicyHalt)
	ctx := context.Background()
	chat := store.ChatScope(-1001)
	author := store.UserProfile{ID: 42, FirstName: "Ada"}

	allow, err := svc.ToggleConsent(ctx, chat.ChatID, author.ID)
	if err != nil {
		t.Fatalf("ToggleConsent: %v", err)
	}
	if allow {
		t.Fatal("first toggle from default allow should disable")
	}

	out, err := svc.Archive(ctx, Inbound{Scope: chat, Author: author, Text: "secret plans"})
	if err != nil || out != SkippedConsent {
		t.Fatalf("Archive = %v, %v; want SkippedConsent", out, err)
	}
	if hits, _ := svc.Search(ctx, chat, "secret", 20); len(hits) != 0 {
		t.Errorf("opted-out message is searchable: %+v", hits)
	}

	// Opting out is per chat.
	other := store.ChatScope(-1002)
	if out, err := svc.Archive(ctx, Inbound{Scope: other, Author: author, Text: "public plans"}); err != nil || out != Archived {
		t.Errorf("Archive in other chat = %v, %v; want Archived", out, err)
	}

	allow, err = svc.ToggleConsent(ctx, chat.ChatID, author.ID)
	if err != nil || !allow {
		t.Fatalf("second toggle = %v, %v; want true", allow, err)
	}
	if out, err := svc.Archive(ctx, Inbound{Scope: chat, Author: author, Text: "new plans"}); err != nil || out != Archived {
		t.Errorf("Archive after opt-in = %v, %v", out, err)
	}
	primary, _, _ := stores.Archive.Count(ctx, chat)
	if primary != 2 {
		t.Errorf("primary rows = %d, want 2", primary)
	}
}

func TestService_GlobalIgnoresConsent(t *testing.T) {
	svc, _ := newTestService(t, PolicyHalt)
	ctx := context.Background()

	if _, err := svc.ToggleConsent(ctx, 0, 0); err != nil {
		t.Fatalf("ToggleConsent: %v", err)
	}
	out, err := svc.Archive(ctx, Inbound{Scope: store.GlobalScope, Text: "channel news"})
	if err != nil || out != Archived {
		t.Fatalf("Archive = %v, %v; want Archived", out, err)
	}
	hits, err := svc.Search(ctx, store.GlobalScope, "news", 20)
	if err != nil || len(hits) != 1 {
		t.Fatalf("Search = %+v, %v", hits, err)
	}
	if got := svc.FormatSummary(hits[0]); got[0] == '<' {
		t.Errorf("global summary has a link: %s", got)
	}
}

func TestService_FailurePolicies(t *testing.T) {
	injected := errors.New("disk full")
	chat := store.ChatScope(-1001)
	msg := Inbound{Scope: chat, Author: store.UserProfile{ID: 1}, Text: "hello"}

	t.Run("halt", func(t *testing.T) {
		svc, stores := newTestService(t, PolicyHalt)
		svc.archive = failingArchive{ArchiveStore: stores.Archive, err: injected}

		_, err := svc.Archive(context.Background(), msg)
		if !errors.Is(err, injected) {
			t.Fatalf("Archive error = %v", err)
		}
		herr := svc.HandleFailure(chat, err)
		if !errors.Is(herr, ErrHalted) || !errors.Is(herr, injected) {
			t.Errorf("HandleFailure = %v, want ErrHalted wrapping cause", herr)
		}
	})

	t.Run("continue", func(t *testing.T) {
		svc, stores := newTestService(t, PolicyContinue)
		svc.archive = failingArchive{ArchiveStore: stores.Archive, err: injected}

		_, err := svc.Archive(context.Background(), msg)
		if herr := svc.HandleFailure(chat, err); herr != nil {
			t.Errorf("HandleFailure = %v, want nil", herr)
		}
		if svc.Disabled(chat.ChatID) {
			t.Error("continue policy disabled the chat")
		}
	})

	t.Run("disable_scope", func(t *testing.T) {
		svc, stores := newTestService(t, PolicyDisableScope)
		svc.archive = failingArchive{ArchiveStore: stores.Archive, err: injected}
		ctx := context.Background()

		_, err := svc.Archive(ctx, msg)
		if herr := svc.HandleFailure(chat, err); herr != nil {
			t.Errorf("HandleFailure = %v, want nil", herr)
		}
		if !svc.Disabled(chat.ChatID) {
			t.Fatal("chat not disabled")
		}

		svc.archive = stores.Archive
		if out, err := svc.Archive(ctx, msg); err != nil || out != SkippedDisabled {
			t.Errorf("Archive in disabled chat = %v, %v; want SkippedDisabled", out, err)
		}
		other := Inbound{Scope: store.ChatScope(-1002), Author: store.UserProfile{ID: 1}, Text: "hello"}
		if out, err := svc.Archive(ctx, other); err != nil || out != Archived {
			t.Errorf("Archive in other chat = %v, %v; want Archived", out, err)
		}
		if hits, err := svc.Search(ctx, store.ChatScope(-1002), "hello", 20); err != nil || len(hits) != 1 {
			t.Errorf("search still works: %+v, %v", hits, err)
		}
	})
}

func TestService_SetPolicy(t *testing.T) {
	svc, _ := newTestService(t, "")
	if svc.Policy() != PolicyHalt {
		t.Errorf("default policy = %q, want halt", svc.Policy())
	}
	svc.SetPolicy(PolicyContinue)
	if svc.Policy() != PolicyContinue {
		t.Errorf("policy = %q, want continue", svc.Policy())
	}
	if err := svc.HandleFailure(store.ChatScope(-1), errors.New("x")); err != nil {
		t.Errorf("HandleFailure after SetPolicy(continue) = %v", err)
	}
}
