package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Lhcfl/whatdidwesaybot/internal/store"
)

func TestConsentStore_DefaultForUnknownUser(t *testing.T) {
	s := newTestStores(t)

	allow, err := s.Consents.Get(context.Background(), -1001, 42)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !allow {
		t.Error("unknown user should get the default (allow)")
	}
}

func TestConsentStore_ConfiguredDefault(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	defer db.Close()

	cs := NewConsentStore(db, false)
	allow, err := cs.Get(context.Background(), -1001, 42)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if allow || cs.Default() {
		t.Error("store built with default deny reported allow")
	}
}

func TestConsentStore_SetAndToggle(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	steps := []bool{false, false, true, true, false}
	for i, v := range steps {
		if err := s.Consents.Set(ctx, -1001, 42, v); err != nil {
			t.Fatalf("step %d Set(%v): %v", i, v, err)
		}
		got, err := s.Consents.Get(ctx, -1001, 42)
		if err != nil {
			t.Fatalf("step %d Get: %v", i, err)
		}
		if got != v {
			t.Errorf("step %d Get = %v, want %v", i, got, v)
		}
	}

	var rows int
	if err := s.DB.Get(&rows, `SELECT COUNT(*) FROM configs`); err != nil {
		t.Fatalf("count configs: %v", err)
	}
	if rows != 1 {
		t.Errorf("configs rows = %d, want 1 (upsert)", rows)
	}
}

func TestConsentStore_KeyedByChatAndUser(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	if err := s.Consents.Set(ctx, -1001, 42, false); err != nil {
		t.Fatalf("Set: %v", err)
	}

	tests := []struct {
		chat int64
		user uint64
		want bool
	}{
		{-1001, 42, false},
		{-1002, 42, true},
		{-1001, 43, true},
	}
	for _, tt := range tests {
		got, err := s.Consents.Get(ctx, tt.chat, tt.user)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got != tt.want {
			t.Errorf("Get(%d, %d) = %v, want %v", tt.chat, tt.user, got, tt.want)
		}
	}
}

func TestConsentStore_SetFailureIsStorageError(t *testing.T) {
	s := newTestStores(t)
	s.DB.Close()

	if err := s.Consents.Set(context.Background(), -1001, 42, false); !store.IsStorageError(err) {
		t.Errorf("Set on closed db error = %v, want StorageError", err)
	}
}

func TestUserStore_Upsert(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	if u, err := s.Users.Get(ctx, 7); err != nil || u != nil {
		t.Fatalf("Get unknown = %+v, %v; want nil, nil", u, err)
	}

	first := store.UserProfile{ID: 7, FirstName: "Ada"}
	if err := s.Users.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, err := s.Users.Get(ctx, 7)
	if err != nil || got == nil {
		t.Fatalf("Get: %+v, %v", got, err)
	}
	if *got != first {
		t.Errorf("Get = %+v, want %+v", *got, first)
	}

	renamed := store.UserProfile{ID: 7, FirstName: "Ada", LastName: "Lovelace", Username: "ada"}
	if err := s.Users.Upsert(ctx, renamed); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, _ = s.Users.Get(ctx, 7)
	if got == nil || *got != renamed {
		t.Errorf("after rename Get = %+v, want %+v", got, renamed)
	}
}

func TestUserStore_UnchangedProfileSkipsWrite(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()
	u := store.UserProfile{ID: 7, FirstName: "Ada"}

	if err := s.Users.Upsert(ctx, u); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	// With the handle closed, only a cached no-op can succeed.
	s.DB.Close()
	if err := s.Users.Upsert(ctx, u); err != nil {
		t.Errorf("unchanged Upsert wrote to storage: %v", err)
	}
	if err := s.Users.Upsert(ctx, store.UserProfile{ID: 7, FirstName: "Grace"}); !store.IsStorageError(err) {
		t.Errorf("changed Upsert error = %v, want StorageError", err)
	}
}
