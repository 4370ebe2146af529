// Package archive is the consent-gated archive-and-search core. It ties the
// consent store, the archive store and the summary formatter together behind
// the operations the command layer needs.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Lhcfl/whatdidwesaybot/internal/store"
)

// Inbound is one observed text message.
type Inbound struct {
	Scope     store.Scope
	Author    store.UserProfile
	OrdinalID int32
	Text      string
}

// Outcome tells the caller what Archive did with a message.
type Outcome int

const (
	Archived Outcome = iota
	SkippedEmpty
	SkippedConsent
	SkippedDisabled
)

func (o Outcome) String() string {
	switch o {
	case Archived:
		return "archived"
	case SkippedEmpty:
		return "skipped_empty"
	case SkippedConsent:
		return "skipped_consent"
	case SkippedDisabled:
		return "skipped_disabled"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Config configures a Service.
type Config struct {
	LinkBase string
	Policy   FailurePolicy
}

// Service is the archive core. It does no locking around storage: callers
// dispatch one update at a time over a single store handle.
type Service struct {
	archive   store.ArchiveStore
	consents  store.ConsentStore
	users     store.UserStore
	formatter Formatter

	mu       sync.Mutex // guards policy and disabled
	policy   FailurePolicy
	disabled map[int64]struct{}
}

func NewService(archive store.ArchiveStore, consents store.ConsentStore, users store.UserStore, cfg Config) *Service {
	policy := cfg.Policy
	if policy == "" {
		policy = PolicyHalt
	}
	return &Service{
		archive:   archive,
		consents:  consents,
		users:     users,
		formatter: Formatter{LinkBase: cfg.LinkBase},
		policy:    policy,
		disabled:  make(map[int64]struct{}),
	}
}

// Archive records msg unless it is empty, its author opted out in that chat,
// or archiving for the chat was disabled after an earlier failure.
// Storage failures are returned as *store.StorageError.
// The author profile is recorded first, even for messages that are skipped.
func (s *Service) Archive(ctx context.Context, msg Inbound) (Outcome, error) {
	s.RecordAuthor(ctx, msg.Author)

	if strings.TrimSpace(msg.Text) == "" {
		return SkippedEmpty, nil
	}

	if !msg.Scope.IsGlobal() {
		if s.scopeDisabled(msg.Scope.ChatID) {
			return SkippedDisabled, nil
		}
		allow, err := s.consents.Get(ctx, msg.Scope.ChatID, msg.Author.ID)
		if err != nil {
			return SkippedConsent, err
		}
		if !allow {
			return SkippedConsent, nil
		}
	}

	_, err := s.archive.Insert(ctx, store.Record{
		Scope:     msg.Scope,
		AuthorID:  msg.Author.ID,
		OrdinalID: msg.OrdinalID,
		Text:      msg.Text,
	})
	return Archived, err
}

// RecordAuthor upserts the profile of a message author. Failures are logged
// only: the profile cache never blocks archiving.
func (s *Service) RecordAuthor(ctx context.Context, u store.UserProfile) {
	if u.ID == 0 || s.users == nil {
		return
	}
	if err := s.users.Upsert(ctx, u); err != nil {
		slog.Error("failed to cache user profile", "user_id", u.ID, "error", err)
	}
}

// Search returns ranked hits for query within scope, best first.
func (s *Service) Search(ctx context.Context, scope store.Scope, query string, limit int) ([]store.Hit, error) {
	return s.archive.Search(ctx, scope, query, limit)
}

// ToggleConsent flips the archiving switch of user in chat and returns the new value.
func (s *Service) ToggleConsent(ctx context.Context, chatID int64, userID uint64) (bool, error) {
	allow, err := s.consents.Get(ctx, chatID, userID)
	if err != nil {
		return false, err
	}
	allow = !allow
	if err := s.consents.Set(ctx, chatID, userID, allow); err != nil {
		return !allow, err
	}
	return allow, nil
}

// FormatSummary renders a hit for display in an HTML message.
func (s *Service) FormatSummary(hit store.Hit) string {
	return s.formatter.FormatSummary(hit)
}

// Excerpt returns the unescaped one-line excerpt of a hit.
func (s *Service) Excerpt(hit store.Hit) string {
	return s.formatter.Excerpt(hit.Record)
}

// Policy returns the current failure policy.
func (s *Service) Policy() FailurePolicy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy
}

// SetPolicy replaces the failure policy (config reload).
func (s *Service) SetPolicy(p FailurePolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p != s.policy {
		slog.Info("archive failure policy changed", "from", s.policy, "to", p)
	}
	s.policy = p
}

// HandleFailure applies the failure policy to an archive error for scope.
// It returns an error wrapping ErrHalted when the update loop must stop.
func (s *Service) HandleFailure(scope store.Scope, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.policy {
	case PolicyContinue:
		slog.Error("archive write failed, continuing", "chat_id", scope.ChatID, "error", err)
		return nil
	case PolicyDisableScope:
		if scope.IsGlobal() {
			slog.Error("global archive write failed, continuing", "error", err)
			return nil
		}
		s.disabled[scope.ChatID] = struct{}{}
		slog.Error("archive write failed, archiving disabled for chat", "chat_id", scope.ChatID, "error", err)
		return nil
	default:
		slog.Error("archive write failed, halting", "chat_id", scope.ChatID, "error", err)
		return fmt.Errorf("%w: %w", ErrHalted, err)
	}
}

// Disabled reports whether archiving for chatID was turned off by PolicyDisableScope.
func (s *Service) Disabled(chatID int64) bool {
	return s.scopeDisabled(chatID)
}

func (s *Service) scopeDisabled(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.disabled[chatID]
	return ok
}
