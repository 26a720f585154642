// Package moderation keeps the warnings moderators issue to members.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rbrabson/chronicles/pkg/store"
	log "github.com/sirupsen/logrus"
)

var ErrReasonRequired = errors.New("a warning needs a reason")

// Moderator issues and withdraws warnings.
type Moderator struct {
	store store.WarningStore
	now   func() time.Time
}

// Option configures a Moderator.
type Option func(*Moderator)

// WithClock replaces the clock used for warning timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Moderator) { m.now = now }
}

// NewModerator creates a moderator over the warning store.
func NewModerator(s store.WarningStore, opts ...Option) *Moderator {
	m := &Moderator{store: s, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddWarning records a warning and returns it with the member's total number of warnings.
func (m *Moderator) AddWarning(ctx context.Context, guildID, memberID, moderatorID, reason string) (*store.Warning, int, error) {
	log.Trace("--> AddWarning")
	defer log.Trace("<-- AddWarning")

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, 0, ErrReasonRequired
	}
	w := &store.Warning{
		ID:          uuid.NewString(),
		GuildID:     guildID,
		MemberID:    memberID,
		ModeratorID: moderatorID,
		Reason:      reason,
		CreatedAt:   m.now(),
	}
	if err := m.store.InsertWarning(ctx, w); err != nil {
		return nil, 0, fmt.Errorf("adding warning: %w", err)
	}
	warnings, err := m.store.ListWarnings(ctx, guildID, memberID)
	if err != nil {
		return w, 0, err
	}
	log.WithFields(log.Fields{"guild": guildID, "member": memberID, "moderator": moderatorID, "total": len(warnings)}).Info("warning added")
	return w, len(warnings), nil
}

// RemoveWarning deletes a warning and returns it with the number of warnings its member has left.
func (m *Moderator) RemoveWarning(ctx context.Context, warnID string) (*store.Warning, int, error) {
	log.Trace("--> RemoveWarning")
	defer log.Trace("<-- RemoveWarning")

	w, err := m.store.DeleteWarning(ctx, warnID)
	if err != nil {
		return nil, 0, fmt.Errorf("removing warning %q: %w", warnID, err)
	}
	remaining, err := m.store.ListWarnings(ctx, w.GuildID, w.MemberID)
	if err != nil {
		return w, 0, err
	}
	log.WithFields(log.Fields{"guild": w.GuildID, "member": w.MemberID, "warning": warnID, "remaining": len(remaining)}).Info("warning removed")
	return w, len(remaining), nil
}

// ListWarnings returns the member's warnings, oldest first.
func (m *Moderator) ListWarnings(ctx context.Context, guildID, memberID string) ([]*store.Warning, error) {
	return m.store.ListWarnings(ctx, guildID, memberID)
}
