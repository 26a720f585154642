// Package shop settles purchases from the shop catalog and manages what members own.
package shop

import (
	"context"
	"time"

	"github.com/rbrabson/chronicles/pkg/store"
)

// Store is the part of the ledger the shop works with.
type Store interface {
	store.WalletStore
	store.CatalogStore
	store.InventoryStore
}

// RoleGateway grants and revokes platform roles.
type RoleGateway interface {
	// GrantRole resolves the role within the guild and gives it to the member.
	GrantRole(ctx context.Context, guildID, memberID, roleID string) error
	RevokeRole(ctx context.Context, guildID, memberID, roleID string) error
}

// Engine settles purchases and maintains the catalog.
type Engine struct {
	store Store
	roles RoleGateway
	now   func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the clock used for purchase and expiry timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a shop engine. The role gateway may be nil when no platform is connected,
// in which case role grants are reported as failed.
func NewEngine(s Store, roles RoleGateway, opts ...Option) *Engine {
	e := &Engine{
		store: s,
		roles: roles,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetRoleGateway sets the gateway used for timed roles once the platform session is open.
func (e *Engine) SetRoleGateway(roles RoleGateway) {
	e.roles = roles
}
