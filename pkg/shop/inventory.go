package shop

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rbrabson/chronicles/pkg/store"
	log "github.com/sirupsen/logrus"
)

// Owned is a possession with the time it has left.
type Owned struct {
	*store.Possession
	// RemainingSeconds is nil for permanent possessions.
	RemainingSeconds *int64 `json:"remaining_seconds"`
}

// InEffect reports whether the possession has time left or is permanent.
func (o *Owned) InEffect() bool {
	return o.RemainingSeconds == nil || *o.RemainingSeconds > 0
}

// ListActive returns everything the member bought, newest first, with the remaining time of
// each possession.
func (e *Engine) ListActive(ctx context.Context, guildID, memberID string) ([]*Owned, error) {
	log.Trace("--> ListActive")
	defer log.Trace("<-- ListActive")

	possessions, err := e.store.ListPossessions(ctx, guildID, memberID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	owned := make([]*Owned, 0, len(possessions))
	for _, p := range possessions {
		o := &Owned{Possession: p}
		if p.ExpiresAt != nil {
			remaining := max(int64(p.ExpiresAt.Sub(now)/time.Second), 0)
			o.RemainingSeconds = &remaining
		}
		owned = append(owned, o)
	}
	sort.SliceStable(owned, func(i, j int) bool {
		return owned[i].PurchasedAt.After(owned[j].PurchasedAt)
	})
	return owned, nil
}

// XPBonus returns the sum of the bonus values of the member's active ordinary bonuses.
func (e *Engine) XPBonus(ctx context.Context, guildID, memberID string) (float64, error) {
	possessions, err := e.store.ListPossessions(ctx, guildID, memberID)
	if err != nil {
		return 0, err
	}
	now := e.now()
	var bonus float64
	for _, p := range possessions {
		if p.BonusType == store.ItemOrdinaryBonus && p.Active(now) {
			bonus += p.BonusValue
		}
	}
	return bonus, nil
}

// ExpireRoles revokes every timed role whose grant has expired and returns how many were
// revoked. Grants whose role could not be revoked are kept for the next sweep.
func (e *Engine) ExpireRoles(ctx context.Context) (int, error) {
	log.Trace("--> ExpireRoles")
	defer log.Trace("<-- ExpireRoles")

	if e.roles == nil {
		return 0, errNoRoleGateway
	}
	grants, err := e.store.ListExpiredRoleGrants(ctx, e.now())
	if err != nil {
		return 0, fmt.Errorf("listing expired role grants: %w", err)
	}
	revoked := 0
	for _, g := range grants {
		if err := e.roles.RevokeRole(ctx, g.GuildID, g.MemberID, g.RoleID); err != nil {
			log.WithFields(log.Fields{"guild": g.GuildID, "member": g.MemberID, "role": g.RoleID, "error": err}).Warn("failed to revoke expired role")
			continue
		}
		if err := e.store.DeleteRoleGrant(ctx, g); err != nil {
			log.WithFields(log.Fields{"guild": g.GuildID, "member": g.MemberID, "role": g.RoleID, "error": err}).Error("failed to delete expired role grant")
			continue
		}
		revoked++
		log.WithFields(log.Fields{"guild": g.GuildID, "member": g.MemberID, "role": g.RoleID}).Info("expired role revoked")
	}
	return revoked, nil
}
