package discord

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

var ErrRoleNotFound = errors.New("role not found in guild")

// RoleGateway grants and revokes guild roles for the shop.
type RoleGateway struct {
	session *discordgo.Session
	getenv  func(string) string
}

// NewRoleGateway creates a role gateway over the session.
func NewRoleGateway(s *discordgo.Session) *RoleGateway {
	return &RoleGateway{session: s, getenv: os.Getenv}
}

// GrantRole gives the role to the member. The role may be given by id, by the name of an
// environment variable holding the id, or by role name.
func (g *RoleGateway) GrantRole(ctx context.Context, guildID, memberID, roleRef string) error {
	log.Trace("--> GrantRole")
	defer log.Trace("<-- GrantRole")

	roleID, err := g.resolve(guildID, roleRef)
	if err != nil {
		return err
	}
	if err := g.session.GuildMemberRoleAdd(guildID, memberID, roleID); err != nil {
		return fmt.Errorf("grant role %s: %w", roleID, err)
	}
	log.WithFields(log.Fields{"guild": guildID, "member": memberID, "role": roleID}).Info("role granted")
	return nil
}

// RevokeRole removes the role from the member.
func (g *RoleGateway) RevokeRole(ctx context.Context, guildID, memberID, roleRef string) error {
	log.Trace("--> RevokeRole")
	defer log.Trace("<-- RevokeRole")

	roleID, err := g.resolve(guildID, roleRef)
	if err != nil {
		return err
	}
	if err := g.session.GuildMemberRoleRemove(guildID, memberID, roleID); err != nil {
		return fmt.Errorf("revoke role %s: %w", roleID, err)
	}
	log.WithFields(log.Fields{"guild": guildID, "member": memberID, "role": roleID}).Info("role revoked")
	return nil
}

func (g *RoleGateway) resolve(guildID, roleRef string) (string, error) {
	roles, err := g.session.GuildRoles(guildID)
	if err != nil {
		return "", fmt.Errorf("list roles of guild %s: %w", guildID, err)
	}
	return resolveRole(roles, roleRef, g.getenv)
}

// resolveRole finds the role by id, then by the id held in the environment variable named
// roleRef, then by name.
func resolveRole(roles []*discordgo.Role, roleRef string, getenv func(string) string) (string, error) {
	refs := []string{roleRef}
	if v := getenv(roleRef); v != "" {
		refs = append(refs, v)
	}
	for _, ref := range refs {
		for _, role := range roles {
			if role.ID == ref {
				return role.ID, nil
			}
		}
	}
	for _, role := range roles {
		if strings.EqualFold(role.Name, roleRef) {
			return role.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrRoleNotFound, roleRef)
}

// sweepRoles revokes expired timed roles every sweep period until the bot stops.
func (b *Bot) sweepRoles() {
	ticker := time.NewTicker(b.opts.SweepPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), b.opts.SweepPeriod)
			n, err := b.opts.Roles.ExpireRoles(ctx)
			cancel()
			if err != nil {
				log.WithField("error", err).Error("timed role sweep failed")
				continue
			}
			if n > 0 {
				log.WithField("revoked", n).Info("expired timed roles revoked")
			}
		}
	}
}
