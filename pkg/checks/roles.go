// Package checks decides whether the member behind an interaction may run privileged commands.
package checks

import (
	"slices"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

func hasPermission(roles discordgo.Roles, perm int64) bool {
	for _, role := range roles {
		if role.Permissions&perm != 0 {
			return true
		}
	}
	return false
}

// IsAdmin reports whether any of the roles grants administrator rights.
func IsAdmin(roles discordgo.Roles) bool {
	return hasPermission(roles, discordgo.PermissionAdministrator)
}

// IsModerator reports whether any of the roles may time out or warn members.
func IsModerator(roles discordgo.Roles) bool {
	return hasPermission(roles, discordgo.PermissionAdministrator|discordgo.PermissionModerateMembers)
}

func IsServerManager(roles discordgo.Roles) bool {
	return hasPermission(roles, discordgo.PermissionManageServer)
}

func IsAdminOrServerManager(roles discordgo.Roles) bool {
	return hasPermission(roles, discordgo.PermissionAdministrator|discordgo.PermissionManageServer)
}

// AssignedRoles returns the guild roles held by the member that issued the interaction.
func AssignedRoles(s *discordgo.Session, i *discordgo.InteractionCreate) discordgo.Roles {
	if i.Member == nil {
		return nil
	}
	roles, err := s.GuildRoles(i.GuildID)
	if err != nil {
		log.Error("Unable to retrieve the guild roles from Discord, error:", err)
		return nil
	}
	return MemberRoles(roles, i.Member)
}

// MemberRoles filters the guild roles down to the ones the member holds.
func MemberRoles(guildRoles []*discordgo.Role, member *discordgo.Member) discordgo.Roles {
	var roles discordgo.Roles
	for _, role := range guildRoles {
		if slices.Contains(member.Roles, role.ID) {
			roles = append(roles, role)
		}
	}
	return roles
}

// CanManageEconomy reports whether the issuer may change balances.
func CanManageEconomy(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	if i.Member != nil && i.Member.Permissions&(discordgo.PermissionAdministrator|discordgo.PermissionManageServer) != 0 {
		return true
	}
	return IsAdminOrServerManager(AssignedRoles(s, i))
}

// CanModerate reports whether the issuer may warn members.
func CanModerate(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	if i.Member != nil && i.Member.Permissions&(discordgo.PermissionAdministrator|discordgo.PermissionModerateMembers) != 0 {
		return true
	}
	return IsModerator(AssignedRoles(s, i))
}
