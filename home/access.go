package home

import (
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/jukebox/proc"
	"github.com/leeineian/jukebox/sys"
)

// isPrivileged matches the admin role name, the configured admin id or
// username, and the owner list.
func isPrivileged(cfg *sys.Config, userID snowflake.ID, username string, roleNames []string) bool {
	if cfg == nil {
		return false
	}
	if cfg.AdminUserID != 0 && cfg.AdminUserID == userID {
		return true
	}
	if cfg.AdminUsername != "" && cfg.AdminUsername == username {
		return true
	}
	if cfg.IsOwner(userID) {
		return true
	}
	if cfg.AdminRoleName == "" {
		return false
	}
	for _, name := range roleNames {
		if name == cfg.AdminRoleName {
			return true
		}
	}
	return false
}

func roleNames(client *bot.Client, guildID *snowflake.ID, member *discord.ResolvedMember) []string {
	if client == nil || guildID == nil || member == nil {
		return nil
	}
	names := make([]string, 0, len(member.RoleIDs))
	for _, rid := range member.RoleIDs {
		if role, ok := client.Caches.Role(*guildID, rid); ok {
			names = append(names, role.Name)
		}
	}
	return names
}

// requesterOf builds the quota identity of whoever triggered an interaction.
func requesterOf(client *bot.Client, guildID *snowflake.ID, user discord.User, member *discord.ResolvedMember) proc.Requester {
	tier := proc.TierNormal
	if isPrivileged(sys.GlobalConfig, user.ID, user.Username, roleNames(client, guildID, member)) {
		tier = proc.TierPrivileged
	}
	return proc.Requester{ID: user.ID, Name: user.Username, Tier: tier}
}
