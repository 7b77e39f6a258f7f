package home

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/olympiad/sys"
)

func handleMemberLookup(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	user := data.User("member")

	cached, err := sys.GetCachedMember(sys.AppContext, user.ID)
	if err != nil {
		sys.LogMembers(sys.MsgMembersUpdateFail, user.ID, err)
		memberRespond(event, sys.ErrMembersLookupFail, true)
		return
	}

	// Cache miss: fall back to the live gateway cache and backfill
	if cached == nil {
		guildID := event.GuildID()
		if guildID != nil {
			if member, ok := event.Client().Caches.Member(*guildID, user.ID); ok {
				cached = sys.CachedMemberFromDiscord(event.Client(), *guildID, member)
				if err := sys.UpsertCachedMember(sys.AppContext, cached); err != nil {
					sys.LogMembers(sys.MsgMembersUpdateFail, user.ID, err)
				}
			}
		}
	}

	if cached == nil {
		memberRespond(event, sys.ErrMembersNotFound, true)
		return
	}

	memberRespond(event, formatCachedMember(cached)+formatCacheAge(cached.CachedAt), true)
}
