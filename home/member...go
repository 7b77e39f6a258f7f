package home

import (
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/olympiad/sys"
)

func init() {
	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "member",
		Description: "Look up members in the directory cache",
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "lookup",
				Description: "Show a member's cached profile",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionUser{
						Name:        "member",
						Description: "The member to look up",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "search",
				Description: "Search the directory by name",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "query",
						Description: "Name, nickname or username fragment",
						Required:    true,
					},
					discord.ApplicationCommandOptionString{
						Name:        "role",
						Description: "Only match members with this role name",
						Required:    false,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "stats",
				Description: "Show directory cache statistics",
			},
		},
	}, func(event *events.ApplicationCommandInteractionCreate) {
		data := event.SlashCommandInteractionData()
		subCmd := data.SubCommandName
		if subCmd == nil {
			return
		}

		switch *subCmd {
		case "lookup":
			handleMemberLookup(event, data)
		case "search":
			handleMemberSearch(event, data)
		case "stats":
			handleMemberStats(event)
		}
	})
}

func memberRespond(event *events.ApplicationCommandInteractionCreate, content string, ephemeral bool) {
	err := event.CreateMessage(discord.NewMessageCreateBuilder().
		SetIsComponentsV2(true).
		AddComponents(
			discord.NewContainer(
				discord.NewTextDisplay(content),
			),
		).
		SetEphemeral(ephemeral).
		Build())
	if err != nil {
		sys.LogMembers(sys.MsgRespondError, err)
	}
}

func handleMemberStats(event *events.ApplicationCommandInteractionCreate) {
	info, err := sys.GetMemberCacheInfo(sys.AppContext)
	if err != nil {
		sys.LogMembers(sys.MsgMembersCacheFail, "?", err)
		memberRespond(event, sys.ErrMembersLookupFail, true)
		return
	}

	lastUpdated := "never"
	if !info.LastUpdated.IsZero() {
		lastUpdated = fmt.Sprintf("<t:%d:R>", info.LastUpdated.Unix())
	}
	content := fmt.Sprintf("## 📇 Member Directory\nCached members: **%d**\nLast updated: %s", info.Count, lastUpdated)
	memberRespond(event, content, true)
}

func formatCachedMember(m *sys.CachedMember) string {
	roles := "none"
	if len(m.Roles) > 0 {
		roles = ""
		for i, r := range m.Roles {
			if i > 0 {
				roles += ", "
			}
			roles += r
		}
	}

	botTag := ""
	if m.IsBot {
		botTag = " 🤖"
	}

	return fmt.Sprintf("## 👤 %s%s\nUsername: `%s`\nNickname: %s\nJoined: <t:%d:D>\nAccount created: <t:%d:D>\nRoles: %s",
		m.DisplayName, botTag, m.Username, nickOrDash(m.Nick), m.JoinedAt.Unix(), m.CreatedAt.Unix(), roles)
}

func nickOrDash(nick string) string {
	if nick == "" {
		return "*(none)*"
	}
	return nick
}

func formatCacheAge(cachedAt time.Time) string {
	if cachedAt.IsZero() {
		return ""
	}
	return fmt.Sprintf("\n-# Cached <t:%d:R>", cachedAt.Unix())
}
