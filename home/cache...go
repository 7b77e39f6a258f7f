package home

import (
	"bytes"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/omit"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/olympiad/sys"
)

// Discord caps member list pages at 1000
const memberFetchPageSize = 1000

func init() {
	adminPerm := discord.PermissionAdministrator

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:                     "cache",
		Description:              "Rebuild or export the bot caches (Admin Only)",
		DefaultMemberPermissions: omit.New(&adminPerm),
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "members",
				Description: "Rebuild the member directory from the guild",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "leaderboard",
				Description: "Seed every guild member into the leaderboard",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "export",
				Description: "Export a cache as a JSON file",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "target",
						Description: "Which cache to export",
						Required:    true,
						Choices: []discord.ApplicationCommandOptionChoiceString{
							{Name: "Member directory", Value: "members"},
							{Name: "Leaderboard", Value: "leaderboard"},
						},
					},
				},
			},
		},
	}, func(event *events.ApplicationCommandInteractionCreate) {
		data := event.SlashCommandInteractionData()
		subCmd := data.SubCommandName
		if subCmd == nil {
			return
		}

		switch *subCmd {
		case "members":
			handleCacheMembers(event)
		case "leaderboard":
			handleCacheLeaderboard(event)
		case "export":
			handleCacheExport(event, data)
		}
	})
}

// fetchAllMembers pages through the guild member list over REST.
func fetchAllMembers(event *events.ApplicationCommandInteractionCreate, guildID snowflake.ID) ([]discord.Member, error) {
	var all []discord.Member
	var after snowflake.ID
	for {
		page, err := event.Client().Rest.GetMembers(guildID, memberFetchPageSize, after)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < memberFetchPageSize {
			return all, nil
		}
		after = page[len(page)-1].User.ID
	}
}

func handleCacheMembers(event *events.ApplicationCommandInteractionCreate) {
	guildID := event.GuildID()
	if guildID == nil {
		memberRespond(event, sys.ErrMembersCacheFail, true)
		return
	}

	if err := event.DeferCreateMessage(true); err != nil {
		sys.LogMembers(sys.MsgRespondError, err)
		return
	}

	members, err := fetchAllMembers(event, *guildID)
	if err != nil {
		sys.LogMembers(sys.MsgMembersCacheFail, guildID, err)
		cacheUpdateResponse(event, sys.ErrMembersCacheFail)
		return
	}

	if err := sys.ClearMemberCache(sys.AppContext); err != nil {
		sys.LogMembers(sys.MsgMembersCacheFail, guildID, err)
		cacheUpdateResponse(event, sys.ErrMembersCacheFail)
		return
	}

	cached := 0
	for _, member := range members {
		m := sys.CachedMemberFromDiscord(event.Client(), *guildID, member)
		if err := sys.UpsertCachedMember(sys.AppContext, m); err != nil {
			sys.LogMembers(sys.MsgMembersUpdateFail, m.UserID, err)
			continue
		}
		cached++
	}

	sys.LogMembers(sys.MsgMembersCached, cached, guildID)
	cacheUpdateResponse(event, fmt.Sprintf("📇 Cached **%d** members.", cached))
}

func handleCacheLeaderboard(event *events.ApplicationCommandInteractionCreate) {
	guildID := event.GuildID()
	if guildID == nil {
		memberRespond(event, sys.ErrLeaderboardFail, true)
		return
	}

	if err := event.DeferCreateMessage(true); err != nil {
		sys.LogMembers(sys.MsgRespondError, err)
		return
	}

	members, err := fetchAllMembers(event, *guildID)
	if err != nil {
		sys.LogWins(sys.MsgLeaderboardDBFail, err)
		cacheUpdateResponse(event, sys.ErrLeaderboardFail)
		return
	}

	seeded := 0
	for _, member := range members {
		if member.User.Bot {
			continue
		}
		if err := sys.EnsureLeaderboardMember(sys.AppContext, member.User.ID, member.EffectiveName()); err != nil {
			sys.LogWins(sys.MsgLeaderboardDBFail, err)
			continue
		}
		seeded++
	}

	sys.LogWins(sys.MsgLeaderboardSynced, seeded)
	cacheUpdateResponse(event, fmt.Sprintf("🏆 Seeded **%d** members into the leaderboard.", seeded))
}

func handleCacheExport(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	target := data.String("target")

	var (
		payload []byte
		err     error
	)
	switch target {
	case "leaderboard":
		payload, err = sys.ExportLeaderboardJSON(sys.AppContext)
	default:
		payload, err = sys.ExportMemberCacheJSON(sys.AppContext)
	}
	if err != nil {
		if target == "leaderboard" {
			sys.LogWins(sys.MsgLeaderboardExportFail, err)
			memberRespond(event, sys.ErrLeaderboardFail, true)
		} else {
			sys.LogMembers(sys.MsgMembersExportFail, err)
			memberRespond(event, sys.ErrMembersCacheFail, true)
		}
		return
	}

	filename := fmt.Sprintf("%s-%s.json", target, time.Now().Format("2006-01-02"))
	sendErr := event.CreateMessage(discord.NewMessageCreateBuilder().
		SetContentf("📦 Exported `%s` cache.", target).
		AddFile(filename, "", bytes.NewReader(payload)).
		SetEphemeral(true).
		Build())
	if sendErr != nil {
		sys.LogMembers(sys.MsgRespondError, sendErr)
	}
}

func cacheUpdateResponse(event *events.ApplicationCommandInteractionCreate, content string) {
	_, _ = event.Client().Rest.UpdateInteractionResponse(event.ApplicationID(), event.Token(), discord.NewMessageUpdateBuilder().
		SetIsComponentsV2(true).
		AddComponents(discord.NewContainer(discord.NewTextDisplay(content))).
		Build())
}
