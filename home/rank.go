package home

import (
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/olympiad/sys"
)

func init() {
	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "rank",
		Description: "Show a member's wins and leaderboard rank",
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionUser{
				Name:        "member",
				Description: "Whose rank to show (default: yours)",
				Required:    false,
			},
		},
	}, handleRank)
}

func handleRank(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()

	var targetID snowflake.ID
	var displayName string
	if member, ok := data.OptMember("member"); ok {
		targetID = member.User.ID
		displayName = member.EffectiveName()
	} else if user, ok := data.OptUser("member"); ok {
		targetID = user.ID
		displayName = user.EffectiveName()
	} else {
		targetID = event.User().ID
		displayName = event.User().EffectiveName()
		if member := event.Member(); member != nil {
			displayName = member.EffectiveName()
		}
	}

	if err := sys.EnsureLeaderboardMember(sys.AppContext, targetID, displayName); err != nil {
		sys.LogWins(sys.MsgLeaderboardDBFail, err)
	}

	stats, err := sys.GetMemberStats(sys.AppContext, targetID)
	if err != nil || stats == nil {
		if err != nil {
			sys.LogWins(sys.MsgLeaderboardDBFail, err)
		}
		leaderboardRespond(event, sys.ErrLeaderboardFail, true)
		return
	}

	rank, err := sys.GetRank(sys.AppContext, targetID)
	if err != nil {
		sys.LogWins(sys.MsgLeaderboardDBFail, err)
		leaderboardRespond(event, sys.ErrLeaderboardFail, true)
		return
	}
	total, err := sys.GetLeaderboardCount(sys.AppContext)
	if err != nil {
		sys.LogWins(sys.MsgLeaderboardDBFail, err)
		leaderboardRespond(event, sys.ErrLeaderboardFail, true)
		return
	}

	content := fmt.Sprintf("## 📊 %s\nWins: **%d**\nRank: **#%d** of %d", stats.DisplayName, stats.Wins, rank, total)
	leaderboardRespond(event, content, false)
}
