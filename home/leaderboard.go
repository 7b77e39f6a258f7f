package home

import (
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/olympiad/sys"
)

const leaderboardDefaultTop = 10

func init() {
	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "leaderboard",
		Description: "Show the wins leaderboard",
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionInt{
				Name:        "top",
				Description: "How many members to show (default: 10)",
				Required:    false,
				MinValue:    intPtr(1),
				MaxValue:    intPtr(25),
			},
		},
	}, handleLeaderboard)
}

func intPtr(v int) *int { return &v }

func handleLeaderboard(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	topN := leaderboardDefaultTop
	if v, ok := data.OptInt("top"); ok {
		topN = v
	}

	// Anyone touching the leaderboard gets a row, wins start at 0
	user := event.User()
	displayName := user.EffectiveName()
	if member := event.Member(); member != nil {
		displayName = member.EffectiveName()
	}
	if err := sys.EnsureLeaderboardMember(sys.AppContext, user.ID, displayName); err != nil {
		sys.LogWins(sys.MsgLeaderboardDBFail, err)
	}

	entries, err := sys.GetLeaderboard(sys.AppContext, topN)
	if err != nil {
		sys.LogWins(sys.MsgLeaderboardDBFail, err)
		leaderboardRespond(event, sys.ErrLeaderboardFail, true)
		return
	}
	if len(entries) == 0 {
		leaderboardRespond(event, sys.ErrLeaderboardEmpty, true)
		return
	}

	var sb strings.Builder
	sb.WriteString("## 🏆 Wins Leaderboard\n")
	for i, entry := range entries {
		medal := fmt.Sprintf("**%d.**", i+1)
		switch i {
		case 0:
			medal = "🥇"
		case 1:
			medal = "🥈"
		case 2:
			medal = "🥉"
		}
		sb.WriteString(fmt.Sprintf("%s %s — **%d** wins\n", medal, entry.DisplayName, entry.Wins))
	}

	leaderboardRespond(event, sb.String(), false)
}

func leaderboardRespond(event *events.ApplicationCommandInteractionCreate, content string, ephemeral bool) {
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
		sys.LogWins(sys.MsgRespondError, err)
	}
}
