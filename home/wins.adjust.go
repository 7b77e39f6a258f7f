package home

import (
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/olympiad/sys"
)

func handleWinsAdd(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	targetID, displayName := winsTarget(data)

	if err := sys.AddWin(sys.AppContext, targetID, displayName); err != nil {
		sys.LogWins(sys.MsgLeaderboardDBFail, err)
		leaderboardRespond(event, sys.ErrLeaderboardFail, true)
		return
	}

	stats, _ := sys.GetMemberStats(sys.AppContext, targetID)
	wins := 0
	if stats != nil {
		wins = stats.Wins
	}
	leaderboardRespond(event, fmt.Sprintf("🏆 **%s** now has **%d** wins.", displayName, wins), false)
}

func handleWinsTake(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	targetID, displayName := winsTarget(data)

	if err := sys.EnsureLeaderboardMember(sys.AppContext, targetID, displayName); err != nil {
		sys.LogWins(sys.MsgLeaderboardDBFail, err)
		leaderboardRespond(event, sys.ErrLeaderboardFail, true)
		return
	}

	taken, err := sys.TakeWin(sys.AppContext, targetID)
	if err != nil {
		sys.LogWins(sys.MsgLeaderboardDBFail, err)
		leaderboardRespond(event, sys.ErrLeaderboardFail, true)
		return
	}
	if !taken {
		leaderboardRespond(event, sys.ErrLeaderboardWinsFloor, true)
		return
	}

	stats, _ := sys.GetMemberStats(sys.AppContext, targetID)
	wins := 0
	if stats != nil {
		wins = stats.Wins
	}
	leaderboardRespond(event, fmt.Sprintf("🏆 **%s** now has **%d** wins.", displayName, wins), false)
}

func handleWinsSet(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	targetID, displayName := winsTarget(data)
	count := data.Int("count")

	if count < 0 {
		leaderboardRespond(event, sys.ErrLeaderboardWinsFloor, true)
		return
	}

	if err := sys.SetWins(sys.AppContext, targetID, displayName, count); err != nil {
		sys.LogWins(sys.MsgLeaderboardDBFail, err)
		leaderboardRespond(event, sys.ErrLeaderboardFail, true)
		return
	}

	leaderboardRespond(event, fmt.Sprintf("🏆 **%s** now has **%d** wins.", displayName, count), false)
}
