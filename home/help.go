package home

import (
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/olympiad/sys"
)

func init() {
	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "help",
		Description: "List available commands",
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
	}, handleHelp)
}

func handleHelp(event *events.ApplicationCommandInteractionCreate) {
	var sb strings.Builder
	sb.WriteString("## 📖 Commands\n")
	sb.WriteString("**/ticket open** - Open a private support ticket\n")
	sb.WriteString("**/ticket close** - Close your ticket\n")
	sb.WriteString("**/leaderboard** - Show the wins leaderboard\n")
	sb.WriteString("**/rank** - Show your wins and rank\n")
	sb.WriteString("**/member lookup** - Look up a member\n")
	sb.WriteString("**/member search** - Search members by name\n")
	sb.WriteString("**/member stats** - Directory cache statistics\n")

	isAdmin := false
	if member := event.Member(); member != nil {
		isAdmin = member.Permissions.Has(discord.PermissionAdministrator)
	}
	if isAdmin {
		sb.WriteString("\n## 🔧 Admin\n")
		sb.WriteString("**/ticketing toggle** - Enable or disable ticketing\n")
		sb.WriteString("**/ticketing status** - Show ticketing state\n")
		sb.WriteString("**/ticketing ttl** - Set the ticket lifetime\n")
		sb.WriteString("**/wins add | take | set** - Adjust a member's wins\n")
		sb.WriteString("**/cache members** - Rebuild the member directory\n")
		sb.WriteString("**/cache leaderboard** - Seed members into the leaderboard\n")
		sb.WriteString("**/cache export** - Export a cache as JSON\n")
	}

	err := event.CreateMessage(discord.NewMessageCreateBuilder().
		SetIsComponentsV2(true).
		AddComponents(
			discord.NewContainer(
				discord.NewTextDisplay(sb.String()),
			),
		).
		SetEphemeral(true).
		Build())
	if err != nil {
		sys.LogDebug(sys.MsgRespondError, err)
	}
}
