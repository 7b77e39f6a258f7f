package home

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/omit"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/olympiad/sys"
)

func init() {
	adminPerm := discord.PermissionAdministrator

	memberOption := discord.ApplicationCommandOptionUser{
		Name:        "member",
		Description: "The member to adjust",
		Required:    true,
	}

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:                     "wins",
		Description:              "Adjust leaderboard wins (Admin Only)",
		DefaultMemberPermissions: omit.New(&adminPerm),
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "add",
				Description: "Give a member a win",
				Options:     []discord.ApplicationCommandOption{memberOption},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "take",
				Description: "Take a win from a member",
				Options:     []discord.ApplicationCommandOption{memberOption},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "set",
				Description: "Set a member's win count",
				Options: []discord.ApplicationCommandOption{
					memberOption,
					discord.ApplicationCommandOptionInt{
						Name:        "count",
						Description: "The new win count",
						Required:    true,
						MinValue:    intPtr(0),
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
		case "add":
			handleWinsAdd(event, data)
		case "take":
			handleWinsTake(event, data)
		case "set":
			handleWinsSet(event, data)
		}
	})
}

// winsTarget resolves the required member option to an ID and display name.
func winsTarget(data discord.SlashCommandInteractionData) (snowflake.ID, string) {
	if member, ok := data.OptMember("member"); ok {
		return member.User.ID, member.EffectiveName()
	}
	user := data.User("member")
	return user.ID, user.EffectiveName()
}
