package home

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/olympiad/proc"
	"github.com/leeineian/olympiad/sys"
)

func init() {
	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "ticket",
		Description: "Open or close a private support ticket",
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "open",
				Description: "Open a private ticket channel",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "close",
				Description: "Close a ticket",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionUser{
						Name:        "member",
						Description: "Whose ticket to close (admins only, default: yours)",
						Required:    false,
					},
				},
			},
		},
	}, handleTicket)

	sys.RegisterComponentHandler("ticket_close:", handleTicketCloseButton)
}

func handleTicket(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	subCmd := data.SubCommandName
	if subCmd == nil {
		return
	}

	if proc.Tickets == nil {
		ticketRespond(event, sys.ErrTicketFailedMsg, true)
		return
	}

	switch *subCmd {
	case "open":
		handleTicketOpen(event)
	case "close":
		handleTicketClose(event, data)
	}
}

// ticketRespond sends an ephemeral-or-not response message
func ticketRespond(event *events.ApplicationCommandInteractionCreate, content string, ephemeral bool) {
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
		sys.LogTicket(sys.MsgTicketRespondError, err)
	}
}

func ticketUpdateResponse(event *events.ApplicationCommandInteractionCreate, content string) {
	_, _ = event.Client().Rest.UpdateInteractionResponse(event.ApplicationID(), event.Token(), discord.NewMessageUpdateBuilder().
		SetIsComponentsV2(true).
		AddComponents(discord.NewContainer(discord.NewTextDisplay(content))).
		Build())
}
