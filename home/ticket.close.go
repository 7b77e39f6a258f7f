package home

import (
	"errors"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/olympiad/proc"
	"github.com/leeineian/olympiad/sys"
)

func handleTicketClose(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	actor := event.User()
	target := actor.ID
	if user, ok := data.OptUser("member"); ok {
		target = user.ID
	}

	isAdmin := false
	if member := event.Member(); member != nil {
		isAdmin = member.Permissions.Has(discord.PermissionAdministrator)
	}

	// Ack before the channel disappears out from under the interaction
	ticketRespond(event, sys.MsgTicketClosingMsg, true)

	err := proc.Tickets.Close(sys.AppContext, target, actor.ID, isAdmin)
	ticketUpdateResponse(event, ticketCloseResultMessage(err))
}

func handleTicketCloseButton(event *events.ComponentInteractionCreate) {
	if proc.Tickets == nil {
		return
	}

	customID := event.Data.CustomID()
	target, err := snowflake.Parse(strings.TrimPrefix(customID, "ticket_close:"))
	if err != nil {
		return
	}

	actor := event.User()
	isAdmin := false
	if member := event.Member(); member != nil {
		isAdmin = member.Permissions.Has(discord.PermissionAdministrator)
	}

	// Ephemeral ack first: the close deletes the channel this button lives in,
	// so anything sent after deletion may never arrive.
	respondErr := event.CreateMessage(discord.NewMessageCreateBuilder().
		SetIsComponentsV2(true).
		AddComponents(discord.NewContainer(discord.NewTextDisplay(sys.MsgTicketClosingMsg))).
		SetEphemeral(true).
		Build())
	if respondErr != nil {
		sys.LogTicket(sys.MsgTicketRespondError, respondErr)
	}

	closeErr := proc.Tickets.Close(sys.AppContext, target, actor.ID, isAdmin)
	if respondErr == nil {
		// Deleting the channel can race the webhook edit, a failure here is fine
		_, _ = event.Client().Rest.UpdateInteractionResponse(event.ApplicationID(), event.Token(), discord.NewMessageUpdateBuilder().
			SetIsComponentsV2(true).
			AddComponents(discord.NewContainer(discord.NewTextDisplay(ticketCloseResultMessage(closeErr)))).
			Build())
	}
}

func ticketCloseResultMessage(err error) string {
	switch {
	case err == nil:
		return sys.MsgTicketClosedMsg
	case errors.Is(err, proc.ErrTicketNotFound):
		return sys.ErrTicketNotFoundMsg
	case errors.Is(err, proc.ErrTicketNotAuthorized):
		return sys.ErrTicketNotYoursMsg
	default:
		return sys.ErrTicketFailedMsg
	}
}
