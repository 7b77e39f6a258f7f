package home

import (
	"errors"
	"fmt"

	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/olympiad/proc"
	"github.com/leeineian/olympiad/sys"
)

func handleTicketOpen(event *events.ApplicationCommandInteractionCreate) {
	guildID := event.GuildID()
	if guildID == nil {
		ticketRespond(event, sys.ErrTicketFailedMsg, true)
		return
	}

	user := event.User()
	displayName := user.EffectiveName()
	if member := event.Member(); member != nil {
		displayName = member.EffectiveName()
	}

	// Channel creation can take a few round-trips, ack first
	if err := event.DeferCreateMessage(true); err != nil {
		sys.LogTicket(sys.MsgTicketRespondError, err)
		return
	}

	channelID, err := proc.Tickets.Open(sys.AppContext, *guildID, user.ID, displayName)
	if err != nil {
		ticketUpdateResponse(event, ticketOpenErrorMessage(err))
		return
	}
	ticketUpdateResponse(event, fmt.Sprintf("🎟️ Your ticket is ready: <#%s>", channelID))
}

func ticketOpenErrorMessage(err error) string {
	switch {
	case errors.Is(err, proc.ErrTicketingDisabled):
		return sys.ErrTicketDisabledMsg
	case errors.Is(err, proc.ErrTicketAlreadyOpen):
		return sys.ErrTicketAlreadyOpenMsg
	case errors.Is(err, proc.ErrProvisioningDenied):
		return sys.ErrTicketDeniedMsg
	default:
		return sys.ErrTicketFailedMsg
	}
}
