package home

import (
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/omit"
	"github.com/leeineian/olympiad/proc"
	"github.com/leeineian/olympiad/sys"
	"github.com/sho0pi/naturaltime"
)

var ttlParser *naturaltime.Parser

func initTTLParser() {
	var err error
	ttlParser, err = naturaltime.New()
	if err != nil {
		sys.LogFatal(sys.MsgTicketParserInitFail, err)
	}
}

func init() {
	initTTLParser()

	adminPerm := discord.PermissionAdministrator
	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:                     "ticketing",
		Description:              "Administer the ticketing system",
		DefaultMemberPermissions: omit.New(&adminPerm),
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "toggle",
				Description: "Enable or disable ticketing",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "status",
				Description: "Show the current ticketing state",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "ttl",
				Description: "Set how long new tickets stay open",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "duration",
						Description: "e.g. '2 days', '36h', 'in 1 week'",
						Required:    true,
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

		if proc.Tickets == nil {
			ticketRespond(event, sys.ErrTicketFailedMsg, true)
			return
		}

		switch *subCmd {
		case "toggle":
			handleTicketingToggle(event)
		case "status":
			handleTicketingStatus(event)
		case "ttl":
			handleTicketingTTL(event, data)
		}
	})
}

func handleTicketingToggle(event *events.ApplicationCommandInteractionCreate) {
	state := "disabled"
	emoji := "❌"
	if proc.Tickets.Toggle() {
		state = "enabled"
		emoji = "✅"
	}
	sys.LogTicket(sys.MsgTicketToggled, state, event.User().Username)
	ticketRespond(event, fmt.Sprintf("🎫 Ticketing has been **%s** %s", state, emoji), true)
}

func handleTicketingStatus(event *events.ApplicationCommandInteractionCreate) {
	state := "disabled ❌"
	if proc.Tickets.Enabled() {
		state = "enabled ✅"
	}
	content := fmt.Sprintf("## 🎫 Ticketing Status\nState: **%s**\nOpen tickets: **%d**\nTicket TTL: **%s**\nSweep interval: **%s**",
		state, proc.Tickets.OpenCount(), proc.Tickets.TTL(), sys.GlobalConfig.SweepInterval)
	ticketRespond(event, content, true)
}

func handleTicketingTTL(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	input := data.String("duration")

	now := time.Now()
	var ttl time.Duration
	if result, err := ttlParser.ParseDate(input, now); err == nil && result != nil {
		ttl = result.Sub(now)
	} else if d, err := time.ParseDuration(input); err == nil {
		ttl = d
	} else {
		ticketRespond(event, sys.ErrTicketTTLParseMsg, true)
		return
	}

	if ttl <= 0 {
		ticketRespond(event, sys.ErrTicketTTLPastMsg, true)
		return
	}

	proc.Tickets.SetTTL(ttl)
	sys.LogTicket(sys.MsgTicketTTLChanged, ttl, event.User().Username)
	ticketRespond(event, fmt.Sprintf("⏳ New tickets will now expire after **%s**.", ttl), true)
}
