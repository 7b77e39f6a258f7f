package proc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/olympiad/sys"
	"golang.org/x/time/rate"
)

// Tickets is the process-wide ticket manager, wired on client ready.
var Tickets *TicketManager

// InitTicketing builds the manager with the Discord-backed provisioner.
// Safe to call more than once; only the first call takes effect.
func InitTicketing(client *bot.Client) {
	if Tickets != nil {
		return
	}
	prov := newDiscordProvisioner(client, sys.GlobalConfig.TicketCategory)
	Tickets = NewTicketManager(prov, sys.GlobalConfig.TicketTTL)
}

// discordProvisioner provisions ticket channels through the Discord REST
// API. Channel deletions are paced through a limiter so a large sweep pass
// doesn't burst into rate limits.
type discordProvisioner struct {
	client        *bot.Client
	categoryName  string
	deleteLimiter *rate.Limiter
}

func newDiscordProvisioner(client *bot.Client, categoryName string) *discordProvisioner {
	return &discordProvisioner{
		client:        client,
		categoryName:  categoryName,
		deleteLimiter: rate.NewLimiter(rate.Limit(2), 4),
	}
}

func (p *discordProvisioner) CreatePrivate(ctx context.Context, guildID, userID snowflake.ID, displayName string) (snowflake.ID, error) {
	categoryID, err := p.ensureCategory(ctx, guildID)
	if err != nil {
		return 0, wrapProvisioningError(err)
	}

	// Visible only to the requester, the bot, and every role holding
	// Administrator.
	overwrites := []discord.PermissionOverwrite{
		discord.RolePermissionOverwrite{
			RoleID: guildID, // @everyone
			Deny:   discord.PermissionViewChannel,
		},
		discord.MemberPermissionOverwrite{
			UserID: userID,
			Allow:  discord.PermissionViewChannel | discord.PermissionSendMessages,
		},
		discord.MemberPermissionOverwrite{
			UserID: p.client.ApplicationID,
			Allow:  discord.PermissionViewChannel | discord.PermissionSendMessages,
		},
	}

	roles, err := p.client.Rest.GetRoles(guildID, rest.WithCtx(ctx))
	if err != nil {
		return 0, wrapProvisioningError(err)
	}
	for _, role := range roles {
		if role.Permissions.Has(discord.PermissionAdministrator) {
			overwrites = append(overwrites, discord.RolePermissionOverwrite{
				RoleID: role.ID,
				Allow:  discord.PermissionViewChannel | discord.PermissionSendMessages,
			})
		}
	}

	ch, err := p.client.Rest.CreateGuildChannel(guildID, discord.GuildTextChannelCreate{
		Name:                 ticketChannelName(displayName),
		ParentID:             categoryID,
		PermissionOverwrites: overwrites,
	}, rest.WithCtx(ctx))
	if err != nil {
		return 0, wrapProvisioningError(err)
	}

	return ch.ID(), nil
}

func (p *discordProvisioner) Delete(ctx context.Context, channelID snowflake.ID, reason string) error {
	if err := p.deleteLimiter.Wait(ctx); err != nil {
		return err
	}
	return p.client.Rest.DeleteChannel(channelID, rest.WithCtx(ctx), rest.WithReason(reason))
}

func (p *discordProvisioner) Notify(ctx context.Context, channelID, userID snowflake.ID, expiresAt time.Time) error {
	content := fmt.Sprintf(
		"# 🎟️ New Ticket\n\n<@%s>, this channel is private. Submit your answer here.\nIt will be deleted <t:%d:R>.",
		userID, expiresAt.Unix(),
	)

	builder := discord.NewMessageCreateBuilder().
		SetIsComponentsV2(true).
		AddComponents(
			discord.NewContainer(
				discord.NewTextDisplay(content),
				discord.NewActionRow(
					discord.NewDangerButton("🔒 Close Ticket", "ticket_close:"+userID.String()),
				),
			),
		)

	_, err := p.client.Rest.CreateMessage(channelID, builder.Build(), rest.WithCtx(ctx))
	return err
}

// ensureCategory finds the ticket category by name, creating it on first use.
func (p *discordProvisioner) ensureCategory(ctx context.Context, guildID snowflake.ID) (snowflake.ID, error) {
	channels, err := p.client.Rest.GetGuildChannels(guildID, rest.WithCtx(ctx))
	if err != nil {
		return 0, err
	}
	for _, ch := range channels {
		if ch.Type() == discord.ChannelTypeGuildCategory && strings.EqualFold(ch.Name(), p.categoryName) {
			return ch.ID(), nil
		}
	}

	category, err := p.client.Rest.CreateGuildChannel(guildID, discord.GuildCategoryChannelCreate{
		Name: p.categoryName,
	}, rest.WithCtx(ctx))
	if err != nil {
		return 0, err
	}
	sys.LogTicket(sys.MsgTicketCategoryCreated, p.categoryName, category.ID())
	return category.ID(), nil
}

// wrapProvisioningError maps a REST failure onto the ticket error taxonomy:
// 403 means the bot lacks authorization, everything else is a plain failure.
func wrapProvisioningError(err error) error {
	var restErr *rest.Error
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %v", ErrProvisioningDenied, err)
	}
	return fmt.Errorf("%w: %v", ErrProvisioningFailed, err)
}

// ticketChannelName builds a Discord-safe channel name from a display name.
func ticketChannelName(displayName string) string {
	name := strings.ToLower(displayName)
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '-'
		}
	}, name)
	name = strings.Trim(name, "-")
	if name == "" {
		name = "member"
	}
	return "ticket-" + name
}
