package home

import (
	"fmt"
	"slices"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/olympiad/sys"
)

const memberSearchLimit = 15

func handleMemberSearch(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	query := data.String("query")

	results, err := sys.SearchCachedMembers(sys.AppContext, query)
	if err != nil {
		sys.LogMembers(sys.MsgMembersUpdateFail, query, err)
		memberRespond(event, sys.ErrMembersLookupFail, true)
		return
	}

	if role, ok := data.OptString("role"); ok {
		results = slices.DeleteFunc(results, func(m *sys.CachedMember) bool {
			return !slices.ContainsFunc(m.Roles, func(r string) bool {
				return strings.EqualFold(r, role)
			})
		})
	}

	if len(results) == 0 {
		memberRespond(event, sys.ErrMembersNoResults, true)
		return
	}

	total := len(results)
	if total > memberSearchLimit {
		results = results[:memberSearchLimit]
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## 🔍 %d member(s) matching %q\n", total, query))
	for _, m := range results {
		nick := ""
		if m.Nick != "" {
			nick = fmt.Sprintf(" (aka %s)", m.Nick)
		}
		sb.WriteString(fmt.Sprintf("- **%s**%s `%s`\n", m.DisplayName, nick, m.Username))
	}
	if total > memberSearchLimit {
		sb.WriteString(fmt.Sprintf("-# Showing first %d of %d matches.", memberSearchLimit, total))
	}

	memberRespond(event, sb.String(), true)
}
