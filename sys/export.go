package sys

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Export shapes mirror the flat files the bot historically wrote
// (cache/leaderboard.json and cache/members.json), so old tooling that
// consumed them keeps working against the exported attachments.

type leaderboardExportEntry struct {
	DisplayName string `json:"display_name"`
	Wins        int    `json:"wins"`
}

type memberExportDetails struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Nick        string   `json:"nick,omitempty"`
	JoinedAt    string   `json:"joined_at,omitempty"`
	CreatedAt   string   `json:"created_at,omitempty"`
	Roles       []string `json:"roles"`
	IsBot       bool     `json:"is_bot"`
}

type memberCacheExport struct {
	MembersDict   map[string]string              `json:"members_dict"`
	MemberDetails map[string]memberExportDetails `json:"member_details"`
	LastUpdated   string                         `json:"last_updated,omitempty"`
}

func ExportLeaderboardJSON(ctx context.Context) ([]byte, error) {
	entries, err := GetAllLeaderboardEntries(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]leaderboardExportEntry, len(entries))
	for _, e := range entries {
		out[e.UserID.String()] = leaderboardExportEntry{
			DisplayName: e.DisplayName,
			Wins:        e.Wins,
		}
	}
	return jsonAPI.MarshalIndent(out, "", "    ")
}

func ExportMemberCacheJSON(ctx context.Context) ([]byte, error) {
	members, err := GetAllCachedMembers(ctx)
	if err != nil {
		return nil, err
	}
	info, err := GetMemberCacheInfo(ctx)
	if err != nil {
		return nil, err
	}

	out := memberCacheExport{
		MembersDict:   make(map[string]string, len(members)),
		MemberDetails: make(map[string]memberExportDetails, len(members)),
	}
	if !info.LastUpdated.IsZero() {
		out.LastUpdated = info.LastUpdated.UTC().Format(time.RFC3339)
	}

	for _, m := range members {
		id := m.UserID.String()
		out.MembersDict[id] = m.Username

		details := memberExportDetails{
			ID:          id,
			Name:        m.Username,
			DisplayName: m.DisplayName,
			Nick:        m.Nick,
			Roles:       m.Roles,
			IsBot:       m.IsBot,
		}
		if !m.JoinedAt.IsZero() {
			details.JoinedAt = m.JoinedAt.UTC().Format(time.RFC3339)
		}
		if !m.CreatedAt.IsZero() {
			details.CreatedAt = m.CreatedAt.UTC().Format(time.RFC3339)
		}
		if details.Roles == nil {
			details.Roles = []string{}
		}
		out.MemberDetails[id] = details
	}

	return jsonAPI.MarshalIndent(out, "", "    ")
}
