package sys

import (
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

func TestExportLeaderboardJSON(t *testing.T) {
	ctx := setupTestDB(t)

	if err := SetWins(ctx, snowflake.ID(100), "alice", 3); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := SetWins(ctx, snowflake.ID(200), "bob", 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	payload, err := ExportLeaderboardJSON(ctx)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	var out map[string]leaderboardExportEntry
	if err := jsonAPI.Unmarshal(payload, &out); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d entries, want 2", len(out))
	}
	if e := out["100"]; e.DisplayName != "alice" || e.Wins != 3 {
		t.Fatalf("entry 100 = %+v", e)
	}
}

func TestExportMemberCacheJSON(t *testing.T) {
	ctx := setupTestDB(t)

	m := &CachedMember{
		UserID:      snowflake.ID(100),
		Username:    "alice",
		DisplayName: "Alice",
		JoinedAt:    time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Roles:       []string{"Regular"},
	}
	if err := UpsertCachedMember(ctx, m); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	payload, err := ExportMemberCacheJSON(ctx)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	var out memberCacheExport
	if err := jsonAPI.Unmarshal(payload, &out); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if out.MembersDict["100"] != "alice" {
		t.Fatalf("members_dict = %v", out.MembersDict)
	}
	details, ok := out.MemberDetails["100"]
	if !ok {
		t.Fatal("missing member_details entry")
	}
	if details.DisplayName != "Alice" || details.JoinedAt != "2025-06-01T00:00:00Z" {
		t.Fatalf("details = %+v", details)
	}
	if out.LastUpdated == "" {
		t.Fatal("last_updated should be set")
	}
}
