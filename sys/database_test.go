package sys

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

func setupTestDB(t *testing.T) context.Context {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	if err := InitDatabase(ctx, dbPath); err != nil {
		t.Fatalf("InitDatabase failed: %v", err)
	}
	t.Cleanup(CloseDatabase)
	return ctx
}

func TestBotConfigRoundTrip(t *testing.T) {
	ctx := setupTestDB(t)

	if v, err := GetBotConfig(ctx, "missing"); err != nil || v != "" {
		t.Fatalf("missing key = (%q, %v), want empty", v, err)
	}

	if err := SetBotConfig(ctx, "last_reg_mode", "guild"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if v, _ := GetBotConfig(ctx, "last_reg_mode"); v != "guild" {
		t.Fatalf("got %q, want %q", v, "guild")
	}

	if err := SetBotConfig(ctx, "last_reg_mode", "global"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	if v, _ := GetBotConfig(ctx, "last_reg_mode"); v != "global" {
		t.Fatalf("got %q, want %q", v, "global")
	}
}

func TestWinsNeverGoNegative(t *testing.T) {
	ctx := setupTestDB(t)
	alice := snowflake.ID(100)

	if err := EnsureLeaderboardMember(ctx, alice, "alice"); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}

	if taken, err := TakeWin(ctx, alice); err != nil || taken {
		t.Fatalf("take from zero = (%v, %v), want (false, nil)", taken, err)
	}

	if err := AddWin(ctx, alice, "alice"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if taken, err := TakeWin(ctx, alice); err != nil || !taken {
		t.Fatalf("take = (%v, %v), want (true, nil)", taken, err)
	}

	stats, err := GetMemberStats(ctx, alice)
	if err != nil || stats == nil {
		t.Fatalf("stats = (%v, %v)", stats, err)
	}
	if stats.Wins != 0 {
		t.Fatalf("wins = %d, want 0", stats.Wins)
	}
}

func TestEnsureRefreshesDisplayName(t *testing.T) {
	ctx := setupTestDB(t)
	alice := snowflake.ID(100)

	if err := AddWin(ctx, alice, "old name"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := EnsureLeaderboardMember(ctx, alice, "new name"); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}

	stats, _ := GetMemberStats(ctx, alice)
	if stats.DisplayName != "new name" {
		t.Fatalf("display name = %q, want %q", stats.DisplayName, "new name")
	}
	if stats.Wins != 1 {
		t.Fatalf("ensure must not reset wins, got %d", stats.Wins)
	}
}

func TestLeaderboardOrderingAndRank(t *testing.T) {
	ctx := setupTestDB(t)
	alice := snowflake.ID(100)
	bob := snowflake.ID(200)
	carol := snowflake.ID(300)

	// alice reaches 3 wins before bob does
	if err := SetWins(ctx, alice, "alice", 3); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := SetWins(ctx, bob, "bob", 3); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := SetWins(ctx, carol, "carol", 5); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	entries, err := GetLeaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("leaderboard failed: %v", err)
	}
	want := []snowflake.ID{carol, alice, bob}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i, id := range want {
		if entries[i].UserID != id {
			t.Fatalf("entries[%d] = %s, want %s", i, entries[i].UserID, id)
		}
	}

	for i, id := range want {
		rank, err := GetRank(ctx, id)
		if err != nil {
			t.Fatalf("rank failed: %v", err)
		}
		if rank != i+1 {
			t.Fatalf("rank of %s = %d, want %d", id, rank, i+1)
		}
	}

	// Someone not on the board has no rank
	if rank, err := GetRank(ctx, snowflake.ID(999)); err != nil || rank != 0 {
		t.Fatalf("absent rank = (%d, %v), want (0, nil)", rank, err)
	}

	if count, _ := GetLeaderboardCount(ctx); count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
}

func TestLeaderboardTopNLimit(t *testing.T) {
	ctx := setupTestDB(t)

	for i := 1; i <= 5; i++ {
		if err := SetWins(ctx, snowflake.ID(i), "member", i); err != nil {
			t.Fatalf("set failed: %v", err)
		}
	}

	entries, err := GetLeaderboard(ctx, 2)
	if err != nil {
		t.Fatalf("leaderboard failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Wins != 5 || entries[1].Wins != 4 {
		t.Fatalf("top 2 = %d, %d wins, want 5, 4", entries[0].Wins, entries[1].Wins)
	}
}

func TestMemberCacheRoundTrip(t *testing.T) {
	ctx := setupTestDB(t)

	m := &CachedMember{
		UserID:      snowflake.ID(100),
		Username:    "alice",
		DisplayName: "Alice",
		Nick:        "Al",
		JoinedAt:    time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:   time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Roles:       []string{"Moderator", "Regular"},
		IsBot:       false,
	}
	if err := UpsertCachedMember(ctx, m); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, err := GetCachedMember(ctx, m.UserID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected a cached member")
	}
	if got.Username != "alice" || got.Nick != "Al" || got.IsBot {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if len(got.Roles) != 2 || got.Roles[0] != "Moderator" {
		t.Fatalf("roles = %v", got.Roles)
	}
	if got.CachedAt.IsZero() {
		t.Fatal("cached_at should be populated")
	}

	// Updating overwrites in place
	m.Nick = ""
	m.Roles = nil
	if err := UpsertCachedMember(ctx, m); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	got, _ = GetCachedMember(ctx, m.UserID)
	if got.Nick != "" || len(got.Roles) != 0 {
		t.Fatalf("update not applied: %+v", got)
	}

	if err := RemoveCachedMember(ctx, m.UserID); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if got, _ := GetCachedMember(ctx, m.UserID); got != nil {
		t.Fatal("member should be gone")
	}
}

func TestSearchCachedMembers(t *testing.T) {
	ctx := setupTestDB(t)

	members := []*CachedMember{
		{UserID: 1, Username: "alice", DisplayName: "Alice", Nick: "Al"},
		{UserID: 2, Username: "bob", DisplayName: "Bobby", Nick: ""},
		{UserID: 3, Username: "carol", DisplayName: "Carol", Nick: "ally"},
	}
	for _, m := range members {
		if err := UpsertCachedMember(ctx, m); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}

	// Case-insensitive, matches username, display name and nick
	results, err := SearchCachedMembers(ctx, "AL")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (alice by name, carol by nick)", len(results))
	}

	results, _ = SearchCachedMembers(ctx, "bobb")
	if len(results) != 1 || results[0].UserID != 2 {
		t.Fatalf("expected just bob, got %d results", len(results))
	}

	results, _ = SearchCachedMembers(ctx, "zzz")
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestGetCachedMembersByRole(t *testing.T) {
	ctx := setupTestDB(t)

	if err := UpsertCachedMember(ctx, &CachedMember{UserID: 1, Username: "a", DisplayName: "a", Roles: []string{"Moderator"}}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := UpsertCachedMember(ctx, &CachedMember{UserID: 2, Username: "b", DisplayName: "b", Roles: []string{"Regular"}}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	results, err := GetCachedMembersByRole(ctx, "Moderator")
	if err != nil {
		t.Fatalf("by-role failed: %v", err)
	}
	if len(results) != 1 || results[0].UserID != 1 {
		t.Fatalf("unexpected results: %v", results)
	}
}

func TestMemberCacheInfo(t *testing.T) {
	ctx := setupTestDB(t)

	info, err := GetMemberCacheInfo(ctx)
	if err != nil {
		t.Fatalf("info failed: %v", err)
	}
	if info.Count != 0 || !info.LastUpdated.IsZero() {
		t.Fatalf("empty cache info = %+v", info)
	}

	if err := UpsertCachedMember(ctx, &CachedMember{UserID: 1, Username: "a", DisplayName: "a"}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	info, _ = GetMemberCacheInfo(ctx)
	if info.Count != 1 || info.LastUpdated.IsZero() {
		t.Fatalf("cache info = %+v", info)
	}

	if err := ClearMemberCache(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	info, _ = GetMemberCacheInfo(ctx)
	if info.Count != 0 {
		t.Fatalf("count after clear = %d", info.Count)
	}
}
