package sys

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	_ "github.com/mattn/go-sqlite3"
)

var DB *sql.DB

func InitDatabase(ctx context.Context, dataSourceName string) error {
	var err error
	DB, err = sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return err
	}

	DB.SetMaxOpenConns(5)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA cache_size=-2000;",
	}

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for _, p := range pragmas {
		if _, err := DB.ExecContext(initCtx, p); err != nil {
			return fmt.Errorf(MsgDatabasePragmaError, p, err)
		}
	}

	tx, err := DB.BeginTx(initCtx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tableQueries := []string{
		`CREATE TABLE IF NOT EXISTS leaderboard (
			user_id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			wins INTEGER NOT NULL DEFAULT 0,
			first_seen DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS members (
			user_id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			display_name TEXT NOT NULL,
			nick TEXT,
			joined_at DATETIME,
			created_at DATETIME,
			roles TEXT DEFAULT '[]',
			is_bot INTEGER DEFAULT 0,
			cached_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS bot_config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, q := range tableQueries {
		if _, err := tx.ExecContext(initCtx, q); err != nil {
			return fmt.Errorf(MsgDatabaseTableError, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	LogDatabase(MsgDatabaseInitSuccess)
	return nil
}

func CloseDatabase() {
	if DB != nil {
		DB.Close()
	}
}

// BotConfig helpers are used by the loader for mode tracking and state.
func GetBotConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := DB.QueryRowContext(ctx, "SELECT value FROM bot_config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func SetBotConfig(ctx context.Context, key, value string) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO bot_config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

// --- Leaderboard ---

type LeaderboardEntry struct {
	UserID      snowflake.ID
	DisplayName string
	Wins        int
	FirstSeen   time.Time
}

// EnsureLeaderboardMember creates the row with 0 wins if it does not exist,
// refreshing the stored display name either way.
func EnsureLeaderboardMember(ctx context.Context, userID snowflake.ID, displayName string) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO leaderboard (user_id, display_name) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET display_name = excluded.display_name
	`, userID.String(), displayName)
	return err
}

func AddWin(ctx context.Context, userID snowflake.ID, displayName string) error {
	if err := EnsureLeaderboardMember(ctx, userID, displayName); err != nil {
		return err
	}
	_, err := DB.ExecContext(ctx, "UPDATE leaderboard SET wins = wins + 1 WHERE user_id = ?", userID.String())
	return err
}

// TakeWin decrements a member's wins. Returns false when the member has no
// wins to take (the count never goes below zero).
func TakeWin(ctx context.Context, userID snowflake.ID) (bool, error) {
	result, err := DB.ExecContext(ctx, "UPDATE leaderboard SET wins = wins - 1 WHERE user_id = ? AND wins > 0", userID.String())
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	return rows > 0, err
}

func SetWins(ctx context.Context, userID snowflake.ID, displayName string, wins int) error {
	if err := EnsureLeaderboardMember(ctx, userID, displayName); err != nil {
		return err
	}
	_, err := DB.ExecContext(ctx, "UPDATE leaderboard SET wins = ? WHERE user_id = ?", wins, userID.String())
	return err
}

func GetMemberStats(ctx context.Context, userID snowflake.ID) (*LeaderboardEntry, error) {
	row := DB.QueryRowContext(ctx, `
		SELECT user_id, display_name, wins, first_seen FROM leaderboard WHERE user_id = ?
	`, userID.String())

	entry, err := scanLeaderboardEntry(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return entry, err
}

// GetLeaderboard returns the top N entries sorted by wins descending. Ties are
// broken by insertion order, so the member who reached a score first ranks higher.
func GetLeaderboard(ctx context.Context, topN int) ([]*LeaderboardEntry, error) {
	rows, err := DB.QueryContext(ctx, `
		SELECT user_id, display_name, wins, first_seen
		FROM leaderboard ORDER BY wins DESC, rowid ASC LIMIT ?
	`, topN)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*LeaderboardEntry
	for rows.Next() {
		entry, err := scanLeaderboardEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// GetRank returns the 1-based rank of a member, or 0 if they are not on the
// leaderboard. Uses the same ordering as GetLeaderboard.
func GetRank(ctx context.Context, userID snowflake.ID) (int, error) {
	var rank int
	err := DB.QueryRowContext(ctx, `
		SELECT (
			SELECT COUNT(*) FROM leaderboard l
			WHERE l.wins > s.wins OR (l.wins = s.wins AND l.rowid < s.rowid)
		) + 1
		FROM leaderboard s WHERE s.user_id = ?
	`, userID.String()).Scan(&rank)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return rank, err
}

func GetLeaderboardCount(ctx context.Context) (int, error) {
	var count int
	err := DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM leaderboard").Scan(&count)
	return count, err
}

func GetAllLeaderboardEntries(ctx context.Context) ([]*LeaderboardEntry, error) {
	rows, err := DB.QueryContext(ctx, `
		SELECT user_id, display_name, wins, first_seen
		FROM leaderboard ORDER BY wins DESC, rowid ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*LeaderboardEntry
	for rows.Next() {
		entry, err := scanLeaderboardEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanLeaderboardEntry(scan func(dest ...any) error) (*LeaderboardEntry, error) {
	entry := &LeaderboardEntry{}
	var idStr string
	if err := scan(&idStr, &entry.DisplayName, &entry.Wins, &entry.FirstSeen); err != nil {
		return nil, err
	}
	entry.UserID, _ = snowflake.Parse(idStr)
	return entry, nil
}

// --- Member cache ---

type CachedMember struct {
	UserID      snowflake.ID
	Username    string
	DisplayName string
	Nick        string
	JoinedAt    time.Time
	CreatedAt   time.Time
	Roles       []string
	IsBot       bool
	CachedAt    time.Time
}

func UpsertCachedMember(ctx context.Context, m *CachedMember) error {
	rolesJSON, err := jsonAPI.MarshalToString(m.Roles)
	if err != nil {
		return err
	}
	isBot := 0
	if m.IsBot {
		isBot = 1
	}

	_, err = DB.ExecContext(ctx, `
		INSERT INTO members (user_id, username, display_name, nick, joined_at, created_at, roles, is_bot)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			username = excluded.username,
			display_name = excluded.display_name,
			nick = excluded.nick,
			joined_at = excluded.joined_at,
			created_at = excluded.created_at,
			roles = excluded.roles,
			is_bot = excluded.is_bot,
			cached_at = CURRENT_TIMESTAMP
	`, m.UserID.String(), m.Username, m.DisplayName, m.Nick, m.JoinedAt, m.CreatedAt, rolesJSON, isBot)
	return err
}

func RemoveCachedMember(ctx context.Context, userID snowflake.ID) error {
	_, err := DB.ExecContext(ctx, "DELETE FROM members WHERE user_id = ?", userID.String())
	return err
}

func GetCachedMember(ctx context.Context, userID snowflake.ID) (*CachedMember, error) {
	row := DB.QueryRowContext(ctx, `
		SELECT user_id, username, display_name, nick, joined_at, created_at, roles, is_bot, cached_at
		FROM members WHERE user_id = ?
	`, userID.String())

	m, err := scanCachedMember(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// SearchCachedMembers matches the query case-insensitively against username,
// display name and nick.
func SearchCachedMembers(ctx context.Context, query string) ([]*CachedMember, error) {
	pattern := "%" + query + "%"
	rows, err := DB.QueryContext(ctx, `
		SELECT user_id, username, display_name, nick, joined_at, created_at, roles, is_bot, cached_at
		FROM members
		WHERE username LIKE ? COLLATE NOCASE
			OR display_name LIKE ? COLLATE NOCASE
			OR nick LIKE ? COLLATE NOCASE
		ORDER BY display_name COLLATE NOCASE ASC
	`, pattern, pattern, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*CachedMember
	for rows.Next() {
		m, err := scanCachedMember(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

func GetCachedMembersByRole(ctx context.Context, roleName string) ([]*CachedMember, error) {
	all, err := GetAllCachedMembers(ctx)
	if err != nil {
		return nil, err
	}
	var results []*CachedMember
	for _, m := range all {
		for _, r := range m.Roles {
			if r == roleName {
				results = append(results, m)
				break
			}
		}
	}
	return results, nil
}

func GetAllCachedMembers(ctx context.Context) ([]*CachedMember, error) {
	rows, err := DB.QueryContext(ctx, `
		SELECT user_id, username, display_name, nick, joined_at, created_at, roles, is_bot, cached_at
		FROM members
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*CachedMember
	for rows.Next() {
		m, err := scanCachedMember(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

func ClearMemberCache(ctx context.Context) error {
	_, err := DB.ExecContext(ctx, "DELETE FROM members")
	return err
}

type MemberCacheInfo struct {
	Count       int
	LastUpdated time.Time
}

func GetMemberCacheInfo(ctx context.Context) (*MemberCacheInfo, error) {
	info := &MemberCacheInfo{}
	if err := DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM members").Scan(&info.Count); err != nil {
		return nil, err
	}

	// Aggregates lose the DATETIME decltype with go-sqlite3, read the column directly
	var last time.Time
	err := DB.QueryRowContext(ctx, "SELECT cached_at FROM members ORDER BY cached_at DESC LIMIT 1").Scan(&last)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if err == nil {
		info.LastUpdated = last
	}
	return info, nil
}

func scanCachedMember(scan func(dest ...any) error) (*CachedMember, error) {
	m := &CachedMember{}
	var idStr, rolesJSON string
	var nick sql.NullString
	var joinedAt, createdAt sql.NullTime
	var isBot int

	if err := scan(&idStr, &m.Username, &m.DisplayName, &nick, &joinedAt, &createdAt, &rolesJSON, &isBot, &m.CachedAt); err != nil {
		return nil, err
	}

	m.UserID, _ = snowflake.Parse(idStr)
	m.Nick = nick.String
	m.JoinedAt = joinedAt.Time
	m.CreatedAt = createdAt.Time
	m.IsBot = isBot == 1
	if err := jsonAPI.UnmarshalFromString(rolesJSON, &m.Roles); err != nil {
		m.Roles = nil
	}
	return m, nil
}
