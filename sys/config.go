package sys

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Token          string
	GuildID        string
	DatabasePath   string
	OwnerIDs       []string
	Silent         bool
	TicketTTL      time.Duration
	SweepInterval  time.Duration
	TicketCategory string
}

var GlobalConfig *Config

// Validate ensures the configuration is valid and meets requirements.
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf(MsgConfigMissingToken)
	}

	// Basic Snowflake validation for GuildID if provided
	if c.GuildID != "" && (len(c.GuildID) < 17 || len(c.GuildID) > 20) {
		return fmt.Errorf("invalid GUILD_ID: must be a valid Snowflake")
	}

	if c.TicketTTL <= 0 {
		return fmt.Errorf("invalid TICKET_TTL: must be a positive duration")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("invalid TICKET_SWEEP_INTERVAL: must be a positive duration")
	}

	return nil
}

func LoadConfig() (*Config, error) {
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	token := os.Getenv("DISCORD_TOKEN")
	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		folder := "."
		if info, err := os.Stat("data"); err == nil && info.IsDir() {
			folder = "./data"
		}
		dbPath = filepath.Join(folder, GetProjectName()+".db")
	}

	silent, _ := strconv.ParseBool(os.Getenv("SILENT"))

	ownerIDsStr := os.Getenv("OWNER_IDS")
	var ownerIDs []string
	if ownerIDsStr != "" {
		ownerIDs = strings.Split(ownerIDsStr, ",")
		for i := range ownerIDs {
			ownerIDs[i] = strings.TrimSpace(ownerIDs[i])
		}
	}

	ticketTTL := 48 * time.Hour
	if s := os.Getenv("TICKET_TTL"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			ticketTTL = d
		}
	}

	sweepInterval := 10 * time.Minute
	if s := os.Getenv("TICKET_SWEEP_INTERVAL"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			sweepInterval = d
		}
	}

	ticketCategory := os.Getenv("TICKET_CATEGORY")
	if ticketCategory == "" {
		ticketCategory = "Tickets"
	}

	cfg := &Config{
		Token:          token,
		GuildID:        os.Getenv("GUILD_ID"),
		DatabasePath:   fmt.Sprintf("%s?_journal_mode=WAL&_timeout=5000", dbPath),
		OwnerIDs:       ownerIDs,
		Silent:         silent,
		TicketTTL:      ticketTTL,
		SweepInterval:  sweepInterval,
		TicketCategory: ticketCategory,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Silent {
		SetSilentMode(true)
	}

	GlobalConfig = cfg
	return cfg, nil
}

func GetProjectName() string {
	exePath, err := os.Executable()
	projectName := "bot"
	if err == nil {
		projectName = filepath.Base(exePath)
		projectName = strings.TrimSuffix(projectName, ".exe")

		if projectName == "main" || strings.HasPrefix(projectName, "go_build_") {
			if modData, err := os.ReadFile("go.mod"); err == nil {
				lines := strings.Split(string(modData), "\n")
				if len(lines) > 0 && strings.HasPrefix(lines[0], "module ") {
					parts := strings.Split(lines[0], "/")
					projectName = strings.TrimSpace(parts[len(parts)-1])
				}
			}
		}
	}
	return projectName
}
