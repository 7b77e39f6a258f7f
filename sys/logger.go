package sys

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	// Style definitions
	infoColor     = color.New(color.FgHiBlack)
	warnColor     = color.New(color.FgHiYellow)
	errorColor    = color.New(color.FgHiRed)
	fatalColor    = color.New(color.FgHiRed, color.Bold)
	databaseColor = color.New(color.FgHiBlack)
	ticketColor   = color.New(color.FgHiMagenta)
	sweeperColor  = color.New(color.FgHiMagenta)
	membersColor  = color.New(color.FgHiCyan)
	winsColor     = color.New(color.FgHiGreen)
	loaderColor   = color.New(color.FgHiBlack)

	IsSilent  = false
	LogToFile = false

	// Global default logger
	Logger *slog.Logger

	// Log file handling
	logFile *os.File
	logMu   sync.Mutex
)

func init() {
	// Initialize with a default handler immediately (Stdout only)
	InitLogger(false, false)
}

// InitLogger initializes the global structured logger
func InitLogger(silent bool, saveToFile bool) {
	logMu.Lock()
	defer logMu.Unlock()

	IsSilent = silent
	LogToFile = saveToFile
	level := slog.LevelInfo
	if strings.ToLower(os.Getenv("DEBUG")) == "true" {
		level = slog.LevelDebug
	}

	// Clean up previous file if it exists (e.g. during reload)
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	var writer io.Writer = os.Stdout
	var err error

	// Open log file if requested
	if LogToFile {
		// Determine log file name from executable name
		exePath, exeErr := os.Executable()
		logName := "olympiad.log" // Fallback
		if exeErr == nil {
			logName = filepath.Base(exePath) + ".log"
		}

		logFile, err = os.OpenFile(logName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", logName, err)
		} else {
			writer = io.MultiWriter(os.Stdout, logFile)
		}
	}

	// Force colors to be enabled even if writing to a file/pipe avoids detection
	color.NoColor = false

	handler := NewBotLogHandler(writer, &BotLogHandlerOptions{
		Silent: IsSilent,
		Level:  level,
	})
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

func SetSilentMode(silent bool) {
	InitLogger(silent, LogToFile)
}

// --- Log Functions ---

func LogInfo(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...))
}

func LogWarn(format string, v ...any) {
	slog.Warn(fmt.Sprintf(format, v...))
}

func LogError(format string, v ...any) {
	slog.Error(fmt.Sprintf(format, v...))
}

func LogFatal(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	slog.Log(context.Background(), slog.LevelError+4, msg) // Custom Fatal level
	os.Exit(1)
}

func LogDebug(format string, v ...any) {
	slog.Debug(fmt.Sprintf(format, v...))
}

func LogDatabase(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "database"))
}

func LogTicket(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "ticket"))
}

func LogSweeper(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "sweeper"))
}

func LogMembers(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "members"))
}

func LogWins(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "wins"))
}

func LogLoader(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "loader"))
}

// --- Custom Slog Handler ---

type BotLogHandlerOptions struct {
	Silent bool
	Level  slog.Leveler
}

type BotLogHandler struct {
	w    io.Writer
	opts *BotLogHandlerOptions
	mu   *sync.Mutex
}

func NewBotLogHandler(w io.Writer, opts *BotLogHandlerOptions) *BotLogHandler {
	if opts == nil {
		opts = &BotLogHandlerOptions{Level: slog.LevelInfo}
	}
	return &BotLogHandler{
		w:    w,
		opts: opts,
		mu:   &sync.Mutex{},
	}
}

func (h *BotLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.opts.Silent {
		return false
	}
	return level >= h.opts.Level.Level()
}

func (h *BotLogHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.opts.Silent {
		return nil
	}

	timeStr := time.Now().Format("15:04:05")
	var levelStr string
	var levelColor *color.Color

	switch {
	case r.Level >= slog.LevelError+4: // Fatal
		levelStr = "FATAL"
		levelColor = fatalColor
	case r.Level >= slog.LevelError:
		levelStr = "ERROR"
		levelColor = errorColor
	case r.Level >= slog.LevelWarn:
		levelStr = "WARN"
		levelColor = warnColor
	case r.Level >= slog.LevelInfo:
		levelStr = "INFO"
		levelColor = infoColor
	}

	// Extract component if present
	component := ""
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" {
			component = strings.ToUpper(a.Value.String())
			return false
		}
		return true
	})

	// Output: 15:04:05 [INFO] [COMPONENT] Message
	// Timestamp is always printed in default color.
	fmt.Fprintf(h.w, "%s", timeStr)

	if component != "" {
		// Component-specific logs: Level tag (if not INFO) is isolated, Message bleeds component color
		if levelStr != "INFO" {
			fmt.Fprintf(h.w, " %s", levelColor.Sprintf("[%s]", levelStr))
		}
		compColor := getComponentColor(component)
		fmt.Fprintf(h.w, " %s\n", compColor.Sprintf("[%s] %s", component, r.Message))
	} else {
		// General logs: Level tag color bleeds into the message
		fmt.Fprintf(h.w, " %s\n", levelColor.Sprintf("[%s] %s", levelStr, r.Message))
	}

	return nil
}

func (h *BotLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }
func (h *BotLogHandler) WithGroup(name string) slog.Handler       { return h }

func getComponentColor(name string) *color.Color {
	switch name {
	case "DATABASE":
		return databaseColor
	case "TICKET":
		return ticketColor
	case "SWEEPER":
		return sweeperColor
	case "MEMBERS":
		return membersColor
	case "WINS":
		return winsColor
	case "LOADER":
		return loaderColor
	default:
		return color.New(color.FgCyan)
	}
}

// @config
const (
	MsgConfigFailedToLoad = "Failed to load config: %v"
	MsgConfigMissingToken = "DISCORD_TOKEN is not set in .env file"
)

// @database
const (
	MsgDatabaseInitSuccess = "Database initialized successfully"
	MsgDatabaseTableError  = "Failed to create table: %w"
	MsgDatabasePragmaError = "Failed to set pragma %s: %w"
)

// @loader
const (
	MsgLoaderSyncCommands       = "Syncing commands in %s mode..."
	MsgLoaderUpToDate           = "Commands are up to date. (Hash: %s)"
	MsgLoaderProdStarting       = "Registering commands globally..."
	MsgLoaderProdFail           = "failed to register global commands: %w"
	MsgLoaderProdRegistered     = "Registered global command: %s"
	MsgLoaderDevStarting        = "Registering commands to guild: %s"
	MsgLoaderDevFail            = "Failed to register guild commands: %v"
	MsgLoaderDevRegistered      = "Registered guild command: %s"
	MsgLoaderDevGlobalClear     = "Clearing global commands..."
	MsgLoaderDevGlobalClearFail = "Failed to clear global commands: %v"
	MsgLoaderCleanup            = "Cleaning up commands from previous guild: %s"
	MsgLoaderPanicRecovered     = "Recovered from panic in handler: %v"
	MsgDaemonStarting           = "Starting..."
)

// @bot
const (
	MsgBotStarting      = "Starting %s..."
	MsgBotReady         = "%s is ready! (ID: %s) (PID: %d) (%dms)"
	MsgBotShutdown      = "Shutting down %s..."
	MsgBotKillingOld    = "Killing running instance... (PID: %d)"
	MsgBotOldTerminated = "Old instance terminated."
	MsgBotRegisterFail  = "Command registration failed: %v"
	MsgRespondError     = "Failed to respond to interaction: %v"
	MsgGenericError     = "%v"
)

// @ticket
const (
	// System logs
	MsgTicketOpened          = "Opened ticket for %s (channel %s, expires %s)"
	MsgTicketClosed          = "Closed ticket for %s (by %s)"
	MsgTicketDeleteFail      = "Failed to delete ticket channel %s: %v"
	MsgTicketNotifyFail      = "Failed to send welcome message to %s: %v"
	MsgTicketRespondError    = "Failed to respond to interaction: %v"
	MsgTicketCategoryCreated = "Created ticket category %q (%s)"
	MsgTicketTTLChanged      = "Ticket TTL set to %s by %s"
	MsgTicketToggled         = "Ticketing %s by %s"
	MsgTicketParserInitFail  = "Failed to initialize naturaltime parser: %v"

	// User-facing messages
	ErrTicketDisabledMsg    = "❌ Ticketing is currently disabled."
	ErrTicketAlreadyOpenMsg = "⚠️ You already have an open ticket."
	ErrTicketDeniedMsg      = "❌ I'm missing permission to create your ticket channel. Please contact an admin."
	ErrTicketFailedMsg      = "❌ Failed to create your ticket. Please try again later."
	ErrTicketNotFoundMsg    = "❌ No open ticket found."
	ErrTicketNotYoursMsg    = "❌ Only the ticket owner or an admin can close this ticket."
	ErrTicketTTLParseMsg    = "❌ Could not parse that duration. Try '2 days', '36h' or 'in 1 week'."
	ErrTicketTTLPastMsg     = "❌ The TTL must be a positive duration."
	MsgTicketClosingMsg     = "🧹 Closing ticket..."
	MsgTicketClosedMsg      = "✅ Ticket closed."
)

// @sweeper
const (
	MsgSweeperPass     = "Expired %d ticket(s)"
	MsgSweeperPassFail = "Sweep pass finished with %d deletion error(s)"
	MsgSweeperStopped  = "Stopped."
)

// @members
const (
	MsgMembersCached     = "Cached %d members from guild %s"
	MsgMembersCacheFail  = "Failed to cache members for guild %s: %v"
	MsgMembersUpdateFail = "Failed to update cached member %s: %v"
	MsgMembersRemoveFail = "Failed to remove cached member %s: %v"
	MsgMembersExportFail = "Failed to export member cache: %v"

	ErrMembersNotFound   = "❌ Member not found."
	ErrMembersNoResults  = "No members found."
	ErrMembersCacheFail  = "❌ Failed to cache members."
	ErrMembersLookupFail = "❌ Failed to look up member."
)

// @leaderboard
const (
	MsgLeaderboardDBFail     = "Leaderboard query failed: %v"
	MsgLeaderboardExportFail = "Failed to export leaderboard: %v"
	MsgLeaderboardSynced     = "Seeded %d guild members into the leaderboard"

	ErrLeaderboardEmpty     = "Leaderboard is empty."
	ErrLeaderboardFail      = "❌ Failed to fetch leaderboard."
	ErrLeaderboardWinsFloor = "❌ Wins cannot go below 0."
)
