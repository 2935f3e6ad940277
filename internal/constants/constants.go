package constants

import "time"

// Centralized constants for env keys, store paths and game tuning.
const (
	// Environment variable keys
	EnvConfigPath = "ARENA_CONFIG"
	EnvDBPath     = "ARENA_DB"
	EnvAddr       = "ARENA_ADDR"

	// Defaults for local development
	DefaultConfigPath = "./arena_config.json"
	DefaultDBPath     = "./data/arena.db"
	DefaultAddr       = ":8080"
)

// Battle tuning. The turn timeout is expressed as countdown ticks; the tick
// interval is configurable so tests can run the countdown quickly.
const (
	MaxTeamSize      = 3
	MaxMoves         = 4
	TurnTimeoutTicks = 30
	TickInterval     = time.Second
	LogRevealDelay   = 600 * time.Millisecond
)

// Matchmaking tuning. Queue entries older than the TTL are swept by the
// relay so an abandoned client cannot clog pairing.
const (
	QueueTTL           = 2 * time.Minute
	QueueSweepInterval = 30 * time.Second
)

// XP thresholds for unlocking and evolving creatures.
const (
	Stage1Threshold = 100
	Stage2Threshold = 500
	Stage3Threshold = 1000
)

// Top-level segments of the path-addressed shared store.
const (
	PathQueue   = "queue"
	PathBattles = "battles"
)

// Battle document fields written individually by clients.
const (
	FieldPlayer1Action   = "player1_action"
	FieldPlayer2Action   = "player2_action"
	FieldPlayer2TeamJSON = "player2_team_json"
)

// SnapshotSchemaVersion is bumped whenever the battle wire shape changes.
// Clients ignore snapshots with a higher version than they understand.
const SnapshotSchemaVersion = 1

// Routes served by arenad.
const (
	RouteHealth      = "/healthz"
	RouteWS          = "/ws"
	RouteAPIPrefix   = "/api"
	RouteSpecies     = "/species"
	RouteLeaderboard = "/leaderboard"
	RouteQueue       = "/queue"
)

// Common JSON response keys.
const (
	JSONKeyError   = "error"
	JSONKeyMessage = "message"
	JSONKeyStatus  = "status"
	JSONKeyVersion = "version"
)

// Common error messages used across HTTP handlers.
const (
	ErrFailedFetchLeaderboard = "Failed to fetch leaderboard"
	ErrFailedFetchQueue       = "Failed to fetch queue"
	ErrFailedUpgrade          = "Failed to upgrade connection"
)

// Logging field names.
const (
	LogFieldAddr     = "addr"
	LogFieldBattleID = "battle_id"
	LogFieldPlayerID = "player_id"
	LogFieldPath     = "path"
	LogFieldTurn     = "turn"
	LogFieldWinner   = "winner"
)
