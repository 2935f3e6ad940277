package storage

// Repository persists player match history and serves the leaderboard.
type Repository interface {
	// UpsertProfile creates the profile if missing and refreshes the
	// display name.
	UpsertProfile(playerID, displayName string) error
	GetProfile(playerID string) (*PlayerProfile, error)
	// RecordResult books one finished battle for both participants. An
	// empty winnerID records a draw; forfeit marks the loser as having
	// conceded.
	RecordResult(winnerID, loserID string, draw, forfeit bool) error
	// GetTopPlayers returns profiles ordered by wins, then battles played.
	GetTopPlayers(limit int) ([]PlayerProfile, error)
}
