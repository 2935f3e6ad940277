package storage

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// PlayerProfile is one row of persistent match history per player.
type PlayerProfile struct {
	ID            uint   `gorm:"primaryKey" json:"-"`
	PlayerID      string `gorm:"uniqueIndex" json:"player_id"`
	DisplayName   string `json:"display_name"`
	BattlesPlayed int    `json:"battles_played"`
	Wins          int    `json:"wins"`
	Losses        int    `json:"losses"`
	Draws         int    `json:"draws"`
	Forfeits      int    `json:"forfeits"`
}

// OpenAndMigrate opens the sqlite database and keeps the schema updated via
// AutoMigrate. The database file is created on first use.
func OpenAndMigrate(dataSourceName string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dataSourceName), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&PlayerProfile{}); err != nil {
		return nil, err
	}
	return db, nil
}
