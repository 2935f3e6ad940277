package storage

import (
	"errors"

	"gorm.io/gorm"
)

type sqliteRepository struct {
	db *gorm.DB
}

func NewSQLiteRepository(db *gorm.DB) Repository {
	return &sqliteRepository{db: db}
}

func (r *sqliteRepository) UpsertProfile(playerID, displayName string) error {
	profile, err := r.loadOrInit(playerID)
	if err != nil {
		return err
	}
	if displayName != "" {
		profile.DisplayName = displayName
	}
	return r.db.Save(profile).Error
}

func (r *sqliteRepository) GetProfile(playerID string) (*PlayerProfile, error) {
	var profile PlayerProfile
	if err := r.db.Where("player_id = ?", playerID).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *sqliteRepository) RecordResult(winnerID, loserID string, draw, forfeit bool) error {
	// Helper to upsert and add deltas
	book := func(playerID string, wins, losses, draws, forfeits int) error {
		if playerID == "" {
			return nil
		}
		profile, err := r.loadOrInit(playerID)
		if err != nil {
			return err
		}
		profile.BattlesPlayed++
		profile.Wins += wins
		profile.Losses += losses
		profile.Draws += draws
		profile.Forfeits += forfeits
		return r.db.Save(profile).Error
	}

	if draw {
		if err := book(winnerID, 0, 0, 1, 0); err != nil {
			return err
		}
		return book(loserID, 0, 0, 1, 0)
	}
	if err := book(winnerID, 1, 0, 0, 0); err != nil {
		return err
	}
	conceded := 0
	if forfeit {
		conceded = 1
	}
	return book(loserID, 0, 1, 0, conceded)
}

func (r *sqliteRepository) GetTopPlayers(limit int) ([]PlayerProfile, error) {
	if limit <= 0 {
		limit = 10
	}
	var profiles []PlayerProfile
	if err := r.db.Model(&PlayerProfile{}).
		Order("wins DESC").
		Order("battles_played DESC").
		Limit(limit).
		Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *sqliteRepository) loadOrInit(playerID string) (*PlayerProfile, error) {
	var profile PlayerProfile
	err := r.db.Where("player_id = ?", playerID).First(&profile).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		profile = PlayerProfile{PlayerID: playerID, DisplayName: playerID}
	}
	return &profile, nil
}
