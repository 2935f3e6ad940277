package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/crittermon/arena/internal/config"
	"github.com/crittermon/arena/internal/constants"
	"github.com/crittermon/arena/internal/game"
	"github.com/crittermon/arena/internal/logging"
	"github.com/crittermon/arena/internal/relay"
	"github.com/crittermon/arena/internal/storage"
)

func main() {
	// The configuration file is optional: without one the built-in species
	// table and default tuning apply. Path may be provided via ARENA_CONFIG
	// or defaults to ./arena_config.json in the current working directory.
	configPath := os.Getenv(constants.EnvConfigPath)
	if configPath == "" {
		configPath = constants.DefaultConfigPath
	}
	species := game.DefaultSpecies()
	addr := constants.DefaultAddr
	queueTTL := constants.QueueTTL
	if cfg, err := config.LoadConfig(configPath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.Fatal("Invalid arena configuration", err, logging.Fields{"config_path": configPath})
		}
		logging.Info("No configuration file, using built-in species", logging.Fields{"config_path": configPath})
	} else {
		species = cfg.Species
		addr = cfg.ServerAddress
		queueTTL = cfg.QueueTTL
	}
	if env := os.Getenv(constants.EnvAddr); env != "" {
		addr = env
	}

	// Allow the DB path to be configured via ARENA_DB. Default to a
	// `data/` directory for local development.
	dbPath := os.Getenv(constants.EnvDBPath)
	if dbPath == "" {
		dbPath = constants.DefaultDBPath
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		logging.Fatal("Failed to create data directory", err, logging.Fields{"db_path": dbPath})
	}
	db, err := storage.OpenAndMigrate(dbPath)
	if err != nil {
		logging.Fatal("Failed to initialize database", err, nil)
	}
	repo := storage.NewSQLiteRepository(db)

	hub := relay.NewHub(repo)
	go hub.RunQueueSweeper(constants.QueueSweepInterval, queueTTL, nil)
	handler := relay.NewHandler(hub, repo, species)

	router := gin.Default()
	handler.RegisterRoutes(router)

	logging.Info("Server started", logging.Fields{constants.LogFieldAddr: addr})
	if err := router.Run(addr); err != nil {
		logging.Fatal("Failed to start server", err, nil)
	}
}
