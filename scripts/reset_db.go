package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/onchainfund/fundops/internal/config"
	"github.com/onchainfund/fundops/internal/logger"
	"github.com/onchainfund/fundops/internal/state"
	"github.com/rs/zerolog/log"
)

func main() {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logger.Initialize(logLevel)
	log.Info().Msg("Starting database reset script...")

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found or error loading .env file. Relying on OS environment variables.")
	}

	dbCfg := config.LoadDatabaseConfig()
	if !dbCfg.Enabled() {
		log.Fatal().Msg("DB_HOST environment variable not set.")
	}

	log.Info().
		Str("host", dbCfg.Host).
		Str("port", dbCfg.Port).
		Str("user", dbCfg.User).
		Str("dbname", dbCfg.Name).
		Msg("Connecting to database")

	db, err := state.InitDB(dbCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database connection")
	}
	store := state.NewStore(db)
	defer store.Close()

	ctx := context.Background()

	log.Info().Strs("tables", state.Tables).Msg("Connected to database. Dropping all tables...")
	if err := store.DropAll(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to drop tables")
	}

	log.Info().Msg("Recreating database schema...")
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to recreate database schema")
	}
	log.Info().Msg("Database reset complete!")
}
