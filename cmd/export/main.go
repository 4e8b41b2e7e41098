package main

import (
	"context"
	"flag"

	"github.com/joho/godotenv"

	"github.com/avoronov/billfold/internal/config"
	"github.com/avoronov/billfold/internal/logger"
	"github.com/avoronov/billfold/internal/store"
	"github.com/avoronov/billfold/internal/warehouse"
)

// Batch-loads ledger transactions into the configured BigQuery table for
// offline analysis. A point-in-time copy: rerunning duplicates rows, dedupe
// belongs to the warehouse side.
func main() {
	_ = godotenv.Load()

	var userID = flag.String("user", "", "export only this user's transactions (default: every configured user)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		lg := logger.New("info")
		lg.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.New(cfg.Server.LogLevel)

	if cfg.Warehouse.Project == "" {
		log.Fatal().Msg("warehouse.project is not configured")
	}

	ctx := context.Background()

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("Failed to open database")
	}
	defer st.Close()

	exporter, err := warehouse.NewExporter(ctx, cfg.Warehouse.Project, cfg.Warehouse.Dataset, cfg.Warehouse.Table)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create exporter")
	}
	defer exporter.Close()

	if err := exporter.EnsureTable(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure warehouse table")
	}

	var userIDs []string
	if *userID != "" {
		userIDs = []string{*userID}
	} else {
		for _, u := range cfg.Users {
			userIDs = append(userIDs, u.ID)
		}
	}
	if len(userIDs) == 0 {
		log.Fatal().Msg("No users to export; pass -user or configure users")
	}

	total := 0
	for _, id := range userIDs {
		n, err := exporter.ExportUser(ctx, st, id)
		if err != nil {
			log.Fatal().Err(err).Str("user_id", id).Msg("Export failed")
		}
		log.Info().Str("user_id", id).Int("rows", n).Msg("Exported user")
		total += n
	}

	log.Info().Int("rows", total).Msg("Export complete")
}
