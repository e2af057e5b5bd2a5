package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dvloznov/bookkeeper/internal/config"
	exportbq "github.com/dvloznov/bookkeeper/internal/export/bigquery"
	"github.com/dvloznov/bookkeeper/internal/logger"
)

func main() {
	var (
		envFile  = flag.String("env", "", "Path to a .env file (default: ./.env when present)")
		project  = flag.String("project", "", "GCP project ID (overrides BIGQUERY_PROJECT)")
		dataset  = flag.String("dataset", "", "BigQuery dataset ID (overrides BIGQUERY_DATASET)")
		location = flag.String("location", "EU", "Location used when the dataset has to be created")
	)
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *project != "" {
		cfg.BigQuery.Project = *project
	}
	if *dataset != "" {
		cfg.BigQuery.Dataset = *dataset
	}
	if err := cfg.Validate("BIGQUERY_PROJECT", "BIGQUERY_DATASET"); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	sink, err := exportbq.NewSink(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer sink.Close()

	log.Info().
		Str("project", cfg.BigQuery.Project).
		Str("dataset", cfg.BigQuery.Dataset).
		Msg("Ensuring export tables")

	created, err := sink.EnsureTables(ctx, *location)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure export tables")
	}

	if len(created) == 0 {
		fmt.Println("No new tables to create. Dataset is up to date.")
		return
	}
	for _, name := range created {
		log.Info().Str("table", name).Msg("Table created")
	}
	fmt.Printf("Successfully created %d table(s).\n", len(created))
}
