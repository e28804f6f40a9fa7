package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"txagg/internal/amqp"
	"txagg/internal/categorize"
	"txagg/internal/cli"
	"txagg/internal/config"
	"txagg/internal/log"
	"txagg/internal/services"
	gsheet "txagg/internal/sheets/google"
)

func main() {
	sheetsImport := flag.Bool("sheets", false, "import once from the configured Google Sheet and exit")
	staticRules := flag.Bool("static-rules", false, "categorize with the built-in keyword table instead of stored rules")
	flag.Parse()

	cfg, logger := cli.Bootstrap(log.ComponentIngest)

	ctx, stop := cli.SignalContext()
	err := run(ctx, cfg, *sheetsImport, *staticRules, logger)
	stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("txagg-ingest failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("txagg-ingest stopped")
}

func run(ctx context.Context, cfg *config.Config, sheetsImport, staticRules bool, logger *log.Logger) error {
	if err := cfg.ValidateStandaloneIngest(); err != nil {
		return err
	}

	store, closeStore, err := cli.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var engine categorize.Categorizer
	if staticRules {
		engine = categorize.NewStatic(categorize.DefaultKeywordTable(), logger)
	} else {
		engine = categorize.NewStoreCategorizer(store, cfg.RuleRefreshInterval, logger)
	}
	ingestor := services.NewIngestor(store, engine, logger)

	if sheetsImport {
		return importSheet(ctx, cfg, ingestor, logger)
	}
	return consume(ctx, cfg, ingestor, logger)
}

// importSheet reads the configured range once and ingests every parsed row.
func importSheet(ctx context.Context, cfg *config.Config, ingestor *services.Ingestor, logger *log.Logger) error {
	src, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID: cfg.GoogleSpreadsheetID,
		Range:         cfg.GoogleSheetRange,
		Source:        cfg.GoogleSheetSource,
	}, logger)
	if err != nil {
		return fmt.Errorf("google sheets: %w", err)
	}

	txs, err := src.ListTransactions(ctx)
	if err != nil {
		return err
	}
	res, err := ingestor.Ingest(ctx, txs)
	if err != nil {
		return err
	}
	logger.Info("Sheet import complete",
		log.FieldSource, cfg.GoogleSheetSource,
		"stored", res.Stored,
		"skipped", res.Skipped,
		"categorized", res.Categorized)
	return nil
}

// consume feeds ingest queue batches to the ingestor until ctx ends.
func consume(ctx context.Context, cfg *config.Config, ingestor *services.Ingestor, logger *log.Logger) error {
	if !cfg.AMQPEnabled() {
		return errors.New("AMQP_URL is required unless -sheets is given")
	}

	client, err := amqp.NewClient(cli.AMQPConfig(cfg), logger)
	if err != nil {
		return fmt.Errorf("amqp: %w", err)
	}
	defer client.Close()

	logger.Info("Consuming ingest queue", "queue", cfg.AMQPIngestQueue)
	return client.ConsumeIngest(ctx, cli.IngestHandler(ingestor, logger))
}
