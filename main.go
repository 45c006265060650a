package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"worldbank-panel/config"
	"worldbank-panel/metrics"
	"worldbank-panel/models"
	"worldbank-panel/services"
	"worldbank-panel/source/worldbank"
	"worldbank-panel/storage"
	"worldbank-panel/utils"
)

func main() {
	logger := utils.NewLogger()
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration: %v", err)
		os.Exit(1)
	}
	logger.SetLevel(utils.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = run(ctx, cfg, logger)
	stop()
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *utils.Logger) error {
	runID := uuid.New()
	m := metrics.New()

	logger.Info("=== World Bank panel pipeline starting (run %s) ===", runID)
	logger.Info("Config: %d indicators | years %d-%d | data root %s",
		len(cfg.Indicators), cfg.StartYear, cfg.EndYear, cfg.DataRoot)

	store := storage.NewCSVStore(cfg.RawDir(), cfg.CleanedDir(), cfg.FinalDir(), logger)

	// 1. Extract
	done := m.TimeStage("extract")
	client := worldbank.New(cfg, logger).WithMetrics(m)
	if err := client.ExtractAndStore(ctx, cfg.Indicators, store); err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	done()

	// 2. Clean
	done = m.TimeStage("clean")
	cleaner := services.NewCleaner(logger)
	cleaned, err := cleaner.CleanAll(cfg.Indicators, store)
	if err != nil {
		return fmt.Errorf("clean: %w", err)
	}
	for _, ci := range cleaned {
		m.ObserveClean(ci.Name, ci.RawRows, len(ci.Records))
	}
	if err := store.SaveCleaned(cleaned); err != nil {
		return fmt.Errorf("save cleaned: %w", err)
	}
	done()

	// 3. Merge
	done = m.TimeStage("merge")
	merged, err := services.NewMerger(logger).BuildMerged(cleaned)
	if err != nil {
		return fmt.Errorf("merge: %w", err)
	}
	m.ObservePanel(len(merged.Rows))
	if len(merged.Rows) == 0 {
		logger.Warn("Merged panel is empty: no country-year has data for every indicator")
	}
	if err := store.SaveDataset(merged, cfg.MergedFilename); err != nil {
		return fmt.Errorf("save merged: %w", err)
	}
	done()

	// 4. Feature engineering
	done = m.TimeStage("features")
	enriched, err := services.NewFeatureService(logger, cfg.FeatureLag).Apply(merged)
	if err != nil {
		return fmt.Errorf("features: %w", err)
	}
	if err := store.SaveDataset(enriched, cfg.EnrichedFilename); err != nil {
		return fmt.Errorf("save enriched: %w", err)
	}
	done()

	// 5. Optional sinks
	done = m.TimeStage("sinks")
	if err := writeSinks(ctx, cfg, runID, logger, enriched); err != nil {
		return err
	}
	done()

	// 6. Analysis
	insightSvc := services.NewInsightService(logger)
	insightSvc.Print(insightSvc.Generate(enriched))

	if cfg.MetricsTextfile != "" {
		if err := m.WriteTextfile(cfg.MetricsTextfile); err != nil {
			logger.Warn("Could not write metrics: %v", err)
		} else {
			logger.Info("Run metrics written to %s", cfg.MetricsTextfile)
		}
	}

	fmt.Printf("  Done. Merged → %s | Enriched → %s\n\n",
		store.DatasetPath(cfg.MergedFilename), store.DatasetPath(cfg.EnrichedFilename))
	return nil
}

func writeSinks(ctx context.Context, cfg *config.Config, runID uuid.UUID, logger *utils.Logger, enriched *models.Panel) error {
	var sinks []storage.PanelSink

	if cfg.XLSXOutputPath != "" {
		sinks = append(sinks, storage.NewXLSXWriter(cfg.XLSXOutputPath))
	}
	if cfg.PostgresEnabled {
		retry := &utils.RetryConfig{MaxAttempts: cfg.MaxRetries, BaseDelay: 2 * time.Second, Logger: logger}
		pg, err := storage.NewPostgresWriter(ctx, cfg.DSN(), runID, retry)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		sinks = append(sinks, pg)
	}

	for _, sink := range sinks {
		err := sink.WritePanel(enriched)
		closeErr := sink.Close()
		if err != nil {
			return fmt.Errorf("write %T: %w", sink, err)
		}
		if closeErr != nil {
			return fmt.Errorf("close %T: %w", sink, closeErr)
		}
		logger.Info("Enriched panel written to %T", sink)
	}
	return nil
}
