// Command train fits the anomaly model bundle from historical logins.
//
// Usage:
//
//	go run ./cmd/train --csv logins.csv --out models
//	go run ./cmd/train --database-url postgres://... --limit 50000 --out models
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/pflag"

	"github.com/BradenHooton/riskgate/internal/anomaly"
	"github.com/BradenHooton/riskgate/internal/database"
	"github.com/BradenHooton/riskgate/internal/models"
	"github.com/BradenHooton/riskgate/internal/repositories"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	defaults := anomaly.DefaultTrainConfig()
	csvPath := pflag.String("csv", "", "CSV export of feature vectors")
	dbURL := pflag.StringP("database-url", "d", os.Getenv("DATABASE_URL"), "read successful logins from this database instead of a CSV")
	limit := pflag.Int("limit", 50000, "maximum rows read from the database")
	out := pflag.StringP("out", "o", getEnv("MODEL_DIR", "models"), "directory the bundle is written to")
	trees := pflag.Int("trees", defaults.Trees, "number of isolation trees")
	maxSamples := pflag.Int("max-samples", defaults.MaxSamples, "sub-sample size per tree")
	contamination := pflag.Float64("contamination", defaults.Contamination, "expected share of anomalies in the training data")
	seed := pflag.Uint64("seed", defaults.Seed, "random seed")
	version := pflag.String("version", "", "bundle version (defaults to the training timestamp)")
	pflag.Parse()

	ctx := context.Background()
	rows, err := loadRows(ctx, *csvPath, *dbURL, *limit, logger)
	if err != nil {
		logger.Error("failed to load training data", slog.Any("error", err))
		os.Exit(1)
	}

	cfg := anomaly.TrainConfig{
		Trees:         *trees,
		MaxSamples:    *maxSamples,
		Contamination: *contamination,
		Seed:          *seed,
		Version:       *version,
	}
	bundle, err := anomaly.Train(rows, models.FeatureNames, cfg, time.Now())
	if err != nil {
		logger.Error("training failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := bundle.Save(*out); err != nil {
		logger.Error("failed to write bundle", slog.Any("error", err))
		os.Exit(1)
	}

	th := bundle.Stats.Thresholds()
	logger.Info("model trained",
		slog.String("version", bundle.Version),
		slog.Int("samples", len(rows)),
		slog.String("dir", *out),
		slog.Float64("low_min", th.LowMin),
		slog.Float64("medium_min", th.MediumMin),
		slog.Float64("high_min", th.HighMin),
	)
}

func loadRows(ctx context.Context, csvPath, dbURL string, limit int, logger *slog.Logger) ([][]float64, error) {
	if csvPath != "" {
		f, err := os.Open(csvPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return readCSV(f, models.FeatureNames)
	}
	if dbURL == "" {
		return nil, fmt.Errorf("one of --csv or --database-url is required")
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	db := database.NewFromPool(pool, logger)
	defer db.Close()

	vecs, err := repositories.NewPostgresStore(db).Attempts().ListTrainingFeatures(ctx, limit)
	if err != nil {
		return nil, err
	}
	return vectorsToRows(vecs), nil
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}
