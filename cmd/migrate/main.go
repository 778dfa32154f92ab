// Package main implements the database migration utility for evolution-gateway.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/popeskul/evolution-gateway/internal/config"
	"github.com/popeskul/evolution-gateway/internal/infrastructure/migrate"
)

const (
	defaultMigrationsPath = "./migrations"
	defaultConfigPath     = "config.yaml"
)

func main() {
	var (
		migrationsPath string
		configPath     string
		steps          int
	)

	flag.StringVar(&migrationsPath, "path", defaultMigrationsPath, "Path to migrations directory")
	flag.StringVar(&configPath, "config", defaultConfigPath, "Config file used when DATABASE_URL is unset")
	flag.IntVar(&steps, "steps", 0, "Number of migrations to apply or roll back (0 means all pending for up, 1 for down)")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	args := flag.Args()
	if len(args) == 0 {
		logger.Fatal("Please specify a command: up, down, or version")
	}

	databaseURL, err := resolveDatabaseURL(configPath)
	if err != nil {
		logger.Fatal("Failed to resolve database URL", zap.Error(err))
	}

	runner := migrate.NewRunner(&migrate.Config{
		DatabaseURL:    databaseURL,
		MigrationsPath: migrationsPath,
	}, logger)

	switch command := args[0]; command {
	case "up":
		if steps > 0 {
			err = runner.Steps(steps)
		} else {
			err = runner.Run()
		}
		if err != nil {
			logger.Fatal("Failed to run migrations up", zap.Error(err))
		}
		reportVersion(runner, logger)

	case "down":
		if steps <= 0 {
			steps = 1
		}
		if err := runner.Steps(-steps); err != nil {
			logger.Fatal("Failed to run migrations down", zap.Error(err))
		}
		reportVersion(runner, logger)

	case "version":
		reportVersion(runner, logger)

	default:
		logger.Fatal("Unknown command, use 'up', 'down', or 'version'", zap.String("command", command))
	}
}

// resolveDatabaseURL prefers DATABASE_URL and falls back to the server config.
func resolveDatabaseURL(configPath string) (string, error) {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url, nil
	}
	cfg, err := config.LoadDatabaseConfig(configPath)
	if err != nil {
		return "", err
	}
	return cfg.GetDSN(), nil
}

func reportVersion(runner *migrate.Runner, logger *zap.Logger) {
	version, dirty, err := runner.Version()
	if err != nil {
		logger.Fatal("Failed to get version", zap.Error(err))
	}
	if dirty {
		logger.Warn("Database is in dirty state", zap.Uint("version", version))
		return
	}
	logger.Info("Current migration version", zap.Uint("version", version))
}
