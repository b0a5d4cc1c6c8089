package main

import (
	"os"

	"github.com/urfave/cli/v2"

	"conversation-service/internal/config"
	"conversation-service/internal/db"
	"conversation-service/internal/observability"
)

var migrateCommand = &cli.Command{
	Name:   "migrate",
	Usage:  "Create or update the database schema",
	Action: cmdMigrate,
}

func loadConfig(ctx *cli.Context) (config.Config, error) {
	if err := config.LoadDotEnv(ctx.String("env-file")); err != nil {
		return config.Config{}, err
	}
	return config.Load(ctx.String("config"))
}

func cmdMigrate(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	logger := observability.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat, cfg.ServiceName)

	database, err := db.Connect(ctx.Context, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer database.Close()

	return db.Migrate(ctx.Context, database, logger)
}
