// Package main is the entry point for the sqlgate demo service.
// It wires configuration, logging, the connection provider and the
// dispatcher, then serves the notes API through them.
package main

import (
	"context"
	"log"
	"os"

	"sqlgate/src/app/server"
	"sqlgate/src/infra/config"
	"sqlgate/src/infra/logger"
	"sqlgate/src/infra/migrate"
	"sqlgate/src/infra/repo"
	"sqlgate/src/sqlgate"
)

func main() {
	if err := run(); err != nil {
		log.Printf("fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logg := logger.New(cfg.Log)
	logg.Info("starting application",
		"port", cfg.Server.Port,
		"env", cfg.Runtime.Environment,
	)

	dsn, err := cfg.Database.DSN()
	if err != nil {
		return err
	}
	if err := migrate.Up(context.Background(), dsn); err != nil {
		return err
	}

	provider := sqlgate.NewProvider(cfg.Database, logger.WithComponent(logg, "sqlgate"))
	defer provider.Reset()

	db := sqlgate.New(provider, sqlgate.Config{
		Logger:             logger.WithComponent(logg, "sqlgate"),
		LoggingEnabled:     cfg.Runtime.LoggingEnabled,
		DateStringsEnabled: cfg.Runtime.DateStringsEnabled,
		Production:         cfg.Runtime.IsProduction(),
		ForcedRollback:     cfg.Runtime.ForcedRollback,
	})

	notes := repo.NewNoteRepository(db, provider)

	srv := server.New(cfg, logg, notes)

	// Run blocks until shutdown signal is received
	return srv.Run()
}
