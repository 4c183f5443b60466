// Command migrate applies the embedded SQL schema to DATABASE_URL. It is
// idempotent: every statement is CREATE TABLE/INDEX IF NOT EXISTS or an
// existence-checked constraint addition, so it is safe to run on every
// deploy rather than tracking applied versions.
package main

import (
	"context"
	"time"

	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/config"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/dbx"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/logger"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/migrations"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg)

	pool, err := dbx.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database pool")
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := migrations.Apply(ctx, pool.DB); err != nil {
		log.Fatal().Err(err).Msg("schema migration failed")
	}
	log.Info().Msg("schema migration applied")
}
