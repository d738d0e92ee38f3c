package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/tableside/internal/logger"
	postgresstore "github.com/wolfeidau/tableside/internal/store/postgres"
)

type MigrateCmd struct {
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

func (m *MigrateCmd) Validate() error {
	return m.PostgresStore.validate()
}

func (m *MigrateCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Dev)

	pool, err := postgresstore.NewPool(ctx, m.PostgresStore.poolConfig())
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	log.Info().Msg("running database migrations")
	if err := postgresstore.RunMigrations(log.WithContext(ctx), pool); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info().Msg("migrations complete")
	return nil
}
