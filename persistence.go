package access

import (
	"context"
	"database/sql"
	"io/fs"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// SetupPersistence opens the database, registers the package models, runs
// the dialect-validated migrations, and returns a ready repository manager.
func SetupPersistence(ctx context.Context, cfg persistence.Config) (*bun.DB, RepositoryManager, error) {
	db, err := sql.Open(sqliteshim.ShimName, cfg.GetServer())
	if err != nil {
		return nil, nil, err
	}

	persistence.RegisterModel((*User)(nil))
	persistence.RegisterModel((*AccessRequest)(nil))

	client, err := persistence.New(cfg, db, sqlitedialect.New())
	if err != nil {
		return nil, nil, err
	}

	migrations, err := fs.Sub(GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return nil, nil, err
	}

	client.RegisterDialectMigrations(
		migrations,
		persistence.WithDialectSourceLabel("data/sql/migrations"),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)

	if err := client.ValidateDialects(ctx); err != nil {
		return nil, nil, err
	}

	if err := client.Migrate(ctx); err != nil {
		return nil, nil, err
	}

	bunDB := client.DB()

	return bunDB, NewRepositoryManager(bunDB), nil
}
