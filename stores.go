// Copyright 2025 Nhat-Nguyen Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log/slog"

	"storyline/core/profile/adapters/persistence/memory"
	profile_mongo "storyline/core/profile/adapters/persistence/mongo"
	persistence "storyline/core/profile/adapters/persistence/pg"
	"storyline/core/profile/domain"
	"storyline/modules/appconfig"
	"storyline/modules/db"
	"storyline/modules/db/mongo"
	"storyline/modules/db/postgres"
)

// profileStore is the selected backend behind both store ports.
type profileStore struct {
	reader  domain.ProfileReadStore
	writer  domain.ProfileWriteStore
	backend db.Backend
}

func openProfileStore(ctx context.Context, cfg *appconfig.Config) (*profileStore, error) {
	switch cfg.Store.Driver {
	case appconfig.DriverPostgres:
		return openPostgresStore(ctx, cfg)
	case appconfig.DriverMongo:
		return openMongoStore(ctx, cfg)
	case appconfig.DriverMemory:
		store := memory.NewStore()
		if cfg.Store.MemorySeedFile != "" {
			if err := store.LoadSeedFile(cfg.Store.MemorySeedFile); err != nil {
				return nil, err
			}
			slog.InfoContext(ctx, "memory store seeded", slog.String("file", cfg.Store.MemorySeedFile))
		}
		return &profileStore{reader: store, writer: store, backend: store}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func openPostgresStore(ctx context.Context, cfg *appconfig.Config) (*profileStore, error) {
	connectionPool, err := postgres.New(
		ctx,
		&cfg.Postgres,
		postgres.PostgresOptions{
			WriterOptions: []postgres.PgxConfigOption{
				postgres.WithApplicationName(cfg.Otel.ServiceName),
			},
			ReaderOptions: []postgres.PgxConfigOption{
				postgres.WithApplicationName(cfg.Otel.ServiceName),
			},
			Migrations: persistence.Migrations(),
		},
	)
	if err != nil {
		return nil, err
	}

	if err := connectionPool.HealthCheck(); err != nil {
		_ = connectionPool.Shutdown(ctx)
		return nil, fmt.Errorf("database health check: %w", err)
	}

	if cfg.Postgres.AutoMigrate {
		if err := connectionPool.MigrateUp(); err != nil {
			_ = connectionPool.Shutdown(ctx)
			return nil, fmt.Errorf("migrate up: %w", err)
		}
	}

	// Initialize reader (uses runtime replica selection) and writer (uses prepared statements on primary)
	reader := persistence.NewPostgresProfileReader(connectionPool)

	writer, err := persistence.NewPostgresProfileWriter(ctx, connectionPool)
	if err != nil {
		_ = connectionPool.Shutdown(ctx)
		return nil, fmt.Errorf("profile writer: %w", err)
	}

	return &profileStore{reader: reader, writer: writer, backend: connectionPool}, nil
}

func openMongoStore(ctx context.Context, cfg *appconfig.Config) (*profileStore, error) {
	client, err := mongo.Connect(ctx, cfg.Mongo)
	if err != nil {
		return nil, err
	}

	store := profile_mongo.NewStore(client.Database(), cfg.Mongo.UseTransactions)
	if cfg.Mongo.EnsureIndexes {
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Shutdown(ctx)
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
	}

	return &profileStore{reader: store, writer: store, backend: client}, nil
}
