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

package postgres

import (
	"fmt"

	"github.com/amacneil/dbmate/v2/pkg/dbmate"
	_ "github.com/amacneil/dbmate/v2/pkg/driver/postgres"
)

// MigrateUp implements db.ConnectionPool.
func (p *PostgresConnectionPool) MigrateUp() error {
	if err := p.migrator().Migrate(); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// MigrateDown implements db.ConnectionPool. It rolls back the latest migration only.
func (p *PostgresConnectionPool) MigrateDown() error {
	if err := p.migrator().Rollback(); err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// GenerateMigration implements db.ConnectionPool.
//
// New files always land on disk under the configured migrations dir,
// never in the embedded filesystem.
func (p *PostgresConnectionPool) GenerateMigration(name string) error {
	m := dbmate.New(p.migrationURL)
	m.AutoDumpSchema = false
	m.MigrationsDir = []string{p.migrationsDir}

	if err := m.NewMigration(name); err != nil {
		return fmt.Errorf("generate migration %q: %w", name, err)
	}
	return nil
}

func (p *PostgresConnectionPool) migrator() *dbmate.DB {
	m := dbmate.New(p.migrationURL)
	m.AutoDumpSchema = false

	if p.migrations != nil {
		m.FS = p.migrations
		m.MigrationsDir = []string{"."}
	} else {
		m.MigrationsDir = []string{p.migrationsDir}
	}
	return m
}
