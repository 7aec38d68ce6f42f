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

// Package db holds the connection contracts shared by the store backends.
// The SQL contracts are expressed over bob executors; HealthManager and
// Backend are implemented by every backend, SQL or not.
package db

import (
	"context"
	"time"

	"github.com/stephenafamo/bob"
)

type (
	TxFn func(ctx context.Context, q Querier) error

	// Querier is satisfied by both bob.DB and bob.Tx.
	Querier interface {
		bob.Executor
	}

	HealthManager interface {
		HealthCheck() error
	}

	// Backend is the lifecycle main manages for the selected profile store.
	Backend interface {
		HealthManager

		// Shutdown attempts to gracefully close all underlying connections.
		Shutdown(context.Context) error
	}

	// ConnectionPool is an OLTP SQL connection pool with read replicas.
	ConnectionPool interface {
		Backend
		ConnectionManager
		MigrationManager
		TxManager
	}

	// ConnectionManager routes reads to replicas whenever possible.
	ConnectionManager interface {
		// Writer returns a connection to the primary.
		Writer() Querier

		ReaderConnectionManager
	}

	ReaderConnectionManager interface {
		// Reader returns a replica connection, falling back to the
		// primary when no replica is configured.
		Reader() Querier
	}

	MigrationManager interface {
		// GenerateMigration writes a new, empty migration file named after name.
		GenerateMigration(name string) error
		MigrateUp() error
		// MigrateDown rolls back the latest migration only.
		MigrateDown() error
	}

	TxManager interface {
		WithTx(ctx context.Context, fn TxFn) error
		WithTimeoutTx(ctx context.Context, timeout time.Duration, fn TxFn) error
	}
)
