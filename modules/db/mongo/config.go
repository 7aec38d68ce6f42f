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

package mongo

import "time"

// MongoConfig configures the document store client.
type MongoConfig struct {
	URI      string `env:"URI"      envDefault:"mongodb://localhost:27017"`
	Database string `env:"DATABASE" envDefault:"storyline"`
	AppName  string `env:"APP_NAME" envDefault:"storyline"`

	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"10s"`

	// UseTransactions runs the rename cascade in a multi-document
	// transaction. Requires a replica set or sharded cluster.
	UseTransactions bool `env:"USE_TRANSACTIONS" envDefault:"false"`

	// EnsureIndexes creates the unique and lookup indexes on startup.
	EnsureIndexes bool `env:"ENSURE_INDEXES" envDefault:"true"`
}
