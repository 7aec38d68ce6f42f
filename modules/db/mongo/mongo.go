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

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"storyline/modules/db"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var _ db.Backend = (*Client)(nil)

// Client owns the driver client and the selected database.
type Client struct {
	client   *mongo.Client
	database *mongo.Database
}

// Connect dials the deployment and pings the primary to fail fast.
func Connect(ctx context.Context, cfg MongoConfig) (*Client, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo: URI must not be empty")
	}
	if cfg.Database == "" {
		return nil, errors.New("mongo: database must not be empty")
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetAppName(cfg.AppName)
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
	}

	cli, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := cli.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}

	slog.InfoContext(ctx, "mongo: connected", slog.String("database", cfg.Database))

	return &Client{client: cli, database: cli.Database(cfg.Database)}, nil
}

func (c *Client) Database() *mongo.Database {
	return c.database
}

// HealthCheck implements db.Backend.
func (c *Client) HealthCheck() error {
	ctx, stop := context.WithTimeout(context.Background(), 2*time.Second)
	defer stop()

	return c.client.Ping(ctx, readpref.Primary())
}

func (c *Client) Shutdown(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Disconnect(ctx)
}
