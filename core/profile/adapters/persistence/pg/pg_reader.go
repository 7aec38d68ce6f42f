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

package pg

import (
	"context"
	"log/slog"

	"storyline/core/profile/domain"
	"storyline/modules/db"

	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/scan"
)

var _ domain.ProfileReadStore = (*PostgresProfileReader)(nil)

type PostgresProfileReader struct {
	pool db.ReaderConnectionManager // calls Reader() at runtime
}

// NewPostgresProfileReader creates a reader that picks a replica per query.
//
// Reads use dynamic queries rather than prepared statements so that every
// call can land on a different replica.
func NewPostgresProfileReader(pool db.ReaderConnectionManager) *PostgresProfileReader {
	return &PostgresProfileReader{pool: pool}
}

func (r *PostgresProfileReader) GetProfileByUsername(ctx context.Context, username string) (*domain.Profile, error) {
	query := psql.Select(
		sm.Columns(profileColumns...),
		sm.From(profilesTable),
		sm.Where(psql.Quote("username").EQ(psql.Arg(username))),
	)

	row, err := bob.One(ctx, r.pool.Reader(), query, scan.StructMapper[ProfileRow]())
	if err != nil {
		return nil, wrapProfileError(err)
	}
	p := toProfile(row)
	return &p, nil
}

func (r *PostgresProfileReader) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	query := psql.Select(
		sm.Columns(profileColumns...),
		sm.From(profilesTable),
		sm.OrderBy("date_joined").Asc(),
		sm.OrderBy("username").Asc(),
	)

	profiles, err := bob.Allx[profileTransformer](ctx, r.pool.Reader(), query, scan.StructMapper[ProfileRow]())
	if err != nil {
		slog.ErrorContext(ctx, "ListProfiles query error", slog.Any("err", err))
		return nil, wrapProfileError(err)
	}
	return profiles, nil
}

func (r *PostgresProfileReader) AccountExists(ctx context.Context, username string) (bool, error) {
	query := psql.Select(
		sm.Columns("COUNT(*)"),
		sm.From(accountsTable),
		sm.Where(psql.Quote("username").EQ(psql.Arg(username))),
	)

	count, err := bob.One(ctx, r.pool.Reader(), query, scan.SingleColumnMapper[int])
	if err != nil {
		return false, wrapProfileError(err)
	}
	return count > 0, nil
}
