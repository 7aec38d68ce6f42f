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
	"database/sql"
	"embed"
	"errors"
	"io/fs"
	"time"

	"storyline/core/profile/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stephenafamo/bob"
)

const (
	profilesTable = "profiles"
	accountsTable = "accounts"
	storiesTable  = "stories"
	commentsTable = "comments"
	repliesTable  = "replies"
)

var (
	profileColumnNames = []string{
		"username", "firstname", "lastname", "bio", "profile_picture", "cover_picture", "date_joined",
	}
	profileColumns = columns(profileColumnNames)
)

func columns(names []string) []any {
	out := make([]any, len(names))
	for i, n := range names {
		out[i] = n
	}
	return out
}

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the schema migrations in dbmate layout, rooted at the
// migrations directory.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		// the directory is embedded above
		panic(err)
	}
	return sub
}

type (
	// ProfileRow is the persistence entity shape used by storage adapters.
	ProfileRow struct {
		Username       string    `db:"username"`
		Firstname      string    `db:"firstname"`
		Lastname       string    `db:"lastname"`
		Bio            string    `db:"bio"`
		ProfilePicture string    `db:"profile_picture"`
		CoverPicture   string    `db:"cover_picture"`
		DateJoined     time.Time `db:"date_joined"`
	}
)

func toProfile(row ProfileRow) domain.Profile {
	return domain.Profile(row)
}

func fromProfile(p *domain.Profile) ProfileRow {
	return ProfileRow(*p)
}

// profileTransformer implements bob's transformer interface for automatic row to domain conversion.
type profileTransformer struct{}

func (profileTransformer) TransformScanned(rows []ProfileRow) ([]domain.Profile, error) {
	out := make([]domain.Profile, len(rows))
	for i, r := range rows {
		out[i] = toProfile(r)
	}
	return out, nil
}

// wrapProfileError centralizes mapping of DB errors to domain errors.
func wrapProfileError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrProfileNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if pgErr.TableName == accountsTable {
				return domain.ErrUsernameTaken
			}
			return domain.ErrDuplicateProfile
		}
	}

	return err
}

// inTxQueryStmt rebinds a QueryStmt to a transaction.
func inTxQueryStmt[Arg any, T any, Ts ~[]T](
	ctx context.Context,
	stmt bob.QueryStmt[Arg, T, Ts],
	tx bob.Tx,
) bob.QueryStmt[Arg, T, Ts] {
	txStmt := stmt
	txStmt.Stmt = bob.InTx(ctx, stmt.Stmt, tx)
	return txStmt
}
