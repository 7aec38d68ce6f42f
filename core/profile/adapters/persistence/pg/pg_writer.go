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
	"fmt"
	"time"

	"storyline/core/profile/domain"
	"storyline/modules/db"

	"github.com/gofrs/uuid/v5"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dm"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/um"
	"github.com/stephenafamo/scan"
)

var _ domain.ProfileWriteStore = (*PostgresProfileWriter)(nil)

// PrimaryPool is the part of the postgres pool the writer needs.
type PrimaryPool interface {
	db.TxManager
	Primary() *bob.DB
}

type (
	PostgresProfileWriter struct {
		txm db.TxManager

		deleteStmt        bob.QueryStmt[usernameArgs, ProfileRow, []ProfileRow]
		insertStmt        bob.QueryStmt[ProfileRow, ProfileRow, []ProfileRow]
		renameAccountStmt bob.QueryStmt[renameArgs, string, []string]
		renameStoryStmt   bob.QueryStmt[renameArgs, uuid.UUID, []uuid.UUID]
		renameCommentStmt bob.QueryStmt[renameArgs, uuid.UUID, []uuid.UUID]
		renameReplyStmt   bob.QueryStmt[renameArgs, uuid.UUID, []uuid.UUID]
	}

	usernameArgs struct {
		Username string `db:"username"`
	}

	renameArgs struct {
		From string `db:"from"`
		To   string `db:"to"`
	}
)

// NewPostgresProfileWriter prepares the cascade statements on the primary.
// They are rebound to the transaction of every WithTx call.
func NewPostgresProfileWriter(ctx context.Context, pool PrimaryPool) (*PostgresProfileWriter, error) {
	primary := *pool.Primary()
	w := &PostgresProfileWriter{txm: pool}

	var err error

	deleteQuery := psql.Delete(
		dm.From(profilesTable),
		dm.Where(psql.Quote("username").EQ(bob.Named("username"))),
		dm.Returning(profileColumns...),
	)
	if w.deleteStmt, err = bob.PrepareQuery[usernameArgs](ctx, primary, deleteQuery, scan.StructMapper[ProfileRow]()); err != nil {
		return nil, fmt.Errorf("prepare delete profile: %w", err)
	}

	insertQuery := psql.Insert(
		im.Into(profilesTable, profileColumnNames...),
		im.Values(
			bob.Named("username"),
			bob.Named("firstname"),
			bob.Named("lastname"),
			bob.Named("bio"),
			bob.Named("profile_picture"),
			bob.Named("cover_picture"),
			bob.Named("date_joined"),
		),
		im.Returning(profileColumns...),
	)
	if w.insertStmt, err = bob.PrepareQuery[ProfileRow](ctx, primary, insertQuery, scan.StructMapper[ProfileRow]()); err != nil {
		return nil, fmt.Errorf("prepare insert profile: %w", err)
	}

	if w.renameAccountStmt, err = bob.PrepareQuery[renameArgs](ctx, primary,
		renameQuery(accountsTable, "username", "username"), scan.SingleColumnMapper[string]); err != nil {
		return nil, fmt.Errorf("prepare rename account: %w", err)
	}

	for _, s := range []struct {
		table, column string
		stmt          *bob.QueryStmt[renameArgs, uuid.UUID, []uuid.UUID]
	}{
		{storiesTable, "author", &w.renameStoryStmt},
		{commentsTable, "commenter", &w.renameCommentStmt},
		{repliesTable, "commenter", &w.renameReplyStmt},
	} {
		stmt, err := bob.PrepareQuery[renameArgs](ctx, primary, renameQuery(s.table, s.column, "id"), scan.SingleColumnMapper[uuid.UUID])
		if err != nil {
			return nil, fmt.Errorf("prepare rename %s.%s: %w", s.table, s.column, err)
		}
		*s.stmt = stmt
	}

	return w, nil
}

// UPDATE table SET column = :to WHERE column = :from RETURNING returning
func renameQuery(table, column, returning string) bob.Query {
	return psql.Update(
		um.Table(table),
		um.SetCol(column).To(bob.Named("to")),
		um.Where(psql.Quote(column).EQ(bob.Named("from"))),
		um.Returning(returning),
	)
}

// Transactional implements ProfileWriteStore; the whole cascade is one transaction.
func (w *PostgresProfileWriter) Transactional() bool { return true }

// WithTx implements ProfileWriteStore transaction support.
func (w *PostgresProfileWriter) WithTx(
	ctx context.Context,
	fn func(ctx context.Context, tx domain.ProfileWriteTx) error,
) error {
	return w.txm.WithTx(ctx, w.txFn(fn))
}

// WithTimeoutTx implements ProfileWriteStore transaction support with timeout.
func (w *PostgresProfileWriter) WithTimeoutTx(
	ctx context.Context,
	timeout time.Duration,
	fn func(ctx context.Context, tx domain.ProfileWriteTx) error,
) error {
	return w.txm.WithTimeoutTx(ctx, timeout, w.txFn(fn))
}

func (w *PostgresProfileWriter) txFn(fn func(ctx context.Context, tx domain.ProfileWriteTx) error) db.TxFn {
	return func(ctx context.Context, q db.Querier) error {
		tx, ok := q.(bob.Tx)
		if !ok {
			return fmt.Errorf("querier is not a transaction")
		}
		return fn(ctx, &profileWriterTx{parent: w, tx: tx})
	}
}

// profileWriterTx is a transaction-scoped writer that reuses prepared statements.
type profileWriterTx struct {
	parent *PostgresProfileWriter
	tx     bob.Tx
}

var _ domain.ProfileWriteTx = (*profileWriterTx)(nil)

func (t *profileWriterTx) DeleteProfile(ctx context.Context, username string) (*domain.Profile, error) {
	row, err := inTxQueryStmt(ctx, t.parent.deleteStmt, t.tx).One(ctx, usernameArgs{Username: username})
	if err != nil {
		return nil, wrapProfileError(err)
	}
	p := toProfile(row)
	return &p, nil
}

func (t *profileWriterTx) InsertProfile(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	row, err := inTxQueryStmt(ctx, t.parent.insertStmt, t.tx).One(ctx, fromProfile(p))
	if err != nil {
		return nil, wrapProfileError(err)
	}
	saved := toProfile(row)
	return &saved, nil
}

func (t *profileWriterTx) RenameAccount(ctx context.Context, from, to string) (int64, error) {
	rows, err := inTxQueryStmt(ctx, t.parent.renameAccountStmt, t.tx).All(ctx, renameArgs{From: from, To: to})
	if err != nil {
		return 0, wrapProfileError(err)
	}
	return int64(len(rows)), nil
}

func (t *profileWriterTx) RenameStoryAuthor(ctx context.Context, from, to string, only []string) ([]string, error) {
	return t.renameContent(ctx, t.parent.renameStoryStmt, storiesTable, "author", from, to, only)
}

func (t *profileWriterTx) RenameCommenter(ctx context.Context, from, to string, only []string) ([]string, error) {
	return t.renameContent(ctx, t.parent.renameCommentStmt, commentsTable, "commenter", from, to, only)
}

func (t *profileWriterTx) RenameReplyCommenter(ctx context.Context, from, to string, only []string) ([]string, error) {
	return t.renameContent(ctx, t.parent.renameReplyStmt, repliesTable, "commenter", from, to, only)
}

// ReplaceCommentLike is left unprepared: the array functions take the
// usernames twice.
func (t *profileWriterTx) ReplaceCommentLike(ctx context.Context, from, to string, only []string) ([]string, error) {
	query := psql.Update(
		um.Table(commentsTable),
		um.SetCol("likes").To(psql.Raw("array_replace(likes, ?, ?)", from, to)),
		um.Where(psql.Raw("? = ANY(likes)", from)),
		um.Returning("id"),
	)
	if only != nil {
		query.Apply(um.Where(idScope(only)))
	}
	return t.allIDs(ctx, query)
}

// renameContent runs the prepared rename, or an id-scoped one-off when only
// is set.
func (t *profileWriterTx) renameContent(
	ctx context.Context,
	stmt bob.QueryStmt[renameArgs, uuid.UUID, []uuid.UUID],
	table, column, from, to string,
	only []string,
) ([]string, error) {
	if only != nil {
		query := psql.Update(
			um.Table(table),
			um.SetCol(column).To(psql.Arg(to)),
			um.Where(psql.Quote(column).EQ(psql.Arg(from))),
			um.Where(idScope(only)),
			um.Returning("id"),
		)
		return t.allIDs(ctx, query)
	}

	ids, err := inTxQueryStmt(ctx, stmt, t.tx).All(ctx, renameArgs{From: from, To: to})
	if err != nil {
		return nil, wrapProfileError(err)
	}
	return uuidStrings(ids), nil
}

func (t *profileWriterTx) allIDs(ctx context.Context, query bob.Query) ([]string, error) {
	ids, err := bob.All(ctx, t.tx, query, scan.SingleColumnMapper[uuid.UUID])
	if err != nil {
		return nil, wrapProfileError(err)
	}
	return uuidStrings(ids), nil
}

func idScope(ids []string) bob.Expression {
	return psql.Raw("id = ANY(?::uuid[])", ids)
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
