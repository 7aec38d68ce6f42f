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
	"time"

	"storyline/core/profile/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	_ domain.ProfileReadStore  = (*Store)(nil)
	_ domain.ProfileWriteStore = (*Store)(nil)
	_ domain.ProfileWriteTx    = (*Store)(nil)
)

const (
	profilesCollection = "profiles"
	usersCollection    = "users"
	storiesCollection  = "stories"
	commentsCollection = "comments"
	repliesCollection  = "replies"
)

type profileDoc struct {
	Username       string    `bson:"username"`
	Firstname      string    `bson:"firstname"`
	Lastname       string    `bson:"lastname"`
	Bio            string    `bson:"bio"`
	ProfilePicture string    `bson:"profilePicture"`
	CoverPicture   string    `bson:"coverPicture"`
	DateJoined     time.Time `bson:"dateJoined"`
}

// Store keeps profiles and the collections referencing their usernames in
// one MongoDB database.
type Store struct {
	client        *mongo.Client
	transactional bool

	profiles *mongo.Collection
	users    *mongo.Collection
	stories  *mongo.Collection
	comments *mongo.Collection
	replies  *mongo.Collection
}

// NewStore uses the collections of database. With transactional set the
// cascade runs in one multi-document transaction; otherwise every write is
// applied immediately and failures are compensated by the caller.
func NewStore(database *mongo.Database, transactional bool) *Store {
	return &Store{
		client:        database.Client(),
		transactional: transactional,
		profiles:      database.Collection(profilesCollection),
		users:         database.Collection(usersCollection),
		stories:       database.Collection(storiesCollection),
		comments:      database.Collection(commentsCollection),
		replies:       database.Collection(repliesCollection),
	}
}

// EnsureIndexes creates the unique username indexes and the indexes the
// rename cascade filters on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	for _, idx := range []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{s.profiles, mongo.IndexModel{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique}},
		{s.profiles, mongo.IndexModel{Keys: bson.D{{Key: "dateJoined", Value: 1}, {Key: "username", Value: 1}}}},
		{s.users, mongo.IndexModel{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique}},
		{s.stories, mongo.IndexModel{Keys: bson.D{{Key: "author", Value: 1}}}},
		{s.comments, mongo.IndexModel{Keys: bson.D{{Key: "commenter", Value: 1}}}},
		{s.comments, mongo.IndexModel{Keys: bson.D{{Key: "likes", Value: 1}}}},
		{s.replies, mongo.IndexModel{Keys: bson.D{{Key: "commenter", Value: 1}}}},
	} {
		if _, err := idx.coll.Indexes().CreateOne(ctx, idx.model); err != nil {
			return fmt.Errorf("mongo: create index on %s: %w", idx.coll.Name(), err)
		}
	}
	return nil
}

// --- read port ---

func (s *Store) GetProfileByUsername(ctx context.Context, username string) (*domain.Profile, error) {
	var doc profileDoc
	if err := s.profiles.FindOne(ctx, bson.M{"username": username}).Decode(&doc); err != nil {
		return nil, wrapError(err)
	}
	p := domain.Profile(doc)
	return &p, nil
}

func (s *Store) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	opts := options.Find().SetSort(bson.D{{Key: "dateJoined", Value: 1}, {Key: "username", Value: 1}})
	cur, err := s.profiles.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, wrapError(err)
	}

	var docs []profileDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, wrapError(err)
	}

	out := make([]domain.Profile, len(docs))
	for i, d := range docs {
		out[i] = domain.Profile(d)
	}
	return out, nil
}

func (s *Store) AccountExists(ctx context.Context, username string) (bool, error) {
	n, err := s.users.CountDocuments(ctx, bson.M{"username": username}, options.Count().SetLimit(1))
	if err != nil {
		return false, wrapError(err)
	}
	return n > 0, nil
}

// --- write port ---

func (s *Store) Transactional() bool { return s.transactional }

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx domain.ProfileWriteTx) error) error {
	if !s.transactional {
		return fn(ctx, s)
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("mongo: start session: %w", err)
	}
	defer sess.EndSession(context.WithoutCancel(ctx))

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc, s)
	})
	return err
}

func (s *Store) WithTimeoutTx(ctx context.Context, timeout time.Duration, fn func(ctx context.Context, tx domain.ProfileWriteTx) error) error {
	ctx, stop := context.WithTimeout(ctx, timeout)
	defer stop()

	return s.WithTx(ctx, fn)
}

func (s *Store) DeleteProfile(ctx context.Context, username string) (*domain.Profile, error) {
	var doc profileDoc
	if err := s.profiles.FindOneAndDelete(ctx, bson.M{"username": username}).Decode(&doc); err != nil {
		return nil, wrapError(err)
	}
	p := domain.Profile(doc)
	return &p, nil
}

func (s *Store) InsertProfile(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	doc := profileDoc(*p)
	if _, err := s.profiles.InsertOne(ctx, doc); err != nil {
		return nil, wrapError(err)
	}
	saved := *p
	return &saved, nil
}

func (s *Store) RenameAccount(ctx context.Context, from, to string) (int64, error) {
	res, err := s.users.UpdateOne(ctx, bson.M{"username": from}, bson.M{"$set": bson.M{"username": to}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return 0, domain.ErrUsernameTaken
		}
		return 0, wrapError(err)
	}
	return res.ModifiedCount, nil
}

func (s *Store) RenameStoryAuthor(ctx context.Context, from, to string, only []string) ([]string, error) {
	return renameField(ctx, s.stories, "author", from, to, only)
}

func (s *Store) RenameCommenter(ctx context.Context, from, to string, only []string) ([]string, error) {
	return renameField(ctx, s.comments, "commenter", from, to, only)
}

func (s *Store) RenameReplyCommenter(ctx context.Context, from, to string, only []string) ([]string, error) {
	return renameField(ctx, s.replies, "commenter", from, to, only)
}

// ReplaceCommentLike rewrites the matching array elements in place through
// an array filter, so the position and the other likes stay as they are.
func (s *Store) ReplaceCommentLike(ctx context.Context, from, to string, only []string) ([]string, error) {
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []any{bson.M{"element": from}},
	})
	return updateTargeted(ctx, s.comments, "likes", from, only,
		bson.M{"$set": bson.M{"likes.$[element]": to}}, opts)
}

func renameField(ctx context.Context, coll *mongo.Collection, field, from, to string, only []string) ([]string, error) {
	return updateTargeted(ctx, coll, field, from, only, bson.M{"$set": bson.M{field: to}})
}

// updateTargeted resolves the ids of the documents whose field holds from,
// then updates exactly those. The ids are returned with a failed update too,
// since UpdateMany may have applied part of it.
func updateTargeted(ctx context.Context, coll *mongo.Collection, field, from string, only []string, update bson.M, opts ...*options.UpdateOptions) ([]string, error) {
	filter := bson.M{field: from}
	if only != nil {
		filter["_id"] = bson.M{"$in": idValues(only)}
	}
	raw, err := coll.Distinct(ctx, "_id", filter)
	if err != nil {
		return nil, wrapError(err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	ids := make([]string, len(raw))
	for i, v := range raw {
		ids[i] = idString(v)
	}
	if _, err := coll.UpdateMany(ctx, bson.M{"_id": bson.M{"$in": raw}, field: from}, update, opts...); err != nil {
		return ids, wrapError(err)
	}
	return ids, nil
}

func idString(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}

// idValues reverses idString; a hex id may be either form.
func idValues(ids []string) bson.A {
	vals := make(bson.A, 0, len(ids))
	for _, id := range ids {
		vals = append(vals, id)
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			vals = append(vals, oid)
		}
	}
	return vals
}

func wrapError(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return domain.ErrProfileNotFound
	case mongo.IsDuplicateKeyError(err):
		return domain.ErrDuplicateProfile
	default:
		return err
	}
}
