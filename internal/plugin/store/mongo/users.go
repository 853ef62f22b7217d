package mongo

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/medb/medb/internal/model"
	registrystore "github.com/medb/medb/internal/registry/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// bucketPath is the document path of a bucket on the user record.
func bucketPath(ref model.BucketRef) string {
	if ref.Custom {
		return "newTypes." + ref.Category
	}
	return ref.Category
}

func userFilter(userID string) bson.D {
	return bson.D{{Key: "ID", Value: userID}}
}

func userNotFound(userID string) error {
	return &registrystore.NotFoundError{Resource: "user", ID: userID}
}

func usernameFilter(username string) bson.D {
	return bson.D{{Key: "username", Value: bson.Regex{Pattern: "^" + regexp.QuoteMeta(username) + "$", Options: "i"}}}
}

func (s *MongoStore) CreateUser(ctx context.Context, user *model.User) error {
	_, err := s.users().InsertOne(ctx, toUserDoc(user))
	if mongo.IsDuplicateKeyError(err) {
		return &registrystore.ConflictError{Message: "user or username already exists", Code: "user_exists"}
	}
	return storeErr("create user", err)
}

func (s *MongoStore) findUser(ctx context.Context, op string, filter bson.D, missingID string) (*model.User, error) {
	var doc userDoc
	err := s.users().FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, userNotFound(missingID)
	}
	if err != nil {
		return nil, storeErr(op, err)
	}
	return doc.toModel(), nil
}

func (s *MongoStore) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return s.findUser(ctx, "get user", userFilter(userID), userID)
}

func (s *MongoStore) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.findUser(ctx, "find user by username", usernameFilter(username), username)
}

func (s *MongoStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	n, err := s.users().CountDocuments(ctx, usernameFilter(username), options.Count().SetLimit(1))
	if err != nil {
		return false, storeErr("check username", err)
	}
	return n > 0, nil
}

func (s *MongoStore) SetUsername(ctx context.Context, userID, username string) error {
	res, err := s.users().UpdateOne(ctx, userFilter(userID), bson.D{{Key: "$set", Value: bson.D{{Key: "username", Value: username}}}})
	if mongo.IsDuplicateKeyError(err) {
		return &registrystore.ConflictError{Message: "username already taken", Code: "username_taken"}
	}
	if err != nil {
		return storeErr("set username", err)
	}
	if res.MatchedCount == 0 {
		return userNotFound(userID)
	}
	return nil
}

func (s *MongoStore) UpdateProfile(ctx context.Context, userID string, update registrystore.ProfileUpdate) (*model.User, error) {
	set := bson.D{}
	if update.IsPublicProfile != nil {
		set = append(set, bson.E{Key: "isPublicProfile", Value: *update.IsPublicProfile})
	}
	if update.SharedListsOrder != nil {
		set = append(set, bson.E{Key: "sharedListsOrder", Value: update.SharedListsOrder})
	}
	if len(set) == 0 {
		return s.GetUser(ctx, userID)
	}
	var doc userDoc
	err := s.users().FindOneAndUpdate(ctx, userFilter(userID), bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, userNotFound(userID)
	}
	if err != nil {
		return nil, storeErr("update profile", err)
	}
	return doc.toModel(), nil
}

func (s *MongoStore) TouchLastActive(ctx context.Context, userID string, at time.Time) error {
	_, err := s.users().UpdateOne(ctx, userFilter(userID), bson.D{{Key: "$set", Value: bson.D{{Key: "lastActiveAt", Value: at}}}})
	return storeErr("touch last active", err)
}

func (s *MongoStore) GetUsers(ctx context.Context, userIDs []string) ([]model.User, error) {
	out := []model.User{}
	if len(userIDs) == 0 {
		return out, nil
	}
	cur, err := s.users().Find(ctx, bson.D{{Key: "ID", Value: bson.D{{Key: "$in", Value: userIDs}}}})
	if err != nil {
		return nil, storeErr("get users", err)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storeErr("get users", err)
	}
	byID := make(map[string]*userDoc, len(docs))
	for i := range docs {
		byID[docs[i].ID] = &docs[i]
	}
	for _, id := range userIDs {
		if d, ok := byID[id]; ok {
			out = append(out, *d.toModel())
		}
	}
	return out, nil
}

// IncrementTotal is a single $inc with ReturnDocument(After); concurrent
// callers each observe a distinct total. A custom bucket must already exist
// so a create racing RemoveCategory cannot bring it back.
func (s *MongoStore) IncrementTotal(ctx context.Context, userID string, ref model.BucketRef) (int64, error) {
	path := bucketPath(ref)
	filter := userFilter(userID)
	if ref.Custom {
		filter = append(filter, bson.E{Key: path, Value: bson.D{{Key: "$exists", Value: true}}})
	}
	var doc userDoc
	err := s.users().FindOneAndUpdate(ctx,
		filter,
		bson.D{{Key: "$inc", Value: bson.D{{Key: path + ".total", Value: int64(1)}}}},
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(bson.D{{Key: "ID", Value: 1}, {Key: path, Value: 1}}),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if ref.Custom {
			return 0, &registrystore.NotFoundError{Resource: "category", ID: ref.Category}
		}
		return 0, userNotFound(userID)
	}
	if err != nil {
		return 0, storeErr("increment total", err)
	}
	b := doc.toModel().Bucket(ref)
	if b == nil {
		return 0, storeErr("increment total", errors.New("bucket missing after increment"))
	}
	return b.Total, nil
}

func (s *MongoStore) DecrementTotalIfEquals(ctx context.Context, userID string, ref model.BucketRef, expected int64) (bool, error) {
	path := bucketPath(ref) + ".total"
	res, err := s.users().UpdateOne(ctx,
		bson.D{{Key: "ID", Value: userID}, {Key: path, Value: expected}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: path, Value: int64(-1)}}}},
	)
	if err != nil {
		return false, storeErr("decrement total", err)
	}
	return res.MatchedCount == 1, nil
}

func newBucketDoc() *bucketDoc {
	return toBucketDoc(model.NewBucket())
}

func (s *MongoStore) DefineCategory(ctx context.Context, userID, name string) error {
	path := bucketPath(model.BucketRef{Category: name, Custom: true})
	res, err := s.users().UpdateOne(ctx,
		bson.D{{Key: "ID", Value: userID}, {Key: path, Value: bson.D{{Key: "$exists", Value: false}}}},
		bson.D{{Key: "$set", Value: bson.D{{Key: path, Value: newBucketDoc()}}}},
	)
	if err != nil {
		return storeErr("define category", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	if _, err := s.GetUser(ctx, userID); err != nil {
		return err
	}
	return &registrystore.ConflictError{Message: "category already exists", Code: "category_exists"}
}

func (s *MongoStore) RemoveCategory(ctx context.Context, userID, name string) error {
	path := bucketPath(model.BucketRef{Category: name, Custom: true})
	res, err := s.users().UpdateOne(ctx,
		bson.D{{Key: "ID", Value: userID}, {Key: path, Value: bson.D{{Key: "$exists", Value: true}}}},
		bson.D{{Key: "$unset", Value: bson.D{{Key: path, Value: ""}}}},
	)
	if err != nil {
		return storeErr("remove category", err)
	}
	if res.MatchedCount == 0 {
		return &registrystore.NotFoundError{Resource: "category", ID: name}
	}
	return nil
}

func (s *MongoStore) SetTierLabel(ctx context.Context, userID string, ref model.BucketRef, toDo bool, tier, label string) error {
	path := bucketPath(ref)
	filter := bson.D{{Key: "ID", Value: userID}}
	if ref.Custom {
		filter = append(filter, bson.E{Key: path, Value: bson.D{{Key: "$exists", Value: true}}})
	}
	group := "collectionTiers"
	if toDo {
		group = "todoTiers"
	}
	res, err := s.users().UpdateOne(ctx, filter,
		bson.D{{Key: "$set", Value: bson.D{{Key: path + "." + group + "." + tier, Value: label}}}})
	if err != nil {
		return storeErr("set tier label", err)
	}
	if res.MatchedCount == 0 {
		return &registrystore.NotFoundError{Resource: "category", ID: ref.Category}
	}
	return nil
}

// --- Friends ---

func (s *MongoStore) AddFriendRequest(ctx context.Context, req model.FriendRequest) error {
	push := bson.D{{Key: "$push", Value: bson.D{{Key: "friendRequests", Value: toFriendRequestDoc(req)}}}}
	for _, id := range []string{req.From, req.To} {
		res, err := s.users().UpdateOne(ctx, userFilter(id), push)
		if err != nil {
			return storeErr("add friend request", err)
		}
		if res.MatchedCount == 0 {
			return userNotFound(id)
		}
	}
	return nil
}

// ResolveFriendRequest sets the status of the pending request on both users.
// It reports false when the recipient has no such pending request.
func (s *MongoStore) ResolveFriendRequest(ctx context.Context, fromID, toID string, status model.FriendRequestStatus) (bool, error) {
	match := bson.D{{Key: "$elemMatch", Value: bson.D{
		{Key: "from", Value: fromID},
		{Key: "to", Value: toID},
		{Key: "status", Value: string(model.FriendRequestPending)},
	}}}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "friendRequests.$.status", Value: string(status)}}}}

	res, err := s.users().UpdateOne(ctx, bson.D{{Key: "ID", Value: toID}, {Key: "friendRequests", Value: match}}, update)
	if err != nil {
		return false, storeErr("resolve friend request", err)
	}
	if res.MatchedCount == 0 {
		return false, nil
	}
	if _, err := s.users().UpdateOne(ctx, bson.D{{Key: "ID", Value: fromID}, {Key: "friendRequests", Value: match}}, update); err != nil {
		return true, storeErr("resolve friend request", err)
	}
	return true, nil
}

func (s *MongoStore) AddFriendship(ctx context.Context, a, b string) error {
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		_, err := s.users().UpdateOne(ctx, userFilter(pair[0]),
			bson.D{{Key: "$addToSet", Value: bson.D{{Key: "friends", Value: pair[1]}}}})
		if err != nil {
			return storeErr("add friendship", err)
		}
	}
	return nil
}

func (s *MongoStore) RemoveFriendship(ctx context.Context, a, b string) error {
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		_, err := s.users().UpdateOne(ctx, userFilter(pair[0]),
			bson.D{{Key: "$pull", Value: bson.D{{Key: "friends", Value: pair[1]}}}})
		if err != nil {
			return storeErr("remove friendship", err)
		}
	}
	return nil
}
