package mongo

import (
	"context"
	"errors"

	"github.com/medb/medb/internal/model"
	registrystore "github.com/medb/medb/internal/registry/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func shareFilter(userID, category string) bson.D {
	return bson.D{{Key: "userID", Value: userID}, {Key: "mediaType", Value: category}}
}

// UpsertShareLink updates the config of the existing link for the category,
// keeping its token, or inserts link when there is none.
func (s *MongoStore) UpsertShareLink(ctx context.Context, link *model.ShareLink) (*model.ShareLink, bool, error) {
	cfg := shareConfigDoc{Collection: link.ShareConfig.Collection, Todo: link.ShareConfig.Todo}
	for attempt := 0; attempt < 2; attempt++ {
		var existing shareDoc
		err := s.shares().FindOneAndUpdate(ctx, shareFilter(link.UserID, link.Category),
			bson.D{{Key: "$set", Value: bson.D{{Key: "shareConfig", Value: cfg}}}},
			options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&existing)
		if err == nil {
			return existing.toModel(), true, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, storeErr("update share link", err)
		}

		doc := shareDoc{
			Token:       link.Token,
			UserID:      link.UserID,
			Category:    link.Category,
			ShareConfig: cfg,
			CreatedAt:   link.CreatedAt,
		}
		_, err = s.shares().InsertOne(ctx, doc)
		if err == nil {
			return doc.toModel(), false, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return nil, false, storeErr("insert share link", err)
		}
		// Either a concurrent create for the same category won, in which case
		// the next pass updates it, or the token collided.
		if n, _ := s.shares().CountDocuments(ctx, shareFilter(link.UserID, link.Category)); n == 0 {
			return nil, false, &registrystore.ConflictError{Message: "share token collision", Code: "token_exists"}
		}
	}
	return nil, false, &registrystore.ConflictError{Message: "share link changed concurrently", Code: "share_conflict"}
}

func (s *MongoStore) findShare(ctx context.Context, filter bson.D, id string) (*model.ShareLink, error) {
	var doc shareDoc
	err := s.shares().FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &registrystore.NotFoundError{Resource: "share link", ID: id}
	}
	if err != nil {
		return nil, storeErr("get share link", err)
	}
	return doc.toModel(), nil
}

func (s *MongoStore) GetShareLink(ctx context.Context, userID, category string) (*model.ShareLink, error) {
	return s.findShare(ctx, shareFilter(userID, category), category)
}

func (s *MongoStore) GetShareLinkByToken(ctx context.Context, token string) (*model.ShareLink, error) {
	return s.findShare(ctx, bson.D{{Key: "token", Value: token}}, token)
}

func (s *MongoStore) DeleteShareLink(ctx context.Context, userID, category string) error {
	_, err := s.shares().DeleteMany(ctx, shareFilter(userID, category))
	return storeErr("delete share link", err)
}

func (s *MongoStore) ListShareLinks(ctx context.Context, userID string) ([]model.ShareLink, error) {
	cur, err := s.shares().Find(ctx, bson.D{{Key: "userID", Value: userID}},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, storeErr("list share links", err)
	}
	var docs []shareDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storeErr("list share links", err)
	}
	out := make([]model.ShareLink, 0, len(docs))
	for i := range docs {
		out = append(out, *docs[i].toModel())
	}
	return out, nil
}
