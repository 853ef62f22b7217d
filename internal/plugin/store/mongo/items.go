package mongo

import (
	"context"
	"errors"
	"strconv"

	"github.com/medb/medb/internal/model"
	registrystore "github.com/medb/medb/internal/registry/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var displaySort = bson.D{
	{Key: "tier", Value: 1},
	{Key: "orderIndex", Value: 1},
	{Key: "title", Value: 1},
	{Key: "ID", Value: 1},
}

func itemFilter(userID, category string, id int64) bson.D {
	return bson.D{{Key: "userID", Value: userID}, {Key: "mediaType", Value: category}, {Key: "ID", Value: id}}
}

func listFilter(key model.ListKey) bson.D {
	return bson.D{
		{Key: "userID", Value: key.UserID},
		{Key: "mediaType", Value: key.Category},
		{Key: "toDo", Value: key.ToDo},
		{Key: "tier", Value: key.Tier},
	}
}

func itemNotFound(category string, id int64) error {
	return &registrystore.NotFoundError{Resource: "media", ID: category + "/" + strconv.FormatInt(id, 10)}
}

func (s *MongoStore) InsertItem(ctx context.Context, item *model.Item) error {
	_, err := s.media().InsertOne(ctx, toMediaDoc(item))
	if mongo.IsDuplicateKeyError(err) {
		return &registrystore.ConflictError{Message: "item already exists", Code: "item_exists"}
	}
	return storeErr("insert item", err)
}

func (s *MongoStore) GetItem(ctx context.Context, userID, category string, id int64) (*model.Item, error) {
	var doc mediaDoc
	err := s.media().FindOne(ctx, itemFilter(userID, category, id)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, itemNotFound(category, id)
	}
	if err != nil {
		return nil, storeErr("get item", err)
	}
	return doc.toModel(), nil
}

func (s *MongoStore) ListItems(ctx context.Context, q registrystore.ItemQuery) ([]model.Item, error) {
	filter := bson.D{{Key: "userID", Value: q.UserID}}
	if q.Category != "" {
		filter = append(filter, bson.E{Key: "mediaType", Value: q.Category})
	}
	if q.ToDo != nil {
		filter = append(filter, bson.E{Key: "toDo", Value: *q.ToDo})
	}
	cur, err := s.media().Find(ctx, filter, options.Find().SetSort(displaySort))
	if err != nil {
		return nil, storeErr("list items", err)
	}
	var docs []mediaDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storeErr("list items", err)
	}
	out := make([]model.Item, 0, len(docs))
	for i := range docs {
		out = append(out, *docs[i].toModel())
	}
	return out, nil
}

func (s *MongoStore) MaxOrderIndex(ctx context.Context, key model.ListKey) (float64, bool, error) {
	var doc struct {
		OrderIndex float64 `bson:"orderIndex"`
	}
	err := s.media().FindOne(ctx, listFilter(key),
		options.FindOne().
			SetSort(bson.D{{Key: "orderIndex", Value: -1}}).
			SetProjection(bson.D{{Key: "orderIndex", Value: 1}}),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, storeErr("find tail", err)
	}
	return doc.OrderIndex, true, nil
}

func (s *MongoStore) UpdateItem(ctx context.Context, userID, category string, id int64, u registrystore.ItemUpdate) (*model.Item, error) {
	set := bson.D{}
	unset := bson.D{}
	if u.Title != nil {
		set = append(set, bson.E{Key: "title", Value: *u.Title})
	}
	if u.Tier != nil {
		set = append(set, bson.E{Key: "tier", Value: *u.Tier})
	}
	if u.ToDo != nil {
		set = append(set, bson.E{Key: "toDo", Value: *u.ToDo})
	}
	if u.OrderIndex != nil {
		set = append(set, bson.E{Key: "orderIndex", Value: *u.OrderIndex})
	}
	if u.ClearYear {
		unset = append(unset, bson.E{Key: "year", Value: ""})
	} else if u.Year != nil {
		set = append(set, bson.E{Key: "year", Value: *u.Year})
	}
	if u.Tags != nil {
		set = append(set, bson.E{Key: "tags", Value: *u.Tags})
	}
	if u.Description != nil {
		set = append(set, bson.E{Key: "description", Value: *u.Description})
	}

	update := bson.D{}
	if len(set) > 0 {
		update = append(update, bson.E{Key: "$set", Value: set})
	}
	if len(unset) > 0 {
		update = append(update, bson.E{Key: "$unset", Value: unset})
	}
	if len(update) == 0 {
		return s.GetItem(ctx, userID, category, id)
	}

	var doc mediaDoc
	err := s.media().FindOneAndUpdate(ctx, itemFilter(userID, category, id), update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, itemNotFound(category, id)
	}
	if err != nil {
		return nil, storeErr("update item", err)
	}
	return doc.toModel(), nil
}

func (s *MongoStore) DeleteItem(ctx context.Context, userID, category string, id int64) (*model.Item, error) {
	var doc mediaDoc
	err := s.media().FindOneAndDelete(ctx, itemFilter(userID, category, id)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, itemNotFound(category, id)
	}
	if err != nil {
		return nil, storeErr("delete item", err)
	}
	return doc.toModel(), nil
}

func (s *MongoStore) DeleteCategoryItems(ctx context.Context, userID, category string) (int64, error) {
	res, err := s.media().DeleteMany(ctx, bson.D{{Key: "userID", Value: userID}, {Key: "mediaType", Value: category}})
	if err != nil {
		return 0, storeErr("delete category items", err)
	}
	return res.DeletedCount, nil
}

// SetOrderIndexes issues one unordered bulk write; ids that match nothing
// in the list are skipped.
func (s *MongoStore) SetOrderIndexes(ctx context.Context, key model.ListKey, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(ids))
	for i, id := range ids {
		filter := append(listFilter(key), bson.E{Key: "ID", Value: id})
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(filter).
			SetUpdate(bson.D{{Key: "$set", Value: bson.D{{Key: "orderIndex", Value: float64(i)}}}}))
	}
	_, err := s.media().BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	return storeErr("reorder", err)
}
