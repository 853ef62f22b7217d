package mongo

import (
	"context"
	"time"

	registrystore "github.com/medb/medb/internal/registry/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

func (s *MongoStore) CountUsers(ctx context.Context) (int64, error) {
	n, err := s.users().CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, storeErr("count users", err)
	}
	return n, nil
}

func dateFormat(p registrystore.Period) string {
	if p == registrystore.PeriodMonth {
		return "%Y-%m"
	}
	return "%Y-%m-%d"
}

// CountActivity groups users by the UTC day or month of field.
func (s *MongoStore) CountActivity(ctx context.Context, field registrystore.ActivityField, since time.Time, period registrystore.Period) ([]registrystore.PeriodCount, error) {
	path := string(field)
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: path, Value: bson.D{{Key: "$gte", Value: since}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$dateToString", Value: bson.D{
				{Key: "format", Value: dateFormat(period)},
				{Key: "date", Value: "$" + path},
			}}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
	cur, err := s.users().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, storeErr("count activity", err)
	}
	var rows []struct {
		Period string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, storeErr("count activity", err)
	}
	out := make([]registrystore.PeriodCount, 0, len(rows))
	for _, r := range rows {
		out = append(out, registrystore.PeriodCount{Period: r.Period, Count: r.Count})
	}
	return out, nil
}

// totalRecordsExpr sums the standard bucket totals and every custom one.
var totalRecordsExpr = bson.D{{Key: "$add", Value: bson.A{
	bson.D{{Key: "$ifNull", Value: bson.A{"$movies.total", 0}}},
	bson.D{{Key: "$ifNull", Value: bson.A{"$tv.total", 0}}},
	bson.D{{Key: "$ifNull", Value: bson.A{"$anime.total", 0}}},
	bson.D{{Key: "$ifNull", Value: bson.A{"$games.total", 0}}},
	bson.D{{Key: "$sum", Value: bson.D{{Key: "$map", Value: bson.D{
		{Key: "input", Value: bson.D{{Key: "$objectToArray", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$newTypes", bson.D{}}}}}}},
		{Key: "as", Value: "t"},
		{Key: "in", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$$t.v.total", 0}}}},
	}}}}},
}}}

func (s *MongoStore) ListUsersPage(ctx context.Context, q registrystore.AdminUserQuery) ([]registrystore.AdminUser, error) {
	sortField := q.Sort
	switch sortField {
	case "createdAt", "totalRecords":
	default:
		sortField = "lastActiveAt"
	}
	dir := -1
	if q.Asc {
		dir = 1
	}
	skip := int64(0)
	if q.Page > 1 && q.Limit > 0 {
		skip = int64((q.Page - 1) * q.Limit)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$addFields", Value: bson.D{{Key: "totalRecords", Value: totalRecordsExpr}}}},
		{{Key: "$sort", Value: bson.D{{Key: sortField, Value: dir}, {Key: "ID", Value: 1}}}},
		{{Key: "$skip", Value: skip}},
	}
	if q.Limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: int64(q.Limit)}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$project", Value: bson.D{
		{Key: "ID", Value: 1},
		{Key: "displayName", Value: 1},
		{Key: "email", Value: 1},
		{Key: "lastActiveAt", Value: 1},
		{Key: "createdAt", Value: 1},
		{Key: "totalRecords", Value: 1},
	}}})

	cur, err := s.users().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, storeErr("list users", err)
	}
	var rows []struct {
		ID           string     `bson:"ID"`
		DisplayName  string     `bson:"displayName"`
		Email        string     `bson:"email"`
		LastActiveAt *time.Time `bson:"lastActiveAt"`
		CreatedAt    time.Time  `bson:"createdAt"`
		TotalRecords int64      `bson:"totalRecords"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, storeErr("list users", err)
	}
	out := make([]registrystore.AdminUser, 0, len(rows))
	for _, r := range rows {
		out = append(out, registrystore.AdminUser{
			ID:           r.ID,
			DisplayName:  r.DisplayName,
			Email:        r.Email,
			LastActiveAt: r.LastActiveAt,
			CreatedAt:    r.CreatedAt,
			TotalRecords: r.TotalRecords,
		})
	}
	return out, nil
}
