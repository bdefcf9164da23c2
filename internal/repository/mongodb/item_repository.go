package mongodb

import (
	"context"
	"errors"
	"regexp"

	"github.com/fjod/mongomart/internal/domain"
	"github.com/fjod/mongomart/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ItemRepository struct {
	collection *mongo.Collection
}

func NewItemRepository(db *mongo.Database) *ItemRepository {
	return &ItemRepository{
		collection: db.Collection("item"),
	}
}

var _ repository.ItemRepository = (*ItemRepository)(nil)

func categoryFilter(category string) bson.M {
	if category == "" {
		return bson.M{}
	}
	return bson.M{"category": category}
}

// searchFilter matches the query literally and case-insensitively in title or description.
func searchFilter(query string) bson.M {
	if query == "" {
		return bson.M{}
	}
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	return bson.M{"$or": bson.A{
		bson.M{"title": pattern},
		bson.M{"description": pattern},
	}}
}

func (m *ItemRepository) Categories(ctx context.Context) ([]domain.Category, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$category"},
			{Key: "num", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}

	cur, err := m.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, wrapErr("failed to aggregate categories", err)
	}

	var rows []struct {
		Name string `bson:"_id"`
		Num  int    `bson:"num"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, wrapErr("failed to decode categories", err)
	}

	categories := make([]domain.Category, 0, len(rows))
	for _, r := range rows {
		categories = append(categories, domain.Category{Name: r.Name, ItemCount: r.Num})
	}
	return categories, nil
}

func (m *ItemRepository) find(ctx context.Context, filter bson.M, offset, limit int) ([]domain.Item, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cur, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, wrapErr("failed to find items", err)
	}

	var docs []itemDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, wrapErr("failed to decode items", err)
	}
	return toItems(docs)
}

func (m *ItemRepository) count(ctx context.Context, filter bson.M) (int, error) {
	n, err := m.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, wrapErr("failed to count items", err)
	}
	return int(n), nil
}

func (m *ItemRepository) ListItems(ctx context.Context, category string, offset, limit int) ([]domain.Item, error) {
	return m.find(ctx, categoryFilter(category), offset, limit)
}

func (m *ItemRepository) CountItems(ctx context.Context, category string) (int, error) {
	return m.count(ctx, categoryFilter(category))
}

func (m *ItemRepository) SearchItems(ctx context.Context, query string, offset, limit int) ([]domain.Item, error) {
	return m.find(ctx, searchFilter(query), offset, limit)
}

func (m *ItemRepository) CountSearchItems(ctx context.Context, query string) (int, error) {
	return m.count(ctx, searchFilter(query))
}

func (m *ItemRepository) GetItem(ctx context.Context, id int64) (*domain.Item, error) {
	var doc itemDocument
	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrItemNotFound
		}
		return nil, wrapErr("failed to get item", err)
	}

	item, err := doc.toDomain()
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (m *ItemRepository) RelatedItems(ctx context.Context, excludeID int64, limit int) ([]domain.Item, error) {
	return m.find(ctx, bson.M{"_id": bson.M{"$ne": excludeID}}, 0, limit)
}

func (m *ItemRepository) AddReview(ctx context.Context, itemID int64, review domain.Review) (*domain.Item, error) {
	update := bson.M{
		"$push": bson.M{"reviews": reviewDocument{
			Author:    review.Author,
			Stars:     review.Stars,
			Text:      review.Text,
			CreatedAt: review.CreatedAt,
		}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc itemDocument
	err := m.collection.FindOneAndUpdate(ctx, bson.M{"_id": itemID}, update, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrItemNotFound
		}
		return nil, wrapErr("failed to add review", err)
	}

	item, err := doc.toDomain()
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// SaveItem inserts the item or replaces its catalog fields, leaving reviews untouched.
func (m *ItemRepository) SaveItem(ctx context.Context, item domain.Item) error {
	price, err := encodePrice(item.Price)
	if err != nil {
		return err
	}

	update := bson.M{
		"$set": bson.M{
			"title":       item.Name,
			"price":       price,
			"category":    item.Category,
			"description": item.Details,
			"img_url":     item.ImageURL,
		},
		"$setOnInsert": bson.M{"reviews": bson.A{}},
	}
	opts := options.Update().SetUpsert(true)

	if _, err := m.collection.UpdateOne(ctx, bson.M{"_id": item.ID}, update, opts); err != nil {
		return wrapErr("failed to save item", err)
	}
	return nil
}

func (m *ItemRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "_id", Value: 1}}},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return wrapErr("failed to create item indexes", err)
	}
	return nil
}
