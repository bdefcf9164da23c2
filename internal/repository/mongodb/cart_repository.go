package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/mongomart/internal/domain"
	"github.com/fjod/mongomart/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// maxUpsertAttempts bounds the retries of AddItem when two writers race to
// create the same cart document.
const maxUpsertAttempts = 5

type CartRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewCartRepository(db *mongo.Database) *CartRepository {
	return &CartRepository{
		collection: db.Collection("cart"),
		now:        time.Now,
	}
}

var _ repository.CartRepository = (*CartRepository)(nil)

func (m *CartRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var doc cartDocument

	err := m.collection.FindOne(ctx, bson.M{"userId": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrCartNotFound
		}
		return nil, wrapErr("failed to get cart", err)
	}

	cart, err := doc.toDomain()
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (m *CartRepository) FindItem(ctx context.Context, userID string, itemID int64) (*domain.CartItem, error) {
	filter := bson.M{"userId": userID, "items._id": itemID}
	opts := options.FindOne().SetProjection(bson.M{"items.$": 1})

	var doc cartDocument
	err := m.collection.FindOne(ctx, filter, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrCartItemNotFound
		}
		return nil, wrapErr("failed to find cart item", err)
	}
	if len(doc.Items) == 0 {
		return nil, repository.ErrCartItemNotFound
	}

	line, err := doc.Items[0].toDomain()
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// AddItem increments the matching line in place. When no line matched it pushes
// a new one, guarded so that a line added concurrently is never duplicated, and
// upserts the cart document if it does not exist yet. A push that lost the race
// falls back to the increment on the next attempt.
func (m *CartRepository) AddItem(ctx context.Context, userID string, item domain.CartItem) error {
	line, err := newCartItemDocument(item)
	if err != nil {
		return err
	}

	for attempt := 0; attempt < maxUpsertAttempts; attempt++ {
		now := m.now()

		incremented, err := m.incrementItem(ctx, userID, item.ItemID, item.Quantity, now)
		if err != nil {
			return err
		}
		if incremented {
			return nil
		}

		filter := bson.M{
			"userId":    userID,
			"items._id": bson.M{"$ne": item.ItemID},
		}
		update := bson.M{
			"$push":        bson.M{"items": line},
			"$set":         bson.M{"updated_at": now},
			"$setOnInsert": bson.M{"created_at": now},
		}
		opts := options.Update().SetUpsert(true)

		_, err = m.collection.UpdateOne(ctx, filter, update, opts)
		if err == nil {
			return nil
		}
		// The cart exists and already holds the line, so the upsert tried to
		// insert a second document for the same user.
		if mongo.IsDuplicateKeyError(err) {
			continue
		}
		return wrapErr("failed to add item to cart", err)
	}

	return fmt.Errorf("failed to add item to cart after %d attempts", maxUpsertAttempts)
}

func (m *CartRepository) incrementItem(ctx context.Context, userID string, itemID int64, delta int, now time.Time) (bool, error) {
	filter := bson.M{"userId": userID, "items._id": itemID}
	update := bson.M{
		"$inc": bson.M{"items.$.quantity": delta},
		"$set": bson.M{"updated_at": now},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, wrapErr("failed to increment cart item", err)
	}
	return result.MatchedCount > 0, nil
}

func (m *CartRepository) UpdateItemQuantity(ctx context.Context, userID string, itemID int64, quantity int) error {
	filter := bson.M{
		"userId":    userID,
		"items._id": itemID,
	}

	update := bson.M{
		"$set": bson.M{
			"items.$[elem].quantity": quantity,
			"updated_at":             m.now(),
		},
	}

	arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"elem._id": itemID},
		},
	})

	result, err := m.collection.UpdateOne(ctx, filter, update, arrayFilters)
	if err != nil {
		return wrapErr("failed to update item quantity", err)
	}

	if result.MatchedCount == 0 {
		return repository.ErrCartItemNotFound
	}
	return nil
}

func (m *CartRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return wrapErr("failed to create cart indexes", err)
	}
	return nil
}
