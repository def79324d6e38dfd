package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// cartDoc mirrors domain.Cart for BSON storage. Prices are stored as strings
// because decimal.Decimal has no exported fields for the BSON codec to see.
type cartDoc struct {
	ID        string        `bson:"_id,omitempty"`
	UserID    string        `bson:"user_id"`
	Items     []cartItemDoc `bson:"items"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

type cartItemDoc struct {
	ProductID int64     `bson:"product_id"`
	Quantity  int       `bson:"quantity"`
	UnitPrice string    `bson:"unit_price"`
	AddedAt   time.Time `bson:"added_at"`
}

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) CartRepository {
	return &mongoRepository{
		collection: db.Collection("carts"),
	}
}

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

func (m *mongoRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var doc cartDoc

	filter := bson.M{"user_id": userID}
	err := m.collection.FindOne(ctx, filter).Decode(&doc)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return fromDoc(&doc)
}

func (m *mongoRepository) AddItem(ctx context.Context, userID string, item domain.CartItem) error {
	now := time.Now()
	item.AddedAt = now
	itemDoc := toItemDoc(item)

	filter := bson.M{"user_id": userID}

	var existing cartDoc
	err := m.collection.FindOne(ctx, filter).Decode(&existing)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			doc := cartDoc{
				UserID:    userID,
				Items:     []cartItemDoc{itemDoc},
				CreatedAt: now,
				UpdatedAt: now,
			}

			if _, err := m.collection.InsertOne(ctx, doc); err != nil {
				return fmt.Errorf("failed to create cart with item: %w", err)
			}
			return nil
		}
		return fmt.Errorf("failed to check existing cart: %w", err)
	}

	itemExists := false
	for _, existingItem := range existing.Items {
		if existingItem.ProductID == item.ProductID {
			itemExists = true
			break
		}
	}

	if itemExists {
		// The captured unit price stays as it was at first add.
		update := bson.M{
			"$set": bson.M{
				"items.$[elem].quantity": item.Quantity,
				"items.$[elem].added_at": now,
				"updated_at":             now,
			},
		}
		arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{
				bson.M{"elem.product_id": item.ProductID},
			},
		})

		if _, err := m.collection.UpdateOne(ctx, filter, update, arrayFilters); err != nil {
			return fmt.Errorf("failed to update existing item: %w", err)
		}
	} else {
		update := bson.M{
			"$push": bson.M{"items": itemDoc},
			"$set":  bson.M{"updated_at": now},
		}

		if _, err := m.collection.UpdateOne(ctx, filter, update); err != nil {
			return fmt.Errorf("failed to add new item: %w", err)
		}
	}

	return nil
}

func (m *mongoRepository) UpdateItemQuantity(ctx context.Context, userID string, productID int64, quantity int) error {
	filter := bson.M{
		"user_id":          userID,
		"items.product_id": productID,
	}

	update := bson.M{
		"$set": bson.M{
			"items.$[elem].quantity": quantity,
			"updated_at":             time.Now(),
		},
	}

	arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"elem.product_id": productID},
		},
	})

	result, err := m.collection.UpdateOne(ctx, filter, update, arrayFilters)
	if err != nil {
		return fmt.Errorf("failed to update item quantity: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (m *mongoRepository) RemoveItem(ctx context.Context, userID string, productID int64) error {
	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$pull": bson.M{
			"items": bson.M{"product_id": productID},
		},
		"$set": bson.M{"updated_at": time.Now()},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrCartNotFound
	}

	return nil
}

func (m *mongoRepository) DeleteCart(ctx context.Context, userID string) error {
	filter := bson.M{"user_id": userID}

	result, err := m.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}

	return nil
}

// CreateIndexes sets up the carts collection: one cart per user, abandoned
// carts expire after 90 days.
func CreateIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	_, err := db.Collection("carts").Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

func toItemDoc(item domain.CartItem) cartItemDoc {
	return cartItemDoc{
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		UnitPrice: item.UnitPrice.String(),
		AddedAt:   item.AddedAt,
	}
}

func fromDoc(doc *cartDoc) (*domain.Cart, error) {
	cart := &domain.Cart{
		ID:        doc.ID,
		UserID:    doc.UserID,
		Items:     make([]domain.CartItem, len(doc.Items)),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	for i, item := range doc.Items {
		price, err := decimal.NewFromString(item.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("parse stored unit price %q: %w", item.UnitPrice, err)
		}
		cart.Items[i] = domain.CartItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: price,
			AddedAt:   item.AddedAt,
		}
	}
	return cart, nil
}
