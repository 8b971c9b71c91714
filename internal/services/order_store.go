package services

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AnshRaj112/storefront-backend/internal/models"
	"github.com/AnshRaj112/storefront-backend/internal/query"
)

const OrdersCollection = "orders"

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// OrderStore persists orders.
type OrderStore interface {
	Insert(ctx context.Context, o *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID, base bson.M) (*models.Order, error)
	FindByNumber(ctx context.Context, number string) (*models.Order, error)
	List(ctx context.Context, q *query.Query, base bson.M) ([]models.Order, error)
	// UpdateStatus applies set only while the order is still in status from.
	UpdateStatus(ctx context.Context, id primitive.ObjectID, from models.OrderStatus, set bson.M) (*models.Order, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// ProductSnapshot is what an order needs to know about a product.
type ProductSnapshot struct {
	ID    primitive.ObjectID `bson:"_id"`
	Title string             `bson:"title"`
	Price float64            `bson:"price"`
	Stock int                `bson:"stock"`
}

// Inventory reads sellable products and moves their stock.
type Inventory interface {
	Product(ctx context.Context, id primitive.ObjectID) (*ProductSnapshot, error)
	// Reserve takes qty units if at least qty are in stock.
	Reserve(ctx context.Context, id primitive.ObjectID, qty int) error
	Release(ctx context.Context, id primitive.ObjectID, qty int) error
}

type MongoOrderStore struct {
	col *mongo.Collection
}

func NewMongoOrderStore(db *mongo.Database) *MongoOrderStore {
	return &MongoOrderStore{col: db.Collection(OrdersCollection)}
}

func (s *MongoOrderStore) Insert(ctx context.Context, o *models.Order) error {
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	if _, err := s.col.InsertOne(ctx, o); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return err
	}
	return nil
}

func (s *MongoOrderStore) findOne(ctx context.Context, filter bson.M) (*models.Order, error) {
	var o models.Order
	err := s.col.FindOne(ctx, filter).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *MongoOrderStore) FindByID(ctx context.Context, id primitive.ObjectID, base bson.M) (*models.Order, error) {
	return s.findOne(ctx, idFilter(id, base))
}

func (s *MongoOrderStore) FindByNumber(ctx context.Context, number string) (*models.Order, error) {
	return s.findOne(ctx, bson.M{"orderNumber": number})
}

func (s *MongoOrderStore) List(ctx context.Context, q *query.Query, base bson.M) ([]models.Order, error) {
	orders := []models.Order{}
	if err := q.Find(ctx, s.col, base, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *MongoOrderStore) UpdateStatus(ctx context.Context, id primitive.ObjectID, from models.OrderStatus, set bson.M) (*models.Order, error) {
	var o models.Order
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.col.FindOneAndUpdate(ctx, bson.M{"_id": id, "status": from}, bson.M{"$set": set}, opts).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *MongoOrderStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// MongoInventory keeps stock on the product documents.
type MongoInventory struct {
	col *mongo.Collection
}

func NewMongoInventory(db *mongo.Database) *MongoInventory {
	return &MongoInventory{col: db.Collection(ProductsCollection)}
}

var snapshotProjection = bson.M{"title": 1, "price": 1, "stock": 1}

// Product loads an active product.
func (s *MongoInventory) Product(ctx context.Context, id primitive.ObjectID) (*ProductSnapshot, error) {
	var p ProductSnapshot
	filter := bson.M{"_id": id, "isActive": bson.M{"$ne": false}}
	err := s.col.FindOne(ctx, filter, options.FindOne().SetProjection(snapshotProjection)).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *MongoInventory) Reserve(ctx context.Context, id primitive.ObjectID, qty int) error {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id, "stock": bson.M{"$gte": qty}},
		bson.M{"$inc": bson.M{"stock": -qty}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (s *MongoInventory) Release(ctx context.Context, id primitive.ObjectID, qty int) error {
	res, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"stock": qty}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrProductNotFound
	}
	return nil
}
