package services

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/AnshRaj112/storefront-backend/internal/models"
)

const (
	ReviewsCollection  = "reviews"
	ProductsCollection = "products"
)

// RatingRecalculator recomputes a product's rating summary from its reviews.
// Review writes call it directly after they succeed.
type RatingRecalculator struct {
	reviews  *mongo.Collection
	products *mongo.Collection
}

func NewRatingRecalculator(db *mongo.Database) *RatingRecalculator {
	return &RatingRecalculator{
		reviews:  db.Collection(ReviewsCollection),
		products: db.Collection(ProductsCollection),
	}
}

// Recalculate aggregates count and average rating and stores them on the
// product. A product without reviews gets 0 and 0.
func (r *RatingRecalculator) Recalculate(ctx context.Context, productID primitive.ObjectID) (models.RatingSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"product": productID}}},
		{{Key: "$group", Value: bson.M{
			"_id":             "$product",
			"ratingsQuantity": bson.M{"$sum": 1},
			"averageRating":   bson.M{"$avg": "$rating"},
		}}},
	}

	cur, err := r.reviews.Aggregate(ctx, pipeline)
	if err != nil {
		return models.RatingSummary{}, fmt.Errorf("aggregate ratings: %w", err)
	}
	var stats []models.RatingSummary
	if err := cur.All(ctx, &stats); err != nil {
		return models.RatingSummary{}, fmt.Errorf("decode ratings: %w", err)
	}

	var summary models.RatingSummary
	if len(stats) > 0 {
		summary = stats[0]
	}
	_, err = r.products.UpdateOne(ctx, bson.M{"_id": productID}, bson.M{"$set": bson.M{
		"ratingsQuantity": summary.Quantity,
		"averageRating":   summary.Average,
	}})
	if err != nil {
		return models.RatingSummary{}, fmt.Errorf("update product rating: %w", err)
	}
	return summary, nil
}
