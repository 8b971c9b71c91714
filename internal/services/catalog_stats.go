package services

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const CategoriesCollection = "categories"

type ProductStats struct {
	Total        int64           `bson:"total" json:"totalProducts"`
	Active       int64           `bson:"active" json:"activeProducts"`
	Featured     int64           `bson:"featured" json:"featuredProducts"`
	AveragePrice float64         `bson:"averagePrice" json:"averagePrice"`
	TotalStock   int64           `bson:"totalStock" json:"totalStock"`
	Categories   []CategoryCount `bson:"-" json:"categoryStats"`
}

type CategoryStats struct {
	Total    int64           `bson:"total" json:"totalCategories"`
	Active   int64           `bson:"active" json:"activeCategories"`
	Featured int64           `bson:"featured" json:"featuredCategories"`
	Genders  []GenderCount   `bson:"-" json:"genderStats"`
	Products []CategoryCount `bson:"-" json:"categoryProductCounts"`
}

// CategoryCount is one category's share of the active products.
type CategoryCount struct {
	ID       interface{} `bson:"_id" json:"_id"`
	Name     string      `bson:"categoryName" json:"categoryName"`
	Count    int64       `bson:"count" json:"count"`
	AvgPrice float64     `bson:"avgPrice" json:"avgPrice"`
}

type GenderCount struct {
	Gender string `bson:"_id" json:"gender"`
	Count  int64  `bson:"count" json:"count"`
}

// CatalogStats aggregates dashboard figures over products and categories.
type CatalogStats struct {
	products   *mongo.Collection
	categories *mongo.Collection
}

func NewCatalogStats(db *mongo.Database) *CatalogStats {
	return &CatalogStats{
		products:   db.Collection(ProductsCollection),
		categories: db.Collection(CategoriesCollection),
	}
}

var activeMatch = bson.D{{Key: "$match", Value: bson.M{"isActive": bson.M{"$ne": false}}}}

func countIf(cond bson.M) bson.M {
	return bson.M{"$sum": bson.M{"$cond": bson.A{cond, 1, 0}}}
}

func summaryGroup(extra bson.M) bson.D {
	group := bson.M{
		"_id":      nil,
		"total":    bson.M{"$sum": 1},
		"active":   countIf(bson.M{"$ne": bson.A{"$isActive", false}}),
		"featured": countIf(bson.M{"$eq": bson.A{"$isFeatured", true}}),
	}
	for k, v := range extra {
		group[k] = v
	}
	return bson.D{{Key: "$group", Value: group}}
}

// perCategory counts active products by category and joins the name.
func perCategory() mongo.Pipeline {
	return mongo.Pipeline{
		activeMatch,
		{{Key: "$group", Value: bson.M{
			"_id":      "$category",
			"count":    bson.M{"$sum": 1},
			"avgPrice": bson.M{"$avg": "$price"},
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         CategoriesCollection,
			"localField":   "_id",
			"foreignField": "_id",
			"as":           "category",
		}}},
		{{Key: "$unwind", Value: "$category"}},
		{{Key: "$project", Value: bson.M{
			"categoryName": "$category.name",
			"count":        1,
			"avgPrice":     bson.M{"$round": bson.A{"$avgPrice", 2}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "categoryName", Value: 1}}}},
	}
}

func aggregate(ctx context.Context, col *mongo.Collection, pipeline mongo.Pipeline, out interface{}) error {
	cur, err := col.Aggregate(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("aggregate %s: %w", col.Name(), err)
	}
	if err := cur.All(ctx, out); err != nil {
		return fmt.Errorf("aggregate %s: %w", col.Name(), err)
	}
	return nil
}

func (s *CatalogStats) Products(ctx context.Context) (*ProductStats, error) {
	var summary []ProductStats
	if err := aggregate(ctx, s.products, mongo.Pipeline{summaryGroup(bson.M{
		"averagePrice": bson.M{"$avg": "$price"},
		"totalStock":   bson.M{"$sum": "$stock"},
	})}, &summary); err != nil {
		return nil, err
	}
	stats := &ProductStats{}
	if len(summary) > 0 {
		stats = &summary[0]
	}

	stats.Categories = []CategoryCount{}
	if err := aggregate(ctx, s.products, perCategory(), &stats.Categories); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *CatalogStats) Categories(ctx context.Context) (*CategoryStats, error) {
	var summary []CategoryStats
	if err := aggregate(ctx, s.categories, mongo.Pipeline{summaryGroup(nil)}, &summary); err != nil {
		return nil, err
	}
	stats := &CategoryStats{}
	if len(summary) > 0 {
		stats = &summary[0]
	}

	stats.Genders = []GenderCount{}
	genders := mongo.Pipeline{
		activeMatch,
		{{Key: "$group", Value: bson.M{"_id": "$gender", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
	if err := aggregate(ctx, s.categories, genders, &stats.Genders); err != nil {
		return nil, err
	}

	stats.Products = []CategoryCount{}
	if err := aggregate(ctx, s.products, perCategory(), &stats.Products); err != nil {
		return nil, err
	}
	return stats, nil
}
