package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Review is unique per (product, user).
type Review struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Review    string             `bson:"review" json:"review"`
	Rating    int                `bson:"rating" json:"rating"`
	Product   primitive.ObjectID `bson:"product" json:"product"`
	User      primitive.ObjectID `bson:"user" json:"user"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Validate returns a user-facing message for the first invalid field, or "".
func (r *Review) Validate() string {
	switch {
	case strings.TrimSpace(r.Review) == "":
		return "Review can not be empty!"
	case r.Rating < MinRating || r.Rating > MaxRating:
		return "Rating must be between 1 and 5"
	case r.Product.IsZero():
		return "Review must belong to a product."
	case r.User.IsZero():
		return "Review must belong to a user"
	}
	return ""
}

// RatingSummary is the derived aggregate stored on a product.
type RatingSummary struct {
	Quantity int     `bson:"ratingsQuantity" json:"ratingsQuantity"`
	Average  float64 `bson:"averageRating" json:"averageRating"`
}
