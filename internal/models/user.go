package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is the credential record. Secret and reset fields never serialize to JSON.
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`

	Name  string `bson:"name" json:"name"`
	Email string `bson:"email" json:"email"` // stored lower-cased
	Phone string `bson:"phone,omitempty" json:"phone,omitempty"`
	Photo string `bson:"photo,omitempty" json:"photo,omitempty"`
	Role  Role   `bson:"role" json:"role"`

	Password             string     `bson:"password" json:"-"`
	PasswordChangedAt    *time.Time `bson:"passwordChangedAt,omitempty" json:"-"`
	PasswordResetToken   string     `bson:"passwordResetToken,omitempty" json:"-"` // sha256 hex of the emailed token
	PasswordResetExpires *time.Time `bson:"passwordResetExpires,omitempty" json:"-"`

	Active bool `bson:"active" json:"-"`
}

// ChangedPasswordAfter reports whether the password changed after issuedAt.
// Both sides are compared at millisecond precision, the resolution Mongo stores.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return issuedAt.UnixMilli() < u.PasswordChangedAt.UnixMilli()
}

// ActiveOnly matches records that have not been soft-deleted. Documents
// written before the flag existed have no active field and still match.
func ActiveOnly() bson.M {
	return bson.M{"active": bson.M{"$ne": false}}
}

// WithActive ANDs ActiveOnly into filter.
func WithActive(filter bson.M) bson.M {
	if len(filter) == 0 {
		return ActiveOnly()
	}
	return bson.M{"$and": bson.A{ActiveOnly(), filter}}
}
