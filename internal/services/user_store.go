package services

import (
	"context"
	"errors"
	"net/url"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AnshRaj112/storefront-backend/internal/models"
	"github.com/AnshRaj112/storefront-backend/internal/query"
)

const UsersCollection = "users"

// hiddenUserFields are never returned by list reads, even when requested.
var hiddenUserFields = []string{"__v", "password", "passwordResetToken", "passwordResetExpires", "active"}

// MongoUserStore keeps credential records in the users collection. All reads
// and conditional writes go through active(), which ANDs in models.ActiveOnly.
type MongoUserStore struct {
	col *mongo.Collection
	now func() time.Time
}

func NewMongoUserStore(db *mongo.Database) *MongoUserStore {
	return &MongoUserStore{col: db.Collection(UsersCollection), now: time.Now}
}

func active(filter bson.M) bson.M {
	return models.WithActive(filter)
}

func (s *MongoUserStore) Create(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if _, err := s.col.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (s *MongoUserStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	err := s.col.FindOne(ctx, active(filter)).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *MongoUserStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *MongoUserStore) FindByResetToken(ctx context.Context, hashed string, now time.Time) (*models.User, error) {
	return s.findOne(ctx, bson.M{
		"passwordResetToken":   hashed,
		"passwordResetExpires": bson.M{"$gt": now},
	})
}

func (s *MongoUserStore) SetResetToken(ctx context.Context, id primitive.ObjectID, hashed string, expires time.Time) error {
	return s.updateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"passwordResetToken": hashed, "passwordResetExpires": expires},
	})
}

func (s *MongoUserStore) ClearResetToken(ctx context.Context, id primitive.ObjectID) error {
	return s.updateOne(ctx, bson.M{"_id": id}, bson.M{
		"$unset": bson.M{"passwordResetToken": "", "passwordResetExpires": ""},
	})
}

func (s *MongoUserStore) ConsumeResetToken(ctx context.Context, hashed string, now time.Time, passwordHash string) (*models.User, error) {
	filter := bson.M{
		"passwordResetToken":   hashed,
		"passwordResetExpires": bson.M{"$gt": now},
	}
	return s.findOneAndUpdate(ctx, filter, passwordUpdate(passwordHash, now))
}

func (s *MongoUserStore) SetPassword(ctx context.Context, id primitive.ObjectID, passwordHash string, changedAt time.Time) (*models.User, error) {
	return s.findOneAndUpdate(ctx, bson.M{"_id": id}, passwordUpdate(passwordHash, changedAt))
}

func passwordUpdate(passwordHash string, changedAt time.Time) bson.M {
	return bson.M{
		"$set": bson.M{
			"password":          passwordHash,
			"passwordChangedAt": changedAt,
			"updatedAt":         changedAt,
		},
		"$unset": bson.M{"passwordResetToken": "", "passwordResetExpires": ""},
	}
}

// UpdateProfile sets the given profile fields and returns the updated record.
func (s *MongoUserStore) UpdateProfile(ctx context.Context, id primitive.ObjectID, fields bson.M) (*models.User, error) {
	set := bson.M{"updatedAt": s.now().UTC()}
	for k, v := range fields {
		set[k] = v
	}
	u, err := s.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if mongo.IsDuplicateKeyError(err) {
		return nil, ErrDuplicateEmail
	}
	return u, err
}

// SetRole changes a user's role. Only operator tooling calls it.
func (s *MongoUserStore) SetRole(ctx context.Context, id primitive.ObjectID, role models.Role) error {
	return s.updateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"role": role, "updatedAt": s.now().UTC()}})
}

// Deactivate soft-deletes a user; it then disappears from every lookup.
func (s *MongoUserStore) Deactivate(ctx context.Context, id primitive.ObjectID) error {
	return s.updateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"active": false, "updatedAt": s.now().UTC()}})
}

// List runs a built query over active users.
func (s *MongoUserStore) List(ctx context.Context, q *query.Query) ([]models.User, error) {
	users := []models.User{}
	if err := q.Find(ctx, s.col, models.ActiveOnly(), &users); err != nil {
		return nil, err
	}
	return users, nil
}

// UserQuery builds a list query that can never project secret fields.
func UserQuery(params url.Values) *query.Query {
	return query.Apply(params, query.WithExcluded(hiddenUserFields...))
}

func (s *MongoUserStore) updateOne(ctx context.Context, filter, update bson.M) error {
	res, err := s.col.UpdateOne(ctx, active(filter), update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *MongoUserStore) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*models.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u models.User
	err := s.col.FindOneAndUpdate(ctx, active(filter), update, opts).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
