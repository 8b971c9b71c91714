package services

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/AnshRaj112/storefront-backend/internal/models"
)

func userDoc(id primitive.ObjectID, email string) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "name", Value: "Ada"},
		{Key: "email", Value: email},
		{Key: "role", Value: "user"},
		{Key: "password", Value: "$2a$04$hash"},
		{Key: "active", Value: true},
	}
}

func usersNS(mt *mtest.T) string {
	return mt.DB.Name() + "." + UsersCollection
}

func TestMongoUserStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("create assigns id", func(mt *mtest.T) {
		store := NewMongoUserStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		u := &models.User{Name: "Ada", Email: "a@x.com", Role: models.RoleUser, Active: true}
		require.NoError(t, store.Create(ctx, u))
		assert.False(t, u.ID.IsZero())
	})

	mt.Run("create duplicate email", func(mt *mtest.T) {
		store := NewMongoUserStore(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: storefront.users index: email_1",
		}))

		err := store.Create(ctx, &models.User{Email: "a@x.com"})
		assert.ErrorIs(t, err, ErrDuplicateEmail)
	})

	mt.Run("find by email", func(mt *mtest.T) {
		store := NewMongoUserStore(mt.DB)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, usersNS(mt), mtest.FirstBatch, userDoc(id, "a@x.com")))

		u, err := store.FindByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, id, u.ID)
		assert.Equal(t, "a@x.com", u.Email)
		assert.Equal(t, models.RoleUser, u.Role)
	})

	mt.Run("find miss", func(mt *mtest.T) {
		store := NewMongoUserStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, usersNS(mt), mtest.FirstBatch))

		_, err := store.FindByID(ctx, primitive.NewObjectID())
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	mt.Run("set reset token on missing user", func(mt *mtest.T) {
		store := NewMongoUserStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		err := store.SetResetToken(ctx, primitive.NewObjectID(), "hash", time.Now().Add(ResetTokenTTL))
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	mt.Run("deactivate", func(mt *mtest.T) {
		store := NewMongoUserStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		assert.NoError(t, store.Deactivate(ctx, primitive.NewObjectID()))
	})

	mt.Run("consume reset token returns updated record", func(mt *mtest.T) {
		store := NewMongoUserStore(mt.DB)
		id := primitive.NewObjectID()
		changed := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
		doc := append(userDoc(id, "a@x.com"), bson.E{Key: "passwordChangedAt", Value: changed})
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: doc}))

		u, err := store.ConsumeResetToken(ctx, "hash", changed, "$2a$04$new")
		require.NoError(t, err)
		require.NotNil(t, u.PasswordChangedAt)
		assert.True(t, changed.Equal(*u.PasswordChangedAt))
	})

	mt.Run("consume unknown reset token", func(mt *mtest.T) {
		store := NewMongoUserStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		_, err := store.ConsumeResetToken(ctx, "hash", time.Now(), "$2a$04$new")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	mt.Run("update profile duplicate email", func(mt *mtest.T) {
		store := NewMongoUserStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    11000,
			Message: "E11000 duplicate key error",
			Name:    "DuplicateKey",
		}))

		_, err := store.UpdateProfile(ctx, primitive.NewObjectID(), bson.M{"email": "taken@x.com"})
		assert.ErrorIs(t, err, ErrDuplicateEmail)
	})

	mt.Run("list", func(mt *mtest.T) {
		store := NewMongoUserStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, usersNS(mt), mtest.FirstBatch,
			userDoc(primitive.NewObjectID(), "a@x.com"),
			userDoc(primitive.NewObjectID(), "b@x.com"),
		))

		users, err := store.List(ctx, UserQuery(url.Values{"sort": {"email"}}))
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, "b@x.com", users[1].Email)
	})
}

func TestUserQueryHidesSecrets(t *testing.T) {
	q := UserQuery(url.Values{"fields": {"name,password,passwordResetToken"}})

	assert.Equal(t, bson.D{{Key: "name", Value: 1}}, q.Projection)

	def := UserQuery(url.Values{})
	keys := make([]string, 0, len(def.Projection))
	for _, e := range def.Projection {
		keys = append(keys, e.Key)
		assert.Equal(t, 0, e.Value)
	}
	assert.ElementsMatch(t, hiddenUserFields, keys)
}
