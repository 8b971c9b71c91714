package services

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/AnshRaj112/storefront-backend/internal/query"
)

func TestSanitizeDocument(t *testing.T) {
	in := map[string]interface{}{
		"_id":    "forged",
		"__v":    3,
		"$where": "1==1",
		"a.b":    1,
		"name":   "Shoe",
		"attributes": map[string]interface{}{
			"color": "red",
			"$gt":   "",
		},
		"tags": []interface{}{"x", map[string]interface{}{"$ne": 1, "ok": true}},
	}

	out := SanitizeDocument(in)

	assert.Equal(t, bson.M{
		"name":       "Shoe",
		"attributes": bson.M{"color": "red"},
		"tags":       []interface{}{"x", bson.M{"ok": true}},
	}, out)
}

func TestResourceStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("create stamps id and timestamps", func(mt *mtest.T) {
		s := NewResourceStore(mt.DB, "products")
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		doc, err := s.Create(ctx, bson.M{"name": "Shoe", "_id": "forged"})
		require.NoError(t, err)
		assert.IsType(t, primitive.ObjectID{}, doc["_id"])
		assert.Contains(t, doc, "createdAt")
		assert.Contains(t, doc, "updatedAt")
		assert.Equal(t, "products", s.Name())
	})

	mt.Run("create duplicate", func(mt *mtest.T) {
		s := NewResourceStore(mt.DB, "coupons")
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Code: 11000, Message: "dup"}))

		_, err := s.Create(ctx, bson.M{"code": "SAVE10"})
		assert.ErrorIs(t, err, ErrDuplicateKey)
	})

	mt.Run("get miss", func(mt *mtest.T) {
		s := NewResourceStore(mt.DB, "products")
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.DB.Name()+".products", mtest.FirstBatch))

		_, err := s.Get(ctx, primitive.NewObjectID(), nil)
		assert.ErrorIs(t, err, ErrDocumentNotFound)
	})

	mt.Run("list", func(mt *mtest.T) {
		s := NewResourceStore(mt.DB, "products")
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.DB.Name()+".products", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "name", Value: "A"}},
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "name", Value: "B"}},
		))

		docs, err := s.List(ctx, query.Apply(url.Values{"price[gte]": {"10"}}), nil)
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "B", docs[1]["name"])
	})

	mt.Run("update returns new document", func(mt *mtest.T) {
		s := NewResourceStore(mt.DB, "products")
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: id},
			{Key: "name", Value: "Boot"},
		}}))

		doc, err := s.Update(ctx, id, nil, bson.M{"name": "Boot"})
		require.NoError(t, err)
		assert.Equal(t, "Boot", doc["name"])
	})

	mt.Run("update miss", func(mt *mtest.T) {
		s := NewResourceStore(mt.DB, "products")
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		_, err := s.Update(ctx, primitive.NewObjectID(), bson.M{"user": primitive.NewObjectID()}, bson.M{"name": "Boot"})
		assert.ErrorIs(t, err, ErrDocumentNotFound)
	})

	mt.Run("delete miss", func(mt *mtest.T) {
		s := NewResourceStore(mt.DB, "products")
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		assert.ErrorIs(t, s.Delete(ctx, primitive.NewObjectID(), nil), ErrDocumentNotFound)
	})

	mt.Run("delete", func(mt *mtest.T) {
		s := NewResourceStore(mt.DB, "products")
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		assert.NoError(t, s.Delete(ctx, primitive.NewObjectID(), nil))
	})
}

func TestIDFilter(t *testing.T) {
	id, owner := primitive.NewObjectID(), primitive.NewObjectID()

	assert.Equal(t, bson.M{"_id": id}, idFilter(id, nil))
	assert.Equal(t,
		bson.M{"$and": bson.A{bson.M{"_id": id}, bson.M{"user": owner}}},
		idFilter(id, bson.M{"user": owner}))
}
