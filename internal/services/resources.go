package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AnshRaj112/storefront-backend/internal/query"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrDuplicateKey     = errors.New("duplicate key")
)

// ResourceStore is schemaless CRUD over one collection. Every method takes
// an optional base predicate that scopes it, e.g. to the owning user.
type ResourceStore struct {
	name string
	col  *mongo.Collection
	now  func() time.Time
}

func NewResourceStore(db *mongo.Database, collection string) *ResourceStore {
	return &ResourceStore{name: collection, col: db.Collection(collection), now: time.Now}
}

// Name is the collection name, also used as the cache namespace.
func (s *ResourceStore) Name() string {
	return s.name
}

func (s *ResourceStore) List(ctx context.Context, q *query.Query, base bson.M) ([]bson.M, error) {
	docs := []bson.M{}
	if err := q.Find(ctx, s.col, base, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// idFilter matches id, AND-ed with an optional ownership predicate.
func idFilter(id primitive.ObjectID, base bson.M) bson.M {
	if len(base) == 0 {
		return bson.M{"_id": id}
	}
	return bson.M{"$and": bson.A{bson.M{"_id": id}, base}}
}

func (s *ResourceStore) Get(ctx context.Context, id primitive.ObjectID, base bson.M) (bson.M, error) {
	var doc bson.M
	err := s.col.FindOne(ctx, idFilter(id, base), options.FindOne().SetProjection(bson.M{"__v": 0})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrDocumentNotFound
	}
	return doc, err
}

// Create inserts a sanitised copy of doc with fresh id and timestamps.
func (s *ResourceStore) Create(ctx context.Context, doc bson.M) (bson.M, error) {
	clean := SanitizeDocument(doc)
	now := s.now().UTC()
	clean["_id"] = primitive.NewObjectID()
	clean["createdAt"] = now
	clean["updatedAt"] = now

	if _, err := s.col.InsertOne(ctx, clean); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateKey
		}
		return nil, err
	}
	return clean, nil
}

// Update $sets the sanitised fields of doc and returns the new document.
func (s *ResourceStore) Update(ctx context.Context, id primitive.ObjectID, base, doc bson.M) (bson.M, error) {
	set := SanitizeDocument(doc)
	delete(set, "createdAt")
	set["updatedAt"] = s.now().UTC()

	var updated bson.M
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.col.FindOneAndUpdate(ctx, idFilter(id, base), bson.M{"$set": set}, opts).Decode(&updated)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, ErrDocumentNotFound
	case mongo.IsDuplicateKeyError(err):
		return nil, ErrDuplicateKey
	}
	return updated, err
}

func (s *ResourceStore) Delete(ctx context.Context, id primitive.ObjectID, base bson.M) error {
	res, err := s.col.DeleteOne(ctx, idFilter(id, base))
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// SanitizeDocument drops _id, __v and every key that starts with '$' or
// contains '.', at any depth.
func SanitizeDocument(doc map[string]interface{}) bson.M {
	out := bson.M{}
	for k, v := range doc {
		if k == "_id" || k == "__v" {
			continue
		}
		if unsafeKey(k) {
			continue
		}
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return sanitizeNested(t)
	case bson.M:
		return sanitizeNested(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = sanitizeValue(e)
		}
		return out
	default:
		return v
	}
}

func sanitizeNested(m map[string]interface{}) bson.M {
	out := bson.M{}
	for k, v := range m {
		if unsafeKey(k) {
			continue
		}
		out[k] = sanitizeValue(v)
	}
	return out
}

func unsafeKey(k string) bool {
	return k == "" || strings.HasPrefix(k, "$") || strings.Contains(k, ".")
}
