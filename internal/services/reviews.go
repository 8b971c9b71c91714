package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/AnshRaj112/storefront-backend/internal/apperr"
	"github.com/AnshRaj112/storefront-backend/internal/models"
	"github.com/AnshRaj112/storefront-backend/internal/query"
)

var ErrReviewNotFound = errors.New("review not found")

// ReviewStore persists reviews.
type ReviewStore interface {
	Create(ctx context.Context, r *models.Review) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Review, error)
	List(ctx context.Context, q *query.Query, base bson.M) ([]models.Review, error)
	Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Review, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// RatingUpdater refreshes the derived rating summary of a product.
type RatingUpdater interface {
	Recalculate(ctx context.Context, productID primitive.ObjectID) (models.RatingSummary, error)
}

type MongoReviewStore struct {
	col *mongo.Collection
}

func NewMongoReviewStore(db *mongo.Database) *MongoReviewStore {
	return &MongoReviewStore{col: db.Collection(ReviewsCollection)}
}

func (s *MongoReviewStore) Create(ctx context.Context, r *models.Review) error {
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	if _, err := s.col.InsertOne(ctx, r); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return err
	}
	return nil
}

func (s *MongoReviewStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Review, error) {
	var r models.Review
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrReviewNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *MongoReviewStore) List(ctx context.Context, q *query.Query, base bson.M) ([]models.Review, error) {
	reviews := []models.Review{}
	if err := q.Find(ctx, s.col, base, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

func (s *MongoReviewStore) Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Review, error) {
	var r models.Review
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrReviewNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *MongoReviewStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrReviewNotFound
	}
	return nil
}

// ReviewInput is the create/update body. Product is only read when the
// route is not nested under a product.
type ReviewInput struct {
	Review  *string `json:"review"`
	Rating  *int    `json:"rating"`
	Product string  `json:"product"`
}

// ReviewService owns review writes. After every successful write it
// recalculates the product rating and drops cached product lists.
type ReviewService struct {
	store   ReviewStore
	ratings RatingUpdater
	cache   *CacheService
	log     *zap.Logger
	now     func() time.Time
}

func NewReviewService(store ReviewStore, ratings RatingUpdater, cache *CacheService, log *zap.Logger) *ReviewService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReviewService{store: store, ratings: ratings, cache: cache, log: log, now: time.Now}
}

func (s *ReviewService) List(ctx context.Context, productID primitive.ObjectID, params url.Values) ([]models.Review, error) {
	var base bson.M
	if !productID.IsZero() {
		base = bson.M{"product": productID}
	}
	reviews, err := s.store.List(ctx, query.Apply(params), base)
	if err != nil {
		return nil, apperr.Unexpected("could not list reviews", err)
	}
	return reviews, nil
}

func (s *ReviewService) Get(ctx context.Context, id primitive.ObjectID) (*models.Review, error) {
	r, err := s.store.FindByID(ctx, id)
	if errors.Is(err, ErrReviewNotFound) {
		return nil, apperr.NotFound("No review found with that ID")
	}
	if err != nil {
		return nil, apperr.Unexpected("could not load review", err)
	}
	return r, nil
}

// Create stores a review by author for productID. A zero productID falls
// back to the product named in the body.
func (s *ReviewService) Create(ctx context.Context, author *models.User, productID primitive.ObjectID, in ReviewInput) (*models.Review, error) {
	if productID.IsZero() && in.Product != "" {
		id, err := primitive.ObjectIDFromHex(in.Product)
		if err != nil {
			return nil, apperr.Validation("Invalid product id: " + in.Product)
		}
		productID = id
	}

	now := s.now().UTC()
	r := &models.Review{
		Product:   productID,
		User:      author.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Review != nil {
		r.Review = strings.TrimSpace(*in.Review)
	}
	if in.Rating != nil {
		r.Rating = *in.Rating
	}
	if msg := r.Validate(); msg != "" {
		return nil, apperr.Validation(msg)
	}

	if err := s.store.Create(ctx, r); err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return nil, apperr.Conflict("You have already reviewed this product")
		}
		return nil, apperr.Unexpected("could not create review", err)
	}
	if err := s.afterWrite(ctx, r.Product); err != nil {
		return nil, err
	}
	return r, nil
}

// Update changes the text and/or rating. Product and author are fixed.
func (s *ReviewService) Update(ctx context.Context, actor *models.User, id primitive.ObjectID, in ReviewInput) (*models.Review, error) {
	existing, err := s.authorize(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	candidate := *existing
	set := bson.M{}
	if in.Review != nil {
		candidate.Review = strings.TrimSpace(*in.Review)
		set["review"] = candidate.Review
	}
	if in.Rating != nil {
		candidate.Rating = *in.Rating
		set["rating"] = candidate.Rating
	}
	if msg := candidate.Validate(); msg != "" {
		return nil, apperr.Validation(msg)
	}
	if len(set) == 0 {
		return existing, nil
	}
	set["updatedAt"] = s.now().UTC()

	updated, err := s.store.Update(ctx, id, set)
	if errors.Is(err, ErrReviewNotFound) {
		return nil, apperr.NotFound("No review found with that ID")
	}
	if err != nil {
		return nil, apperr.Unexpected("could not update review", err)
	}
	if err := s.afterWrite(ctx, updated.Product); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *ReviewService) Delete(ctx context.Context, actor *models.User, id primitive.ObjectID) error {
	existing, err := s.authorize(ctx, actor, id)
	if err != nil {
		return err
	}
	err = s.store.Delete(ctx, id)
	if errors.Is(err, ErrReviewNotFound) {
		return apperr.NotFound("No review found with that ID")
	}
	if err != nil {
		return apperr.Unexpected("could not delete review", err)
	}
	return s.afterWrite(ctx, existing.Product)
}

// authorize loads the review and checks that actor may modify it: admins
// may modify any review, everyone else only their own.
func (s *ReviewService) authorize(ctx context.Context, actor *models.User, id primitive.ObjectID) (*models.Review, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin && existing.User != actor.ID {
		return nil, apperr.Forbidden("You can only modify your own reviews")
	}
	return existing, nil
}

func (s *ReviewService) afterWrite(ctx context.Context, productID primitive.ObjectID) error {
	if _, err := s.ratings.Recalculate(ctx, productID); err != nil {
		return apperr.Unexpected("could not update product rating", err)
	}
	if err := s.cache.Invalidate(ctx, ProductsCollection); err != nil {
		s.log.Warn("product cache invalidation failed", zap.String("product", productID.Hex()), zap.Error(err))
	}
	return nil
}
