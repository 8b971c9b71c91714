package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/AnshRaj112/storefront-backend/internal/apperr"
	"github.com/AnshRaj112/storefront-backend/internal/handlers"
	"github.com/AnshRaj112/storefront-backend/internal/middleware"
	"github.com/AnshRaj112/storefront-backend/internal/models"
	"github.com/AnshRaj112/storefront-backend/internal/query"
	"github.com/AnshRaj112/storefront-backend/internal/services"
)

type tokenVerifier map[string]*models.User

func (v tokenVerifier) VerifySession(_ context.Context, token string) (*models.User, error) {
	if u, ok := v[token]; ok {
		return u, nil
	}
	return nil, apperr.Auth("Invalid or expired session. Please log in again.")
}

type emptyStore struct{ name string }

func (s emptyStore) Name() string { return s.name }
func (emptyStore) List(context.Context, *query.Query, bson.M) ([]bson.M, error) {
	return []bson.M{}, nil
}
func (emptyStore) Get(context.Context, primitive.ObjectID, bson.M) (bson.M, error) {
	return nil, services.ErrDocumentNotFound
}
func (emptyStore) Create(_ context.Context, doc bson.M) (bson.M, error) { return doc, nil }
func (emptyStore) Update(context.Context, primitive.ObjectID, bson.M, bson.M) (bson.M, error) {
	return nil, services.ErrDocumentNotFound
}
func (emptyStore) Delete(context.Context, primitive.ObjectID, bson.M) error {
	return services.ErrDocumentNotFound
}

type productReviews struct{ seen primitive.ObjectID }

func (p *productReviews) List(_ context.Context, productID primitive.ObjectID, _ url.Values) ([]models.Review, error) {
	p.seen = productID
	return []models.Review{}, nil
}
func (*productReviews) Get(context.Context, primitive.ObjectID) (*models.Review, error) {
	return nil, apperr.NotFound("No review found with that ID")
}
func (*productReviews) Create(_ context.Context, u *models.User, pid primitive.ObjectID, _ services.ReviewInput) (*models.Review, error) {
	return &models.Review{Product: pid, User: u.ID}, nil
}
func (*productReviews) Update(context.Context, *models.User, primitive.ObjectID, services.ReviewInput) (*models.Review, error) {
	return &models.Review{}, nil
}
func (*productReviews) Delete(context.Context, *models.User, primitive.ObjectID) error { return nil }

type noOrders struct{}

func (noOrders) Place(_ context.Context, _ *models.User, _ services.OrderInput) (*models.Order, error) {
	return &models.Order{}, nil
}
func (noOrders) Get(context.Context, *models.User, primitive.ObjectID) (*models.Order, error) {
	return &models.Order{}, nil
}
func (noOrders) Track(context.Context, string) (*models.Order, error) { return &models.Order{}, nil }
func (noOrders) List(context.Context, *models.User, url.Values) ([]models.Order, error) {
	return []models.Order{}, nil
}
func (noOrders) ListByStatus(context.Context, string, url.Values) ([]models.Order, error) {
	return []models.Order{}, nil
}
func (noOrders) UpdateStatus(context.Context, primitive.ObjectID, services.StatusInput) (*models.Order, error) {
	return &models.Order{}, nil
}
func (noOrders) Delete(context.Context, primitive.ObjectID) error { return nil }

func emptyStats(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func newTestRouter(t *testing.T) (chi.Router, *productReviews) {
	t.Helper()
	log := zap.NewNop()
	reviews := &productReviews{}
	r := chi.NewRouter()
	SetupRoutes(r, Handlers{
		Sessions: tokenVerifier{
			"user-token":  {ID: primitive.NewObjectID(), Role: models.RoleUser},
			"admin-token": {ID: primitive.NewObjectID(), Role: models.RoleAdmin},
		},
		Auth:    handlers.NewAuthHandler(nil, log),
		Users:   handlers.NewUserHandler(nil, nil, log),
		Reviews: handlers.NewReviewHandler(reviews, log),
		Orders:  handlers.NewOrderHandler(noOrders{}, log),
		Upload:  handlers.NewUploadHandler(nil, log),
		Resources: []Resource{
			{
				Path:    "products",
				Handler: handlers.NewResourceHandler(emptyStore{"products"}, log),
				Catalog: true,
				Presets: handlers.ProductPresets(),
				Stats:   emptyStats,
			},
			{Path: "carts", Handler: handlers.NewResourceHandler(emptyStore{"carts"}, log, handlers.OwnedBy("user"))},
		},
		Metrics: middleware.NewMetrics(),
	})
	return r, reviews
}

func do(r http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRouteGuards(t *testing.T) {
	r, _ := newTestRouter(t)
	id := primitive.NewObjectID().Hex()

	tests := []struct {
		name   string
		method string
		target string
		token  string
		code   int
	}{
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", http.StatusOK},
		{"catalog read is public", http.MethodGet, "/api/v1/products", "", http.StatusOK},
		{"catalog write needs login", http.MethodPost, "/api/v1/products", "", http.StatusUnauthorized},
		{"catalog write needs admin", http.MethodPost, "/api/v1/products", "user-token", http.StatusForbidden},
		{"catalog write as admin", http.MethodPost, "/api/v1/products", "admin-token", http.StatusCreated},
		{"cart read needs login", http.MethodGet, "/api/v1/carts", "", http.StatusUnauthorized},
		{"cart read as user", http.MethodGet, "/api/v1/carts", "user-token", http.StatusOK},
		{"me needs login", http.MethodGet, "/api/v1/users/me", "", http.StatusUnauthorized},
		{"me with bad token", http.MethodGet, "/api/v1/users/me", "forged", http.StatusUnauthorized},
		{"me", http.MethodGet, "/api/v1/users/me", "user-token", http.StatusOK},
		{"user list needs admin", http.MethodGet, "/api/v1/users", "user-token", http.StatusForbidden},
		{"review create as user", http.MethodPost, "/api/v1/reviews", "user-token", http.StatusCreated},
		{"review create as admin", http.MethodPost, "/api/v1/reviews", "admin-token", http.StatusForbidden},
		{"review delete as admin", http.MethodDelete, "/api/v1/reviews/" + id, "admin-token", http.StatusNoContent},
		{"featured is public", http.MethodGet, "/api/v1/products/featured", "", http.StatusOK},
		{"search is public", http.MethodGet, "/api/v1/products/search?q=boot", "", http.StatusOK},
		{"search needs a term", http.MethodGet, "/api/v1/products/search", "", http.StatusBadRequest},
		{"by category", http.MethodGet, "/api/v1/products/category/" + id, "", http.StatusOK},
		{"stats needs login", http.MethodGet, "/api/v1/products/stats", "", http.StatusUnauthorized},
		{"stats needs admin", http.MethodGet, "/api/v1/products/stats", "user-token", http.StatusForbidden},
		{"stats as admin", http.MethodGet, "/api/v1/products/stats", "admin-token", http.StatusOK},
		{"guest checkout is public", http.MethodPost, "/api/v1/orders/guest", "", http.StatusCreated},
		{"tracking is public", http.MethodGet, "/api/v1/orders/track/ORD-1-AAAA", "", http.StatusOK},
		{"checkout needs login", http.MethodPost, "/api/v1/orders", "", http.StatusUnauthorized},
		{"checkout as user", http.MethodPost, "/api/v1/orders", "user-token", http.StatusCreated},
		{"own orders", http.MethodGet, "/api/v1/orders", "user-token", http.StatusOK},
		{"own order", http.MethodGet, "/api/v1/orders/" + id, "user-token", http.StatusOK},
		{"orders by status needs admin", http.MethodGet, "/api/v1/orders/status/pending", "user-token", http.StatusForbidden},
		{"orders by status as admin", http.MethodGet, "/api/v1/orders/status/pending", "admin-token", http.StatusOK},
		{"status change needs admin", http.MethodPatch, "/api/v1/orders/" + id + "/status", "user-token", http.StatusForbidden},
		{"status change as admin", http.MethodPatch, "/api/v1/orders/" + id + "/status", "admin-token", http.StatusOK},
		{"order delete needs admin", http.MethodDelete, "/api/v1/orders/" + id, "user-token", http.StatusForbidden},
		{"order delete as admin", http.MethodDelete, "/api/v1/orders/" + id, "admin-token", http.StatusNoContent},
		{"no free-form order edit", http.MethodPatch, "/api/v1/orders/" + id, "admin-token", http.StatusMethodNotAllowed},
		{"upload needs admin", http.MethodPost, "/api/v1/uploads", "user-token", http.StatusForbidden},
		{"upload unavailable", http.MethodPost, "/api/v1/uploads", "admin-token", http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(r, tc.method, tc.target, tc.token, `{"review":"ok","rating":4}`)
			assert.Equal(t, tc.code, rec.Code, rec.Body.String())
		})
	}
}

func TestNestedProductReviews(t *testing.T) {
	r, reviews := newTestRouter(t)
	product := primitive.NewObjectID()

	rec := do(r, http.MethodGet, "/api/v1/products/"+product.Hex()+"/reviews", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, product, reviews.seen)

	rec = do(r, http.MethodGet, "/api/v1/products/"+product.Hex(), "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
