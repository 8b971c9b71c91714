package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/AnshRaj112/storefront-backend/internal/apperr"
	"github.com/AnshRaj112/storefront-backend/internal/middleware"
	"github.com/AnshRaj112/storefront-backend/internal/models"
	"github.com/AnshRaj112/storefront-backend/internal/query"
	"github.com/AnshRaj112/storefront-backend/internal/services"
)

// CacheHeader reports whether a list response came from the cache.
const CacheHeader = "X-Cache"

// DocumentStore is schemaless CRUD over one collection; services.ResourceStore
// implements it.
type DocumentStore interface {
	Name() string
	List(ctx context.Context, q *query.Query, base bson.M) ([]bson.M, error)
	Get(ctx context.Context, id primitive.ObjectID, base bson.M) (bson.M, error)
	Create(ctx context.Context, doc bson.M) (bson.M, error)
	Update(ctx context.Context, id primitive.ObjectID, base, doc bson.M) (bson.M, error)
	Delete(ctx context.Context, id primitive.ObjectID, base bson.M) error
}

// ResourceHandler serves getAll/getOne/create/updateOne/deleteOne for one
// collection.
type ResourceHandler struct {
	store DocumentStore
	cache *services.CacheService
	owner string
	log   *zap.Logger
	now   func() time.Time
}

type ResourceOption func(*ResourceHandler)

// Cached serves list reads through cache and invalidates it on writes.
func Cached(cache *services.CacheService) ResourceOption {
	return func(h *ResourceHandler) {
		h.cache = cache
	}
}

// OwnedBy scopes every operation of non-admin users to documents whose
// field holds their id. Creates stamp the field with the caller's id.
func OwnedBy(field string) ResourceOption {
	return func(h *ResourceHandler) {
		h.owner = field
	}
}

func NewResourceHandler(store DocumentStore, log *zap.Logger, opts ...ResourceOption) *ResourceHandler {
	h := &ResourceHandler{store: store, log: log, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type ListResponse struct {
	Status      string    `json:"status"`
	RequestedAt time.Time `json:"requestedAt"`
	Results     int       `json:"results"`
	Data        ListData  `json:"data"`
}

type ListData struct {
	Docs interface{} `json:"docs"`
}

type DocResponse struct {
	Status string  `json:"status"`
	Data   DocData `json:"data"`
}

type DocData struct {
	Doc bson.M `json:"doc"`
}

// scope returns the ownership predicate for the caller, or nil.
func (h *ResourceHandler) scope(r *http.Request) bson.M {
	if h.owner == "" {
		return nil
	}
	u := middleware.CurrentUser(r.Context())
	if u == nil || u.Role == models.RoleAdmin {
		return nil
	}
	return bson.M{h.owner: u.ID}
}

func storeError(err error) error {
	switch {
	case errors.Is(err, services.ErrDocumentNotFound):
		return apperr.NotFound("No document found with that ID")
	case errors.Is(err, services.ErrDuplicateKey):
		return apperr.Conflict("Duplicate field value. Please use another value!")
	}
	return apperr.Unexpected("database operation failed", err)
}

// List handles GET /
func (h *ResourceHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "", r.URL.Query(), h.scope(r))
}

// list serves a collection read. view namespaces the cache key for reads
// other than the plain listing.
func (h *ResourceHandler) list(w http.ResponseWriter, r *http.Request, view string, params url.Values, base bson.M, opts ...query.Option) {
	ctx := r.Context()
	requestedAt := h.now().UTC()

	// Owner-scoped lists differ per caller and are never cached.
	var key string
	if h.owner == "" || base == nil {
		var cached []map[string]interface{}
		var hit bool
		key, hit = h.cachedList(ctx, view, params, &cached)
		if hit {
			w.Header().Set(CacheHeader, "HIT")
			writeJSON(w, http.StatusOK, ListResponse{
				Status:      statusSuccess,
				RequestedAt: requestedAt,
				Results:     len(cached),
				Data:        ListData{Docs: cached},
			})
			return
		}
	}

	docs, err := h.store.List(ctx, query.Apply(params, opts...), base)
	if err != nil {
		writeError(w, r, h.log, storeError(err))
		return
	}
	if key != "" {
		if err := h.cache.Set(ctx, key, docs); err != nil {
			h.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
		w.Header().Set(CacheHeader, "MISS")
	}
	writeJSON(w, http.StatusOK, ListResponse{
		Status:      statusSuccess,
		RequestedAt: requestedAt,
		Results:     len(docs),
		Data:        ListData{Docs: docs},
	})
}

// Get handles GET /{id}
func (h *ResourceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	doc, err := h.store.Get(r.Context(), id, h.scope(r))
	if err != nil {
		writeError(w, r, h.log, storeError(err))
		return
	}
	writeJSON(w, http.StatusOK, DocResponse{Status: statusSuccess, Data: DocData{Doc: doc}})
}

// Create handles POST /
func (h *ResourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	body := bson.M{}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if h.owner != "" {
		u, err := requireUser(r)
		if err != nil {
			writeError(w, r, h.log, err)
			return
		}
		body[h.owner] = u.ID
	}
	doc, err := h.store.Create(r.Context(), body)
	if err != nil {
		writeError(w, r, h.log, storeError(err))
		return
	}
	h.invalidate(r.Context())
	writeJSON(w, http.StatusCreated, DocResponse{Status: statusSuccess, Data: DocData{Doc: doc}})
}

// Update handles PATCH /{id}
func (h *ResourceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	body := bson.M{}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if h.owner != "" {
		delete(body, h.owner)
	}
	doc, err := h.store.Update(r.Context(), id, h.scope(r), body)
	if err != nil {
		writeError(w, r, h.log, storeError(err))
		return
	}
	h.invalidate(r.Context())
	writeJSON(w, http.StatusOK, DocResponse{Status: statusSuccess, Data: DocData{Doc: doc}})
}

// Delete handles DELETE /{id}
func (h *ResourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r, "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.store.Delete(r.Context(), id, h.scope(r)); err != nil {
		writeError(w, r, h.log, storeError(err))
		return
	}
	h.invalidate(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// cachedList looks params up in the cache. It returns the key to store a
// fresh result under, or "" when caching is off or unavailable.
func (h *ResourceHandler) cachedList(ctx context.Context, view string, params url.Values, dest interface{}) (string, bool) {
	if h.cache == nil {
		return "", false
	}
	version, err := h.cache.Version(ctx, h.store.Name())
	if err != nil {
		h.log.Warn("cache version read failed", zap.String("collection", h.store.Name()), zap.Error(err))
		return "", false
	}
	key := services.ListKey(h.store.Name()+view, version, params)
	hit, err := h.cache.Get(ctx, key, dest)
	if err != nil {
		h.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return key, false
	}
	return key, hit
}

func (h *ResourceHandler) invalidate(ctx context.Context) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(ctx, h.store.Name()); err != nil {
		h.log.Warn("cache invalidation failed", zap.String("collection", h.store.Name()), zap.Error(err))
	}
}
