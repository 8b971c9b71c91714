package handlers

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AnshRaj112/storefront-backend/internal/apperr"
	"github.com/AnshRaj112/storefront-backend/internal/query"
)

// Preset is a canned read over a resource collection, mounted at Path.
// Base turns the request into a fixed predicate; any other query parameters
// still filter, sort and page the result. Consume names the parameters Base
// reads, which are kept out of the generic filter.
type Preset struct {
	Path    string
	Consume []string
	Base    func(r *http.Request) (bson.M, error)
	Options []query.Option
}

// Preset returns the handler for p.
func (h *ResourceHandler) Preset(p Preset) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		base, err := p.Base(r)
		if err != nil {
			writeError(w, r, h.log, err)
			return
		}
		params := url.Values{}
		for k, v := range r.URL.Query() {
			params[k] = v
		}
		for _, k := range p.Consume {
			params.Del(k)
		}
		// path values are part of base, so the cache key needs the path too
		view := r.URL.Path
		if p.Consume != nil {
			view += "?" + consumed(r.URL.Query(), p.Consume).Encode()
		}
		h.list(w, r, view, params, and(h.scope(r), base), p.Options...)
	}
}

func consumed(all url.Values, keys []string) url.Values {
	out := url.Values{}
	for _, k := range keys {
		if v, ok := all[k]; ok {
			out[k] = v
		}
	}
	return out
}

// activeOnly matches catalog entries not switched off. Entries written
// without the flag count as active.
func activeOnly() bson.M {
	return bson.M{"isActive": bson.M{"$ne": false}}
}

func and(preds ...bson.M) bson.M {
	var parts bson.A
	for _, p := range preds {
		if len(p) > 0 {
			parts = append(parts, p)
		}
	}
	switch len(parts) {
	case 0:
		return nil
	case 1:
		return parts[0].(bson.M)
	}
	return bson.M{"$and": parts}
}

// Flagged lists active entries with flag set to true.
func Flagged(path, flag string, opts ...query.Option) Preset {
	return Preset{
		Path: path,
		Base: func(*http.Request) (bson.M, error) {
			return and(activeOnly(), bson.M{flag: true}), nil
		},
		Options: opts,
	}
}

// Search matches ?q= case-insensitively, as a literal substring, against
// fields of active entries.
func Search(fields ...string) Preset {
	return Preset{
		Path:    "/search",
		Consume: []string{"q"},
		Base: func(r *http.Request) (bson.M, error) {
			q := strings.TrimSpace(r.URL.Query().Get("q"))
			if q == "" {
				return nil, apperr.Validation("Search query is required")
			}
			pattern := primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
			or := make(bson.A, 0, len(fields))
			for _, f := range fields {
				or = append(or, bson.M{f: pattern})
			}
			return and(activeOnly(), bson.M{"$or": or}), nil
		},
	}
}

// ByRef lists active entries whose field references the id in URL
// parameter param. References stored as strings match too.
func ByRef(path, param, field string, opts ...query.Option) Preset {
	return Preset{
		Path: path,
		Base: func(r *http.Request) (bson.M, error) {
			id, err := objectIDParam(r, param)
			if err != nil {
				return nil, err
			}
			return and(activeOnly(), bson.M{field: bson.M{"$in": bson.A{id, id.Hex()}}}), nil
		},
		Options: opts,
	}
}

// ByParam lists active entries whose field equals URL parameter param.
func ByParam(path, param, field string, opts ...query.Option) Preset {
	return Preset{
		Path: path,
		Base: func(r *http.Request) (bson.M, error) {
			v := strings.TrimSpace(chi.URLParam(r, param))
			if v == "" {
				return nil, apperr.Validation("Missing " + param)
			}
			return and(activeOnly(), bson.M{field: v}), nil
		},
		Options: opts,
	}
}

var catalogOrder = bson.D{{Key: "sortOrder", Value: 1}, {Key: "name", Value: 1}}

// ProductPresets are the storefront shortcuts over the products collection.
func ProductPresets() []Preset {
	return []Preset{
		Flagged("/featured", "isFeatured", query.WithDefaultLimit(8)),
		Flagged("/new-arrivals", "isNewArrival", query.WithDefaultLimit(8)),
		Search("title", "description", "brand", "style", "tags"),
		ByRef("/category/{categoryId}", "categoryId", "category"),
	}
}

// CategoryPresets are the storefront shortcuts over the categories collection.
func CategoryPresets() []Preset {
	return []Preset{
		Flagged("/featured", "isFeatured", query.WithDefaultSort(bson.D{{Key: "sortOrder", Value: 1}})),
		ByParam("/gender/{gender}", "gender", "gender", query.WithDefaultSort(catalogOrder)),
	}
}
