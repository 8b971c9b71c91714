// Package query turns list-endpoint query strings into Mongo read queries.
//
//	price[gte]=10&category=shoes  filter
//	sort=price,-createdAt         sort keys, left to right
//	fields=name,price             projection allowlist
//	page=2&limit=10               pagination window
//
// Building never touches the database; the caller executes the result once.
package query

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

const (
	DefaultPage  int64 = 1
	DefaultLimit int64 = 100
)

// DefaultSort applies when no sort parameter is given: newest first.
var DefaultSort = bson.D{{Key: "createdAt", Value: -1}}

// reserved parameters control the query shape and are never filter fields.
var reserved = map[string]struct{}{
	"sort":   {},
	"fields": {},
	"page":   {},
	"limit":  {},
}

var operators = map[string]string{
	"gte": "$gte",
	"gt":  "$gt",
	"lte": "$lte",
	"lt":  "$lt",
}

// Query is a composed read: filter, sort, projection and window.
type Query struct {
	Filter     bson.M
	Sort       bson.D
	Projection bson.D
	Page       int64
	Skip       int64
	Limit      int64
}

// Builder applies the four stages to a Query. Stages are independent: each
// reads the parameters it owns and writes only its own part of the query.
type Builder struct {
	params   url.Values
	excluded []string
	sort     bson.D
	limit    int64
	q        *Query
}

// Option customises a Builder.
type Option func(*Builder)

// WithExcluded replaces the internal fields. Excluded fields are never
// projected, filtered on or sorted by, including their dotted sub-paths.
func WithExcluded(fields ...string) Option {
	return func(b *Builder) {
		b.excluded = append([]string(nil), fields...)
	}
}

// WithDefaultSort replaces DefaultSort for this builder.
func WithDefaultSort(keys bson.D) Option {
	return func(b *Builder) {
		if len(keys) > 0 {
			b.sort = keys
		}
	}
}

// WithDefaultLimit replaces DefaultLimit when no limit parameter is given.
func WithDefaultLimit(n int64) Option {
	return func(b *Builder) {
		if n > 0 {
			b.limit = n
		}
	}
}

func New(params url.Values, opts ...Option) *Builder {
	b := &Builder{
		params:   params,
		excluded: []string{"__v"},
		sort:     DefaultSort,
		limit:    DefaultLimit,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.q = &Query{
		Filter:     bson.M{},
		Sort:       b.sort,
		Projection: exclusion(b.excluded),
		Page:       DefaultPage,
		Limit:      b.limit,
	}
	return b
}

// Apply runs every stage and returns the query.
func Apply(params url.Values, opts ...Option) *Query {
	return New(params, opts...).Filter().Sort().LimitFields().Paginate().Build()
}

// Filter translates the non-reserved parameters into a match document.
func (b *Builder) Filter() *Builder {
	filter := bson.M{}
	for key, values := range b.params {
		if len(values) == 0 {
			continue
		}
		// last value wins for repeated parameters
		raw := values[len(values)-1]

		field, op := splitOperator(key)
		if _, ok := reserved[field]; ok {
			continue
		}
		if field == "" || strings.HasPrefix(field, "$") || b.hidden(field) {
			continue
		}

		value := coerce(raw)
		if op == "" {
			mergeEquality(filter, field, value)
			continue
		}
		mergeOperator(filter, field, op, value)
	}
	b.q.Filter = filter
	return b
}

// Sort parses sort=a,-b into ordered keys. A leading '-' means descending.
func (b *Builder) Sort() *Builder {
	raw := strings.TrimSpace(b.params.Get("sort"))
	if raw == "" {
		b.q.Sort = b.sort
		return b
	}

	var keys bson.D
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		dir := 1
		if strings.HasPrefix(part, "-") {
			dir = -1
			part = strings.TrimSpace(strings.TrimPrefix(part, "-"))
		} else if strings.HasPrefix(part, "+") {
			part = strings.TrimSpace(strings.TrimPrefix(part, "+"))
		}
		if part == "" || strings.HasPrefix(part, "$") || b.hidden(part) {
			continue
		}
		keys = append(keys, bson.E{Key: part, Value: dir})
	}
	if len(keys) == 0 {
		keys = b.sort
	}
	b.q.Sort = keys
	return b
}

// LimitFields builds the projection: an allowlist when fields= is present,
// otherwise an exclusion of internal bookkeeping fields.
func (b *Builder) LimitFields() *Builder {
	raw := strings.TrimSpace(b.params.Get("fields"))
	if raw == "" {
		b.q.Projection = exclusion(b.excluded)
		return b
	}

	seen := map[string]struct{}{}
	var proj bson.D
	for _, f := range strings.Split(raw, ",") {
		f = strings.TrimSpace(f)
		if f == "" || strings.HasPrefix(f, "$") {
			continue
		}
		if b.hidden(f) {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		proj = append(proj, bson.E{Key: f, Value: 1})
	}
	if len(proj) == 0 {
		proj = exclusion(b.excluded)
	}
	b.q.Projection = proj
	return b
}

// Paginate computes skip/limit from page and limit. Non-positive or
// unparsable values fall back to the defaults. There is no upper bound on
// limit; a skip past math.MaxInt64 is clamped there.
func (b *Builder) Paginate() *Builder {
	page := positiveInt(b.params.Get("page"), DefaultPage)
	limit := positiveInt(b.params.Get("limit"), b.limit)

	b.q.Page = page
	b.q.Limit = limit
	if page-1 > math.MaxInt64/limit {
		b.q.Skip = math.MaxInt64
	} else {
		b.q.Skip = (page - 1) * limit
	}
	return b
}

// Build returns the composed query.
func (b *Builder) Build() *Query {
	return b.q
}

// hidden reports whether field is an excluded field or a path beneath one.
func (b *Builder) hidden(field string) bool {
	for _, f := range b.excluded {
		if field == f || strings.HasPrefix(field, f+".") {
			return true
		}
	}
	return false
}

// splitOperator splits "price[gte]" into ("price", "$gte"). Unknown suffixes
// are left as part of the field name.
func splitOperator(key string) (string, string) {
	key = strings.TrimSpace(key)
	open := strings.LastIndex(key, "[")
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return key, ""
	}
	op, ok := operators[key[open+1:len(key)-1]]
	if !ok {
		return key, ""
	}
	return key[:open], op
}

func mergeEquality(filter bson.M, field string, value interface{}) {
	if existing, ok := filter[field].(bson.M); ok {
		existing["$eq"] = value
		return
	}
	filter[field] = value
}

func mergeOperator(filter bson.M, field, op string, value interface{}) {
	switch existing := filter[field].(type) {
	case bson.M:
		existing[op] = value
	case nil:
		filter[field] = bson.M{op: value}
	default:
		// an equality was set first; keep it alongside the comparison
		filter[field] = bson.M{"$eq": existing, op: value}
	}
}

// coerce infers a scalar type from a query-string literal, since nothing
// downstream casts against a schema.
func coerce(raw string) interface{} {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && !strings.ContainsAny(raw, "xXpPiInN") {
		return f
	}
	return raw
}

func positiveInt(raw string, def int64) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func exclusion(fields []string) bson.D {
	proj := make(bson.D, 0, len(fields))
	for _, f := range fields {
		proj = append(proj, bson.E{Key: f, Value: 0})
	}
	return proj
}
