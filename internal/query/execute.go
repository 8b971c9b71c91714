package query

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Finder is the read surface of a collection; *mongo.Collection satisfies it.
type Finder interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
}

// FindOptions converts the sort, projection and window to driver options.
func (q *Query) FindOptions() *options.FindOptions {
	opts := options.Find().
		SetSort(q.Sort).
		SetSkip(q.Skip).
		SetLimit(q.Limit)
	if len(q.Projection) > 0 {
		opts.SetProjection(q.Projection)
	}
	return opts
}

// Where returns the filter AND-ed with a caller predicate. A nil or empty
// base leaves the filter unchanged.
func (q *Query) Where(base bson.M) bson.M {
	if len(base) == 0 {
		return q.Filter
	}
	if len(q.Filter) == 0 {
		return base
	}
	return bson.M{"$and": bson.A{base, q.Filter}}
}

// Find executes the query against col and decodes every document into out.
func (q *Query) Find(ctx context.Context, col Finder, base bson.M, out interface{}) error {
	cur, err := col.Find(ctx, q.Where(base), q.FindOptions())
	if err != nil {
		return err
	}
	defer cur.Close(ctx)
	return cur.All(ctx, out)
}
