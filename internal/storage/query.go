package storage

import (
	"cmp"
	"fmt"
	"slices"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Op is a filter comparison.
type Op string

const (
	// OpEqual matches when the field equals the value.
	OpEqual Op = "=="
	// OpArrayContains matches when the field is a list holding the value.
	OpArrayContains Op = "array-contains"
)

// Filter is one condition on a top-level field.
type Filter struct {
	Field string `json:"field"`
	Op    Op     `json:"op"`
	Value any    `json:"value"`
}

// Query selects documents from one collection. Filters are ANDed.
type Query struct {
	Collection string   `json:"collection"`
	Filters    []Filter `json:"filters,omitempty"`
}

// NewQuery starts a query over collection.
func NewQuery(collection string) Query {
	return Query{Collection: collection}
}

// Where returns a copy of q with another filter added.
func (q Query) Where(field string, op Op, value any) Query {
	q.Filters = append(slices.Clone(q.Filters), Filter{Field: field, Op: op, Value: value})
	return q
}

// Normalize validates q and returns it with filter values in canonical form.
func (q Query) Normalize() (Query, error) {
	if err := ValidateCollection(q.Collection); err != nil {
		return Query{}, err
	}
	out := Query{Collection: q.Collection, Filters: make([]Filter, 0, len(q.Filters))}
	for _, f := range q.Filters {
		if f.Field == "" {
			return Query{}, fmt.Errorf("%w: filter field is required", ErrInvalidArgument)
		}
		if f.Op != OpEqual && f.Op != OpArrayContains {
			return Query{}, fmt.Errorf("%w: unsupported operator %q", ErrInvalidArgument, f.Op)
		}
		v, err := NormalizeValue(f.Value)
		if err != nil {
			return Query{}, err
		}
		out.Filters = append(out.Filters, Filter{Field: f.Field, Op: f.Op, Value: v})
	}
	return out, nil
}

// Matches reports whether doc satisfies every filter. Filter values and
// document fields are expected to be normalized.
func (q Query) Matches(doc *Document) bool {
	for _, f := range q.Filters {
		v, ok := doc.Fields[f.Field]
		if !ok {
			return false
		}
		switch f.Op {
		case OpEqual:
			if !valuesEqual(v, f.Value) {
				return false
			}
		case OpArrayContains:
			list, ok := v.([]any)
			if !ok || !slices.ContainsFunc(list, func(e any) bool { return valuesEqual(e, f.Value) }) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	av, err := structpb.NewValue(a)
	if err != nil {
		return false
	}
	bv, err := structpb.NewValue(b)
	if err != nil {
		return false
	}
	return proto.Equal(av, bv)
}

// SortDocuments orders docs by CreatedAt, then ID.
func SortDocuments(docs []Document) {
	slices.SortFunc(docs, func(a, b Document) int {
		if c := cmp.Compare(a.CreatedAt, b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
