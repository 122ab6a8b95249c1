package remote

import (
	"github.com/mmynk/workaholic/internal/storage"
	"github.com/mmynk/workaholic/pkg/api"
)

// ToAPIDocument converts a stored document to its wire form.
func ToAPIDocument(doc storage.Document) api.Document {
	return api.Document{ID: doc.ID, Fields: doc.Fields, CreatedAt: doc.CreatedAt}
}

// ToAPIDocuments converts a result set. The result is never nil.
func ToAPIDocuments(docs []storage.Document) []api.Document {
	out := make([]api.Document, len(docs))
	for i, d := range docs {
		out[i] = ToAPIDocument(d)
	}
	return out
}

// FromAPIDocument converts a wire document, normalizing its fields.
func FromAPIDocument(doc api.Document) (storage.Document, error) {
	fields, err := storage.NormalizeFields(doc.Fields)
	if err != nil {
		return storage.Document{}, err
	}
	return storage.Document{ID: doc.ID, Fields: fields, CreatedAt: doc.CreatedAt}, nil
}

// FromAPIDocuments converts a wire result set.
func FromAPIDocuments(docs []api.Document) ([]storage.Document, error) {
	out := make([]storage.Document, 0, len(docs))
	for _, d := range docs {
		doc, err := FromAPIDocument(d)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// ToAPIQuery converts a query to its wire form.
func ToAPIQuery(q storage.Query) api.Query {
	out := api.Query{Collection: q.Collection}
	for _, f := range q.Filters {
		out.Filters = append(out.Filters, api.Filter{Field: f.Field, Op: string(f.Op), Value: f.Value})
	}
	return out
}

// FromAPIQuery converts and validates a wire query.
func FromAPIQuery(q api.Query) (storage.Query, error) {
	out := storage.NewQuery(q.Collection)
	for _, f := range q.Filters {
		out = out.Where(f.Field, storage.Op(f.Op), f.Value)
	}
	return out.Normalize()
}
