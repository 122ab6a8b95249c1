package models

import (
	"encoding/json"
	"fmt"
)

// GroupsCollection holds one document per group.
const GroupsCollection = "groups"

// Document field names shared with the store's queries.
const (
	FieldName         = "name"
	FieldCode         = "code"
	FieldOwnerUID     = "ownerUid"
	FieldMembers      = "members"
	FieldProducts     = "products"
	FieldCostEntries  = "kostnader"
	FieldTransactions = "transactions"
	FieldCreatedAt    = "createdAt"
)

// groupDoc is the stored shape of a group.
type groupDoc struct {
	Name         string        `json:"name"`
	Code         string        `json:"code"`
	OwnerUID     string        `json:"ownerUid"`
	Members      []string      `json:"members"`
	Products     []Product     `json:"products"`
	CostEntries  []CostEntry   `json:"kostnader"`
	Transactions []Transaction `json:"transactions,omitempty"`
	CreatedAt    int64         `json:"createdAt"`
}

// GroupFields converts a group to a document field map. The ID is not included.
func GroupFields(g Group) (map[string]any, error) {
	g = g.Clone()
	g.normalize()
	doc := groupDoc{
		Name:        g.Name,
		Code:        g.Code,
		OwnerUID:    g.OwnerUID,
		Members:     g.Members,
		Products:    g.Products,
		CostEntries: g.CostEntries,
		CreatedAt:   g.CreatedAt,
	}
	fields, err := EncodeValue(doc)
	if err != nil {
		return nil, err
	}
	m, ok := fields.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("group encoded to %T, want object", fields)
	}
	return m, nil
}

// GroupFromFields rebuilds a group from its document ID and field map.
// Derived product totals are recomputed and legacy transactions are folded
// into cost entries.
func GroupFromFields(id string, fields map[string]any) (Group, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return Group{}, fmt.Errorf("failed to encode group %s: %w", id, err)
	}
	var doc groupDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Group{}, fmt.Errorf("failed to decode group %s: %w", id, err)
	}

	g := Group{
		ID:          id,
		Name:        doc.Name,
		Code:        doc.Code,
		OwnerUID:    doc.OwnerUID,
		Members:     doc.Members,
		Products:    doc.Products,
		CostEntries: doc.CostEntries,
		CreatedAt:   doc.CreatedAt,
	}
	for _, t := range doc.Transactions {
		g.CostEntries = append(g.CostEntries, t.AsCostEntry())
	}
	g.normalize()
	return g, nil
}

// EncodeValue turns any JSON-encodable value into the plain
// map/slice/float64/string/bool shape documents are stored in.
func EncodeValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode value: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode value: %w", err)
	}
	return out, nil
}
