package models

import "slices"

// Group is a shared workspace with members, products and cost entries.
type Group struct {
	// ID is the opaque document ID assigned on creation.
	ID string

	// Name is the display name, always capitalized.
	Name string

	// Code is the short join code other users import the group with.
	Code string

	// OwnerUID identifies the user who created the group.
	OwnerUID string

	// Members holds the uids that can see the group. The owner is always one.
	Members []string

	// Products is the group's product list, replaced as a whole on change.
	Products []Product

	// CostEntries is the group's cost list, replaced as a whole on change.
	CostEntries []CostEntry

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64
}

// HasMember reports whether uid is the owner or a member.
func (g *Group) HasMember(uid string) bool {
	return uid != "" && (g.OwnerUID == uid || slices.Contains(g.Members, uid))
}

// AddMember adds uid to Members. It returns false if uid was already there.
func (g *Group) AddMember(uid string) bool {
	if slices.Contains(g.Members, uid) {
		return false
	}
	g.Members = append(g.Members, uid)
	return true
}

// Clone returns a deep copy, so callers can't alias the store's slices.
func (g Group) Clone() Group {
	g.Members = slices.Clone(g.Members)
	g.Products = slices.Clone(g.Products)
	g.CostEntries = slices.Clone(g.CostEntries)
	return g
}

// normalize enforces the invariants every group read from a document holds.
func (g *Group) normalize() {
	if g.OwnerUID != "" && !slices.Contains(g.Members, g.OwnerUID) {
		g.Members = append([]string{g.OwnerUID}, g.Members...)
	}
	if g.Members == nil {
		g.Members = []string{}
	}
	if g.Products == nil {
		g.Products = []Product{}
	}
	if g.CostEntries == nil {
		g.CostEntries = []CostEntry{}
	}
	for i := range g.Products {
		g.Products[i].Recompute()
	}
}
