// Package models defines the core domain models for Workaholic.
//
// # Models
//
//   - Group: a shared workspace owned by one user, joined by others via its code
//   - Product: a priced, quantified line item (purchase price, markup, VAT)
//   - CostEntry: labor hours and travel cost billed in full to the customer
//   - Transaction: legacy line item, read from old documents and folded into CostEntry
//   - User: profile of a registered account
//   - Notification: unread message feeding the badge counters
//
// # Line items
//
// Groups own their line items by value. Every mutation replaces the whole
// product or cost-entry list; there is no row-level persistence.
//
// Text and numeric input is normalized before it reaches a line item (see
// normalize.go): text starts with an upper-case letter, numeric input keeps
// digits only, so no stored number is ever negative.
//
// # Documents
//
// Groups travel to and from the document store as plain field maps
// (see document.go). The document ID is never part of the field map.
package models
