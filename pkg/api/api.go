// Package api holds the wire messages and Connect glue for the Workaholic
// document and auth services.
package api

// Document is a stored document as it travels over the wire.
type Document struct {
	ID        string         `json:"id"`
	Fields    map[string]any `json:"fields"`
	CreatedAt int64          `json:"createdAt"`
}

// Filter is one query condition; Op is "==" or "array-contains".
type Filter struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value any    `json:"value"`
}

// Query selects documents from one collection. Filters are ANDed.
type Query struct {
	Collection string   `json:"collection"`
	Filters    []Filter `json:"filters,omitempty"`
}

type CreateDocumentRequest struct {
	Collection string   `json:"collection"`
	Document   Document `json:"document"`
}

type CreateDocumentResponse struct {
	Document Document `json:"document"`
}

type GetDocumentRequest struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

type GetDocumentResponse struct {
	Document Document `json:"document"`
}

type UpdateDocumentRequest struct {
	Collection string         `json:"collection"`
	ID         string         `json:"id"`
	Fields     map[string]any `json:"fields"`
}

type UpdateDocumentResponse struct{}

type ArrayUnionRequest struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Field      string `json:"field"`
	Values     []any  `json:"values"`
}

type ArrayUnionResponse struct{}

type DeleteDocumentRequest struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

type DeleteDocumentResponse struct{}

type QueryDocumentsRequest struct {
	Query Query `json:"query"`
}

type QueryDocumentsResponse struct {
	Documents []Document `json:"documents"`
}

type WatchRequest struct {
	Query Query `json:"query"`
}

// WatchResponse is one full snapshot of the watched query.
type WatchResponse struct {
	Documents []Document `json:"documents"`
}

// User is the public profile of an account.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	CreatedAt   int64  `json:"createdAt"`
}

type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type RegisterResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type GetCurrentUserRequest struct{}

type GetCurrentUserResponse struct {
	User User `json:"user"`
}

type UpdateProfileRequest struct {
	DisplayName string `json:"displayName"`
}

type UpdateProfileResponse struct {
	User User `json:"user"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type ChangePasswordResponse struct{}
