package server

import "github.com/hektorlabs/vdbgate/internal/engine"

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is the body returned on successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// CreateCollectionRequest is the body for POST /collections.
//
// Dimension and Metric are optional; omitted values default to 1536 and
// cosine. Pointers distinguish "omitted" from an explicit zero, which is
// invalid and must be rejected rather than defaulted.
type CreateCollectionRequest struct {
	Name      string `json:"name"`
	Dimension *int   `json:"dimension"`
	Metric    string `json:"metric"`
}

// DocumentRequest is one document in an add or batch-add body.
type DocumentRequest struct {
	Content      string         `json:"content"`
	Metadata     map[string]any `json:"metadata"`
	DocumentType string         `json:"document_type"`
}

// BatchAddRequest is the body for POST /collections/{name}/documents/batch.
type BatchAddRequest struct {
	Documents []DocumentRequest `json:"documents"`
}

// SearchRequest is the body for POST /collections/{name}/search.
type SearchRequest struct {
	Query   string         `json:"query"`
	K       *int           `json:"k"`
	Filters map[string]any `json:"filters"`
}

// AddDocumentResponse is returned from a single document add.
type AddDocumentResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// BatchAddResponse is returned from a batch add. Failed lists per-element
// insert failures after validation passed; it is omitted when empty.
type BatchAddResponse struct {
	IDs     []string              `json:"ids"`
	Count   int                   `json:"count"`
	Failed  []engine.BatchFailure `json:"failed,omitempty"`
	Message string                `json:"message"`
}

// DeleteCollectionResponse is returned from a collection delete.
type DeleteCollectionResponse struct {
	Message string `json:"message"`
}

// HealthResponse is the body for GET /health.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Database      string  `json:"database"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}
