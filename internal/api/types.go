package api

import (
	"encoding/json"
	"time"

	"github.com/aare-health/safeharbor/internal/verify"
)

// --- Verification endpoints ---

// BatchVerifyRequest is the JSON body for POST /v1/verify/batch.
// Each document is parsed independently and may be either a bare
// detection array or an {"entities": [...]} object.
type BatchVerifyRequest struct {
	Documents []json.RawMessage `json:"documents"`
}

// BatchVerifyResponse wraps the per-document results, in input order.
type BatchVerifyResponse struct {
	Results []*verify.Result `json:"results"`
}

// VerifyTextRequest is the JSON body for POST /v1/verify/text.
type VerifyTextRequest struct {
	Text string `json:"text"`
}

// --- Project CRUD ---

// CreateProjectReq is the JSON body for POST /api/safeharbor/projects.
type CreateProjectReq struct {
	Name string `json:"name"`
}

// CreateProjectResp includes the plaintext API key (shown once).
type CreateProjectResp struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	APIKey       string    `json:"api_key"`
	APIKeyPrefix string    `json:"api_key_prefix"`
	CreatedAt    time.Time `json:"created_at"`
}

// ProjectResp is a project without its plaintext key.
type ProjectResp struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	APIKeyPrefix string    `json:"api_key_prefix"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RotateKeyResp includes the new plaintext API key (shown once).
type RotateKeyResp struct {
	APIKey       string `json:"api_key"`
	APIKeyPrefix string `json:"api_key_prefix"`
}

// --- Catalogue ---

// CategoryResp is one Safe Harbor category with its derived BIO labels.
type CategoryResp struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Examples    []string `json:"examples"`
	Prohibited  bool     `json:"prohibited"`
	BIOLabels   []string `json:"bio_labels"`
}

// LabelsResp carries the ordered label vocabulary.
type LabelsResp struct {
	Labels    []string `json:"labels"`
	NumLabels int      `json:"num_labels"`
}

// ErrorResp is a standard error response body.
type ErrorResp struct {
	Detail string `json:"detail"`
}
