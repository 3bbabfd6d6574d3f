package api

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/aare-health/safeharbor/internal/storage"
	"github.com/aare-health/safeharbor/internal/verify"
)

// maxBodySize bounds verification request bodies (4 MiB).
const maxBodySize = 4 << 20

// handleVerify implements POST /v1/verify.
// The body is either a bare detection array or {"entities": [...]}.
func (d *Dependencies) handleVerify(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Failed to read request body"})
		return
	}

	dets, err := verify.ParseDetections(body)
	if err != nil {
		if errors.Is(err, verify.ErrInputShape) {
			writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: err.Error()})
			return
		}
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}

	proj := projectFromContext(r.Context())
	if proj == nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "missing project context"})
		return
	}

	result := d.Verifier.Verify(dets)
	requestID := uuid.NewString()

	d.Writer.Write(auditEvent(requestID, proj.ID, "verify", "api", result, time.Since(start)))

	writeJSON(w, http.StatusOK, result)
}

// handleVerifyBatch implements POST /v1/verify/batch.
// Documents are parsed independently; a malformed document fails the
// whole request at the parse boundary, before any verification runs.
func (d *Dependencies) handleVerifyBatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req BatchVerifyRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}

	proj := projectFromContext(r.Context())
	if proj == nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "missing project context"})
		return
	}

	docs := make([][]verify.Detection, 0, len(req.Documents))
	for i, raw := range req.Documents {
		dets, err := verify.ParseDetections(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResp{
				Detail: fmt.Sprintf("document %d: %v", i, err),
			})
			return
		}
		docs = append(docs, dets)
	}

	results := d.Verifier.BatchVerify(docs)

	requestID := uuid.NewString()
	latency := time.Since(start)
	for _, res := range results {
		d.Writer.Write(auditEvent(requestID, proj.ID, "verify_batch", "batch", res, latency))
	}

	writeJSON(w, http.StatusOK, BatchVerifyResponse{Results: results})
}

// handleVerifyText implements POST /v1/verify/text.
// Extraction failures surface as an error-status result with HTTP 200;
// the failure is recovered at the engine boundary, not here.
func (d *Dependencies) handleVerifyText(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req VerifyTextRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}

	proj := projectFromContext(r.Context())
	if proj == nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "missing project context"})
		return
	}

	result := d.Verifier.VerifyText(r.Context(), req.Text, d.Extractor)
	requestID := uuid.NewString()

	event := auditEvent(requestID, proj.ID, "verify_text", "api", result, time.Since(start))
	event.DocPreview = storage.TruncateDocument(req.Text, storage.DocPreviewLength)
	hash := sha256.Sum256([]byte(req.Text))
	event.DocHash = hex.EncodeToString(hash[:])
	d.Writer.Write(event)

	writeJSON(w, http.StatusOK, result)
}

// auditEvent converts a verification result to its audit record.
func auditEvent(requestID, projectID, endpoint, source string, res *verify.Result, latency time.Duration) *storage.AuditEvent {
	event := &storage.AuditEvent{
		RequestID:   requestID,
		ProjectID:   projectID,
		Timestamp:   time.Now().UTC(),
		Endpoint:    endpoint,
		Status:      res.Status.String(),
		NumEntities: uint32(len(res.Entities)),
		LatencyMs:   float32(latency.Seconds() * 1000),
		Source:      source,
	}

	for _, e := range res.Entities {
		event.EntityCategories = append(event.EntityCategories, e.Category)
	}

	if res.Violations != nil {
		event.NumViolations = uint32(res.Violations.NumViolations)
		event.CategoriesViolated = append(event.CategoriesViolated, res.Violations.CategoriesViolated...)
		seen := make(map[string]bool)
		for _, v := range res.Violations.Violations {
			for _, ref := range v.ViolatedRules {
				if !seen[ref.ID] {
					seen[ref.ID] = true
					event.RuleIDs = append(event.RuleIDs, ref.ID)
				}
			}
		}
	}

	if res.Status == verify.StatusError {
		event.ErrorDetail = res.Metadata["error"]
	}

	return event
}
