package storage

import "time"

// EventWriter is the interface for writing verification audit events.
// Write() must NEVER block the caller.
type EventWriter interface {
	Write(event *AuditEvent)
	Close()
}

// AuditEvent records one verification outcome for the audit trail.
// The source document is never stored whole, only a bounded preview
// and a hash, and only for the text entry point.
type AuditEvent struct {
	RequestID          string
	ProjectID          string
	Timestamp          time.Time
	Endpoint           string // "verify", "verify_batch", "verify_text"
	DocPreview         string // First 500 chars of the document text
	DocHash            string // SHA256 of the full document text
	Status             string // "compliant", "violation", "error"
	NumEntities        uint32
	NumViolations      uint32
	EntityCategories   []string
	CategoriesViolated []string
	RuleIDs            []string // Distinct violated rule ids, catalogue order
	ErrorDetail        string
	LatencyMs          float32
	Source             string // "api" or "batch"
}

// DocPreviewLength is the max chars stored in doc_preview.
const DocPreviewLength = 500

// TruncateDocument returns the first N characters (runes) of a document
// for preview storage. It never splits a multi-byte UTF-8 character.
func TruncateDocument(doc string, maxLen int) string {
	runes := []rune(doc)
	if len(runes) <= maxLen {
		return doc
	}
	return string(runes[:maxLen])
}
