package verify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Detection is one sensitive-identifier annotation over a document,
// produced by an external extractor. Offsets are character positions with
// an exclusive end. Detections are immutable once constructed.
type Detection struct {
	Category   string  `json:"category"`
	Value      string  `json:"value"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
}

// Status is the compliance verdict for one document.
type Status int

const (
	StatusCompliant Status = iota + 1
	StatusViolation
	StatusError
)

// String returns the lowercase wire name.
func (s Status) String() string {
	switch s {
	case StatusCompliant:
		return "compliant"
	case StatusViolation:
		return "violation"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the status as its wire name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a wire status name.
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "compliant":
		*s = StatusCompliant
	case "violation":
		*s = StatusViolation
	case "error":
		*s = StatusError
	default:
		return fmt.Errorf("unknown status %q", name)
	}
	return nil
}

// Span is a half-open character range within the source document.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// RuleRef identifies a violated rule within a violation record.
type RuleRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Violation is one violating detection with the rules it breaks.
type Violation struct {
	Category      string    `json:"category"`
	Value         string    `json:"value"`
	Location      Span      `json:"location"`
	Confidence    float64   `json:"confidence"`
	ViolatedRules []RuleRef `json:"violated_rules"`
}

// Report aggregates the violating detections of one document. Violations
// are in input order and are never deduplicated; CategoriesViolated holds
// the distinct categories in first-occurrence order.
type Report struct {
	NumViolations      int         `json:"num_violations"`
	Violations         []Violation `json:"violations"`
	CategoriesViolated []string    `json:"categories_violated"`
}

// Result is the auditable outcome of one verification.
type Result struct {
	Status     Status            `json:"status"`
	Entities   []Detection       `json:"entities"`
	Proof      string            `json:"proof"`
	Violations *Report           `json:"violations"`
	Metadata   map[string]string `json:"metadata"`
}

// ErrInputShape indicates a wire payload that is neither a detection
// array nor an object with an "entities" key.
var ErrInputShape = errors.New(`payload must be a detection array or an object with an "entities" key`)

// wireDetection carries the JSON shape with optional fields. Confidence
// is a pointer so an omitted value can default to 1.0 rather than 0.
type wireDetection struct {
	Category   string   `json:"category"`
	Value      string   `json:"value"`
	Start      int      `json:"start"`
	End        int      `json:"end"`
	Confidence *float64 `json:"confidence"`
}

// ParseDetections converts a wire payload into detections. It accepts
// either a bare JSON array of detection records or {"entities": [...]};
// omitted fields default to value="", start=0, end=0, confidence=1.0.
// Anything else fails with ErrInputShape.
func ParseDetections(data []byte) ([]Detection, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, ErrInputShape
	}

	var wire []wireDetection
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &wire); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInputShape, err)
		}
	case '{':
		var envelope struct {
			Entities *[]wireDetection `json:"entities"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInputShape, err)
		}
		if envelope.Entities == nil {
			return nil, ErrInputShape
		}
		wire = *envelope.Entities
	default:
		return nil, ErrInputShape
	}

	dets := make([]Detection, 0, len(wire))
	for i, w := range wire {
		if w.Category == "" {
			return nil, fmt.Errorf("%w: detection %d missing category", ErrInputShape, i)
		}
		confidence := 1.0
		if w.Confidence != nil {
			confidence = *w.Confidence
		}
		dets = append(dets, Detection{
			Category:   w.Category,
			Value:      w.Value,
			Start:      w.Start,
			End:        w.End,
			Confidence: confidence,
		})
	}
	return dets, nil
}
