package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/aare-health/safeharbor/internal/extract"
	"github.com/aare-health/safeharbor/internal/labels"
	"github.com/aare-health/safeharbor/internal/policy"
	"github.com/aare-health/safeharbor/internal/rules"
	"github.com/aare-health/safeharbor/internal/storage"
	"github.com/aare-health/safeharbor/internal/verify"
)

// captureWriter records audit events for assertions.
type captureWriter struct {
	mu     sync.Mutex
	events []*storage.AuditEvent
}

func (w *captureWriter) Write(e *storage.AuditEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, e)
}

func (w *captureWriter) Close() {}

func (w *captureWriter) all() []*storage.AuditEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*storage.AuditEvent(nil), w.events...)
}

func newTestDeps(t *testing.T) (*Dependencies, *captureWriter) {
	t.Helper()
	p := policy.Default()
	writer := &captureWriter{}
	return &Dependencies{
		Verifier:  verify.NewVerifier(rules.New(p), zap.NewNop()),
		Mapper:    labels.NewMapper(p),
		Extractor: extract.NewRegexExtractor(),
		Writer:    writer,
		Logger:    zap.NewNop(),
		CacheTTL:  30 * time.Second,
	}, writer
}

// authedRequest builds a request carrying an authenticated project, the
// way authMiddleware would hand it to a handler.
func authedRequest(method, target, body string) *http.Request {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := context.WithValue(r.Context(), projectCtxKey, &authProject{ID: "proj-1", Name: "test"})
	return r.WithContext(ctx)
}

func decodeResult(t *testing.T, w *httptest.ResponseRecorder) *verify.Result {
	t.Helper()
	var res verify.Result
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	return &res
}

func TestHandleVerify_Compliant(t *testing.T) {
	d, writer := newTestDeps(t)

	w := httptest.NewRecorder()
	d.handleVerify(w, authedRequest("POST", "/v1/verify", `[]`))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body)
	}
	res := decodeResult(t, w)
	if res.Status != verify.StatusCompliant {
		t.Errorf("result status = %s, want compliant", res.Status)
	}

	events := writer.all()
	if len(events) != 1 {
		t.Fatalf("got %d audit events, want 1", len(events))
	}
	e := events[0]
	if e.Endpoint != "verify" || e.ProjectID != "proj-1" || e.Status != "compliant" {
		t.Errorf("unexpected audit event: %+v", e)
	}
	if e.RequestID == "" {
		t.Error("audit event missing request id")
	}
}

func TestHandleVerify_Violation(t *testing.T) {
	d, writer := newTestDeps(t)

	body := `{"entities": [{"category": "NAMES", "value": "John Smith", "start": 0, "end": 10, "confidence": 0.95}]}`
	w := httptest.NewRecorder()
	d.handleVerify(w, authedRequest("POST", "/v1/verify", body))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	res := decodeResult(t, w)
	if res.Status != verify.StatusViolation {
		t.Fatalf("result status = %s, want violation", res.Status)
	}
	if res.Violations == nil || res.Violations.NumViolations != 1 {
		t.Errorf("unexpected violations: %+v", res.Violations)
	}

	e := writer.all()[0]
	if e.NumViolations != 1 || e.NumEntities != 1 {
		t.Errorf("unexpected audit counts: %+v", e)
	}
	if len(e.RuleIDs) != 1 || e.RuleIDs[0] != "R1" {
		t.Errorf("audit rule ids = %v, want [R1]", e.RuleIDs)
	}
	if len(e.CategoriesViolated) != 1 || e.CategoriesViolated[0] != "NAMES" {
		t.Errorf("audit categories = %v", e.CategoriesViolated)
	}
}

func TestHandleVerify_BadBody(t *testing.T) {
	d, writer := newTestDeps(t)

	for _, body := range []string{
		`not json`,
		`{"documents": []}`,
		`42`,
		``,
	} {
		w := httptest.NewRecorder()
		d.handleVerify(w, authedRequest("POST", "/v1/verify", body))
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, w.Code)
		}
	}
	if len(writer.all()) != 0 {
		t.Error("rejected requests must not produce audit events")
	}
}

func TestHandleVerify_MissingProjectContext(t *testing.T) {
	d, _ := newTestDeps(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/v1/verify", strings.NewReader(`[]`))
	d.handleVerify(w, r)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestHandleVerifyBatch(t *testing.T) {
	d, writer := newTestDeps(t)

	body := `{"documents": [
		[],
		[{"category": "SSN", "value": "123-45-6789", "start": 0, "end": 11}]
	]}`
	w := httptest.NewRecorder()
	d.handleVerifyBatch(w, authedRequest("POST", "/v1/verify/batch", body))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}

	var resp BatchVerifyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(resp.Results))
	}
	if resp.Results[0].Status != verify.StatusCompliant {
		t.Errorf("results[0] = %s, want compliant", resp.Results[0].Status)
	}
	if resp.Results[1].Status != verify.StatusViolation {
		t.Errorf("results[1] = %s, want violation", resp.Results[1].Status)
	}

	events := writer.all()
	if len(events) != 2 {
		t.Fatalf("got %d audit events, want one per document", len(events))
	}
	if events[0].RequestID != events[1].RequestID {
		t.Error("batch events must share a request id")
	}
	for _, e := range events {
		if e.Endpoint != "verify_batch" || e.Source != "batch" {
			t.Errorf("unexpected audit event: %+v", e)
		}
	}
}

func TestHandleVerifyBatch_BadDocument(t *testing.T) {
	d, _ := newTestDeps(t)

	body := `{"documents": [[], {"wrong": "shape"}]}`
	w := httptest.NewRecorder()
	d.handleVerifyBatch(w, authedRequest("POST", "/v1/verify/batch", body))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var resp ErrorResp
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resp.Detail, "document 1") {
		t.Errorf("detail = %q, want document index", resp.Detail)
	}
}

func TestHandleVerifyText(t *testing.T) {
	d, writer := newTestDeps(t)

	body := `{"text": "Patient SSN is 123-45-6789."}`
	w := httptest.NewRecorder()
	d.handleVerifyText(w, authedRequest("POST", "/v1/verify/text", body))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	res := decodeResult(t, w)
	if res.Status != verify.StatusViolation {
		t.Fatalf("result status = %s, want violation", res.Status)
	}

	e := writer.all()[0]
	if e.Endpoint != "verify_text" {
		t.Errorf("endpoint = %s", e.Endpoint)
	}
	if e.DocPreview != "Patient SSN is 123-45-6789." {
		t.Errorf("doc preview = %q", e.DocPreview)
	}
	if len(e.DocHash) != 64 {
		t.Errorf("doc hash = %q, want sha256 hex", e.DocHash)
	}
}

func TestHandleVerifyText_NoExtractor(t *testing.T) {
	d, writer := newTestDeps(t)
	d.Extractor = nil

	w := httptest.NewRecorder()
	d.handleVerifyText(w, authedRequest("POST", "/v1/verify/text", `{"text": "anything"}`))

	// Extraction failures are engine results, not HTTP errors.
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	res := decodeResult(t, w)
	if res.Status != verify.StatusError {
		t.Errorf("result status = %s, want error", res.Status)
	}

	e := writer.all()[0]
	if e.Status != "error" || e.ErrorDetail != "no_extractor" {
		t.Errorf("unexpected audit event: %+v", e)
	}
}
