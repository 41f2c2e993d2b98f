package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/joseph-ayodele/shipdocs/internal/cache"
	"github.com/joseph-ayodele/shipdocs/internal/common"
)

type scriptedCompleter struct {
	replies []string
	errs    []error
	calls   int
	block   bool
}

func (s *scriptedCompleter) Name() string { return "scripted" }

func (s *scriptedCompleter) Complete(ctx context.Context, _ CompletionRequest) ([]byte, error) {
	i := s.calls
	s.calls++
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.replies) {
		return []byte(s.replies[i]), nil
	}
	return nil, errors.New("no more replies")
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func orderRequest() CompletionRequest {
	return CompletionRequest{
		SchemaName: OrderSchemaName,
		Schema:     OrderRecordSchema(),
		System:     BuildOrderSystemPrompt(),
		User:       "Sales Order 3015",
	}
}

const validOrder = `{"order_number":"3015","billing_address":null,"shipping_address":null,"items":[]}`

func TestExtractRetriesOnceThenSucceeds(t *testing.T) {
	c := &scriptedCompleter{
		errs:    []error{errors.New("connection reset")},
		replies: []string{"", "```json\n" + validOrder + "\n```"},
	}
	ex := NewExtractor(c, quietLogger(), WithMaxAttempts(2))

	out, err := ex.Extract(context.Background(), orderRequest())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if c.calls != 2 {
		t.Errorf("calls = %d, want 2", c.calls)
	}
	var m map[string]any
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if m["order_number"] != "3015" {
		t.Errorf("order_number = %v", m["order_number"])
	}
}

func TestExtractNeverExceedsTwoAttempts(t *testing.T) {
	c := &scriptedCompleter{replies: []string{"not json", "still not json", "{}", validOrder}}
	ex := NewExtractor(c, quietLogger(), WithMaxAttempts(5))

	_, err := ex.Extract(context.Background(), orderRequest())
	if !errors.Is(err, common.ErrExtractionService) {
		t.Fatalf("err = %v, want extraction service error", err)
	}
	if c.calls != 2 {
		t.Errorf("calls = %d, want 2", c.calls)
	}
}

func TestExtractSchemaInvalidPayload(t *testing.T) {
	// items must be an array
	c := &scriptedCompleter{replies: []string{
		`{"order_number":"3015","billing_address":null,"shipping_address":null,"items":"none"}`,
	}}
	ex := NewExtractor(c, quietLogger(), WithMaxAttempts(1))

	_, err := ex.Extract(context.Background(), orderRequest())
	if !errors.Is(err, common.ErrExtractionService) {
		t.Fatalf("err = %v, want extraction service error", err)
	}
}

func TestExtractTimeout(t *testing.T) {
	c := &scriptedCompleter{block: true}
	ex := NewExtractor(c, quietLogger(), WithTimeout(20*time.Millisecond), WithMaxAttempts(1))

	start := time.Now()
	_, err := ex.Extract(context.Background(), orderRequest())
	if !errors.Is(err, common.ErrExtractionService) {
		t.Fatalf("err = %v, want extraction service error", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("timeout not enforced")
	}
}

func TestExtractUnavailable(t *testing.T) {
	ex := NewExtractor(nil, quietLogger())
	if ex.Available() {
		t.Fatal("nil completer reported available")
	}
	if _, err := ex.Extract(context.Background(), orderRequest()); !errors.Is(err, common.ErrExtractionService) {
		t.Fatalf("err = %v", err)
	}
}

func TestExtractUsesResponseCache(t *testing.T) {
	c := &scriptedCompleter{replies: []string{validOrder}}
	rc := cache.NewTTL[string, []byte](time.Minute, nil)
	ex := NewExtractor(c, quietLogger(), WithResponseCache(rc))

	for i := 0; i < 3; i++ {
		if _, err := ex.Extract(context.Background(), orderRequest()); err != nil {
			t.Fatalf("Extract #%d: %v", i, err)
		}
	}
	if c.calls != 1 {
		t.Errorf("calls = %d, want 1", c.calls)
	}
}

func TestNormalizeAndSanitizeJSON(t *testing.T) {
	raw := []byte(`Here you go: {"so_number":"3015","billing_address":null,"shipping_address":null,
		"items":[{"sku":"A-1","description":"Widget","qty":"1,200","unit_price":"$4.50","colour":"red"}],
		"total":" ","notes":"x"}`)

	out, changes, err := NormalizeAndSanitizeJSON(raw, OrderRecordSchema(), quietLogger())
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if len(changes) == 0 {
		t.Error("expected recorded changes")
	}
	if err := new(SchemaValidator).Validate(orderRequest(), out); err != nil {
		t.Fatalf("sanitized payload invalid: %v\n%s", err, out)
	}

	var m map[string]any
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatal(err)
	}
	if m["order_number"] != "3015" {
		t.Errorf("order_number = %v", m["order_number"])
	}
	if _, ok := m["notes"]; ok {
		t.Error("unknown key kept")
	}
	if m["total"] != nil {
		t.Errorf("blank total = %v, want null", m["total"])
	}
	item := m["items"].([]any)[0].(map[string]any)
	if item["item_code"] != "A-1" || item["quantity"] != "1200" || item["unit_price"] != "4.50" {
		t.Errorf("item = %v", item)
	}
	if _, ok := item["colour"]; ok {
		t.Error("unknown item key kept")
	}
}

func TestSchemaValidatorReusesCompiledSchema(t *testing.T) {
	var v SchemaValidator
	req := orderRequest()
	if err := v.Validate(req, []byte(validOrder)); err != nil {
		t.Fatalf("valid order rejected: %v", err)
	}

	// a second request under the same name is checked against the first compiled schema
	req.Schema = map[string]any{"type": "string"}
	if err := v.Validate(req, []byte(validOrder)); err != nil {
		t.Fatalf("cached schema not reused: %v", err)
	}
	if err := v.Validate(req, []byte(`{"items":"none"}`)); err == nil {
		t.Error("schema-invalid payload accepted")
	}
	if err := v.Validate(req, []byte(`{"order_number":`)); err == nil {
		t.Error("malformed payload accepted")
	}
}

func TestNormalizeAndSanitizeJSONRejectsNonObject(t *testing.T) {
	for _, raw := range []string{"", "   ", "no braces here", "[1,2]"} {
		if _, _, err := NormalizeAndSanitizeJSON([]byte(raw), OrderRecordSchema(), quietLogger()); err == nil {
			t.Errorf("%q: expected error", raw)
		}
	}
}
