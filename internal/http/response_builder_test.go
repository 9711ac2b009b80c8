package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTMXResponseBuilder_Write(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHTMXResponse().
		Status(http.StatusCreated).
		Header("X-Custom", "yes").
		BodyHTML("<p>done</p>").
		Write(rec)

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if got := rec.Header().Get("X-Custom"); got != "yes" {
		t.Errorf("X-Custom = %q", got)
	}
	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/html") {
		t.Errorf("Content-Type = %q", got)
	}
	if rec.Body.String() != "<p>done</p>" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestHTMXResponseBuilder_Triggers(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHTMXResponse().
		TriggerDatasetRefreshed(42).
		TriggerNotification(NotificationSuccess, "dataset refreshed", 3000).
		Write(rec)

	header := rec.Header().Get("HX-Trigger")
	if header == "" {
		t.Fatal("HX-Trigger header missing")
	}
	var triggers map[string]json.RawMessage
	if err := json.Unmarshal([]byte(header), &triggers); err != nil {
		t.Fatalf("HX-Trigger is not valid JSON: %v", err)
	}
	if _, ok := triggers["dataset:refreshed"]; !ok {
		t.Error("dataset:refreshed trigger missing")
	}
	if _, ok := triggers["show-notification"]; !ok {
		t.Error("show-notification trigger missing")
	}

	var refreshed struct {
		Records int `json:"records"`
	}
	if err := json.Unmarshal(triggers["dataset:refreshed"], &refreshed); err != nil {
		t.Fatalf("decode dataset:refreshed: %v", err)
	}
	if refreshed.Records != 42 {
		t.Errorf("records = %d, want 42", refreshed.Records)
	}
}

func TestErrorResponse_EscapesHTML(t *testing.T) {
	rec := httptest.NewRecorder()
	BadRequestError(`<script>alert("x")</script>`).Write(rec)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "<script>") {
		t.Errorf("body not escaped: %q", body)
	}
	if !strings.Contains(body, `class="error"`) {
		t.Errorf("body missing error wrapper: %q", body)
	}
}

func TestMethodNotAllowedError(t *testing.T) {
	rec := httptest.NewRecorder()
	MethodNotAllowedError("GET").Write(rec)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
	if got := rec.Header().Get("Allow"); got != "GET" {
		t.Errorf("Allow = %q, want GET", got)
	}
}

func TestRequireMethod(t *testing.T) {
	get := httptest.NewRequest(http.MethodGet, "/ui/overview", nil)
	if resp := RequireMethod(get, http.MethodGet); resp != nil {
		t.Error("GET should be allowed")
	}

	post := httptest.NewRequest(http.MethodPost, "/ui/overview", nil)
	resp := RequireMethod(post, http.MethodGet)
	if resp == nil {
		t.Fatal("POST should be rejected")
	}
	rec := httptest.NewRecorder()
	resp.Write(rec)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestFormatHelpers(t *testing.T) {
	counts := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-4500, "-4,500"},
	}
	for _, tt := range counts {
		if got := formatCount(tt.in); got != tt.want {
			t.Errorf("formatCount(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}

	percents := []struct {
		in   float64
		want string
	}{
		{12.345, "+12.3%"},
		{-7.89, "-7.9%"},
		{0, "+0.0%"},
	}
	for _, tt := range percents {
		if got := formatPercent(tt.in); got != tt.want {
			t.Errorf("formatPercent(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
