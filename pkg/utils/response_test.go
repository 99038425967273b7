package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRespondJSONKeepsMarkup(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondJSON(rec, http.StatusOK, map[string]string{"content": "<b>hi</b> & bye"})

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("expected no-store cache control")
	}
	if !strings.Contains(rec.Body.String(), "<b>hi</b> & bye") {
		t.Fatalf("expected unescaped markup, got %s", rec.Body.String())
	}
}

func TestRespondErrorDefaultsToStatusText(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, http.StatusTooManyRequests, "")

	var body ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if body.Error != "Too Many Requests" {
		t.Fatalf("unexpected error message %q", body.Error)
	}
}
