package httputil

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dErrors "kycgate/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error hides the registrar failure", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "registrar connection reset"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "internal_error" {
			t.Fatalf("error = %q, want internal_error", body["error"])
		}
		if desc, ok := body["error_description"]; ok {
			t.Fatalf("registrar failure leaked to the caller: %q", desc)
		}
	})

	t.Run("quota error includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeQuotaExceeded, "0 calls remaining"))

		if w.Code != http.StatusTooManyRequests {
			t.Fatalf("expected status %d, got %d", http.StatusTooManyRequests, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "quota_exceeded" {
			t.Fatalf("expected error code quota_exceeded, got %q", body["error"])
		}
		if body["error_description"] != "0 calls remaining" {
			t.Fatalf("expected error_description to be returned, got %q", body["error_description"])
		}
	})

	t.Run("uncoded error maps to internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, http.ErrBodyNotAllowed)

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
	})
}

func TestDecode(t *testing.T) {
	type reviewBody struct {
		Action string `json:"action"`
		Notes  string `json:"notes"`
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("parses a valid body", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/reviews/DOC_1",
			strings.NewReader(`{"action":"approve","notes":"checked"}`))

		got, ok := Decode[reviewBody](w, r, logger)

		if !ok {
			t.Fatal("expected decode to succeed")
		}
		if got.Action != "approve" || got.Notes != "checked" {
			t.Fatalf("decoded %+v", got)
		}
	})

	t.Run("writes bad_request on malformed json", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/reviews/DOC_1",
			strings.NewReader("{truncated"))

		_, ok := Decode[reviewBody](w, r, logger)

		if ok {
			t.Fatal("expected decode to fail")
		}
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "bad_request" {
			t.Fatalf("error = %q, want bad_request", body["error"])
		}
	})
}
