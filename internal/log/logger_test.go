// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestConfigureSetsServiceFields(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf, Service: "retranscoder", Version: "test"})

	L().Info().Msg("hello")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry["service"] != "retranscoder" {
		t.Errorf("expected service=retranscoder, got %v", entry["service"])
	}
	if entry["version"] != "test" {
		t.Errorf("expected version=test, got %v", entry["version"])
	}
}

func TestConfigureDefaultsServiceName(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf})

	L().Info().Msg("hello")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry["service"] != "retranscoder" {
		t.Errorf("expected default service name, got %v", entry["service"])
	}
}

func TestWithComponentAnnotatesLogger(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf})

	componentLogger := WithComponent("follower")
	componentLogger.Info().Msg("tick")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry["component"] != "follower" {
		t.Errorf("expected component=follower, got %v", entry["component"])
	}
}

func TestMiddlewareEchoesRequestID(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf})

	handler := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/playlist.m3u8", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry[FieldEvent] != "request.handled" {
		t.Errorf("expected event=request.handled, got %v", entry[FieldEvent])
	}
	if entry["path"] != "/playlist.m3u8" {
		t.Errorf("expected path field, got %v", entry["path"])
	}
}

func TestMiddlewarePreservesExistingRequestID(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf})

	handler := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/chunklist.m3u8", nil)
	req = req.WithContext(ContextWithRequestID(req.Context(), "req-existing"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "req-existing" {
		t.Errorf("expected X-Request-ID header %q, got %q", "req-existing", got)
	}
}
