package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGeminiComplete_Success(t *testing.T) {
	var gotPath, gotKey string
	var gotReq geminiRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"candidates": [
				{"content": {"parts": [{"text": "{\"skills\":"}, {"text": "{}}"}]}}
			]
		}`))
	}))
	defer srv.Close()

	p := NewGeminiProvider(srv.URL, "test-key", "gemini-2.5-flash-lite", srv.Client())
	got, err := p.Complete(context.Background(), "extract skills from this")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Multi-part candidates are concatenated.
	if got != `{"skills":{}}` {
		t.Errorf("Complete = %q", got)
	}

	if gotPath != "/models/gemini-2.5-flash-lite:generateContent" {
		t.Errorf("unexpected path: %s", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("key = %q, want test-key", gotKey)
	}
	if len(gotReq.Contents) != 1 || len(gotReq.Contents[0].Parts) != 1 {
		t.Fatalf("unexpected request contents: %+v", gotReq.Contents)
	}
	if !strings.Contains(gotReq.Contents[0].Parts[0].Text, "extract skills") {
		t.Errorf("prompt not in request: %q", gotReq.Contents[0].Parts[0].Text)
	}
	if gotReq.GenerationConfig.ResponseMIMEType != "application/json" {
		t.Errorf("ResponseMIMEType = %q", gotReq.GenerationConfig.ResponseMIMEType)
	}
}

func TestGeminiComplete_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"code": 429, "message": "quota exceeded", "status": "RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	p := NewGeminiProvider(srv.URL, "k", "gemini-2.5-flash-lite", srv.Client())
	_, err := p.Complete(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected error for HTTP 429, got nil")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("expected status in error, got %v", err)
	}
}

func TestGeminiComplete_ErrorField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": {"code": 400, "message": "invalid argument", "status": "INVALID_ARGUMENT"}}`))
	}))
	defer srv.Close()

	p := NewGeminiProvider(srv.URL, "k", "gemini-2.5-flash-lite", srv.Client())
	_, err := p.Complete(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected error from error field, got nil")
	}
	if !strings.Contains(err.Error(), "INVALID_ARGUMENT") {
		t.Errorf("expected status in error, got %v", err)
	}
}

func TestGeminiComplete_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates": []}`))
	}))
	defer srv.Close()

	p := NewGeminiProvider(srv.URL, "k", "gemini-2.5-flash-lite", srv.Client())
	_, err := p.Complete(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected error for empty candidates, got nil")
	}
}
