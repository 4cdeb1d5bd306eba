package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCompleteJSON(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"summary\":\"ok\"}"}}]}`))
	}))
	defer srv.Close()

	c := NewClient("sk-test", "gpt-4o-mini", "whisper-1", WithBaseURL(srv.URL))
	out, err := c.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out != `{"summary":"ok"}` {
		t.Fatalf("unexpected content: %q", out)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("expected bearer auth, got %q", gotAuth)
	}
	if gotReq.Model != "gpt-4o-mini" || gotReq.ResponseFormat == nil || gotReq.ResponseFormat.Type != "json_object" {
		t.Fatalf("unexpected request: %+v", gotReq)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Fatalf("unexpected messages: %+v", gotReq.Messages)
	}
}

func TestCompleteJSON_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit_error"}}`))
	}))
	defer srv.Close()

	c := NewClient("sk-test", "gpt-4o-mini", "whisper-1", WithBaseURL(srv.URL))
	_, err := c.CompleteJSON(context.Background(), "s", "u")
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestCompleteJSON_RequiresKey(t *testing.T) {
	c := NewClient("", "gpt-4o-mini", "whisper-1")
	if _, err := c.CompleteJSON(context.Background(), "s", "u"); err == nil {
		t.Fatalf("expected error without api key")
	}
}

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("unexpected model %q", got)
		}
		if got := r.FormValue("response_format"); got != "text" {
			t.Errorf("unexpected response_format %q", got)
		}
		_, _ = w.Write([]byte("hello transcript"))
	}))
	defer srv.Close()

	c := NewClient("sk-test", "gpt-4o-mini", "whisper-1", WithBaseURL(srv.URL))
	out, err := c.Transcribe(context.Background(), []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out != "hello transcript" {
		t.Fatalf("unexpected transcript: %q", out)
	}
}

func TestTranscribe_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad audio"))
	}))
	defer srv.Close()

	c := NewClient("sk-test", "gpt-4o-mini", "whisper-1", WithBaseURL(srv.URL))
	if _, err := c.Transcribe(context.Background(), []byte{1}); err == nil {
		t.Fatalf("expected error")
	}
}
