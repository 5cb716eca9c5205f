package completion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func completionJSON(content string) string {
	return `{"choices":[{"message":{"role":"assistant","content":` + strconvQuote(content) + `}}]}`
}

func strconvQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "llama3.1-8b",
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return client, srv
}

func TestNewClient_MissingKey(t *testing.T) {
	_, err := NewClient(Config{})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("NewClient error = %v, want ErrMissingAPIKey", err)
	}
}

func TestComplete_RequestShape(t *testing.T) {
	var gotAuth, gotPath string
	var gotReq chatRequest

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(completionJSON("VALID")))
	})

	reply, err := client.Complete(context.Background(), "check this message")
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if reply != "VALID" {
		t.Errorf("reply = %q, want VALID", reply)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want bearer credential", gotAuth)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("path = %q, want /chat/completions", gotPath)
	}
	if gotReq.Model != "llama3.1-8b" {
		t.Errorf("model = %q, want llama3.1-8b", gotReq.Model)
	}
	if gotReq.Temperature != 0 {
		t.Errorf("temperature = %v, want 0", gotReq.Temperature)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != "user" ||
		gotReq.Messages[0].Content != "check this message" {
		t.Errorf("messages = %+v, want single user message with the prompt", gotReq.Messages)
	}
}

func TestComplete_RetriesOnRateLimit(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(completionJSON("VALID")))
	})

	reply, err := client.Complete(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if reply != "VALID" {
		t.Errorf("reply = %q, want VALID", reply)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (one 429, one success)", calls)
	}
}

func TestComplete_ServerErrorNoRetry(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"backend exploded"}}`))
	})

	_, err := client.Complete(context.Background(), "prompt")
	if err == nil {
		t.Fatal("Complete returned nil error for 500 response")
	}
	if !strings.Contains(err.Error(), "backend exploded") {
		t.Errorf("error = %v, want the API error message surfaced", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (5xx is not retried)", calls)
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	})

	_, err := client.Complete(context.Background(), "prompt")
	if err == nil {
		t.Fatal("Complete returned nil error for empty choices")
	}
}

func TestComplete_ContextCancelled(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(completionJSON("VALID")))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, "prompt")
	if err == nil {
		t.Fatal("Complete returned nil error for cancelled context")
	}
}
