package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"

	"github.com/wyatt/creatorscout/internal/domain"
)

// chatStubBody wraps content in a minimal chat-completions response body.
func chatStubBody(content string) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	})
}

func TestCompleteChat(t *testing.T) {
	t.Run("returns trimmed content", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			body, _ := chatStubBody("  hello there  \n")
			w.Write(body)
		}))
		defer server.Close()

		got, err := completeChat(context.Background(), resty.New(), server.URL, chatCompletionRequest{Model: "m"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "hello there" {
			t.Errorf("got %q, want %q", got, "hello there")
		}
	})

	t.Run("surfaces api error message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error": {"message": "rate limited"}}`))
		}))
		defer server.Close()

		_, err := completeChat(context.Background(), resty.New(), server.URL, chatCompletionRequest{Model: "m"})
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("rejects empty choices", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices": []}`))
		}))
		defer server.Close()

		_, err := completeChat(context.Background(), resty.New(), server.URL, chatCompletionRequest{Model: "m"})
		if err == nil {
			t.Fatal("expected error")
		}
	})
}

// TestProfileFitService_Score verifies the retry behavior around malformed
// scoring responses.
func TestProfileFitService_Score(t *testing.T) {
	profile := domain.CollectedProfile{
		Platform:   "instagram",
		Username:   "nasa",
		ProfileURL: "https://instagram.com/nasa",
		Bio:        "space stuff",
	}

	t.Run("retries once then parses", func(t *testing.T) {
		requests := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			w.Header().Set("Content-Type", "application/json")
			content := `no json here`
			if requests > 1 {
				content = `{"score": 8, "rationale": "strong overlap"}`
			}
			body, _ := chatStubBody(content)
			w.Write(body)
		}))
		defer server.Close()

		svc := &ProfileFitService{client: resty.New(), endpoint: server.URL, model: "m"}
		result, err := svc.Score(context.Background(), "space gadgets brand", profile)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if requests != 2 {
			t.Errorf("made %d requests, want 2", requests)
		}
		if result.Score != 8 {
			t.Errorf("score = %d, want 8", result.Score)
		}
	})

	t.Run("fails after exhausting attempts", func(t *testing.T) {
		requests := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			body, _ := chatStubBody("still no json")
			w.Write(body)
		}))
		defer server.Close()

		svc := &ProfileFitService{client: resty.New(), endpoint: server.URL, model: "m"}
		if _, err := svc.Score(context.Background(), "space gadgets brand", profile); err == nil {
			t.Fatal("expected error after exhausted attempts")
		}
		if requests != fitAttempts {
			t.Errorf("made %d requests, want %d", requests, fitAttempts)
		}
	})
}
