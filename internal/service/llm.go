package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/wyatt/creatorscout/internal/config"
)

// chatMessage is a single message in an OpenAI-compatible chat request.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionRequest is the request body for /chat/completions.
type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// newLLMClient builds a resty client for an OpenAI-compatible endpoint.
func newLLMClient(cfg *config.LLMConfig) (*resty.Client, string) {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(60 * time.Second)

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return client, baseURL + "/chat/completions"
}

// completeChat posts a chat completion and returns the first choice's content.
func completeChat(ctx context.Context, client *resty.Client, endpoint string, req chatCompletionRequest) (string, error) {
	var resp chatCompletionResponse
	httpResp, err := client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(endpoint)

	if err != nil {
		return "", fmt.Errorf("chat completion call failed: %w", err)
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		if resp.Error != nil {
			return "", fmt.Errorf("chat completion error: %s", resp.Error.Message)
		}
		return "", fmt.Errorf("chat completion error: status %d", httpResp.StatusCode())
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("chat completion response missing content")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
