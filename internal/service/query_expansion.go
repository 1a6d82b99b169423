package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/wyatt/creatorscout/internal/config"
	"github.com/wyatt/creatorscout/internal/logger"
	"github.com/wyatt/creatorscout/internal/prompts"
)

const (
	defaultExpansionQueries = 12
	maxExpansionQueries     = 12
	expansionAttempts       = 3
	expansionTemperature    = 0.7
)

// codeFenceRe strips the markdown fences models sometimes wrap around JSON.
var codeFenceRe = regexp.MustCompile("(?i)```(?:json|jsonc|javascript|txt)?|```")

// QueryExpansionService turns a business description into a set of short
// keyword search queries using an OpenAI-compatible chat model.
type QueryExpansionService struct {
	client     *resty.Client
	endpoint   string
	model      string
	numQueries int
}

// NewQueryExpansionService creates a new query expansion service
func NewQueryExpansionService(llmCfg *config.LLMConfig, cfg *config.ExpansionConfig) *QueryExpansionService {
	client, endpoint := newLLMClient(llmCfg)

	numQueries := cfg.Queries
	if numQueries <= 0 {
		numQueries = defaultExpansionQueries
	}
	if numQueries > maxExpansionQueries {
		numQueries = maxExpansionQueries
	}

	return &QueryExpansionService{
		client:     client,
		endpoint:   endpoint,
		model:      cfg.Model,
		numQueries: numQueries,
	}
}

// Expand generates up to n unique search queries for a business description.
// Responses are parsed as a JSON array of strings, tolerating code fences and
// surrounding prose. After three failed attempts the description itself is
// returned as the only query, never an error.
// Parameters:
//   - ctx: request context.
//   - description: free-text business description, must be non-empty.
//   - n: requested query count; 0 uses the configured default.
// Returns:
//   - []string: unique queries, at most n entries.
//   - error: only for empty input or context cancellation.
func (s *QueryExpansionService) Expand(ctx context.Context, description string, n int) ([]string, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("description must not be empty")
	}
	if n <= 0 {
		n = s.numQueries
	}
	if n > maxExpansionQueries {
		n = maxExpansionQueries
	}

	req := chatCompletionRequest{
		Model:       s.model,
		Temperature: expansionTemperature,
		Messages: []chatMessage{
			{Role: "system", Content: prompts.QueryExpansionSystemPrompt},
			{Role: "user", Content: fmt.Sprintf(prompts.QueryExpansionPromptTemplate, description)},
		},
	}

	var lastErr error
	for attempt := 1; attempt <= expansionAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := completeChat(ctx, s.client, s.endpoint, req)
		if err != nil {
			lastErr = err
			logger.CtxWarn(ctx, "Query expansion call failed: attempt=%d, error=%v", attempt, err)
			continue
		}

		queries, err := parseQueryArray(raw, n)
		if err != nil {
			lastErr = err
			logger.CtxWarn(ctx, "Query expansion parse failed: attempt=%d, error=%v, raw_preview=%q",
				attempt, err, rawPreview(raw))
			continue
		}

		return queries, nil
	}

	logger.CtxWarn(ctx, "Query expansion exhausted retries, falling back to description: error=%v", lastErr)
	return []string{description}, nil
}

// parseQueryArray extracts, dedupes, and bounds the query list from a raw
// model response. Duplicates are matched case-insensitively; the first
// spelling wins. Fewer than n unique entries is a parse failure.
func parseQueryArray(raw string, n int) ([]string, error) {
	prepared := strings.TrimSpace(prepareJSONPayload(raw))

	var parsed []interface{}
	if err := json.Unmarshal([]byte(prepared), &parsed); err != nil {
		return nil, fmt.Errorf("response was not a JSON array: %w", err)
	}

	cleaned := make([]string, 0, len(parsed))
	seen := make(map[string]struct{}, len(parsed))
	for _, entry := range parsed {
		text, ok := entry.(string)
		if !ok {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		normalized := strings.ToLower(text)
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		cleaned = append(cleaned, text)
	}

	if len(cleaned) < n {
		return nil, fmt.Errorf("response must include at least %d unique queries, got %d", n, len(cleaned))
	}
	if len(cleaned) > n {
		cleaned = cleaned[:n]
	}
	return cleaned, nil
}

// prepareJSONPayload strips code fences and extracts the first balanced JSON
// array so that prose around the payload does not break parsing.
func prepareJSONPayload(raw string) string {
	original := strings.TrimSpace(raw)
	if original == "" {
		return original
	}
	text := codeFenceRe.ReplaceAllString(original, "")
	if extracted, ok := extractFirstJSONArray(text); ok {
		return extracted
	}
	if text != original {
		return text
	}
	return original
}

// extractFirstJSONArray returns the first balanced [...] span in text.
func extractFirstJSONArray(text string) (string, bool) {
	start := strings.IndexByte(text, '[')
	if start == -1 {
		return "", false
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// rawPreview flattens a response to a single short line for log output.
func rawPreview(raw string) string {
	preview := strings.NewReplacer("\n", " ", "\r", " ").Replace(raw)
	return logger.Truncate(preview, 200)
}
