package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wyatt/creatorscout/internal/config"
	"github.com/wyatt/creatorscout/internal/domain"
	"github.com/wyatt/creatorscout/internal/logger"
	"github.com/wyatt/creatorscout/internal/prompts"
)

const (
	fitScoreMin     = 1
	fitScoreMax     = 10
	neutralFitScore = 5
	fitAttempts     = 3

	// scoringWindowPause is the gap between scoring windows, kept short but
	// non-zero to stay under upstream rate limits.
	scoringWindowPause = 100 * time.Millisecond
)

// FitResult is one parsed scoring response.
type FitResult struct {
	Score     int
	Rationale string
}

// ScoreFunc scores a single collected profile against the business brief.
type ScoreFunc func(ctx context.Context, profile domain.CollectedProfile) (FitResult, error)

// ScoreProfiles runs fn over profiles in fixed windows of maxConcurrent,
// waiting for each window to settle before starting the next. A profile whose
// score call fails is not dropped: it is emitted with the neutral default
// score and the failure folded into the rationale, so the output always has
// one record per input. Output order follows input order within this
// implementation but callers re-sort by score regardless.
// Parameters:
//   - ctx: cancellation context, checked before every window.
//   - profiles: collected profiles to score.
//   - maxConcurrent: window size; values below 1 are treated as 1.
//   - fn: scoring function, typically ProfileFitService.ScorerFor(...).
// Returns:
//   - []domain.ScoredProfile: settled outputs, partial when ctx is cancelled.
//   - error: ctx.Err() when cancelled between windows, nil otherwise.
func ScoreProfiles(ctx context.Context, profiles []domain.CollectedProfile, maxConcurrent int, fn ScoreFunc) ([]domain.ScoredProfile, error) {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	out := make([]domain.ScoredProfile, 0, len(profiles))
	for start := 0; start < len(profiles); start += maxConcurrent {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		end := start + maxConcurrent
		if end > len(profiles) {
			end = len(profiles)
		}
		window := profiles[start:end]
		results := make([]domain.ScoredProfile, len(window))

		g, gctx := errgroup.WithContext(ctx)
		for i := range window {
			i := i
			profile := window[i]
			g.Go(func() error {
				results[i] = scoreOne(gctx, profile, fn)
				return nil
			})
		}
		_ = g.Wait()
		out = append(out, results...)

		if end < len(profiles) {
			select {
			case <-ctx.Done():
				return out, ctx.Err()
			case <-time.After(scoringWindowPause):
			}
		}
	}
	return out, nil
}

// newScoredProfile projects a collected profile into a result row. FitScore
// stays zero until a score is recorded; zero marks the row as unscored.
func newScoredProfile(profile domain.CollectedProfile) domain.ScoredProfile {
	return domain.ScoredProfile{
		ID:            uuid.NewString(),
		Platform:      profile.Platform,
		Username:      profile.Username,
		ProfileURL:    profile.ProfileURL,
		DisplayName:   profile.DisplayName,
		Followers:     profile.Followers,
		Verified:      profile.Verified,
		Bio:           profile.Bio,
		AvatarURL:     profile.AvatarURL,
		RecentPosts:   domain.StringArray(profile.RecentPosts),
		CombinedScore: profile.CombinedScore,
	}
}

// UnscoredProfiles projects collected profiles into result rows without
// scoring them. Used by runs configured to stop after collection.
func UnscoredProfiles(profiles []domain.CollectedProfile) []domain.ScoredProfile {
	out := make([]domain.ScoredProfile, 0, len(profiles))
	for _, profile := range profiles {
		out = append(out, newScoredProfile(profile))
	}
	return out
}

// scoreOne settles a single profile, degrading failures to the neutral
// default rather than surfacing them.
func scoreOne(ctx context.Context, profile domain.CollectedProfile, fn ScoreFunc) domain.ScoredProfile {
	scored := newScoredProfile(profile)

	fit, err := fn(ctx, profile)
	if err != nil {
		scored.FitScore = neutralFitScore
		scored.FitRationale = "error: " + err.Error()
		scored.FitError = err.Error()
		return scored
	}

	scored.FitScore = fit.Score
	scored.FitRationale = fit.Rationale
	return scored
}

// ProfileFitService scores profiles against a business description with an
// OpenAI-compatible chat model.
type ProfileFitService struct {
	client   *resty.Client
	endpoint string
	model    string
}

// NewProfileFitService creates a new profile fit service
func NewProfileFitService(llmCfg *config.LLMConfig, cfg *config.ScoringConfig) *ProfileFitService {
	client, endpoint := newLLMClient(llmCfg)
	return &ProfileFitService{
		client:   client,
		endpoint: endpoint,
		model:    cfg.Model,
	}
}

// ScorerFor returns a ScoreFunc bound to one business description.
func (s *ProfileFitService) ScorerFor(description string) ScoreFunc {
	return func(ctx context.Context, profile domain.CollectedProfile) (FitResult, error) {
		return s.Score(ctx, description, profile)
	}
}

// Score rates one profile's partnership fit on a 1-10 scale with a short
// rationale. Up to three attempts; parse failures count as attempts.
func (s *ProfileFitService) Score(ctx context.Context, description string, profile domain.CollectedProfile) (FitResult, error) {
	prompt := buildFitPrompt(description, profile)

	var lastErr error
	for attempt := 1; attempt <= fitAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return FitResult{}, err
		}

		raw, err := completeChat(ctx, s.client, s.endpoint, chatCompletionRequest{
			Model:    s.model,
			Messages: []chatMessage{{Role: "user", Content: prompt}},
		})
		if err != nil {
			lastErr = err
			continue
		}

		result, err := parseFitResponse(raw)
		if err != nil {
			lastErr = err
			logger.CtxDebug(ctx, "Fit response parse failed: attempt=%d, username=%s, error=%v, raw_preview=%q",
				attempt, profile.Username, err, rawPreview(raw))
			continue
		}
		return result, nil
	}
	return FitResult{}, lastErr
}

// parseFitResponse parses {"score","rationale"} from the raw model output,
// tolerating code fences and surrounding prose, and clamps the score to
// [1,10]. A missing score is a parse failure.
func parseFitResponse(raw string) (FitResult, error) {
	prepared := strings.TrimSpace(codeFenceRe.ReplaceAllString(raw, ""))
	if extracted, ok := extractFirstJSONObject(prepared); ok {
		prepared = extracted
	}

	var payload struct {
		Score     *float64 `json:"score"`
		Rationale string   `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(prepared), &payload); err != nil {
		return FitResult{}, fmt.Errorf("response was not a JSON object: %w", err)
	}
	if payload.Score == nil {
		return FitResult{}, fmt.Errorf("response missing score")
	}

	score := int(*payload.Score)
	if score < fitScoreMin {
		score = fitScoreMin
	}
	if score > fitScoreMax {
		score = fitScoreMax
	}
	return FitResult{Score: score, Rationale: payload.Rationale}, nil
}

// extractFirstJSONObject returns the first balanced {...} span in text.
func extractFirstJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return "", false
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// buildFitPrompt assembles the scoring prompt from the profile fields the
// collection stage gathered.
func buildFitPrompt(description string, profile domain.CollectedProfile) string {
	platform := profile.Platform
	if platform == "" {
		platform = "social media"
	}

	var b strings.Builder
	fmt.Fprintf(&b, prompts.ProfileFitPromptHeader, platform)
	b.WriteString("\n\n")
	b.WriteString(prompts.ProfileFitBusinessContextLabel)
	b.WriteString("\n")
	b.WriteString(description)
	b.WriteString("\n\n")
	b.WriteString(prompts.ProfileFitProfileLabel)
	b.WriteString("\n")
	fmt.Fprintf(&b, "- Name: %s\n", profile.DisplayName)
	fmt.Fprintf(&b, "- URL: %s\n", profile.ProfileURL)
	fmt.Fprintf(&b, "- Followers: %d\n", profile.Followers)
	fmt.Fprintf(&b, "- Verified: %t\n", profile.Verified)
	b.WriteString("- Bio:\n")
	b.WriteString(profile.Bio)
	b.WriteString("\n\n")
	b.WriteString(prompts.ProfileFitPostsLabel)
	b.WriteString("\n")
	for i, post := range profile.RecentPosts {
		if i >= maxProfilePosts {
			break
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.ReplaceAll(post, "\n", " "))
	}
	b.WriteString("\n")
	b.WriteString(prompts.ProfileFitSchemaInstruction)
	return b.String()
}
