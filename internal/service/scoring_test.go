package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wyatt/creatorscout/internal/domain"
)

func collectedProfiles(n int) []domain.CollectedProfile {
	out := make([]domain.CollectedProfile, n)
	for i := range out {
		out[i] = domain.CollectedProfile{
			Platform:   "instagram",
			Username:   fmt.Sprintf("creator%d", i),
			ProfileURL: fmt.Sprintf("https://instagram.com/creator%d", i),
		}
	}
	return out
}

// waitForCalls polls until count reaches want or the deadline passes.
func waitForCalls(t *testing.T, count *int32, want int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(count) < want {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d calls, saw %d", want, atomic.LoadInt32(count))
		}
		time.Sleep(time.Millisecond)
	}
}

// TestScoreProfiles_WindowedConcurrency verifies that 7 profiles with a
// window of 3 are scored as 3, 3, 1: a window never starts before the
// previous one has fully settled.
func TestScoreProfiles_WindowedConcurrency(t *testing.T) {
	var started int32
	release := make(chan struct{})

	fn := func(ctx context.Context, profile domain.CollectedProfile) (FitResult, error) {
		atomic.AddInt32(&started, 1)
		<-release
		return FitResult{Score: 7, Rationale: "fits"}, nil
	}

	type scoreOut struct {
		profiles []domain.ScoredProfile
		err      error
	}
	done := make(chan scoreOut, 1)
	go func() {
		out, err := ScoreProfiles(context.Background(), collectedProfiles(7), 3, fn)
		done <- scoreOut{profiles: out, err: err}
	}()

	releaseWindow := func(wantStarted int32, size int) {
		waitForCalls(t, &started, wantStarted)
		// Give a stray extra call a chance to show itself before checking.
		time.Sleep(20 * time.Millisecond)
		if got := atomic.LoadInt32(&started); got != wantStarted {
			t.Fatalf("saw %d calls before the window settled, want %d", got, wantStarted)
		}
		for i := 0; i < size; i++ {
			release <- struct{}{}
		}
	}

	releaseWindow(3, 3)
	releaseWindow(6, 3)
	releaseWindow(7, 1)

	result := <-done
	if result.err != nil {
		t.Fatalf("unexpected error: %v", result.err)
	}
	if len(result.profiles) != 7 {
		t.Fatalf("got %d results, want one per input", len(result.profiles))
	}
	seen := make(map[string]bool, 7)
	for _, scored := range result.profiles {
		if scored.FitScore != 7 {
			t.Errorf("profile %s score = %d, want 7", scored.Username, scored.FitScore)
		}
		seen[scored.Username] = true
	}
	if len(seen) != 7 {
		t.Errorf("got %d distinct profiles, want 7", len(seen))
	}
}

// TestScoreProfiles_NeutralDefaultOnFailure verifies that a failed score
// call emits the profile anyway, carrying the neutral score and the error.
func TestScoreProfiles_NeutralDefaultOnFailure(t *testing.T) {
	scoreErr := errors.New("model unavailable")
	fn := func(ctx context.Context, profile domain.CollectedProfile) (FitResult, error) {
		if profile.Username == "creator1" {
			return FitResult{}, scoreErr
		}
		return FitResult{Score: 9, Rationale: "strong match"}, nil
	}

	out, err := ScoreProfiles(context.Background(), collectedProfiles(3), 2, fn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d results, want one per input", len(out))
	}

	for _, scored := range out {
		if scored.Username != "creator1" {
			if scored.FitScore != 9 {
				t.Errorf("profile %s score = %d, want 9", scored.Username, scored.FitScore)
			}
			continue
		}
		if scored.FitScore != neutralFitScore {
			t.Errorf("failed profile score = %d, want neutral %d", scored.FitScore, neutralFitScore)
		}
		if !strings.HasPrefix(scored.FitRationale, "error: ") {
			t.Errorf("rationale = %q, want an error prefix", scored.FitRationale)
		}
		if scored.FitError == "" {
			t.Error("expected fit_error to record the failure")
		}
	}
}

func TestScoreProfiles_CancelBetweenWindows(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fn := func(ctx context.Context, profile domain.CollectedProfile) (FitResult, error) {
		cancel()
		return FitResult{Score: 6}, nil
	}

	out, err := ScoreProfiles(ctx, collectedProfiles(7), 3, fn)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(out) != 3 {
		t.Errorf("got %d results, want the settled first window only", len(out))
	}
}

func TestScoreProfiles_WindowSizeClamped(t *testing.T) {
	fn := func(ctx context.Context, profile domain.CollectedProfile) (FitResult, error) {
		return FitResult{Score: 5}, nil
	}

	out, err := ScoreProfiles(context.Background(), collectedProfiles(2), 0, fn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Errorf("got %d results, want 2", len(out))
	}
}

func TestParseFitResponse(t *testing.T) {
	testCases := []struct {
		name          string
		raw           string
		wantScore     int
		wantRationale string
		wantErr       bool
	}{
		{
			name:          "plain object",
			raw:           `{"score": 8, "rationale": "strong overlap"}`,
			wantScore:     8,
			wantRationale: "strong overlap",
		},
		{
			name:      "fenced json",
			raw:       "```json\n{\"score\": 6, \"rationale\": \"ok\"}\n```",
			wantScore: 6,
		},
		{
			name:      "prose around the object",
			raw:       `Sure! {"score": 4, "rationale": "weak"} Let me know.`,
			wantScore: 4,
		},
		{
			name:      "score clamped to upper bound",
			raw:       `{"score": 15, "rationale": "over-eager"}`,
			wantScore: 10,
		},
		{
			name:      "score clamped to lower bound",
			raw:       `{"score": 0, "rationale": "none"}`,
			wantScore: 1,
		},
		{
			name:      "fractional score truncated",
			raw:       `{"score": 7.9}`,
			wantScore: 7,
		},
		{
			name:    "missing score",
			raw:     `{"rationale": "no score given"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			raw:     "this profile looks great",
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseFitResponse(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Score != tc.wantScore {
				t.Errorf("score = %d, want %d", got.Score, tc.wantScore)
			}
			if tc.wantRationale != "" && got.Rationale != tc.wantRationale {
				t.Errorf("rationale = %q, want %q", got.Rationale, tc.wantRationale)
			}
		})
	}
}
