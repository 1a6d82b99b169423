package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wyatt/creatorscout/internal/domain"
)

// fakeSnapshotClient simulates the asynchronous collection API. Snapshots
// become ready immediately; Download replays the triggered URLs as collected
// profiles so the join back to candidates can be asserted end to end.
type fakeSnapshotClient struct {
	mu       sync.Mutex
	triggers int
	urls     map[string][]string

	failTriggerCall int  // 1-based trigger ordinal to reject, 0 disables
	neverReady      bool // every poll reports the snapshot still running
}

func (f *fakeSnapshotClient) Trigger(ctx context.Context, platform string, urls []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers++
	if f.failTriggerCall != 0 && f.triggers == f.failTriggerCall {
		return "", errors.New("trigger rejected")
	}
	id := fmt.Sprintf("snap-%s-%d", platform, f.triggers)
	if f.urls == nil {
		f.urls = make(map[string][]string)
	}
	f.urls[id] = append([]string(nil), urls...)
	return id, nil
}

func (f *fakeSnapshotClient) Poll(ctx context.Context, snapshotID string) (SnapshotStatus, error) {
	if f.neverReady {
		return SnapshotRunning, nil
	}
	return SnapshotReady, nil
}

func (f *fakeSnapshotClient) Download(ctx context.Context, snapshotID string) ([]domain.CollectedProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	urls := f.urls[snapshotID]
	profiles := make([]domain.CollectedProfile, 0, len(urls))
	for _, u := range urls {
		canonical, platform, _ := CanonicalProfileURL(u)
		handle := strings.TrimPrefix(canonical[strings.LastIndex(canonical, "/")+1:], "@")
		profiles = append(profiles, domain.CollectedProfile{
			Platform:   platform,
			Username:   handle,
			ProfileURL: canonical,
			Followers:  1000,
			Bio:        "bio of " + handle,
		})
	}
	return profiles, nil
}

func (f *fakeSnapshotClient) triggerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.triggers
}

func newTestCollector(client SnapshotClient, batchSize, maxConcurrent int) *BatchCollector {
	return &BatchCollector{
		client:          client,
		batchSize:       batchSize,
		maxConcurrent:   maxConcurrent,
		pollingInterval: time.Millisecond,
		maxWait:         time.Second,
	}
}

func profileRefs(n int) []domain.ProfileRef {
	refs := make([]domain.ProfileRef, n)
	for i := range refs {
		refs[i] = domain.ProfileRef{
			Platform:      "instagram",
			Username:      fmt.Sprintf("creator%d", i),
			ProfileURL:    fmt.Sprintf("https://instagram.com/creator%d", i),
			CombinedScore: float64(n-i) / float64(n),
		}
	}
	return refs
}

func TestBatchCollector_BatchCount(t *testing.T) {
	testCases := []struct {
		name      string
		batchSize int
		n         int
		want      int
	}{
		{name: "zero candidates", batchSize: 50, n: 0, want: 0},
		{name: "single candidate", batchSize: 50, n: 1, want: 1},
		{name: "exact fit", batchSize: 50, n: 50, want: 1},
		{name: "one over", batchSize: 50, n: 51, want: 2},
		{name: "small batches", batchSize: 3, n: 7, want: 3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestCollector(&fakeSnapshotClient{}, tc.batchSize, 1)
			if got := c.BatchCount(tc.n); got != tc.want {
				t.Errorf("BatchCount(%d) = %d, want %d", tc.n, got, tc.want)
			}
		})
	}
}

// TestBatchCollector_ProcessCollectsAllBatches verifies the full happy path:
// every batch settles, callbacks fire once per batch, progress counters stay
// consistent, and the ranking score survives the join.
func TestBatchCollector_ProcessCollectsAllBatches(t *testing.T) {
	client := &fakeSnapshotClient{}
	c := newTestCollector(client, 3, 2)
	refs := profileRefs(7)

	scoreByURL := make(map[string]float64, len(refs))
	for _, ref := range refs {
		scoreByURL[ref.ProfileURL] = ref.CombinedScore
	}

	var batches []BatchResult
	var progress [][3]int
	summary, err := c.Process(context.Background(), refs,
		func(ctx context.Context, batch BatchResult) error {
			batches = append(batches, batch)
			return nil
		},
		func(completed, failed, total int) {
			progress = append(progress, [3]int{completed, failed, total})
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Total != 3 || summary.Completed != 3 || summary.Failed != 0 {
		t.Errorf("summary = %+v, want 3 total, 3 completed, 0 failed", summary)
	}
	if len(batches) != 3 {
		t.Fatalf("callback ran %d times, want 3", len(batches))
	}

	profiles := 0
	seenIndex := make(map[int]bool, 3)
	for _, batch := range batches {
		seenIndex[batch.Index] = true
		profiles += len(batch.Profiles)
		for _, profile := range batch.Profiles {
			if want := scoreByURL[profile.ProfileURL]; profile.CombinedScore != want {
				t.Errorf("profile %s score = %f, want %f", profile.Username, profile.CombinedScore, want)
			}
		}
	}
	if profiles != 7 {
		t.Errorf("collected %d profiles, want 7", profiles)
	}
	for i := 0; i < 3; i++ {
		if !seenIndex[i] {
			t.Errorf("batch index %d never reached the callback", i)
		}
	}

	if len(progress) != 3 {
		t.Fatalf("progress ran %d times, want once per settlement", len(progress))
	}
	for _, p := range progress {
		if p[0]+p[1] > p[2] {
			t.Errorf("progress %v exceeds the batch total", p)
		}
	}
	if last := progress[len(progress)-1]; last != [3]int{3, 0, 3} {
		t.Errorf("final progress = %v, want [3 0 3]", last)
	}
}

// TestBatchCollector_FailedBatchDoesNotAbort verifies that one bad batch is
// counted and skipped while the rest of the run continues.
func TestBatchCollector_FailedBatchDoesNotAbort(t *testing.T) {
	client := &fakeSnapshotClient{failTriggerCall: 2}
	// One worker keeps the trigger order aligned with batch order.
	c := newTestCollector(client, 3, 1)

	var readyIndexes []int
	summary, err := c.Process(context.Background(), profileRefs(7),
		func(ctx context.Context, batch BatchResult) error {
			readyIndexes = append(readyIndexes, batch.Index)
			return nil
		}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Total != 3 || summary.Completed != 2 || summary.Failed != 1 {
		t.Errorf("summary = %+v, want 3 total, 2 completed, 1 failed", summary)
	}
	if len(readyIndexes) != 2 {
		t.Fatalf("callback ran for %v, want exactly the two good batches", readyIndexes)
	}
	for _, idx := range readyIndexes {
		if idx == 1 {
			t.Errorf("callback ran for the failed batch")
		}
	}
}

// TestBatchCollector_CallbackErrorDrainsRemaining verifies that a callback
// error stops further callbacks and fails the rest of the run.
func TestBatchCollector_CallbackErrorDrainsRemaining(t *testing.T) {
	client := &fakeSnapshotClient{}
	c := newTestCollector(client, 2, 1)
	persistErr := errors.New("persist failed")

	calls := 0
	summary, err := c.Process(context.Background(), profileRefs(5),
		func(ctx context.Context, batch BatchResult) error {
			calls++
			return persistErr
		}, nil)
	if !errors.Is(err, persistErr) {
		t.Fatalf("err = %v, want the callback error", err)
	}
	if calls != 1 {
		t.Errorf("callback ran %d times, want 1", calls)
	}
	if summary.Completed != 0 || summary.Failed != 3 {
		t.Errorf("summary = %+v, want 0 completed, 3 failed", summary)
	}
}

func TestBatchCollector_TimeoutFailsBatch(t *testing.T) {
	client := &fakeSnapshotClient{neverReady: true}
	c := &BatchCollector{
		client:          client,
		batchSize:       2,
		maxConcurrent:   1,
		pollingInterval: time.Millisecond,
		maxWait:         5 * time.Millisecond,
	}

	ready := 0
	summary, err := c.Process(context.Background(), profileRefs(2),
		func(ctx context.Context, batch BatchResult) error {
			ready++
			return nil
		}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ready != 0 {
		t.Errorf("callback ran %d times for a timed-out batch", ready)
	}
	if summary.Total != 1 || summary.Failed != 1 {
		t.Errorf("summary = %+v, want the single batch failed", summary)
	}
}

func TestBatchCollector_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &fakeSnapshotClient{neverReady: true}
	c := newTestCollector(client, 2, 2)

	summary, err := c.Process(ctx, profileRefs(6), nil, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if summary.Completed != 0 {
		t.Errorf("completed = %d, want 0 on a cancelled run", summary.Completed)
	}
}

func TestGroupRefsByPlatform(t *testing.T) {
	refs := []domain.ProfileRef{
		{Platform: "instagram", Username: "a"},
		{Platform: "TikTok", Username: "b"},
		{Platform: "instagram", Username: "c"},
	}

	platforms, groups := groupRefsByPlatform(refs)
	if len(platforms) != 2 || platforms[0] != "instagram" || platforms[1] != "tiktok" {
		t.Fatalf("platforms = %v, want [instagram tiktok] in first-seen order", platforms)
	}
	if len(groups["instagram"]) != 2 {
		t.Errorf("instagram group has %d refs, want 2", len(groups["instagram"]))
	}
	if len(groups["tiktok"]) != 1 || groups["tiktok"][0].Username != "b" {
		t.Errorf("tiktok group = %v, want the single lowercased ref", groups["tiktok"])
	}
}

func TestJoinCollected(t *testing.T) {
	t.Run("joins by canonical url and carries the score", func(t *testing.T) {
		refs := []domain.ProfileRef{
			{Platform: "instagram", Username: "kept", ProfileURL: "https://instagram.com/kept", CombinedScore: 0.8},
			{Platform: "instagram", Username: "missing", ProfileURL: "https://instagram.com/missing", CombinedScore: 0.5},
		}
		collected := []domain.CollectedProfile{
			{ProfileURL: "https://INSTAGRAM.com/kept/", DisplayName: "Kept Creator", Followers: 1200},
		}

		out := joinCollected(context.Background(), refs, collected, "instagram")
		if len(out) != 1 {
			t.Fatalf("got %d profiles, want 1", len(out))
		}
		if out[0].Username != "kept" {
			t.Errorf("username = %q, want backfilled from the ref", out[0].Username)
		}
		if out[0].CombinedScore != 0.8 {
			t.Errorf("score = %f, want 0.8", out[0].CombinedScore)
		}
		if out[0].Platform != "instagram" {
			t.Errorf("platform = %q, want instagram", out[0].Platform)
		}
		if out[0].DisplayName != "Kept Creator" {
			t.Errorf("display name = %q, want the collected value", out[0].DisplayName)
		}
	})

	t.Run("joins by username when the record has no url", func(t *testing.T) {
		refs := []domain.ProfileRef{
			{Platform: "instagram", Username: "kept2", ProfileURL: "https://instagram.com/kept2", CombinedScore: 0.6},
		}
		collected := []domain.CollectedProfile{
			{Username: "kept2", Followers: 900},
		}

		out := joinCollected(context.Background(), refs, collected, "instagram")
		if len(out) != 1 {
			t.Fatalf("got %d profiles, want 1", len(out))
		}
		if out[0].ProfileURL != "https://instagram.com/kept2" {
			t.Errorf("url = %q, want backfilled from the ref", out[0].ProfileURL)
		}
		if out[0].Followers != 900 {
			t.Errorf("followers = %d, want the collected value", out[0].Followers)
		}
	})
}
