package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wyatt/creatorscout/internal/config"
	"github.com/wyatt/creatorscout/internal/domain"
	"github.com/wyatt/creatorscout/internal/logger"
)

// ErrBatchTimeout marks a batch whose snapshots did not become ready within
// the configured wait. It fails the batch, never the pipeline.
var ErrBatchTimeout = errors.New("collection batch timed out")

// BatchResult is one successfully collected batch handed to the callback.
type BatchResult struct {
	Index     int
	Platforms []string
	Profiles  []domain.CollectedProfile
}

// BatchSummary reports the outcome of one Process run.
type BatchSummary struct {
	Total     int
	Completed int
	Failed    int
}

// BatchReadyFunc consumes one collected batch. Returning an error stops
// further callback invocations; remaining batches drain as failed.
type BatchReadyFunc func(ctx context.Context, batch BatchResult) error

// BatchProgressFunc observes counter updates after every batch settles.
type BatchProgressFunc func(completed, failed, total int)

// BatchCollector partitions candidate profiles into fixed-size batches and
// collects them through the snapshot client under a global concurrency cap.
// Workers push settled batches onto a channel drained by a single aggregator
// loop inside Process, so the callback and progress updates are never run
// concurrently with themselves. The collector holds no per-job state.
type BatchCollector struct {
	client          SnapshotClient
	batchSize       int
	maxConcurrent   int
	pollingInterval time.Duration
	maxWait         time.Duration
}

// NewBatchCollector creates a new batch collector
func NewBatchCollector(client SnapshotClient, cfg *config.CollectionConfig) *BatchCollector {
	batchSize := cfg.BatchSize
	if batchSize < 1 || batchSize > maxTriggerURLs {
		batchSize = maxTriggerURLs
	}
	maxConcurrent := cfg.MaxConcurrentBatches
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	pollingInterval := cfg.PollingInterval
	if pollingInterval <= 0 {
		pollingInterval = 30 * time.Second
	}
	maxWait := cfg.MaxWait
	if maxWait <= 0 {
		maxWait = 15 * time.Minute
	}

	return &BatchCollector{
		client:          client,
		batchSize:       batchSize,
		maxConcurrent:   maxConcurrent,
		pollingInterval: pollingInterval,
		maxWait:         maxWait,
	}
}

// BatchCount returns the number of batches Process will create for n
// candidates.
func (c *BatchCollector) BatchCount(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + c.batchSize - 1) / c.batchSize
}

type batchJob struct {
	index int
	refs  []domain.ProfileRef
}

type settledBatch struct {
	index     int
	platforms []string
	profiles  []domain.CollectedProfile
	err       error
}

// Process collects refs in ceil(len/batchSize) batches with at most
// maxConcurrentBatches in flight. onBatchReady runs exactly once per
// successful batch; onProgress runs after every settlement, successful or
// not. Batch failures (trigger error, snapshot failure, timeout, download
// error) are counted and logged without aborting the run.
// Parameters:
//   - ctx: cancellation context; in-flight batches abort when it is done.
//   - refs: ranked candidate profiles, already canonicalized.
//   - onBatchReady: consumer for successful batches, may be nil.
//   - onProgress: counter observer, may be nil.
// Returns:
//   - BatchSummary: total, completed, and failed batch counts.
//   - error: the first callback error or the context error, nil otherwise.
func (c *BatchCollector) Process(ctx context.Context, refs []domain.ProfileRef, onBatchReady BatchReadyFunc, onProgress BatchProgressFunc) (BatchSummary, error) {
	total := c.BatchCount(len(refs))
	summary := BatchSummary{Total: total}
	if total == 0 {
		return summary, nil
	}

	workers := c.maxConcurrent
	if workers > total {
		workers = total
	}

	jobs := make(chan batchJob)
	settled := make(chan settledBatch)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				settled <- c.collectBatch(ctx, job)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := 0; i < total; i++ {
			start := i * c.batchSize
			end := start + c.batchSize
			if end > len(refs) {
				end = len(refs)
			}
			select {
			case jobs <- batchJob{index: i, refs: refs[start:end]}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(settled)
	}()

	// Single aggregator loop: callbacks and counter updates are serialized
	// here regardless of how many workers settle concurrently.
	var callbackErr error
	completed, failed := 0, 0
	for batch := range settled {
		switch {
		case batch.err != nil:
			failed++
			logger.CtxWarn(ctx, "Collection batch failed: batch_index=%d, error=%v", batch.index, batch.err)
		case callbackErr != nil:
			failed++
		case onBatchReady == nil:
			completed++
		default:
			result := BatchResult{Index: batch.index, Platforms: batch.platforms, Profiles: batch.profiles}
			if err := onBatchReady(ctx, result); err != nil {
				callbackErr = err
				failed++
			} else {
				completed++
			}
		}
		if onProgress != nil {
			onProgress(completed, failed, total)
		}
	}

	summary.Completed = completed
	summary.Failed = failed

	if callbackErr != nil {
		return summary, callbackErr
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// collectBatch runs one batch end to end: trigger one snapshot per platform
// group, poll until every snapshot is ready or the wait expires, then
// download and join the records back to their candidates.
func (c *BatchCollector) collectBatch(ctx context.Context, job batchJob) settledBatch {
	result := settledBatch{index: job.index}

	platforms, groups := groupRefsByPlatform(job.refs)
	result.platforms = platforms

	type snapshotHandle struct {
		platform string
		id       string
	}
	handles := make([]snapshotHandle, 0, len(platforms))
	for _, platform := range platforms {
		urls := make([]string, 0, len(groups[platform]))
		for _, ref := range groups[platform] {
			urls = append(urls, ref.ProfileURL)
		}
		snapshotID, err := c.client.Trigger(ctx, platform, urls)
		if err != nil {
			result.err = fmt.Errorf("trigger %s: %w", platform, err)
			return result
		}
		handles = append(handles, snapshotHandle{platform: platform, id: snapshotID})
	}

	deadline := time.Now().Add(c.maxWait)
	pending := make(map[string]struct{}, len(handles))
	for _, h := range handles {
		pending[h.id] = struct{}{}
	}

	for len(pending) > 0 {
		for snapshotID := range pending {
			status, err := c.client.Poll(ctx, snapshotID)
			if err != nil {
				result.err = fmt.Errorf("poll %s: %w", snapshotID, err)
				return result
			}
			switch status {
			case SnapshotReady:
				delete(pending, snapshotID)
			case SnapshotFailed:
				result.err = fmt.Errorf("collection snapshot %s failed", snapshotID)
				return result
			}
		}
		if len(pending) == 0 {
			break
		}
		if time.Now().After(deadline) {
			result.err = fmt.Errorf("%w after %s", ErrBatchTimeout, c.maxWait)
			return result
		}
		select {
		case <-ctx.Done():
			result.err = ctx.Err()
			return result
		case <-time.After(c.pollingInterval):
		}
	}

	for _, h := range handles {
		collected, err := c.client.Download(ctx, h.id)
		if err != nil {
			result.err = fmt.Errorf("download %s: %w", h.id, err)
			return result
		}
		result.profiles = append(result.profiles, joinCollected(ctx, groups[h.platform], collected, h.platform)...)
	}
	return result
}

// groupRefsByPlatform splits a batch into per-platform groups, preserving
// first-seen platform order.
func groupRefsByPlatform(refs []domain.ProfileRef) ([]string, map[string][]domain.ProfileRef) {
	platforms := make([]string, 0, 2)
	groups := make(map[string][]domain.ProfileRef, 2)
	for _, ref := range refs {
		platform := strings.ToLower(ref.Platform)
		if _, ok := groups[platform]; !ok {
			platforms = append(platforms, platform)
		}
		groups[platform] = append(groups[platform], ref)
	}
	return platforms, groups
}

// joinCollected maps downloaded records back onto the batch's candidates by
// canonical profile URL, carrying the ranking score forward. Candidates the
// collection service did not return are logged and dropped.
func joinCollected(ctx context.Context, refs []domain.ProfileRef, collected []domain.CollectedProfile, platform string) []domain.CollectedProfile {
	byKey := make(map[string]domain.CollectedProfile, len(collected))
	for _, profile := range collected {
		if canonical, _, ok := CanonicalProfileURL(profile.ProfileURL); ok {
			byKey[strings.ToLower(canonical)] = profile
		} else if built := BuildProfileURL(platform, profile.Username); built != "" {
			byKey[strings.ToLower(built)] = profile
		}
	}

	out := make([]domain.CollectedProfile, 0, len(refs))
	for _, ref := range refs {
		key := ""
		if canonical, _, ok := CanonicalProfileURL(ref.ProfileURL); ok {
			key = strings.ToLower(canonical)
		}
		profile, ok := byKey[key]
		if !ok {
			logger.CtxDebug(ctx, "Candidate not returned by collection: platform=%s, username=%s", platform, ref.Username)
			continue
		}
		profile.Platform = platform
		profile.CombinedScore = ref.CombinedScore
		if profile.Username == "" {
			profile.Username = ref.Username
		}
		if profile.ProfileURL == "" {
			profile.ProfileURL = ref.ProfileURL
		}
		out = append(out, profile)
	}
	return out
}
