package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/wyatt/creatorscout/internal/config"
	"github.com/wyatt/creatorscout/internal/domain"
	"github.com/wyatt/creatorscout/internal/logger"
	"github.com/wyatt/creatorscout/internal/repository"
	"github.com/wyatt/creatorscout/internal/storage"
)

// ErrInvalidRequest marks submit-time validation failures. Handlers map it
// to a client error; no job is created when it is returned.
var ErrInvalidRequest = errors.New("invalid request")

const (
	defaultTopN    = 100
	defaultMaxTopN = 1000

	// How often the background watcher re-reads the durable cancel flag.
	cancelPollInterval = 2 * time.Second

	defaultListLimit = 50
	maxListLimit     = 200
)

var defaultPlatforms = []string{"instagram", "tiktok"}

// queryExpander turns a business description into search queries.
type queryExpander interface {
	Expand(ctx context.Context, description string, n int) ([]string, error)
}

// candidateSearcher fans a query set out across the vector index.
type candidateSearcher interface {
	Run(ctx context.Context, params VectorSearchParams, cancelled func(context.Context) bool) ([]domain.SearchHit, int, error)
}

// candidateCollector resolves candidate refs to live profile data in
// concurrent batches.
type candidateCollector interface {
	BatchCount(n int) int
	Process(ctx context.Context, refs []domain.ProfileRef, onBatchReady BatchReadyFunc, onProgress BatchProgressFunc) (BatchSummary, error)
}

// fitScorer builds a per-description profile scoring function.
type fitScorer interface {
	ScorerFor(description string) ScoreFunc
}

// SubmitRequest carries one pipeline submission. Zero TopN means the
// configured default. StopAfterStage ends the run early after the named
// stage completes, leaving the job completed with whatever that stage
// produced; empty (or scoring, the last stage) runs the full pipeline.
type SubmitRequest struct {
	OwnerID             string       `json:"owner_id"`
	CampaignID          string       `json:"campaign_id,omitempty"`
	BusinessDescription string       `json:"business_description"`
	TopN                int          `json:"top_n,omitempty"`
	Platform            string       `json:"platform,omitempty"`
	MinFollowers        *int64       `json:"min_followers,omitempty"`
	MaxFollowers        *int64       `json:"max_followers,omitempty"`
	StopAfterStage      domain.Stage `json:"stop_after_stage,omitempty"`
}

// PipelineOrchestrator drives one discovery job through its stages:
// query_expansion, vector_search, then collection with scoring interleaved
// per batch. Submission returns immediately; the run itself is a detached
// background task whose only output is job state written through the
// tracker.
type PipelineOrchestrator struct {
	tracker   *JobProgressTracker
	campaigns *repository.CampaignRepository
	binder    *CampaignBinder
	expander  queryExpander
	searcher  candidateSearcher
	collector candidateCollector
	scorer    fitScorer
	archive   storage.ObjectStorage

	topN             int
	maxTopN          int
	platforms        []string
	scoreConcurrency int
}

// NewPipelineOrchestrator wires the pipeline services together. archive may
// be nil; batch snapshots are then not archived.
func NewPipelineOrchestrator(
	tracker *JobProgressTracker,
	campaigns *repository.CampaignRepository,
	binder *CampaignBinder,
	expander *QueryExpansionService,
	searcher *VectorSearchService,
	collector *BatchCollector,
	scorer *ProfileFitService,
	archive storage.ObjectStorage,
	cfg *config.Config,
) *PipelineOrchestrator {
	topN := cfg.Pipeline.DefaultTopN
	if topN <= 0 {
		topN = defaultTopN
	}
	maxTopN := cfg.Pipeline.MaxTopN
	if maxTopN <= 0 {
		maxTopN = defaultMaxTopN
	}
	platforms := cfg.Pipeline.Platforms
	if len(platforms) == 0 {
		platforms = defaultPlatforms
	}
	concurrency := cfg.Scoring.MaxConcurrent
	if concurrency <= 0 {
		concurrency = 8
	}

	return &PipelineOrchestrator{
		tracker:          tracker,
		campaigns:        campaigns,
		binder:           binder,
		expander:         expander,
		searcher:         searcher,
		collector:        collector,
		scorer:           scorer,
		archive:          archive,
		topN:             topN,
		maxTopN:          maxTopN,
		platforms:        platforms,
		scoreConcurrency: concurrency,
	}
}

// Submit validates the request, creates a pending job, and starts the
// pipeline as a detached background task.
// Parameters:
//   - ctx: request context; covers validation and job creation only.
//   - req: submission parameters.
// Returns:
//   - string: the new job id.
//   - error: ErrInvalidRequest-wrapped for client mistakes, otherwise a
//     storage error. No job exists when error is non-nil.
func (s *PipelineOrchestrator) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	req, err := s.validate(ctx, req)
	if err != nil {
		return "", err
	}

	job := &domain.PipelineJob{
		OwnerID:             req.OwnerID,
		CampaignID:          req.CampaignID,
		BusinessDescription: req.BusinessDescription,
		TopN:                req.TopN,
		Platform:            req.Platform,
		MinFollowers:        req.MinFollowers,
		MaxFollowers:        req.MaxFollowers,
	}
	jobID, err := s.tracker.Create(ctx, job)
	if err != nil {
		return "", err
	}

	logger.With(logger.Fields(logger.Sanitize(map[string]interface{}{
		"owner_id":             req.OwnerID,
		"campaign_id":          req.CampaignID,
		"business_description": req.BusinessDescription,
		"top_n":                req.TopN,
		"platform":             req.Platform,
		"stop_after_stage":     string(req.StopAfterStage),
	}))).Info(ctx, "Pipeline job accepted: job_id=%s", jobID)

	go s.run(jobID, req)
	return jobID, nil
}

// validate normalizes the request and rejects client mistakes before any
// job row is written.
func (s *PipelineOrchestrator) validate(ctx context.Context, req SubmitRequest) (SubmitRequest, error) {
	req.BusinessDescription = strings.TrimSpace(req.BusinessDescription)
	req.OwnerID = strings.TrimSpace(req.OwnerID)
	req.CampaignID = strings.TrimSpace(req.CampaignID)
	req.Platform = strings.ToLower(strings.TrimSpace(req.Platform))

	if req.BusinessDescription == "" {
		return req, fmt.Errorf("%w: business_description is required", ErrInvalidRequest)
	}
	if req.OwnerID == "" {
		return req, fmt.Errorf("%w: owner_id is required", ErrInvalidRequest)
	}

	if req.TopN == 0 {
		req.TopN = s.topN
	}
	if req.TopN < 1 || req.TopN > s.maxTopN {
		return req, fmt.Errorf("%w: top_n must be between 1 and %d", ErrInvalidRequest, s.maxTopN)
	}

	if req.MinFollowers != nil && *req.MinFollowers < 0 {
		return req, fmt.Errorf("%w: min_followers must not be negative", ErrInvalidRequest)
	}
	if req.MaxFollowers != nil && *req.MaxFollowers < 0 {
		return req, fmt.Errorf("%w: max_followers must not be negative", ErrInvalidRequest)
	}
	if req.MinFollowers != nil && req.MaxFollowers != nil && *req.MinFollowers > *req.MaxFollowers {
		return req, fmt.Errorf("%w: min_followers exceeds max_followers", ErrInvalidRequest)
	}

	if req.Platform != "" && !s.platformAllowed(req.Platform) {
		return req, fmt.Errorf("%w: unsupported platform %q", ErrInvalidRequest, req.Platform)
	}

	req.StopAfterStage = domain.Stage(strings.ToLower(strings.TrimSpace(string(req.StopAfterStage))))
	switch req.StopAfterStage {
	case "", domain.StageQueryExpansion, domain.StageVectorSearch, domain.StageCollection, domain.StageScoring:
	default:
		return req, fmt.Errorf("%w: unknown stage %q for stop_after_stage", ErrInvalidRequest, req.StopAfterStage)
	}

	if req.CampaignID != "" {
		campaign, err := s.campaigns.GetByID(ctx, req.CampaignID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return req, fmt.Errorf("%w: campaign %s not found", ErrInvalidRequest, req.CampaignID)
			}
			return req, err
		}
		if campaign.OwnerID != req.OwnerID {
			return req, fmt.Errorf("%w: campaign %s does not belong to owner", ErrInvalidRequest, req.CampaignID)
		}
	}

	return req, nil
}

func (s *PipelineOrchestrator) platformAllowed(platform string) bool {
	for _, p := range s.platforms {
		if strings.EqualFold(p, platform) {
			return true
		}
	}
	return false
}

// run executes the pipeline for one job. It never returns an error:
// every outcome, including panic, lands in job state. The job context is
// cancelled by the watcher once the durable cancel flag is observed, so
// in-flight network calls and sleeps unwind promptly.
func (s *PipelineOrchestrator) run(jobID string, req SubmitRequest) {
	ctx, cancel := context.WithCancel(logger.SetJobID(context.Background(), jobID))
	defer cancel()
	go s.watchCancellation(ctx, cancel, jobID)

	defer func() {
		if r := recover(); r != nil {
			s.failJob(ctx, jobID, fmt.Errorf("internal error: %v", r))
		}
	}()

	if _, err := s.tracker.SetStatus(ctx, jobID, domain.JobStatusRunning, ""); err != nil {
		logger.CtxError(ctx, "Failed to mark job running: job_id=%s, error=%v", jobID, err)
		return
	}

	if req.CampaignID != "" {
		s.bindCampaign(ctx, jobID, req)
	}

	queries, ok := s.runExpansion(ctx, jobID, req)
	if !ok {
		return
	}
	if req.StopAfterStage == domain.StageQueryExpansion {
		s.stopEarly(ctx, jobID, req.StopAfterStage)
		return
	}

	refs, ok := s.runSearch(ctx, jobID, req, queries)
	if !ok {
		return
	}

	if len(refs) == 0 {
		logger.CtxInfo(ctx, "No candidates after dedup, completing with empty results: job_id=%s", jobID)
		s.completeJob(ctx, jobID, 0, 0)
		return
	}
	if req.StopAfterStage == domain.StageVectorSearch {
		s.stopEarly(ctx, jobID, req.StopAfterStage)
		return
	}

	s.runCollection(ctx, jobID, req, refs)
}

// stopEarly finishes a run whose request asked to stop after the named
// stage. The job completes; later stages are simply never opened.
func (s *PipelineOrchestrator) stopEarly(ctx context.Context, jobID string, stage domain.Stage) {
	logger.CtxInfo(ctx, "Stopping early as requested: job_id=%s, stop_after_stage=%s", jobID, stage)
	s.completeJob(ctx, jobID, 0, 0)
}

// runExpansion executes the query_expansion stage. False means the run is
// over: the job is already in a terminal status.
func (s *PipelineOrchestrator) runExpansion(ctx context.Context, jobID string, req SubmitRequest) ([]string, bool) {
	if s.jobCancelled(ctx, jobID) {
		s.markCancelled(ctx, jobID)
		return nil, false
	}

	logWriteErr(ctx, "set_stage", s.tracker.SetStage(ctx, jobID, domain.StageQueryExpansion))

	queries, err := s.expander.Expand(ctx, req.BusinessDescription, 0)
	if err != nil {
		s.failJob(ctx, jobID, fmt.Errorf("query expansion: %w", err), domain.StageQueryExpansion)
		return nil, false
	}

	logWriteErr(ctx, "update_stage", s.tracker.UpdateStage(ctx, jobID, domain.StageQueryExpansion, domain.MetricsMap{
		"queries_generated": len(queries),
	}))
	logWriteErr(ctx, "complete_stage", s.tracker.CompleteStage(ctx, jobID, domain.StageQueryExpansion))
	logWriteErr(ctx, "job_fields", s.tracker.UpdateJobFields(ctx, jobID, map[string]interface{}{
		"queries_generated": len(queries),
	}))

	if s.jobCancelled(ctx, jobID) {
		s.markCancelled(ctx, jobID)
		return nil, false
	}
	return queries, true
}

// runSearch executes the vector_search stage and reduces its hits to the
// top-N collection candidates. False means the run is over.
func (s *PipelineOrchestrator) runSearch(ctx context.Context, jobID string, req SubmitRequest, queries []string) ([]domain.ProfileRef, bool) {
	logWriteErr(ctx, "set_stage", s.tracker.SetStage(ctx, jobID, domain.StageVectorSearch))

	hits, failedPairs, err := s.searcher.Run(ctx, VectorSearchParams{
		Queries:      queries,
		Platform:     req.Platform,
		MinFollowers: req.MinFollowers,
		MaxFollowers: req.MaxFollowers,
	}, func(ctx context.Context) bool {
		return s.jobCancelled(ctx, jobID)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.markCancelled(ctx, jobID)
		} else {
			s.failJob(ctx, jobID, fmt.Errorf("vector search: %w", err), domain.StageVectorSearch)
		}
		return nil, false
	}

	deduped := DedupeHits(hits)
	refs := s.candidateRefs(ctx, deduped, req)

	logWriteErr(ctx, "update_stage", s.tracker.UpdateStage(ctx, jobID, domain.StageVectorSearch, domain.MetricsMap{
		"search_hits":  len(hits),
		"deduped_hits": len(deduped),
		"candidates":   len(refs),
		"failed_pairs": failedPairs,
	}))
	logWriteErr(ctx, "complete_stage", s.tracker.CompleteStage(ctx, jobID, domain.StageVectorSearch))
	logWriteErr(ctx, "job_fields", s.tracker.UpdateJobFields(ctx, jobID, map[string]interface{}{
		"search_hits":  len(hits),
		"deduped_hits": len(deduped),
	}))

	logger.CtxInfo(ctx, "Vector search done: job_id=%s, hits=%d, deduped=%d, candidates=%d, failed_pairs=%d",
		jobID, len(hits), len(deduped), len(refs), failedPairs)
	return refs, true
}

// runCollection executes the interleaved collection and scoring stages and
// finishes the job.
func (s *PipelineOrchestrator) runCollection(ctx context.Context, jobID string, req SubmitRequest, refs []domain.ProfileRef) {
	if s.jobCancelled(ctx, jobID) {
		s.markCancelled(ctx, jobID)
		return
	}

	logWriteErr(ctx, "set_stage", s.tracker.SetStage(ctx, jobID, domain.StageCollection))

	total := s.collector.BatchCount(len(refs))
	logWriteErr(ctx, "batch_counters", s.tracker.UpdateBatchCounters(ctx, jobID, 0, 0, total))
	logger.CtxInfo(ctx, "Collection started: job_id=%s, candidates=%d, batches=%d", jobID, len(refs), total)

	scoreFn := s.scorer.ScorerFor(req.BusinessDescription)
	scoringEnabled := req.StopAfterStage != domain.StageCollection

	// Mutated only inside the callbacks, which the collector invokes from a
	// single aggregation loop.
	collected := 0
	analyzed := 0
	scoringStarted := false

	onBatch := func(ctx context.Context, batch BatchResult) error {
		if s.jobCancelled(ctx, jobID) {
			return context.Canceled
		}

		collected += len(batch.Profiles)
		s.archiveBatch(ctx, jobID, batch)

		var scored []domain.ScoredProfile
		if scoringEnabled {
			if !scoringStarted {
				scoringStarted = true
				logWriteErr(ctx, "set_stage", s.tracker.SetStage(ctx, jobID, domain.StageScoring))
			}
			var err error
			scored, err = ScoreProfiles(ctx, batch.Profiles, s.scoreConcurrency, scoreFn)
			if err != nil {
				return err
			}
		} else {
			scored = UnscoredProfiles(batch.Profiles)
		}
		sortScored(scored)

		if err := s.tracker.AppendResults(ctx, jobID, batch.Index, scored); err != nil {
			return fmt.Errorf("persist batch %d results: %w", batch.Index, err)
		}
		if scoringEnabled {
			analyzed += len(scored)
		}

		logWriteErr(ctx, "job_fields", s.tracker.UpdateJobFields(ctx, jobID, map[string]interface{}{
			"profiles_collected": collected,
			"profiles_analyzed":  analyzed,
		}))
		return nil
	}

	onProgress := func(completed, failed, totalBatches int) {
		logWriteErr(ctx, "batch_counters", s.tracker.UpdateBatchCounters(ctx, jobID, completed, failed, totalBatches))
	}

	summary, err := s.collector.Process(ctx, refs, onBatch, onProgress)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.markCancelled(ctx, jobID)
			return
		}
		stages := []domain.Stage{domain.StageCollection}
		if scoringStarted {
			stages = append(stages, domain.StageScoring)
		}
		s.failJob(ctx, jobID, fmt.Errorf("collection: %w", err), stages...)
		return
	}

	logWriteErr(ctx, "update_stage", s.tracker.UpdateStage(ctx, jobID, domain.StageCollection, domain.MetricsMap{
		"batches_total":      summary.Total,
		"batches_completed":  summary.Completed,
		"batches_failed":     summary.Failed,
		"profiles_collected": collected,
	}))
	logWriteErr(ctx, "complete_stage", s.tracker.CompleteStage(ctx, jobID, domain.StageCollection))
	if scoringStarted {
		logWriteErr(ctx, "update_stage", s.tracker.UpdateStage(ctx, jobID, domain.StageScoring, domain.MetricsMap{
			"profiles_analyzed": analyzed,
		}))
		logWriteErr(ctx, "complete_stage", s.tracker.CompleteStage(ctx, jobID, domain.StageScoring))
	}

	logger.CtxInfo(ctx, "Collection finished: job_id=%s, batches_completed=%d, batches_failed=%d, profiles=%d",
		jobID, summary.Completed, summary.Failed, collected)
	s.completeJob(ctx, jobID, collected, analyzed)
}

// candidateRefs converts ranked deduplicated hits into collection targets,
// keeping only hits whose identity resolves to a supported platform URL.
// Rank order is preserved; the list is capped at the requested top-N.
func (s *PipelineOrchestrator) candidateRefs(ctx context.Context, hits []domain.SearchHit, req SubmitRequest) []domain.ProfileRef {
	refs := make([]domain.ProfileRef, 0, req.TopN)
	for _, hit := range hits {
		if len(refs) == req.TopN {
			break
		}
		rawURL := hit.ProfileURL
		if rawURL == "" {
			rawURL = BuildProfileURL(hit.Platform, hit.Username)
		}
		canonical, platform, valid := CanonicalProfileURL(rawURL)
		if !valid {
			logger.CtxDebug(ctx, "Skipping hit without a usable profile URL: username=%s, url=%s", hit.Username, hit.ProfileURL)
			continue
		}
		if req.Platform != "" && platform != req.Platform {
			continue
		}
		refs = append(refs, domain.ProfileRef{
			Platform:      platform,
			Username:      hit.Username,
			ProfileURL:    canonical,
			CombinedScore: hit.CombinedScore(),
		})
	}
	return refs
}

// bindCampaign links the job to its campaign. Binding is best effort: any
// outcome other than success is logged and the run continues.
func (s *PipelineOrchestrator) bindCampaign(ctx context.Context, jobID string, req SubmitRequest) {
	result := s.binder.Bind(ctx, req.OwnerID, req.CampaignID, jobID)
	switch result.Outcome {
	case BindUpdated:
		logger.CtxInfo(ctx, "Campaign bound: campaign_id=%s, fallback=%t", req.CampaignID, result.Fallback)
	case BindNoopSame:
		logger.CtxDebug(ctx, "Campaign already bound to this job: campaign_id=%s", req.CampaignID)
	case BindNoopOther:
		logger.CtxWarn(ctx, "Campaign bound to another pipeline, leaving it: campaign_id=%s, existing=%s",
			req.CampaignID, result.ExistingID)
	case BindMissingCampaign:
		logger.CtxWarn(ctx, "Campaign disappeared before binding: campaign_id=%s", req.CampaignID)
	case BindFailed:
		logger.CtxError(ctx, "Campaign binding failed: campaign_id=%s, error=%v", req.CampaignID, result.Err)
	}
}

// archiveBatch stores one batch's raw collected profiles in the snapshot
// archive. Archive failures never fail the batch.
func (s *PipelineOrchestrator) archiveBatch(ctx context.Context, jobID string, batch BatchResult) {
	if s.archive == nil {
		return
	}
	payload, err := json.Marshal(batch.Profiles)
	if err != nil {
		logger.CtxWarn(ctx, "Batch archive marshal failed: batch_index=%d, error=%v", batch.Index, err)
		return
	}
	key := fmt.Sprintf("jobs/%s/batches/%04d.json", jobID, batch.Index)
	if err := s.archive.Upload(ctx, key, bytes.NewReader(payload), int64(len(payload)), "application/json"); err != nil {
		logger.CtxWarn(ctx, "Batch archive upload failed: key=%s, error=%v", key, err)
	}
}

// watchCancellation polls the durable cancel flag and cuts the job context
// once it is raised, so sleeps and in-flight calls unwind without waiting
// for the next explicit checkpoint.
func (s *PipelineOrchestrator) watchCancellation(ctx context.Context, cancel context.CancelFunc, jobID string) {
	ticker := time.NewTicker(cancelPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.tracker.IsCancelled(ctx, jobID) {
				cancel()
				return
			}
		}
	}
}

// jobCancelled is a cooperative checkpoint: true once the job context is
// cut or the durable cancel flag is raised.
func (s *PipelineOrchestrator) jobCancelled(ctx context.Context, jobID string) bool {
	if ctx.Err() != nil {
		return true
	}
	return s.tracker.IsCancelled(ctx, jobID)
}

// markCancelled finishes a run that observed its cancellation flag. Stages
// already completed keep their status; nothing further is marked
// successful. Writes use a detached context so the cancelled job context
// cannot swallow the terminal record.
func (s *PipelineOrchestrator) markCancelled(ctx context.Context, jobID string) {
	ctx = context.WithoutCancel(ctx)
	applied, err := s.tracker.SetStatus(ctx, jobID, domain.JobStatusCancelled, "")
	if err != nil {
		logger.CtxError(ctx, "Failed to mark job cancelled: job_id=%s, error=%v", jobID, err)
		return
	}
	if applied {
		logger.CtxInfo(ctx, "Pipeline cancelled: job_id=%s", jobID)
	}
}

// failJob records a failure on the named stages and moves the job to
// error. Nothing is re-raised; the background task has no caller to
// propagate to.
func (s *PipelineOrchestrator) failJob(ctx context.Context, jobID string, cause error, stages ...domain.Stage) {
	ctx = context.WithoutCancel(ctx)
	logger.CtxError(ctx, "Pipeline failed: job_id=%s, error=%v", jobID, cause)
	for _, stage := range stages {
		logWriteErr(ctx, "fail_stage", s.tracker.FailStage(ctx, jobID, stage, cause.Error()))
	}
	if _, err := s.tracker.SetStatus(ctx, jobID, domain.JobStatusError, cause.Error()); err != nil {
		logger.CtxError(ctx, "Failed to record job error: job_id=%s, error=%v", jobID, err)
	}
}

// completeJob writes the final counters and the completed status.
func (s *PipelineOrchestrator) completeJob(ctx context.Context, jobID string, collected, analyzed int) {
	ctx = context.WithoutCancel(ctx)
	logWriteErr(ctx, "finalize", s.tracker.Finalize(ctx, jobID, map[string]interface{}{
		"profiles_collected": collected,
		"profiles_analyzed":  analyzed,
	}))
	if _, err := s.tracker.SetStatus(ctx, jobID, domain.JobStatusCompleted, ""); err != nil {
		logger.CtxError(ctx, "Failed to mark job completed: job_id=%s, error=%v", jobID, err)
		return
	}
	logger.CtxInfo(ctx, "Pipeline completed: job_id=%s, profiles_collected=%d, profiles_analyzed=%d",
		jobID, collected, analyzed)
}

// Cancel requests cooperative cancellation of a job.
// Parameters:
//   - ctx: request context.
//   - jobID: job to cancel.
// Returns:
//   - bool: true when the job transitioned to cancelled now, false when it
//     was already terminal.
//   - error: gorm.ErrRecordNotFound when the job does not exist, otherwise
//     a storage error.
func (s *PipelineOrchestrator) Cancel(ctx context.Context, jobID string) (bool, error) {
	if _, err := s.tracker.GetJob(ctx, jobID); err != nil {
		return false, err
	}
	return s.tracker.Cancel(ctx, jobID)
}

// Snapshot returns the job row with its stage records and accumulated
// results in rank order.
func (s *PipelineOrchestrator) Snapshot(ctx context.Context, jobID string) (*JobSnapshot, error) {
	return s.tracker.Snapshot(ctx, jobID)
}

// ListJobs returns recent jobs, optionally filtered to one owner.
func (s *PipelineOrchestrator) ListJobs(ctx context.Context, ownerID string, limit int) ([]domain.PipelineJob, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.tracker.ListJobs(ctx, ownerID, limit)
}

// Stats aggregates job counts per status.
func (s *PipelineOrchestrator) Stats(ctx context.Context) (map[domain.JobStatus]int64, error) {
	return s.tracker.CountByStatus(ctx)
}

// sortScored orders one batch's results for persistence: fit score first,
// combined ranking score as the tiebreak.
func sortScored(profiles []domain.ScoredProfile) {
	sort.SliceStable(profiles, func(i, j int) bool {
		if profiles[i].FitScore != profiles[j].FitScore {
			return profiles[i].FitScore > profiles[j].FitScore
		}
		return profiles[i].CombinedScore > profiles[j].CombinedScore
	})
}

// logWriteErr logs a failed best-effort tracker write. Progress metadata is
// advisory; losing one write does not abort the run.
func logWriteErr(ctx context.Context, op string, err error) {
	if err != nil {
		logger.CtxWarn(ctx, "Tracker write failed: op=%s, error=%v", op, err)
	}
}
