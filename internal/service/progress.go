package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wyatt/creatorscout/internal/domain"
	"github.com/wyatt/creatorscout/internal/logger"
	"github.com/wyatt/creatorscout/internal/repository"
)

// Overall progress percentage reached when a stage begins.
var stageProgress = map[domain.Stage]int{
	domain.StageQueryExpansion: 10,
	domain.StageVectorSearch:   35,
	domain.StageCollection:     65,
	domain.StageScoring:        85,
}

const progressCompleted = 100

// StageProgress returns the overall progress percentage for a stage start.
func StageProgress(stage domain.Stage) int {
	if p, ok := stageProgress[stage]; ok {
		return p
	}
	return 0
}

// JobSnapshot is the full job view returned to status polling.
type JobSnapshot struct {
	Job     *domain.PipelineJob    `json:"job"`
	Stages  []domain.StageRecord   `json:"stages"`
	Results []domain.ScoredProfile `json:"results"`
}

// JobProgressTracker is the single writer of pipeline job state. Every
// mutation lands in durable storage before the call returns; the optional
// redis cache only accelerates cancellation polling and never replaces the
// database as the source of truth.
type JobProgressTracker struct {
	jobs  *repository.JobRepository
	cache *repository.ProgressCache
}

// NewJobProgressTracker creates a new tracker. cache may be nil.
func NewJobProgressTracker(jobs *repository.JobRepository, cache *repository.ProgressCache) *JobProgressTracker {
	return &JobProgressTracker{jobs: jobs, cache: cache}
}

// Create persists a new pending job and returns its id.
// Parameters:
//   - ctx: request context.
//   - job: job row to insert; ID and Status are assigned here when empty.
// Returns:
//   - string: the job id.
//   - error: non-nil if the insert fails.
func (t *JobProgressTracker) Create(ctx context.Context, job *domain.PipelineJob) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = domain.JobStatusPending
	}
	if err := t.jobs.Create(ctx, job); err != nil {
		return "", err
	}
	return job.ID, nil
}

// SetStatus transitions the job's overall status. Terminal rows are left
// untouched; the skipped write is logged and reported, not an error.
// Parameters:
//   - ctx: request context.
//   - jobID: job to update.
//   - status: target status.
//   - errMsg: error text recorded with status error, empty otherwise.
// Returns:
//   - bool: true when a row changed.
//   - error: non-nil if the write fails.
func (t *JobProgressTracker) SetStatus(ctx context.Context, jobID string, status domain.JobStatus, errMsg string) (bool, error) {
	applied, err := t.jobs.UpdateStatus(ctx, jobID, status, errMsg)
	if err != nil {
		return false, err
	}
	if !applied {
		logger.CtxDebug(ctx, "Status change skipped, job already terminal: job_id=%s, status=%s", jobID, status)
	}
	return applied, nil
}

// SetStage moves the job into a stage: updates current_stage and overall
// progress on the job row and opens the stage record as running with its
// start offset relative to job start.
func (t *JobProgressTracker) SetStage(ctx context.Context, jobID string, stage domain.Stage) error {
	if err := t.jobs.UpdateFields(ctx, jobID, map[string]interface{}{
		"current_stage": string(stage),
		"progress":      StageProgress(stage),
	}); err != nil {
		return err
	}

	offset := int64(0)
	if job, err := t.jobs.GetByID(ctx, jobID); err == nil && job.StartedAt != nil {
		offset = time.Since(*job.StartedAt).Milliseconds()
	}

	return t.jobs.UpsertStage(ctx, &domain.StageRecord{
		ID:            uuid.NewString(),
		JobID:         jobID,
		Stage:         stage,
		Status:        domain.StageStatusRunning,
		StartOffsetMs: offset,
	})
}

// UpdateStage replaces the stage record's metrics.
func (t *JobProgressTracker) UpdateStage(ctx context.Context, jobID string, stage domain.Stage, metrics domain.MetricsMap) error {
	return t.jobs.UpdateStage(ctx, jobID, stage, map[string]interface{}{
		"metrics": metrics,
	})
}

// CompleteStage marks a stage completed and records its duration.
func (t *JobProgressTracker) CompleteStage(ctx context.Context, jobID string, stage domain.Stage) error {
	return t.closeStage(ctx, jobID, stage, domain.StageStatusCompleted, "")
}

// FailStage marks a stage failed with the given error text.
func (t *JobProgressTracker) FailStage(ctx context.Context, jobID string, stage domain.Stage, errMsg string) error {
	return t.closeStage(ctx, jobID, stage, domain.StageStatusError, errMsg)
}

func (t *JobProgressTracker) closeStage(ctx context.Context, jobID string, stage domain.Stage, status domain.StageStatus, errMsg string) error {
	fields := map[string]interface{}{
		"status": string(status),
	}
	if errMsg != "" {
		fields["error"] = errMsg
	}
	if record, err := t.jobs.GetStage(ctx, jobID, stage); err == nil && record != nil {
		fields["duration_ms"] = time.Since(record.CreatedAt).Milliseconds()
	}
	return t.jobs.UpdateStage(ctx, jobID, stage, fields)
}

// AppendResults persists one batch's scored profiles. The insert is purely
// additive; concurrent batches cannot clobber each other's rows.
// Parameters:
//   - ctx: request context.
//   - jobID: owning job.
//   - batchIndex: batch the rows belong to.
//   - profiles: scored rows; JobID and BatchIndex are stamped here.
// Returns:
//   - error: non-nil if the insert fails.
func (t *JobProgressTracker) AppendResults(ctx context.Context, jobID string, batchIndex int, profiles []domain.ScoredProfile) error {
	if len(profiles) == 0 {
		return nil
	}
	for i := range profiles {
		profiles[i].JobID = jobID
		profiles[i].BatchIndex = batchIndex
		if profiles[i].ID == "" {
			profiles[i].ID = uuid.NewString()
		}
	}
	return t.jobs.AppendResults(ctx, profiles)
}

// UpdateBatchCounters writes the batch counters in one statement, keeping
// completed + processing + failed == total after every update.
func (t *JobProgressTracker) UpdateBatchCounters(ctx context.Context, jobID string, completed, failed, total int) error {
	processing := total - completed - failed
	if processing < 0 {
		processing = 0
	}
	return t.jobs.UpdateBatchCounters(ctx, jobID, completed, processing, failed, total)
}

// IsCancelled reports whether cancellation has been requested for the job.
// The redis cache answers first when available; misses fall through to a
// single-column database read whose result is cached best-effort.
func (t *JobProgressTracker) IsCancelled(ctx context.Context, jobID string) bool {
	if cancelled, found := t.cache.GetCancelled(ctx, jobID); found {
		return cancelled
	}

	cancelled, err := t.jobs.GetCancelRequested(ctx, jobID)
	if err != nil {
		logger.CtxWarn(ctx, "Cancellation flag read failed: job_id=%s, error=%v", jobID, err)
		return false
	}
	if err := t.cache.SetCancelled(ctx, jobID, cancelled); err != nil {
		logger.CtxDebug(ctx, "Cancellation cache write failed: job_id=%s, error=%v", jobID, err)
	}
	return cancelled
}

// Cancel raises the durable cancellation flag and, when the job is not yet
// terminal, transitions it to cancelled immediately. Safe to call multiple
// times and after completion.
// Parameters:
//   - ctx: request context.
//   - jobID: job to cancel.
// Returns:
//   - bool: true when the job transitioned to cancelled by this call.
//   - error: non-nil if a write fails.
func (t *JobProgressTracker) Cancel(ctx context.Context, jobID string) (bool, error) {
	if err := t.jobs.SetCancelRequested(ctx, jobID); err != nil {
		return false, err
	}
	if err := t.cache.SetCancelled(ctx, jobID, true); err != nil {
		logger.CtxDebug(ctx, "Cancellation cache write failed: job_id=%s, error=%v", jobID, err)
	}

	applied, err := t.jobs.UpdateStatus(ctx, jobID, domain.JobStatusCancelled, "")
	if err != nil {
		return false, err
	}
	return applied, nil
}

// Finalize writes the job's final counters and full progress.
func (t *JobProgressTracker) Finalize(ctx context.Context, jobID string, fields map[string]interface{}) error {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["progress"] = progressCompleted
	return t.jobs.UpdateFields(ctx, jobID, fields)
}

// GetJob loads the bare job row.
func (t *JobProgressTracker) GetJob(ctx context.Context, jobID string) (*domain.PipelineJob, error) {
	return t.jobs.GetByID(ctx, jobID)
}

// UpdateJobFields applies counter and stage-name updates to the job row.
func (t *JobProgressTracker) UpdateJobFields(ctx context.Context, jobID string, fields map[string]interface{}) error {
	return t.jobs.UpdateFields(ctx, jobID, fields)
}

// ListJobs returns recent jobs, optionally filtered to one owner.
func (t *JobProgressTracker) ListJobs(ctx context.Context, ownerID string, limit int) ([]domain.PipelineJob, error) {
	return t.jobs.List(ctx, ownerID, limit, 0)
}

// CountByStatus aggregates job counts per status for the stats endpoint.
func (t *JobProgressTracker) CountByStatus(ctx context.Context) (map[domain.JobStatus]int64, error) {
	return t.jobs.CountByStatus(ctx)
}

// Snapshot loads the full job view: the job row, its stage records, and all
// accumulated results in rank order.
func (t *JobProgressTracker) Snapshot(ctx context.Context, jobID string) (*JobSnapshot, error) {
	job, err := t.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	stages, err := t.jobs.ListStages(ctx, jobID)
	if err != nil {
		return nil, err
	}
	results, err := t.jobs.ListResults(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &JobSnapshot{Job: job, Stages: stages, Results: results}, nil
}
