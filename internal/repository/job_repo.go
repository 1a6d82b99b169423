package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wyatt/creatorscout/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JobRepository handles pipeline job, stage, and result persistence.
// All writes issued here are single atomic statements; callers never
// read-modify-write a job row.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *JobRepository: repository instance bound to db.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new pipeline job record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: job record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *JobRepository) Create(ctx context.Context, job *domain.PipelineJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// GetByID retrieves a pipeline job by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
// Returns:
//   - *domain.PipelineJob: job record if found.
//   - error: non-nil if lookup fails.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.PipelineJob, error) {
	var job domain.PipelineJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateStatus transitions a job's overall status. The update carries a
// terminal-status guard in its WHERE clause, so a completed, error, or
// cancelled job is never transitioned again regardless of caller timing.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
//   - status: new overall status.
//   - errorMessage: error text to record; empty leaves the column untouched.
// Returns:
//   - bool: true if the transition applied, false if the job was already terminal or missing.
//   - error: non-nil if the update fails.
func (r *JobRepository) UpdateStatus(ctx context.Context, id string, status domain.JobStatus, errorMessage string) (bool, error) {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if errorMessage != "" {
		updates["error_message"] = errorMessage
	}
	if status == domain.JobStatusRunning {
		updates["started_at"] = time.Now()
	}
	if status.IsTerminal() {
		updates["completed_at"] = time.Now()
	}

	tx := r.db.WithContext(ctx).
		Model(&domain.PipelineJob{}).
		Where("id = ? AND status NOT IN ?", id, domain.TerminalJobStatuses).
		Updates(updates)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// UpdateFields applies arbitrary column updates to a job row. Callers use
// this for current_stage, progress, and summary counters; status changes
// must go through UpdateStatus so the terminal guard applies.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
//   - fields: column name to value map.
// Returns:
//   - error: non-nil if the update fails.
func (r *JobRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&domain.PipelineJob{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// UpdateBatchCounters writes all four batch counters in one statement so
// a status poll never observes a torn counter set.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
//   - completed, processing, failed, total: batch counter values.
// Returns:
//   - error: non-nil if the update fails.
func (r *JobRepository) UpdateBatchCounters(ctx context.Context, id string, completed, processing, failed, total int) error {
	return r.db.WithContext(ctx).
		Model(&domain.PipelineJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"batches_completed":  completed,
			"batches_processing": processing,
			"batches_failed":     failed,
			"batches_total":      total,
		}).Error
}

// SetCancelRequested raises the durable cancellation flag for a job.
// The flag is advisory; the running pipeline observes it at its next
// checkpoint.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
// Returns:
//   - error: non-nil if the update fails.
func (r *JobRepository) SetCancelRequested(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&domain.PipelineJob{}).
		Where("id = ?", id).
		Update("cancel_requested", true).Error
}

// GetCancelRequested reads the durable cancellation flag.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
// Returns:
//   - bool: true if cancellation has been requested.
//   - error: non-nil if the lookup fails.
func (r *JobRepository) GetCancelRequested(ctx context.Context, id string) (bool, error) {
	var flag bool
	if err := r.db.WithContext(ctx).
		Model(&domain.PipelineJob{}).
		Where("id = ?", id).
		Pluck("cancel_requested", &flag).Error; err != nil {
		return false, err
	}
	return flag, nil
}

// UpsertStage creates or updates a stage record keyed by (job_id, stage).
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - stage: stage record to create or update.
// Returns:
//   - error: non-nil if the upsert fails.
func (r *JobRepository) UpsertStage(ctx context.Context, stage *domain.StageRecord) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job_id"}, {Name: "stage"}},
		UpdateAll: true,
	}).Create(stage).Error
}

// UpdateStage applies column updates to one stage record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - jobID: owning job ID.
//   - stage: stage name.
//   - fields: column name to value map.
// Returns:
//   - error: non-nil if the update fails.
func (r *JobRepository) UpdateStage(ctx context.Context, jobID string, stage domain.Stage, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&domain.StageRecord{}).
		Where("job_id = ? AND stage = ?", jobID, stage).
		Updates(fields).Error
}

// GetStage retrieves one stage record by its (job_id, stage) key.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - jobID: owning job ID.
//   - stage: stage name.
// Returns:
//   - *domain.StageRecord: the stage record, nil when it does not exist.
//   - error: non-nil if the query fails.
func (r *JobRepository) GetStage(ctx context.Context, jobID string, stage domain.Stage) (*domain.StageRecord, error) {
	var record domain.StageRecord
	err := r.db.WithContext(ctx).
		Where("job_id = ? AND stage = ?", jobID, stage).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// ListStages retrieves all stage records for a job in creation order.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - jobID: owning job ID.
// Returns:
//   - []domain.StageRecord: stage records.
//   - error: non-nil if the query fails.
func (r *JobRepository) ListStages(ctx context.Context, jobID string) ([]domain.StageRecord, error) {
	var stages []domain.StageRecord
	if err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Find(&stages).Error; err != nil {
		return nil, err
	}
	return stages, nil
}

// AppendResults inserts scored profile rows for a job. Results are
// append-only; concurrent batch callbacks each insert their own rows and
// never touch rows written by another batch.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - profiles: result rows to insert.
// Returns:
//   - error: non-nil if the insert fails.
func (r *JobRepository) AppendResults(ctx context.Context, profiles []domain.ScoredProfile) error {
	if len(profiles) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&profiles).Error; err != nil {
		return fmt.Errorf("failed to append results: %w", err)
	}
	return nil
}

// ListResults retrieves all result rows for a job ranked by fit score,
// then combined score, both descending.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - jobID: owning job ID.
// Returns:
//   - []domain.ScoredProfile: ranked result rows.
//   - error: non-nil if the query fails.
func (r *JobRepository) ListResults(ctx context.Context, jobID string) ([]domain.ScoredProfile, error) {
	var profiles []domain.ScoredProfile
	if err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("fit_score DESC, combined_score DESC").
		Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

// CountResults counts persisted result rows for a job.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - jobID: owning job ID.
// Returns:
//   - int64: number of result rows.
//   - error: non-nil if the query fails.
func (r *JobRepository) CountResults(ctx context.Context, jobID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.ScoredProfile{}).
		Where("job_id = ?", jobID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// List retrieves jobs, newest first, optionally filtered by owner.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - ownerID: owner filter; empty means all owners.
//   - limit: maximum number of records to return.
//   - offset: number of records to skip.
// Returns:
//   - []domain.PipelineJob: matching job records.
//   - error: non-nil if the query fails.
func (r *JobRepository) List(ctx context.Context, ownerID string, limit, offset int) ([]domain.PipelineJob, error) {
	var jobs []domain.PipelineJob
	query := r.db.WithContext(ctx)
	if ownerID != "" {
		query = query.Where("owner_id = ?", ownerID)
	}
	if err := query.
		Limit(limit).
		Offset(offset).
		Order("created_at DESC").
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// CountByStatus counts jobs grouped by overall status.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - map[domain.JobStatus]int64: job count per status.
//   - error: non-nil if the query fails.
func (r *JobRepository) CountByStatus(ctx context.Context) (map[domain.JobStatus]int64, error) {
	type row struct {
		Status domain.JobStatus
		Count  int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&domain.PipelineJob{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[domain.JobStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
