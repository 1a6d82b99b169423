package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// JobStatus represents the overall status of a pipeline job.
// Values include JobStatusPending, JobStatusRunning, JobStatusCompleted,
// JobStatusError, and JobStatusCancelled.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusError     JobStatus = "error"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether the status is final. A job in a terminal
// status never changes status again.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusError, JobStatusCancelled:
		return true
	}
	return false
}

// TerminalJobStatuses lists the statuses a job can never leave. Used in
// SQL predicates that guard status updates.
var TerminalJobStatuses = []JobStatus{
	JobStatusCompleted,
	JobStatusError,
	JobStatusCancelled,
}

// Stage names a phase of the discovery pipeline. Stage order within a
// job is fixed; collection and scoring overlap in time.
type Stage string

const (
	StageQueryExpansion Stage = "query_expansion"
	StageVectorSearch   Stage = "vector_search"
	StageCollection     Stage = "collection"
	StageScoring        Stage = "scoring"
)

// StageStatus represents the status of a single stage record.
// Transitions are monotonic: pending -> running -> {completed, error}.
type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusRunning   StageStatus = "running"
	StageStatusCompleted StageStatus = "completed"
	StageStatusError     StageStatus = "error"
)

// MetricsMap is a custom type for storing stage metrics as JSON in the database.
type MetricsMap map[string]interface{}

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded string representation of the metrics.
//   - error: non-nil if marshaling fails.
func (m MetricsMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (m *MetricsMap) Scan(value interface{}) error {
	if value == nil {
		*m = MetricsMap{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan MetricsMap")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, m)
}

// PipelineJob represents one creator discovery run and its progress metadata.
// Mutated exclusively through the progress tracker; results live in
// pipeline_results rows keyed by the job ID.
type PipelineJob struct {
	ID                  string     `gorm:"type:text;primaryKey" json:"id"`
	OwnerID             string     `gorm:"type:text;not null;index:idx_pipeline_jobs_owner" json:"owner_id"`
	CampaignID          string     `gorm:"type:text;index:idx_pipeline_jobs_campaign" json:"campaign_id,omitempty"`
	Status              JobStatus  `gorm:"type:text;index:idx_pipeline_jobs_status;default:pending" json:"status"`
	CurrentStage        Stage      `gorm:"type:text" json:"current_stage,omitempty"`
	Progress            int        `gorm:"default:0" json:"progress"`
	BusinessDescription string     `gorm:"type:text;not null" json:"business_description"`
	TopN                int        `gorm:"default:0" json:"top_n"`
	Platform            string     `gorm:"type:text" json:"platform,omitempty"`
	MinFollowers        *int64     `json:"min_followers,omitempty"`
	MaxFollowers        *int64     `json:"max_followers,omitempty"`
	QueriesGenerated    int        `gorm:"default:0" json:"queries_generated"`
	SearchHits          int        `gorm:"default:0" json:"search_hits"`
	DedupedHits         int        `gorm:"default:0" json:"deduped_hits"`
	ProfilesCollected   int        `gorm:"default:0" json:"profiles_collected"`
	ProfilesAnalyzed    int        `gorm:"default:0" json:"profiles_analyzed"`
	BatchesTotal        int        `gorm:"default:0" json:"batches_total"`
	BatchesCompleted    int        `gorm:"default:0" json:"batches_completed"`
	BatchesProcessing   int        `gorm:"default:0" json:"batches_processing"`
	BatchesFailed       int        `gorm:"default:0" json:"batches_failed"`
	CancelRequested     bool       `gorm:"default:false" json:"cancel_requested"`
	ErrorMessage        string     `gorm:"type:text" json:"error_message,omitempty"`
	StartedAt           *time.Time `json:"started_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// TableName returns the database table name for PipelineJob.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (PipelineJob) TableName() string {
	return "pipeline_jobs"
}

// StageRecord tracks one named stage of a pipeline job. Created when the
// stage begins; completed or failed once; never reopened.
type StageRecord struct {
	ID            string      `gorm:"type:text;primaryKey" json:"id"`
	JobID         string      `gorm:"type:text;not null;index:idx_pipeline_stages_job,unique" json:"job_id"`
	Stage         Stage       `gorm:"type:text;not null;index:idx_pipeline_stages_job,unique" json:"stage"`
	Status        StageStatus `gorm:"type:text;default:pending" json:"status"`
	Metrics       MetricsMap  `gorm:"type:text" json:"metrics"`
	StartOffsetMs int64       `gorm:"default:0" json:"start_offset_ms"`
	DurationMs    int64       `gorm:"default:0" json:"duration_ms"`
	Error         string      `gorm:"type:text" json:"error,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// TableName returns the database table name for StageRecord.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (StageRecord) TableName() string {
	return "pipeline_stages"
}
