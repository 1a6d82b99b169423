package service

import (
	"context"
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wyatt/creatorscout/internal/domain"
	"github.com/wyatt/creatorscout/internal/repository"
)

// newTestDB opens a throwaway sqlite database with the full schema migrated.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "creatorscout.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.PipelineJob{},
		&domain.StageRecord{},
		&domain.ScoredProfile{},
		&domain.Campaign{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func newTestTracker(t *testing.T) *JobProgressTracker {
	t.Helper()
	return NewJobProgressTracker(repository.NewJobRepository(newTestDB(t)), nil)
}

func createTestJob(t *testing.T, tracker *JobProgressTracker) string {
	t.Helper()
	jobID, err := tracker.Create(context.Background(), &domain.PipelineJob{
		OwnerID:             "owner-1",
		BusinessDescription: "specialty coffee roaster",
		TopN:                10,
	})
	if err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	return jobID
}

func TestStageProgress(t *testing.T) {
	testCases := []struct {
		stage domain.Stage
		want  int
	}{
		{domain.StageQueryExpansion, 10},
		{domain.StageVectorSearch, 35},
		{domain.StageCollection, 65},
		{domain.StageScoring, 85},
		{domain.Stage("unknown"), 0},
	}

	for _, tc := range testCases {
		if got := StageProgress(tc.stage); got != tc.want {
			t.Errorf("StageProgress(%s) = %d, want %d", tc.stage, got, tc.want)
		}
	}
}

// TestJobProgressTracker_TerminalStatusImmutable verifies that no status
// write can move a job out of a terminal status.
func TestJobProgressTracker_TerminalStatusImmutable(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()
	jobID := createTestJob(t, tracker)

	if applied, err := tracker.SetStatus(ctx, jobID, domain.JobStatusRunning, ""); err != nil || !applied {
		t.Fatalf("running transition: applied=%t, err=%v", applied, err)
	}
	if applied, err := tracker.SetStatus(ctx, jobID, domain.JobStatusCompleted, ""); err != nil || !applied {
		t.Fatalf("completed transition: applied=%t, err=%v", applied, err)
	}

	testCases := []struct {
		name   string
		status domain.JobStatus
	}{
		{name: "cancel after completion", status: domain.JobStatusCancelled},
		{name: "error after completion", status: domain.JobStatusError},
		{name: "rerun after completion", status: domain.JobStatusRunning},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			applied, err := tracker.SetStatus(ctx, jobID, tc.status, "too late")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if applied {
				t.Errorf("transition to %s applied on a terminal job", tc.status)
			}
		})
	}

	job, err := tracker.GetJob(ctx, jobID)
	if err != nil {
		t.Fatalf("failed to load job: %v", err)
	}
	if job.Status != domain.JobStatusCompleted {
		t.Errorf("status = %s, want completed", job.Status)
	}
	if job.ErrorMessage != "" {
		t.Errorf("error_message = %q, want empty", job.ErrorMessage)
	}
	if job.StartedAt == nil {
		t.Error("expected started_at to be set by the running transition")
	}
	if job.CompletedAt == nil {
		t.Error("expected completed_at to be set by the completed transition")
	}
}

func TestJobProgressTracker_CancelIsIdempotent(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()
	jobID := createTestJob(t, tracker)

	if _, err := tracker.SetStatus(ctx, jobID, domain.JobStatusRunning, ""); err != nil {
		t.Fatalf("failed to start job: %v", err)
	}

	applied, err := tracker.Cancel(ctx, jobID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !applied {
		t.Error("first cancel on a running job should transition it")
	}
	if !tracker.IsCancelled(ctx, jobID) {
		t.Error("expected the durable cancel flag to read back")
	}

	applied, err = tracker.Cancel(ctx, jobID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if applied {
		t.Error("second cancel reported a transition on a terminal job")
	}

	job, err := tracker.GetJob(ctx, jobID)
	if err != nil {
		t.Fatalf("failed to load job: %v", err)
	}
	if job.Status != domain.JobStatusCancelled {
		t.Errorf("status = %s, want cancelled", job.Status)
	}
	if !job.CancelRequested {
		t.Error("expected cancel_requested to stay raised")
	}
}

// TestJobProgressTracker_BatchCounters verifies the counter identity
// completed + processing + failed == total after every update.
func TestJobProgressTracker_BatchCounters(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()
	jobID := createTestJob(t, tracker)

	testCases := []struct {
		name           string
		completed      int
		failed         int
		total          int
		wantProcessing int
	}{
		{name: "start", completed: 0, failed: 0, total: 4, wantProcessing: 4},
		{name: "mid run", completed: 2, failed: 1, total: 4, wantProcessing: 1},
		{name: "all settled", completed: 3, failed: 1, total: 4, wantProcessing: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tracker.UpdateBatchCounters(ctx, jobID, tc.completed, tc.failed, tc.total); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			job, err := tracker.GetJob(ctx, jobID)
			if err != nil {
				t.Fatalf("failed to load job: %v", err)
			}
			if job.BatchesProcessing != tc.wantProcessing {
				t.Errorf("processing = %d, want %d", job.BatchesProcessing, tc.wantProcessing)
			}
			if sum := job.BatchesCompleted + job.BatchesProcessing + job.BatchesFailed; sum != job.BatchesTotal {
				t.Errorf("completed+processing+failed = %d, want total %d", sum, job.BatchesTotal)
			}
		})
	}

	t.Run("overshoot clamps to zero", func(t *testing.T) {
		if err := tracker.UpdateBatchCounters(ctx, jobID, 4, 1, 4); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		job, err := tracker.GetJob(ctx, jobID)
		if err != nil {
			t.Fatalf("failed to load job: %v", err)
		}
		if job.BatchesProcessing != 0 {
			t.Errorf("processing = %d, want 0", job.BatchesProcessing)
		}
	})
}

func TestJobProgressTracker_StageLifecycle(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()
	jobID := createTestJob(t, tracker)

	if _, err := tracker.SetStatus(ctx, jobID, domain.JobStatusRunning, ""); err != nil {
		t.Fatalf("failed to start job: %v", err)
	}

	if err := tracker.SetStage(ctx, jobID, domain.StageQueryExpansion); err != nil {
		t.Fatalf("failed to open stage: %v", err)
	}

	job, err := tracker.GetJob(ctx, jobID)
	if err != nil {
		t.Fatalf("failed to load job: %v", err)
	}
	if job.CurrentStage != domain.StageQueryExpansion {
		t.Errorf("current_stage = %s, want query_expansion", job.CurrentStage)
	}
	if job.Progress != 10 {
		t.Errorf("progress = %d, want 10", job.Progress)
	}

	if err := tracker.UpdateStage(ctx, jobID, domain.StageQueryExpansion, domain.MetricsMap{"queries_generated": 12}); err != nil {
		t.Fatalf("failed to update stage metrics: %v", err)
	}
	if err := tracker.CompleteStage(ctx, jobID, domain.StageQueryExpansion); err != nil {
		t.Fatalf("failed to complete stage: %v", err)
	}
	if err := tracker.SetStage(ctx, jobID, domain.StageVectorSearch); err != nil {
		t.Fatalf("failed to open second stage: %v", err)
	}

	snap, err := tracker.Snapshot(ctx, jobID)
	if err != nil {
		t.Fatalf("failed to snapshot: %v", err)
	}
	if len(snap.Stages) != 2 {
		t.Fatalf("got %d stage records, want 2", len(snap.Stages))
	}

	var expansion *domain.StageRecord
	for i := range snap.Stages {
		if snap.Stages[i].Stage == domain.StageQueryExpansion {
			expansion = &snap.Stages[i]
		}
	}
	if expansion == nil {
		t.Fatal("query_expansion stage record missing")
	}
	if expansion.Status != domain.StageStatusCompleted {
		t.Errorf("stage status = %s, want completed", expansion.Status)
	}
	// Metrics round-trip through JSON, so numbers come back as float64.
	if got := expansion.Metrics["queries_generated"]; got != float64(12) {
		t.Errorf("queries_generated = %v, want 12", got)
	}
	if expansion.DurationMs < 0 {
		t.Errorf("duration = %d, want non-negative", expansion.DurationMs)
	}

	if snap.Job.Progress != 35 {
		t.Errorf("progress = %d, want 35 after vector_search opened", snap.Job.Progress)
	}
}

func TestJobProgressTracker_ResultsStampedAndRanked(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()
	jobID := createTestJob(t, tracker)

	first := []domain.ScoredProfile{
		{Platform: "instagram", Username: "mid", FitScore: 7, CombinedScore: 0.5},
		{Platform: "instagram", Username: "low", FitScore: 4, CombinedScore: 0.9},
	}
	if err := tracker.AppendResults(ctx, jobID, 0, first); err != nil {
		t.Fatalf("failed to append batch 0: %v", err)
	}
	second := []domain.ScoredProfile{
		{Platform: "tiktok", Username: "top", FitScore: 7, CombinedScore: 0.8},
	}
	if err := tracker.AppendResults(ctx, jobID, 1, second); err != nil {
		t.Fatalf("failed to append batch 1: %v", err)
	}

	snap, err := tracker.Snapshot(ctx, jobID)
	if err != nil {
		t.Fatalf("failed to snapshot: %v", err)
	}
	if len(snap.Results) != 3 {
		t.Fatalf("got %d results, want 3", len(snap.Results))
	}

	wantOrder := []string{"top", "mid", "low"}
	for i, username := range wantOrder {
		if snap.Results[i].Username != username {
			t.Errorf("rank %d = %q, want %q", i, snap.Results[i].Username, username)
		}
	}
	for _, row := range snap.Results {
		if row.JobID != jobID {
			t.Errorf("row %s job_id = %q, want the owning job", row.Username, row.JobID)
		}
		if row.ID == "" {
			t.Errorf("row %s has no id", row.Username)
		}
		if row.Username == "top" && row.BatchIndex != 1 {
			t.Errorf("row top batch_index = %d, want 1", row.BatchIndex)
		}
	}
}
