package service

import (
	"context"
	"testing"
	"time"

	"github.com/wyatt/creatorscout/internal/domain"
	"github.com/wyatt/creatorscout/internal/repository"
)

func seedCampaign(t *testing.T, repo *repository.CampaignRepository, pipelineID string) *domain.Campaign {
	t.Helper()
	campaign := &domain.Campaign{
		ID:                  "camp-1",
		OwnerID:             "owner-1",
		Name:                "Spring launch",
		BusinessDescription: "sustainable sneakers",
		PipelineID:          pipelineID,
	}
	if err := repo.Create(context.Background(), campaign); err != nil {
		t.Fatalf("failed to seed campaign: %v", err)
	}
	return campaign
}

// TestCampaignBinder_ConcurrentSameBind verifies that two concurrent binds
// with identical arguments resolve to exactly one write and one no-op.
func TestCampaignBinder_ConcurrentSameBind(t *testing.T) {
	repo := repository.NewCampaignRepository(newTestDB(t))
	seedCampaign(t, repo, "")
	binder := NewCampaignBinder(repo)

	results := make(chan BindResult, 2)
	for i := 0; i < 2; i++ {
		go func() {
			results <- binder.Bind(context.Background(), "owner-1", "camp-1", "job-1")
		}()
	}

	counts := make(map[BindOutcome]int, 2)
	for i := 0; i < 2; i++ {
		counts[(<-results).Outcome]++
	}
	if counts[BindUpdated] != 1 || counts[BindNoopSame] != 1 {
		t.Errorf("outcomes = %v, want exactly one updated and one noop_same", counts)
	}

	campaign, err := repo.GetByID(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("failed to reload campaign: %v", err)
	}
	if campaign.PipelineID != "job-1" {
		t.Errorf("pipeline_id = %q, want job-1", campaign.PipelineID)
	}
}

// TestCampaignBinder_MissingCampaign verifies that a missing campaign is
// reported immediately, without burning through the retry backoffs.
func TestCampaignBinder_MissingCampaign(t *testing.T) {
	repo := repository.NewCampaignRepository(newTestDB(t))
	binder := NewCampaignBinder(repo)

	start := time.Now()
	result := binder.Bind(context.Background(), "owner-1", "ghost", "job-1")
	elapsed := time.Since(start)

	if result.Outcome != BindMissingCampaign {
		t.Fatalf("outcome = %s, want missing_campaign", result.Outcome)
	}
	if result.Fallback {
		t.Error("missing campaign must resolve on the transactional path")
	}
	if elapsed >= 200*time.Millisecond {
		t.Errorf("bind took %s; a missing campaign must not be retried", elapsed)
	}
}

func TestCampaignBinder_BoundToOtherPipeline(t *testing.T) {
	repo := repository.NewCampaignRepository(newTestDB(t))
	seedCampaign(t, repo, "job-a")
	binder := NewCampaignBinder(repo)

	result := binder.Bind(context.Background(), "owner-1", "camp-1", "job-b")
	if result.Outcome != BindNoopOther {
		t.Fatalf("outcome = %s, want noop_other", result.Outcome)
	}
	if result.ExistingID != "job-a" {
		t.Errorf("existing id = %q, want job-a", result.ExistingID)
	}

	campaign, err := repo.GetByID(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("failed to reload campaign: %v", err)
	}
	if campaign.PipelineID != "job-a" {
		t.Errorf("pipeline_id = %q, the existing binding must not be overwritten", campaign.PipelineID)
	}
}

func TestCampaignBinder_RebindSameJob(t *testing.T) {
	repo := repository.NewCampaignRepository(newTestDB(t))
	seedCampaign(t, repo, "job-a")
	binder := NewCampaignBinder(repo)

	result := binder.Bind(context.Background(), "owner-1", "camp-1", "job-a")
	if result.Outcome != BindNoopSame {
		t.Errorf("outcome = %s, want noop_same", result.Outcome)
	}
}

func TestCampaignBinder_OwnerScoped(t *testing.T) {
	repo := repository.NewCampaignRepository(newTestDB(t))
	seedCampaign(t, repo, "")
	binder := NewCampaignBinder(repo)

	result := binder.Bind(context.Background(), "someone-else", "camp-1", "job-1")
	if result.Outcome != BindMissingCampaign {
		t.Errorf("outcome = %s, want missing_campaign for a foreign owner", result.Outcome)
	}

	campaign, err := repo.GetByID(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("failed to reload campaign: %v", err)
	}
	if campaign.PipelineID != "" {
		t.Errorf("pipeline_id = %q, want untouched", campaign.PipelineID)
	}
}
