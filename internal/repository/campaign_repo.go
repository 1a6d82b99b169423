package repository

import (
	"context"

	"github.com/wyatt/creatorscout/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CampaignRepository handles campaign data operations.
type CampaignRepository struct {
	db *gorm.DB
}

// NewCampaignRepository creates a new CampaignRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *CampaignRepository: repository instance bound to db.
func NewCampaignRepository(db *gorm.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// Create inserts a new campaign record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - campaign: campaign record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *CampaignRepository) Create(ctx context.Context, campaign *domain.Campaign) error {
	return r.db.WithContext(ctx).Create(campaign).Error
}

// GetByID retrieves a campaign by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: campaign ID.
// Returns:
//   - *domain.Campaign: campaign record if found.
//   - error: non-nil if lookup fails.
func (r *CampaignRepository) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	var campaign domain.Campaign
	if err := r.db.WithContext(ctx).First(&campaign, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &campaign, nil
}

// ListByOwner retrieves campaigns for an owner, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - ownerID: owning user ID.
//   - limit: maximum number of records to return.
// Returns:
//   - []domain.Campaign: matching campaign records.
//   - error: non-nil if the query fails.
func (r *CampaignRepository) ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.Campaign, error) {
	var campaigns []domain.Campaign
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Limit(limit).
		Order("created_at DESC").
		Find(&campaigns).Error; err != nil {
		return nil, err
	}
	return campaigns, nil
}

// UpdatePipelineIDTx binds a pipeline to a campaign inside one transaction.
// An existing different binding is never overwritten here; the existing id
// is surfaced so the caller can decide.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - ownerID: campaign owner, part of the lookup key.
//   - campaignID: campaign to bind.
//   - pipelineID: pipeline job ID to record.
// Returns:
//   - string: pipeline id held by the campaign after the call.
//   - bool: true if this call wrote the binding.
//   - error: gorm.ErrRecordNotFound if the campaign does not exist, other non-nil on store failure.
func (r *CampaignRepository) UpdatePipelineIDTx(ctx context.Context, ownerID, campaignID, pipelineID string) (string, bool, error) {
	var existing string
	var applied bool

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		// SQLite has no FOR UPDATE; its transactions serialize writes anyway.
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var campaign domain.Campaign
		if err := q.First(&campaign, "id = ? AND owner_id = ?", campaignID, ownerID).Error; err != nil {
			return err
		}

		existing = campaign.PipelineID
		if existing != "" {
			return nil
		}

		if err := tx.Model(&domain.Campaign{}).
			Where("id = ?", campaignID).
			Update("pipeline_id", pipelineID).Error; err != nil {
			return err
		}
		existing = pipelineID
		applied = true
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return existing, applied, nil
}

// UpdatePipelineID performs the non-transactional best-effort binding:
// an existence check followed by an unconditional set. Used only after
// the transactional path is exhausted.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - ownerID: campaign owner, part of the lookup key.
//   - campaignID: campaign to bind.
//   - pipelineID: pipeline job ID to record.
// Returns:
//   - bool: true if the campaign exists and the write was issued.
//   - error: non-nil if the lookup or write fails.
func (r *CampaignRepository) UpdatePipelineID(ctx context.Context, ownerID, campaignID, pipelineID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.Campaign{}).
		Where("id = ? AND owner_id = ?", campaignID, ownerID).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, nil
	}
	if err := r.db.WithContext(ctx).
		Model(&domain.Campaign{}).
		Where("id = ?", campaignID).
		Update("pipeline_id", pipelineID).Error; err != nil {
		return true, err
	}
	return true, nil
}
