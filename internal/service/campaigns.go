package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/wyatt/creatorscout/internal/domain"
	"github.com/wyatt/creatorscout/internal/repository"
)

// CampaignService manages campaign records. Binding a pipeline run to a
// campaign is not done here; that goes through the CampaignBinder.
type CampaignService struct {
	campaigns *repository.CampaignRepository
}

// NewCampaignService creates a new campaign service.
func NewCampaignService(campaigns *repository.CampaignRepository) *CampaignService {
	return &CampaignService{campaigns: campaigns}
}

// CreateCampaignRequest carries one campaign creation.
type CreateCampaignRequest struct {
	OwnerID             string `json:"owner_id"`
	Name                string `json:"name"`
	BusinessDescription string `json:"business_description,omitempty"`
}

// Create validates and persists a new campaign.
// Parameters:
//   - ctx: request context.
//   - req: creation parameters.
// Returns:
//   - *domain.Campaign: the stored campaign with its assigned id.
//   - error: ErrInvalidRequest-wrapped for client mistakes, otherwise a
//     storage error.
func (s *CampaignService) Create(ctx context.Context, req CreateCampaignRequest) (*domain.Campaign, error) {
	req.OwnerID = strings.TrimSpace(req.OwnerID)
	req.Name = strings.TrimSpace(req.Name)
	if req.OwnerID == "" {
		return nil, fmt.Errorf("%w: owner_id is required", ErrInvalidRequest)
	}
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}

	campaign := &domain.Campaign{
		ID:                  uuid.NewString(),
		OwnerID:             req.OwnerID,
		Name:                req.Name,
		BusinessDescription: strings.TrimSpace(req.BusinessDescription),
	}
	if err := s.campaigns.Create(ctx, campaign); err != nil {
		return nil, err
	}
	return campaign, nil
}

// Get loads one campaign. Returns gorm.ErrRecordNotFound when it does not
// exist.
func (s *CampaignService) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.campaigns.GetByID(ctx, id)
}

// ListByOwner returns an owner's campaigns, newest first.
func (s *CampaignService) ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.Campaign, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner_id is required", ErrInvalidRequest)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.campaigns.ListByOwner(ctx, ownerID, limit)
}
