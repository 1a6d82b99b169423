package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/wyatt/creatorscout/internal/logger"
	"github.com/wyatt/creatorscout/internal/repository"
)

// BindOutcome classifies the result of one campaign binding attempt.
type BindOutcome string

const (
	BindUpdated         BindOutcome = "updated"
	BindNoopSame        BindOutcome = "noop_same"
	BindNoopOther       BindOutcome = "noop_other"
	BindMissingCampaign BindOutcome = "missing_campaign"
	BindFailed          BindOutcome = "failed"
)

// BindResult reports how a bind call was resolved. Fallback marks outcomes
// decided by the non-transactional path, which has weaker consistency
// guarantees that callers log and alert on differently.
type BindResult struct {
	Outcome    BindOutcome
	ExistingID string
	Fallback   bool
	Err        error
}

// bindBackoffs spaces the transactional attempts: immediate, then short
// escalating waits.
var bindBackoffs = []time.Duration{0, 200 * time.Millisecond, 500 * time.Millisecond}

// CampaignBinder idempotently associates a pipeline job with its parent
// campaign. A campaign already bound to a different job is surfaced as
// noop_other, never silently overwritten.
type CampaignBinder struct {
	campaigns *repository.CampaignRepository
}

// NewCampaignBinder creates a new campaign binder
func NewCampaignBinder(campaigns *repository.CampaignRepository) *CampaignBinder {
	return &CampaignBinder{campaigns: campaigns}
}

// Bind records pipelineID on the campaign using up to three transactional
// attempts, then one non-transactional best-effort write.
// Parameters:
//   - ctx: request context; backoff waits abort when it is done.
//   - ownerID: campaign owner, part of the lookup key.
//   - campaignID: campaign to bind.
//   - pipelineID: job id to record.
// Returns:
//   - BindResult: outcome, existing binding when noop_other, fallback marker.
func (b *CampaignBinder) Bind(ctx context.Context, ownerID, campaignID, pipelineID string) BindResult {
	var lastErr error

	for attempt, backoff := range bindBackoffs {
		if backoff > 0 {
			select {
			case <-ctx.Done():
				return BindResult{Outcome: BindFailed, Err: ctx.Err()}
			case <-time.After(backoff):
			}
		}

		existing, applied, err := b.campaigns.UpdatePipelineIDTx(ctx, ownerID, campaignID, pipelineID)
		if err != nil {
			// A missing campaign cannot appear by retrying.
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return BindResult{Outcome: BindMissingCampaign}
			}
			lastErr = err
			logger.CtxWarn(ctx, "Campaign bind attempt failed: attempt=%d, campaign_id=%s, error=%v",
				attempt+1, campaignID, err)
			continue
		}

		switch {
		case applied:
			return BindResult{Outcome: BindUpdated}
		case existing == pipelineID:
			return BindResult{Outcome: BindNoopSame}
		default:
			return BindResult{Outcome: BindNoopOther, ExistingID: existing}
		}
	}

	logger.CtxWarn(ctx, "Campaign bind transactional attempts exhausted, trying best-effort write: campaign_id=%s, error=%v",
		campaignID, lastErr)

	found, err := b.campaigns.UpdatePipelineID(ctx, ownerID, campaignID, pipelineID)
	switch {
	case err != nil:
		return BindResult{Outcome: BindFailed, Fallback: true, Err: err}
	case !found:
		return BindResult{Outcome: BindMissingCampaign, Fallback: true}
	default:
		return BindResult{Outcome: BindUpdated, Fallback: true}
	}
}
