package domain

import "time"

// Campaign represents a marketing campaign a pipeline run can be bound to.
// PipelineID holds the most recent bound job; binding is performed through
// the campaign binder, never by direct writes.
type Campaign struct {
	ID                  string    `gorm:"type:text;primaryKey" json:"id"`
	OwnerID             string    `gorm:"type:text;not null;index:idx_campaigns_owner" json:"owner_id"`
	Name                string    `gorm:"type:text;not null" json:"name"`
	BusinessDescription string    `gorm:"type:text" json:"business_description,omitempty"`
	PipelineID          string    `gorm:"type:text" json:"pipeline_id,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// TableName returns the database table name for Campaign.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Campaign) TableName() string {
	return "campaigns"
}
