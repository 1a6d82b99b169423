package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// StringArray is a custom type for storing string arrays as JSON in the database.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded string representation of the slice.
//   - error: non-nil if marshaling fails.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringArray")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, a)
}

// Ranking weights for blending the vector relevance score with the
// recency and engagement signals stored alongside each indexed profile.
const (
	RelevanceWeight  = 2.5
	RecencyWeight    = 1.0
	EngagementWeight = 1.5
)

// SearchHit is one raw result from a single (query, alpha) vector search
// call. Not persisted; hits are deduplicated and ranked in memory.
type SearchHit struct {
	Query           string  `json:"query"`
	Alpha           float64 `json:"alpha"`
	ObjectID        string  `json:"object_id"`
	Score           float64 `json:"score"`
	Platform        string  `json:"platform"`
	Username        string  `json:"username"`
	ProfileURL      string  `json:"profile_url"`
	DisplayName     string  `json:"display_name"`
	Followers       int64   `json:"followers"`
	Bio             string  `json:"bio"`
	RecencyScore    float64 `json:"recency_score"`
	EngagementScore float64 `json:"engagement_score"`
}

// CombinedScore blends relevance, recency, and engagement into a single
// ranking score.
// Parameters: none.
// Returns:
//   - float64: weighted average in the same range as the inputs.
func (h SearchHit) CombinedScore() float64 {
	return (RelevanceWeight*h.Score + RecencyWeight*h.RecencyScore + EngagementWeight*h.EngagementScore) /
		(RelevanceWeight + RecencyWeight + EngagementWeight)
}

// ProfileRef identifies one deduplicated candidate headed for collection.
type ProfileRef struct {
	Platform      string  `json:"platform"`
	Username      string  `json:"username"`
	ProfileURL    string  `json:"profile_url"`
	CombinedScore float64 `json:"combined_score"`
}

// CollectedProfile is the live profile data returned by the collection
// service for one candidate, joined back to its ranking score.
type CollectedProfile struct {
	Platform      string   `json:"platform"`
	Username      string   `json:"username"`
	ProfileURL    string   `json:"profile_url"`
	DisplayName   string   `json:"display_name"`
	Followers     int64    `json:"followers"`
	Verified      bool     `json:"verified"`
	Bio           string   `json:"bio"`
	AvatarURL     string   `json:"avatar_url"`
	RecentPosts   []string `json:"recent_posts"`
	CombinedScore float64  `json:"combined_score"`
}

// ScoredProfile is one persisted pipeline result row. Rows are inserted
// per batch as scoring finishes and never updated afterwards.
type ScoredProfile struct {
	ID            string      `gorm:"type:text;primaryKey" json:"id"`
	JobID         string      `gorm:"type:text;not null;index:idx_pipeline_results_job" json:"job_id"`
	BatchIndex    int         `gorm:"default:0" json:"batch_index"`
	Platform      string      `gorm:"type:text;index:idx_pipeline_results_platform" json:"platform"`
	Username      string      `gorm:"type:text" json:"username"`
	ProfileURL    string      `gorm:"type:text" json:"profile_url"`
	DisplayName   string      `gorm:"type:text" json:"display_name,omitempty"`
	Followers     int64       `gorm:"default:0" json:"followers"`
	Verified      bool        `gorm:"default:false" json:"verified"`
	Bio           string      `gorm:"type:text" json:"bio,omitempty"`
	AvatarURL     string      `gorm:"type:text" json:"avatar_url,omitempty"`
	RecentPosts   StringArray `gorm:"type:text" json:"recent_posts"`
	CombinedScore float64     `gorm:"default:0" json:"combined_score"`
	FitScore      int         `gorm:"default:0" json:"fit_score"`
	FitRationale  string      `gorm:"type:text" json:"fit_rationale,omitempty"`
	FitError      string      `gorm:"type:text" json:"fit_error,omitempty"`
	Summary       string      `gorm:"type:text" json:"summary,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// TableName returns the database table name for ScoredProfile.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (ScoredProfile) TableName() string {
	return "pipeline_results"
}
