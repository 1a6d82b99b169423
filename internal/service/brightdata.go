package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/wyatt/creatorscout/internal/config"
	"github.com/wyatt/creatorscout/internal/domain"
	"github.com/wyatt/creatorscout/internal/logger"
)

// ErrDatasetNotConfigured is returned when no collection dataset id exists
// for a requested platform. Callers treat this as a batch failure, not a
// pipeline failure.
var ErrDatasetNotConfigured = errors.New("collection dataset not configured")

const (
	// maxTriggerURLs caps the number of profile URLs in one trigger call.
	maxTriggerURLs = 50

	// maxProfilePosts bounds the post excerpts kept per collected profile.
	maxProfilePosts = 6
)

// SnapshotStatus is the state of an asynchronous collection snapshot.
type SnapshotStatus string

const (
	SnapshotRunning SnapshotStatus = "running"
	SnapshotReady   SnapshotStatus = "ready"
	SnapshotFailed  SnapshotStatus = "failed"
)

// SnapshotClient is the asynchronous collection interface consumed by the
// batch collector. BrightDataService is the production implementation.
type SnapshotClient interface {
	Trigger(ctx context.Context, platform string, urls []string) (string, error)
	Poll(ctx context.Context, snapshotID string) (SnapshotStatus, error)
	Download(ctx context.Context, snapshotID string) ([]domain.CollectedProfile, error)
}

// BrightDataService wraps the BrightData dataset API for profile collection.
type BrightDataService struct {
	client     *resty.Client
	baseURL    string
	datasetIDs map[string]string
}

// NewBrightDataService creates a new collection client
func NewBrightDataService(cfg *config.CollectionConfig) *BrightDataService {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(60 * time.Second)

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.brightdata.com/datasets/v3"
	}

	return &BrightDataService{
		client:     client,
		baseURL:    baseURL,
		datasetIDs: cfg.DatasetIDs,
	}
}

type triggerEntry struct {
	URL string `json:"url"`
}

type triggerResponse struct {
	SnapshotID string `json:"snapshot_id"`
}

type progressResponse struct {
	Status string `json:"status"`
}

// Trigger starts a collection snapshot for up to 50 profile URLs on one
// platform and returns the snapshot handle.
// Parameters:
//   - ctx: request context.
//   - platform: platform key used to select the dataset id.
//   - urls: profile URLs; canonicalized and deduplicated before submission.
// Returns:
//   - string: opaque snapshot id for polling and download.
//   - error: ErrDatasetNotConfigured when the platform has no dataset id.
func (s *BrightDataService) Trigger(ctx context.Context, platform string, urls []string) (string, error) {
	datasetID := s.datasetIDs[strings.ToLower(platform)]
	if datasetID == "" {
		return "", fmt.Errorf("%w: %s", ErrDatasetNotConfigured, platform)
	}

	entries := prepareTriggerURLs(urls)
	if len(entries) == 0 {
		return "", fmt.Errorf("no valid profile urls for platform %s", platform)
	}

	var resp triggerResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"dataset_id":     datasetID,
			"include_errors": "true",
		}).
		SetBody(entries).
		SetResult(&resp).
		Post(s.baseURL + "/trigger")

	if err != nil {
		return "", fmt.Errorf("collection trigger failed: %w", err)
	}
	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		return "", fmt.Errorf("collection trigger error: status %d", httpResp.StatusCode())
	}
	if resp.SnapshotID == "" {
		return "", fmt.Errorf("collection trigger response missing snapshot id")
	}
	return resp.SnapshotID, nil
}

// Poll reports the current state of a snapshot. Any status other than
// "ready" or "failed" is treated as still running.
func (s *BrightDataService) Poll(ctx context.Context, snapshotID string) (SnapshotStatus, error) {
	var resp progressResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetResult(&resp).
		Get(s.baseURL + "/progress/" + snapshotID)

	if err != nil {
		return "", fmt.Errorf("collection progress failed: %w", err)
	}
	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		return "", fmt.Errorf("collection progress error: status %d", httpResp.StatusCode())
	}

	switch resp.Status {
	case string(SnapshotReady):
		return SnapshotReady, nil
	case string(SnapshotFailed):
		return SnapshotFailed, nil
	default:
		return SnapshotRunning, nil
	}
}

// Download fetches the records of a ready snapshot and maps them into
// collected profiles. Records flagged with an error or warning by the
// collection service are logged and skipped.
func (s *BrightDataService) Download(ctx context.Context, snapshotID string) ([]domain.CollectedProfile, error) {
	var records []map[string]interface{}
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("format", "json").
		SetResult(&records).
		Get(s.baseURL + "/snapshot/" + snapshotID)

	if err != nil {
		return nil, fmt.Errorf("collection download failed: %w", err)
	}
	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		return nil, fmt.Errorf("collection download error: status %d", httpResp.StatusCode())
	}

	profiles := make([]domain.CollectedProfile, 0, len(records))
	for _, record := range records {
		if reason, ok := recordFailure(record); ok {
			logger.CtxDebug(ctx, "Skipping failed collection record: snapshot=%s, url=%v, reason=%s",
				snapshotID, record["url"], reason)
			continue
		}
		profiles = append(profiles, profileFromRecord(record))
	}
	return profiles, nil
}

// prepareTriggerURLs canonicalizes, deduplicates, and caps the URL list.
func prepareTriggerURLs(urls []string) []triggerEntry {
	entries := make([]triggerEntry, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))

	for _, raw := range urls {
		canonical, _, ok := CanonicalProfileURL(raw)
		if !ok {
			continue
		}
		lowered := strings.ToLower(canonical)
		if _, dup := seen[lowered]; dup {
			continue
		}
		seen[lowered] = struct{}{}
		entries = append(entries, triggerEntry{URL: canonical})
		if len(entries) >= maxTriggerURLs {
			break
		}
	}
	return entries
}

// recordFailure reports whether the collection service marked a record as
// failed, and with what reason.
func recordFailure(record map[string]interface{}) (string, bool) {
	for _, key := range []string{"error", "error_code", "warning", "warning_code"} {
		if value, ok := record[key].(string); ok && strings.TrimSpace(value) != "" {
			return value, true
		}
	}
	return "", false
}

// profileFromRecord maps one raw collection record into a CollectedProfile.
// Platform and ranking score are stamped later when the record is joined
// back to its candidate.
func profileFromRecord(record map[string]interface{}) domain.CollectedProfile {
	profile := domain.CollectedProfile{
		Username:    recordString(record, "account", "username"),
		ProfileURL:  recordString(record, "profile_url", "url"),
		DisplayName: recordString(record, "profile_name", "full_name"),
		Bio:         recordString(record, "biography", "bio"),
		AvatarURL:   recordString(record, "profile_image_url", "profile_image_link", "avatar"),
		Followers:   recordInt64(record, "followers"),
		Verified:    recordBool(record, "is_verified"),
		RecentPosts: recordPosts(record["posts"]),
	}
	if canonical, platform, ok := CanonicalProfileURL(profile.ProfileURL); ok {
		profile.ProfileURL = canonical
		profile.Platform = platform
	}
	return profile
}

func recordString(record map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if value, ok := record[key].(string); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func recordInt64(record map[string]interface{}, key string) int64 {
	switch value := record[key].(type) {
	case float64:
		return int64(value)
	case string:
		var parsed float64
		if _, err := fmt.Sscanf(strings.TrimSpace(value), "%f", &parsed); err == nil {
			return int64(parsed)
		}
	case json.Number:
		if parsed, err := value.Float64(); err == nil {
			return int64(parsed)
		}
	}
	return 0
}

func recordBool(record map[string]interface{}, key string) bool {
	switch value := record[key].(type) {
	case bool:
		return value
	case string:
		return strings.EqualFold(strings.TrimSpace(value), "true")
	}
	return false
}

// recordPosts extracts up to maxProfilePosts caption excerpts from the raw
// posts payload, which arrives either as a JSON string or a decoded list.
// Hashtags are folded into the caption so the scorer sees them.
func recordPosts(raw interface{}) []string {
	var posts []interface{}

	switch value := raw.(type) {
	case string:
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			return nil
		}
		if err := json.Unmarshal([]byte(trimmed), &posts); err != nil {
			return nil
		}
	case []interface{}:
		posts = value
	default:
		return nil
	}

	excerpts := make([]string, 0, maxProfilePosts)
	for _, entry := range posts {
		if len(excerpts) >= maxProfilePosts {
			break
		}
		post, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		caption := appendHashtags(recordString(post, "caption"), post["post_hashtags"])
		if caption == "" {
			continue
		}
		excerpts = append(excerpts, truncateExcerpt(caption, 240))
	}
	return excerpts
}

// appendHashtags folds a post's hashtag list into its caption text.
func appendHashtags(caption string, hashtags interface{}) string {
	base := strings.TrimSpace(caption)

	var tags []string
	switch value := hashtags.(type) {
	case string:
		for _, tag := range strings.Split(value, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	case []interface{}:
		for _, entry := range value {
			if tag, ok := entry.(string); ok {
				if tag = strings.TrimSpace(tag); tag != "" {
					tags = append(tags, tag)
				}
			}
		}
	}

	if len(tags) == 0 {
		return base
	}

	var b strings.Builder
	b.WriteString("Hashtags:")
	for _, tag := range tags {
		b.WriteString(" #")
		b.WriteString(strings.TrimPrefix(tag, "#"))
	}
	if base == "" {
		return b.String()
	}
	return base + "\n" + b.String()
}

func truncateExcerpt(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
