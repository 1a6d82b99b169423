package service

import (
	"net/url"
	"sort"
	"strings"

	"github.com/wyatt/creatorscout/internal/domain"
)

// CanonicalProfileURL normalizes a social profile link to its canonical form
// and reports the platform it belongs to. Links that are not instagram or
// tiktok profiles return ok=false.
// Parameters:
//   - raw: profile link as returned by search or collection.
// Returns:
//   - string: canonical URL (scheme://host/path, tiktok paths prefixed with /@).
//   - string: detected platform ("instagram" or "tiktok").
//   - bool: false when the link is empty, unparseable, or a foreign host.
func CanonicalProfileURL(raw string) (string, string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return "", "", false
	}

	scheme := parsed.Scheme
	if scheme == "" {
		scheme = "https"
	}
	host := strings.ToLower(parsed.Host)
	path := strings.TrimRight(parsed.Path, "/")
	if path == "" {
		return "", "", false
	}

	switch {
	case strings.Contains(host, "instagram.com"):
		return scheme + "://" + host + path, "instagram", true
	case strings.Contains(host, "tiktok.com"):
		if !strings.HasPrefix(path, "/@") {
			path = "/@" + strings.TrimPrefix(path, "/")
		}
		return scheme + "://" + host + path, "tiktok", true
	}
	return "", "", false
}

// BuildProfileURL constructs the canonical profile link for a bare username.
func BuildProfileURL(platform, username string) string {
	handle := strings.TrimPrefix(strings.TrimSpace(username), "@")
	if handle == "" {
		return ""
	}
	if strings.EqualFold(platform, "tiktok") {
		return "https://www.tiktok.com/@" + handle
	}
	return "https://instagram.com/" + handle
}

// DedupeHits collapses search hits to one entry per profile identity, keeping
// the highest combined score seen for each, and returns them sorted by
// combined score descending. Ties keep first-seen order. Hits without any
// usable identity are dropped.
func DedupeHits(hits []domain.SearchHit) []domain.SearchHit {
	best := make(map[string]int, len(hits))
	out := make([]domain.SearchHit, 0, len(hits))

	for _, hit := range hits {
		key := hitIdentity(hit)
		if key == "" {
			continue
		}
		if idx, ok := best[key]; ok {
			if hit.CombinedScore() > out[idx].CombinedScore() {
				out[idx] = hit
			}
			continue
		}
		best[key] = len(out)
		out = append(out, hit)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CombinedScore() > out[j].CombinedScore()
	})
	return out
}

// hitIdentity derives the dedup key: canonical profile URL when present,
// otherwise the lowercased username.
func hitIdentity(hit domain.SearchHit) string {
	if canonical, _, ok := CanonicalProfileURL(hit.ProfileURL); ok {
		return strings.ToLower(canonical)
	}
	if built := BuildProfileURL(hit.Platform, hit.Username); built != "" {
		return strings.ToLower(built)
	}
	return ""
}
