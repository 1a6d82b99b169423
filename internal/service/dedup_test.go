package service

import (
	"testing"

	"github.com/wyatt/creatorscout/internal/domain"
)

// searchHit builds a hit whose combined score equals score: with all three
// ranking signals set to the same value the weighted average collapses to it.
// The marker lands in DisplayName so tests can tell survivors apart without
// comparing floats.
func searchHit(url, username, platform, marker string, score float64) domain.SearchHit {
	return domain.SearchHit{
		ProfileURL:      url,
		Username:        username,
		Platform:        platform,
		DisplayName:     marker,
		Score:           score,
		RecencyScore:    score,
		EngagementScore: score,
	}
}

func TestCanonicalProfileURL(t *testing.T) {
	testCases := []struct {
		name         string
		raw          string
		wantURL      string
		wantPlatform string
		wantOK       bool
	}{
		{
			name:         "instagram profile",
			raw:          "https://www.instagram.com/nasa",
			wantURL:      "https://www.instagram.com/nasa",
			wantPlatform: "instagram",
			wantOK:       true,
		},
		{
			name:         "trailing slash trimmed",
			raw:          "https://www.instagram.com/nasa/",
			wantURL:      "https://www.instagram.com/nasa",
			wantPlatform: "instagram",
			wantOK:       true,
		},
		{
			name:         "host lowercased",
			raw:          "https://WWW.Instagram.COM/nasa",
			wantURL:      "https://www.instagram.com/nasa",
			wantPlatform: "instagram",
			wantOK:       true,
		},
		{
			name:         "tiktok handle gains at prefix",
			raw:          "https://www.tiktok.com/nasa",
			wantURL:      "https://www.tiktok.com/@nasa",
			wantPlatform: "tiktok",
			wantOK:       true,
		},
		{
			name:         "tiktok handle keeps at prefix",
			raw:          "https://www.tiktok.com/@nasa",
			wantURL:      "https://www.tiktok.com/@nasa",
			wantPlatform: "tiktok",
			wantOK:       true,
		},
		{
			name:         "missing scheme defaults to https",
			raw:          "//www.instagram.com/nasa",
			wantURL:      "https://www.instagram.com/nasa",
			wantPlatform: "instagram",
			wantOK:       true,
		},
		{
			name:   "foreign host rejected",
			raw:    "https://example.com/nasa",
			wantOK: false,
		},
		{
			name:   "host without a handle rejected",
			raw:    "https://www.instagram.com/",
			wantOK: false,
		},
		{
			name:   "empty input rejected",
			raw:    "",
			wantOK: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gotURL, gotPlatform, ok := CanonicalProfileURL(tc.raw)
			if ok != tc.wantOK {
				t.Fatalf("ok = %t, want %t", ok, tc.wantOK)
			}
			if !tc.wantOK {
				return
			}
			if gotURL != tc.wantURL {
				t.Errorf("url = %q, want %q", gotURL, tc.wantURL)
			}
			if gotPlatform != tc.wantPlatform {
				t.Errorf("platform = %q, want %q", gotPlatform, tc.wantPlatform)
			}
		})
	}
}

func TestBuildProfileURL(t *testing.T) {
	testCases := []struct {
		name     string
		platform string
		username string
		want     string
	}{
		{name: "instagram handle", platform: "instagram", username: "nasa", want: "https://instagram.com/nasa"},
		{name: "leading at stripped", platform: "instagram", username: "@nasa", want: "https://instagram.com/nasa"},
		{name: "tiktok handle", platform: "tiktok", username: "nasa", want: "https://www.tiktok.com/@nasa"},
		{name: "platform matched case insensitively", platform: "TikTok", username: "nasa", want: "https://www.tiktok.com/@nasa"},
		{name: "blank username", platform: "instagram", username: "   ", want: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := BuildProfileURL(tc.platform, tc.username); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

// TestDedupeHits_KeepsHighestScore verifies that duplicates of one profile
// collapse to the single highest-scoring hit, whichever order they arrive in.
func TestDedupeHits_KeepsHighestScore(t *testing.T) {
	hits := []domain.SearchHit{
		searchHit("https://instagram.com/nasa", "nasa", "instagram", "first", 0.4),
		searchHit("https://instagram.com/nasa", "nasa", "instagram", "second", 0.9),
		searchHit("https://instagram.com/nasa", "nasa", "instagram", "third", 0.2),
	}

	out := DedupeHits(hits)
	if len(out) != 1 {
		t.Fatalf("got %d hits, want 1", len(out))
	}
	if out[0].DisplayName != "second" {
		t.Errorf("kept %q, want the highest-scoring hit", out[0].DisplayName)
	}
}

// TestDedupeHits_IdentityNormalization verifies that URL spelling variants
// and bare usernames resolve to the same profile identity.
func TestDedupeHits_IdentityNormalization(t *testing.T) {
	t.Run("url spellings collapse", func(t *testing.T) {
		hits := []domain.SearchHit{
			searchHit("https://instagram.com/nasa/", "nasa", "instagram", "slash", 0.5),
			searchHit("https://INSTAGRAM.com/nasa", "nasa", "instagram", "upper", 0.6),
		}
		out := DedupeHits(hits)
		if len(out) != 1 {
			t.Fatalf("got %d hits, want 1", len(out))
		}
		if out[0].DisplayName != "upper" {
			t.Errorf("kept %q, want the higher-scoring spelling", out[0].DisplayName)
		}
	})

	t.Run("bare username matches built url", func(t *testing.T) {
		hits := []domain.SearchHit{
			searchHit("", "nasa", "instagram", "bare", 0.3),
			searchHit("https://instagram.com/nasa", "nasa", "instagram", "url", 0.7),
		}
		out := DedupeHits(hits)
		if len(out) != 1 {
			t.Fatalf("got %d hits, want 1", len(out))
		}
		if out[0].DisplayName != "url" {
			t.Errorf("kept %q, want the url hit", out[0].DisplayName)
		}
	})

	t.Run("unidentifiable hits dropped", func(t *testing.T) {
		hits := []domain.SearchHit{
			searchHit("https://example.com/nasa", "", "", "junk", 0.9),
		}
		if out := DedupeHits(hits); len(out) != 0 {
			t.Errorf("got %d hits, want 0", len(out))
		}
	})
}

func TestDedupeHits_SortsByCombinedScore(t *testing.T) {
	hits := []domain.SearchHit{
		searchHit("https://instagram.com/low", "low", "instagram", "low", 0.2),
		searchHit("https://instagram.com/high", "high", "instagram", "high", 0.8),
		searchHit("https://instagram.com/mid", "mid", "instagram", "mid", 0.5),
	}

	out := DedupeHits(hits)
	if len(out) != 3 {
		t.Fatalf("got %d hits, want 3", len(out))
	}
	want := []string{"high", "mid", "low"}
	for i, username := range want {
		if out[i].Username != username {
			t.Errorf("position %d = %q, want %q", i, out[i].Username, username)
		}
	}
}
