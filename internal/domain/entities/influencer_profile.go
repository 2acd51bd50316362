package entities

import (
	"strings"
)

// Supported social platforms
const (
	PlatformInstagram = "instagram"
	PlatformTikTok    = "tiktok"
	PlatformYouTube   = "youtube"
	PlatformTwitter   = "twitter"
)

// SupportedPlatforms lists the platforms the explorer can search
var SupportedPlatforms = []string{PlatformInstagram, PlatformTikTok, PlatformYouTube, PlatformTwitter}

// IsSupportedPlatform reports whether p is a searchable platform
func IsSupportedPlatform(p string) bool {
	for _, s := range SupportedPlatforms {
		if s == p {
			return true
		}
	}
	return false
}

// CreatorIdentity is a bare provider identity: a platform-specific account id
type CreatorIdentity struct {
	Platform   string `json:"platform"`
	PlatformID string `json:"platformId"`
}

// Key returns the identity key stored in ResultPage.InfluencerIDs
func (c CreatorIdentity) Key() string {
	return c.Platform + ":" + c.PlatformID
}

// BasicProfile is the provider's basic record for one platform account
type BasicProfile struct {
	Platform       string            `json:"platform"`
	PlatformID     string            `json:"platformId"`
	CreatorID      string            `json:"creatorId,omitempty"`
	Username       string            `json:"username,omitempty"`
	Name           string            `json:"name"`
	Avatar         string            `json:"avatar,omitempty"`
	Country        string            `json:"country,omitempty"`
	Language       string            `json:"language,omitempty"`
	Categories     []string          `json:"categories,omitempty"`
	Followers      int64             `json:"followers"`
	EngagementRate float64           `json:"engagementRate"`
	AvgViews       int64             `json:"avgViews,omitempty"`
	LinkedAccounts map[string]string `json:"linkedAccounts,omitempty"`
}

// PlatformInfo is the per-platform section of a merged influencer profile
type PlatformInfo struct {
	PlatformID     string  `json:"platformId"`
	Username       string  `json:"username,omitempty"`
	Name           string  `json:"name,omitempty"`
	Avatar         string  `json:"avatar,omitempty"`
	Followers      int64   `json:"followers"`
	EngagementRate float64 `json:"engagementRate"`
	AvgViews       int64   `json:"avgViews,omitempty"`
}

// InfluencerProfile is an enriched creator record merged across platforms.
// Follower and engagement figures come from the main (searched) platform.
type InfluencerProfile struct {
	CreatorID             string                   `json:"creatorId"`
	Name                  string                   `json:"name"`
	Avatar                string                   `json:"avatar,omitempty"`
	Country               string                   `json:"country,omitempty"`
	Language              string                   `json:"language,omitempty"`
	Categories            []string                 `json:"categories,omitempty"`
	FollowersCount        int64                    `json:"followersCount"`
	AverageEngagementRate float64                  `json:"averageEngagementRate"`
	MainSocialPlatform    string                   `json:"mainSocialPlatform"`
	PlatformInfo          map[string]*PlatformInfo `json:"platformInfo"`
	FollowerBreakdown     map[string]int64         `json:"followerBreakdown"`
}

// LinkedPlatformCount returns how many platforms the profile covers
func (p *InfluencerProfile) LinkedPlatformCount() int {
	return len(p.PlatformInfo)
}

// NormalizedName returns the lowercase, whitespace-collapsed display name
func (p *InfluencerProfile) NormalizedName() string {
	return strings.Join(strings.Fields(strings.ToLower(p.Name)), " ")
}

// TotalFollowers sums the follower breakdown across platforms
func (p *InfluencerProfile) TotalFollowers() int64 {
	var total int64
	for _, n := range p.FollowerBreakdown {
		total += n
	}
	return total
}
