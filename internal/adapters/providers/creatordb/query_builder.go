package creatordb

import (
	"github.com/zatekoja/creatorexplorer/backend/internal/domain/entities"
	cdb "github.com/zatekoja/creatorexplorer/backend/internal/infrastructure/clients/creatordb"
)

const defaultSortKey = "followers"

// platformKeys renames canonical filter keys per platform. Keys missing
// here use the common name from commonKeys.
var platformKeys = map[string]map[string]string{
	entities.PlatformYouTube: {
		"followers":  "subscribers",
		"avgViews":   "avgViewsPerVideo",
		"growthRate": "subscriberGrowthRate",
	},
	entities.PlatformTikTok: {
		"avgViews": "avgViewsPerVideo",
	},
}

var commonKeys = map[string]string{
	"followers":      "followers",
	"avgViews":       "avgViews",
	"engagementRate": "engagementRate",
	"growthRate":     "followerGrowthRate",
	"country":        "country",
	"language":       "language",
	"gender":         "gender",
	"category":       "category",
	"keyword":        "keyword",
	"hasEmail":       "hasEmail",
	"verified":       "isVerified",
}

// rangeFilters maps identity keys onto a provider metric and comparison
var rangeFilters = []struct {
	key    string
	metric string
	op     string
}{
	{"minFollowers", "followers", ">="},
	{"maxFollowers", "followers", "<="},
	{"minAvgViews", "avgViews", ">="},
	{"maxAvgViews", "avgViews", "<="},
	{"minEngagementRate", "engagementRate", ">="},
	{"maxEngagementRate", "engagementRate", "<="},
	{"minGrowthRate", "growthRate", ">="},
	{"maxGrowthRate", "growthRate", "<="},
}

// ProviderKey returns the CreatorDB field name of a canonical metric on platform
func ProviderKey(platform, metric string) string {
	if keys, ok := platformKeys[platform]; ok {
		if k, ok := keys[metric]; ok {
			return k
		}
	}
	if k, ok := commonKeys[metric]; ok {
		return k
	}
	return metric
}

// BuildSearchRequest translates a normalized identity into a provider query
func BuildSearchRequest(identity entities.SearchIdentity, offset, maxResults int) *cdb.SearchRequest {
	platform := identity.Platform()
	req := &cdb.SearchRequest{
		Filters:    []cdb.SearchFilter{},
		Desc:       true,
		MaxResults: maxResults,
		Offset:     offset,
	}

	for _, rf := range rangeFilters {
		if _, ok := identity.Get(rf.key); !ok {
			continue
		}
		var value interface{}
		switch rf.metric {
		case "engagementRate", "growthRate":
			// percentages in the identity, ratios on the wire
			v, _ := identity.Float(rf.key)
			value = v / 100
		default:
			v, _ := identity.Int(rf.key)
			value = v
		}
		req.Filters = append(req.Filters, cdb.SearchFilter{
			FilterKey: ProviderKey(platform, rf.metric),
			Op:        rf.op,
			Value:     value,
		})
	}

	for _, key := range []string{"country", "language", "gender", "keyword"} {
		if v := identity.String(key); v != "" {
			op := "="
			if key == "keyword" {
				op = "contains"
			}
			req.Filters = append(req.Filters, cdb.SearchFilter{FilterKey: ProviderKey(platform, key), Op: op, Value: v})
		}
	}

	if categories := identity.Strings("category"); len(categories) > 0 {
		req.Filters = append(req.Filters, cdb.SearchFilter{FilterKey: ProviderKey(platform, "category"), Op: "in", Value: categories})
	}

	for _, key := range []string{"hasEmail", "verified"} {
		if v, ok := identity.Get(key); ok {
			if b, ok := v.(bool); ok {
				req.Filters = append(req.Filters, cdb.SearchFilter{FilterKey: ProviderKey(platform, key), Op: "=", Value: b})
			}
		}
	}

	sortKey := identity.String("sortBy")
	if sortKey == "" {
		sortKey = defaultSortKey
	}
	req.SortBy = ProviderKey(platform, sortKey)
	if v, ok := identity.Get("desc"); ok {
		if b, ok := v.(bool); ok {
			req.Desc = b
		}
	}

	return req
}
