package utils

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/zatekoja/creatorexplorer/backend/internal/domain/entities"
	apperrors "github.com/zatekoja/creatorexplorer/backend/pkg/errors"
)

// FilterKind is the coercion rule applied to a recognized filter key
type FilterKind int

const (
	// KindString keeps a trimmed string as-is
	KindString FilterKind = iota
	// KindLowerString lowercases a trimmed string
	KindLowerString
	// KindUpperString uppercases a trimmed string (country codes)
	KindUpperString
	// KindFollowers is a positive integer count
	KindFollowers
	// KindEngagement is a non-negative float percentage
	KindEngagement
	// KindGrowth is a non-negative float growth rate
	KindGrowth
	// KindPagination is a positive integer; never part of the identity
	KindPagination
	// KindStringSet is a sorted, deduplicated, lowercased list
	KindStringSet
	// KindBool is a boolean flag
	KindBool
)

// filterKinds enumerates every filter the explorer understands
var filterKinds = map[string]FilterKind{
	"platform":          KindLowerString,
	"country":           KindUpperString,
	"language":          KindLowerString,
	"gender":            KindLowerString,
	"category":          KindStringSet,
	"keyword":           KindString,
	"sortBy":            KindString,
	"desc":              KindBool,
	"hasEmail":          KindBool,
	"verified":          KindBool,
	"minFollowers":      KindFollowers,
	"maxFollowers":      KindFollowers,
	"minAvgViews":       KindFollowers,
	"maxAvgViews":       KindFollowers,
	"minEngagementRate": KindEngagement,
	"maxEngagementRate": KindEngagement,
	"minGrowthRate":     KindGrowth,
	"maxGrowthRate":     KindGrowth,
	"page":              KindPagination,
	"size":              KindPagination,
}

// filterAliases maps accepted spellings onto canonical keys
var filterAliases = map[string]string{
	"location":          "country",
	"mainCategory":      "category",
	"categories":        "category",
	"lang":              "language",
	"sort":              "sortBy",
	"minSubscribers":    "minFollowers",
	"maxSubscribers":    "maxFollowers",
	"engagementRate":    "minEngagementRate",
	"minEngagement":     "minEngagementRate",
	"maxEngagement":     "maxEngagementRate",
	"followerGrowth":    "minGrowthRate",
	"minFollowerGrowth": "minGrowthRate",
	"pageSize":          "size",
	"limit":             "size",
}

const sentinelAll = "all"

// CanonicalFilterKey resolves aliases. ok is false for unknown keys.
func CanonicalFilterKey(key string) (canonical string, ok bool) {
	if alias, found := filterAliases[key]; found {
		key = alias
	}
	_, ok = filterKinds[key]
	return key, ok
}

// NormalizeFilters canonicalizes raw request filters into a SearchIdentity.
// Invalid or unknown values are dropped, never reported as errors.
func NormalizeFilters(raw map[string]interface{}) entities.SearchIdentity {
	identity, _ := NormalizeFiltersWithReport(raw)
	return identity
}

// NormalizeFiltersWithReport is NormalizeFilters that also returns the raw
// keys that were dropped, for debug logging.
func NormalizeFiltersWithReport(raw map[string]interface{}) (entities.SearchIdentity, []string) {
	values, dropped := coerceAll(raw)

	entries := make([]entities.FilterEntry, 0, len(values))
	for key, value := range values {
		if filterKinds[key] == KindPagination {
			continue
		}
		entries = append(entries, entities.FilterEntry{Key: key, Value: value})
	}
	sort.Strings(dropped)
	return entities.NewSearchIdentity(entries), dropped
}

// ExtractPagination reads page and size from raw filters, applying defaults
// and capping size at maxSize.
func ExtractPagination(raw map[string]interface{}, defaultSize, maxSize int) entities.Pagination {
	values, _ := coerceAll(raw)

	p := entities.Pagination{Page: 1, Size: defaultSize}
	if v, ok := values["page"].(int64); ok {
		p.Page = int(v)
	}
	if v, ok := values["size"].(int64); ok {
		p.Size = int(v)
	}
	if maxSize > 0 && p.Size > maxSize {
		p.Size = maxSize
	}
	if p.Size <= 0 {
		p.Size = 1
	}
	return p
}

// coerceAll applies aliasing and coercion. A canonical key given directly
// wins over any alias of it; among aliases the lexically first raw key wins.
func coerceAll(raw map[string]interface{}) (map[string]interface{}, []string) {
	rawKeys := make([]string, 0, len(raw))
	for k := range raw {
		rawKeys = append(rawKeys, k)
	}
	sort.Strings(rawKeys)

	values := make(map[string]interface{}, len(raw))
	direct := make(map[string]bool, len(raw))
	var dropped []string

	for _, rawKey := range rawKeys {
		key, known := CanonicalFilterKey(strings.TrimSpace(rawKey))
		if !known {
			dropped = append(dropped, rawKey)
			continue
		}
		isDirect := key == strings.TrimSpace(rawKey)

		value, ok := coerceValue(filterKinds[key], raw[rawKey])
		if !ok {
			dropped = append(dropped, rawKey)
			continue
		}

		if _, exists := values[key]; exists {
			if direct[key] || !isDirect {
				dropped = append(dropped, rawKey)
				continue
			}
		}
		values[key] = value
		direct[key] = isDirect
	}
	return values, dropped
}

func coerceValue(kind FilterKind, v interface{}) (interface{}, bool) {
	if v == nil {
		return nil, false
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" || strings.EqualFold(s, sentinelAll) {
			return nil, false
		}
	}

	switch kind {
	case KindString:
		s, ok := toString(v)
		return s, ok
	case KindLowerString:
		s, ok := toString(v)
		return strings.ToLower(s), ok
	case KindUpperString:
		s, ok := toString(v)
		return strings.ToUpper(s), ok
	case KindFollowers, KindPagination:
		n, ok := toInt(v)
		if !ok || n <= 0 {
			return nil, false
		}
		return n, true
	case KindEngagement, KindGrowth:
		f, ok := toFloat(v)
		if !ok || f < 0 {
			return nil, false
		}
		return f, true
	case KindStringSet:
		set := toStringSet(v)
		if len(set) == 0 {
			return nil, false
		}
		return set, true
	case KindBool:
		return toBool(v)
	}
	return nil, false
}

func toString(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		s = strings.TrimSpace(s)
		return s, s != ""
	case fmt.Stringer:
		str := strings.TrimSpace(s.String())
		return str, str != ""
	case bool, int, int32, int64, float64:
		return fmt.Sprint(s), true
	}
	return "", false
}

// toInt accepts integers, integral floats and numeric strings such as
// "1000", "1,000", "1e3", "10k" or "1.5m".
func toInt(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		return integralFloat(float64(n))
	case float64:
		return integralFloat(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return integralFloat(f)
	case string:
		return parseCount(n)
	}
	return 0, false
}

func parseCount(s string) (int64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(",", "", "_", "", " ", "").Replace(s)
	if s == "" {
		return 0, false
	}

	multiplier := 1.0
	switch {
	case strings.HasSuffix(s, "k"):
		multiplier, s = 1e3, strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		multiplier, s = 1e6, strings.TrimSuffix(s, "m")
	case strings.HasSuffix(s, "b"):
		multiplier, s = 1e9, strings.TrimSuffix(s, "b")
	}

	if multiplier == 1 {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return integralFloat(f * multiplier)
}

func integralFloat(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

func toFloat(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSuffix(strings.TrimSpace(n), "%")
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toStringSet(v interface{}) []string {
	var items []string
	switch list := v.(type) {
	case string:
		items = strings.Split(list, ",")
	case []string:
		items = list
	case []interface{}:
		for _, item := range list {
			if s, ok := toString(item); ok {
				items = append(items, s)
			}
		}
	default:
		return nil
	}

	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item == "" || item == sentinelAll {
			continue
		}
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}

func toBool(v interface{}) (interface{}, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "yes":
			return true, true
		case "false", "0", "no":
			return false, true
		}
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
		n, ok := toInt(b)
		if ok && (n == 0 || n == 1) {
			return n == 1, true
		}
	}
	return nil, false
}

// rangePairs lists min/max filters that must describe a non-empty range
var rangePairs = [][2]string{
	{"minFollowers", "maxFollowers"},
	{"minAvgViews", "maxAvgViews"},
	{"minEngagementRate", "maxEngagementRate"},
	{"minGrowthRate", "maxGrowthRate"},
}

// ValidateFilters rejects identities whose ranges cannot match anything.
// It runs before any provider call is made.
func ValidateFilters(identity entities.SearchIdentity) error {
	for _, pair := range rangePairs {
		lo, hasLo := identity.Float(pair[0])
		hi, hasHi := identity.Float(pair[1])
		if hasLo && hasHi && lo >= hi {
			return apperrors.NewValidationError(fmt.Sprintf("%s (%v) must be less than %s (%v)", pair[0], lo, pair[1], hi))
		}
	}

	for _, key := range []string{"minEngagementRate", "maxEngagementRate"} {
		if rate, ok := identity.Float(key); ok && rate > 100 {
			return apperrors.NewValidationError(fmt.Sprintf("%s must be a percentage between 0 and 100, got %v", key, rate))
		}
	}

	if p := identity.String("platform"); p != "" && !entities.IsSupportedPlatform(p) {
		return apperrors.NewValidationError(fmt.Sprintf("unsupported platform %q (expected one of %s)", p, strings.Join(entities.SupportedPlatforms, ", ")))
	}
	return nil
}
