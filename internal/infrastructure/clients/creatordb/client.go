package creatordb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/zatekoja/creatorexplorer/backend/internal/domain/providers"
	"github.com/zatekoja/creatorexplorer/backend/internal/infrastructure/observability"
	"github.com/zatekoja/creatorexplorer/backend/pkg/config"
)

const (
	headerAPIKey = "api-key"
	maxBodyBytes = 4 << 20
)

// Provider error codes that carry a specific meaning
const (
	CodeAuthFailed          = "AuthFailed"
	CodeFilterValueType     = "FilterValueType"
	CodeInsufficientCredits = "InsufficientCredits"
	CodeQuotaExceeded       = "QuotaExceeded"
)

// Client is a throttled HTTP client for the CreatorDB API.
// Each call is a single attempt; retries belong to the caller.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *observability.Metrics
}

// NewClient creates a CreatorDB client from configuration
func NewClient(cfg *config.CreatorDBConfig, metrics *observability.Metrics) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RateLimitPerSecond > 0 {
		limit = rate.Limit(cfg.RateLimitPerSecond)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(limit, burst),
		metrics: metrics,
	}
}

// SearchFilter is one entry of an advanced search query
type SearchFilter struct {
	FilterKey string      `json:"filterKey"`
	Op        string      `json:"op"`
	Value     interface{} `json:"value"`
}

// SearchRequest is the body of POST /{platform}AdvancedSearch
type SearchRequest struct {
	Filters    []SearchFilter `json:"filters"`
	SortBy     string         `json:"sortBy,omitempty"`
	Desc       bool           `json:"desc"`
	MaxResults int            `json:"maxResults"`
	Offset     int            `json:"offset"`
}

// SearchHit identifies one matching creator account
type SearchHit struct {
	PlatformUserID string `json:"platformUserId"`
}

// SearchResponse is the body returned by an advanced search
type SearchResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Results      []SearchHit `json:"results"`
		TotalResults *int        `json:"totalResults"`
	} `json:"data"`
	QuotaUsed int `json:"quotaUsed"`
}

// BasicProfile is the body data of GET /{platform}Basic
type BasicProfile struct {
	PlatformUserID   string            `json:"platformUserId"`
	CreatorID        string            `json:"creatorId"`
	Username         string            `json:"username"`
	DisplayName      string            `json:"displayName"`
	Avatar           string            `json:"avatar"`
	Country          string            `json:"country"`
	Language         string            `json:"language"`
	Categories       []string          `json:"categories"`
	Followers        *int64            `json:"followers"`
	Subscribers      *int64            `json:"subscribers"`
	EngagementRate   float64           `json:"engagementRate"`
	AvgViews         float64           `json:"avgViews"`
	AvgViewsPerVideo float64           `json:"avgViewsPerVideo"`
	LinkedAccounts   map[string]string `json:"linkedAccounts"`
}

// FollowerCount returns whichever audience size field the platform reports
func (b *BasicProfile) FollowerCount() int64 {
	if b.Followers != nil {
		return *b.Followers
	}
	if b.Subscribers != nil {
		return *b.Subscribers
	}
	return 0
}

type basicResponse struct {
	Success   bool          `json:"success"`
	Data      *BasicProfile `json:"data"`
	QuotaUsed int           `json:"quotaUsed"`
}

type errorBody struct {
	Success bool   `json:"success"`
	Code    string `json:"errorCode"`
	Message string `json:"message"`
	Hint    string `json:"hint"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// AdvancedSearch runs a paid search on one platform
func (c *Client) AdvancedSearch(ctx context.Context, platform string, req *SearchRequest) (*SearchResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	out := &SearchResponse{}
	if err := c.doJSON(ctx, http.MethodPost, "/"+platform+"AdvancedSearch", nil, payload, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Basic fetches the basic profile of one platform account
func (c *Client) Basic(ctx context.Context, platform, platformID string) (*BasicProfile, error) {
	if strings.TrimSpace(platformID) == "" {
		return nil, &providers.ProviderError{
			Kind:    providers.ProviderErrorValidationRejected,
			Message: "platform user id is required",
		}
	}

	query := url.Values{}
	query.Set("platformUserId", platformID)

	out := &basicResponse{}
	if err := c.doJSON(ctx, http.MethodGet, "/"+platform+"Basic", query, nil, out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		return nil, &providers.ProviderError{
			Kind:    providers.ProviderErrorNotFound,
			Message: fmt.Sprintf("no %s profile for %s", platform, platformID),
		}
	}
	if out.Data.PlatformUserID == "" {
		out.Data.PlatformUserID = platformID
	}
	return out.Data, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, payload []byte, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		observability.RecordProviderCall(ctx, c.metrics, path, outcomeOf(err), time.Since(start))
	}()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(reqCtx); err != nil {
		return &providers.ProviderError{
			Kind:    providers.ProviderErrorTimeout,
			Message: "client-side rate limiter",
			Err:     err,
		}
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(reqCtx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set(headerAPIKey, c.apiKey)
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return transportError(reqCtx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return transportError(reqCtx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyResponse(resp.StatusCode, raw)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &providers.ProviderError{
			Kind:       providers.ProviderErrorDecode,
			StatusCode: resp.StatusCode,
			Message:    "malformed response body",
			Err:        err,
		}
	}
	return nil
}

func transportError(ctx context.Context, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return &providers.ProviderError{Kind: providers.ProviderErrorTimeout, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &providers.ProviderError{Kind: providers.ProviderErrorUpstream, Err: err}
}

// classifyResponse maps a non-2xx response to a typed provider error
func classifyResponse(status int, raw []byte) *providers.ProviderError {
	pe := &providers.ProviderError{StatusCode: status}

	var eb errorBody
	if json.Unmarshal(raw, &eb) == nil {
		pe.Code = eb.Code
		pe.Message = eb.Message
		pe.Hint = eb.Hint
		if eb.Error != nil {
			if pe.Code == "" {
				pe.Code = eb.Error.Code
			}
			if pe.Message == "" {
				pe.Message = eb.Error.Message
			}
		}
	} else {
		pe.Message = strings.TrimSpace(string(raw))
		if len(pe.Message) > 200 {
			pe.Message = pe.Message[:200]
		}
	}

	switch {
	case pe.Code == CodeAuthFailed:
		pe.Kind = providers.ProviderErrorAuthFailed
	case pe.Code == CodeInsufficientCredits || pe.Code == CodeQuotaExceeded || status == http.StatusPaymentRequired:
		pe.Kind = providers.ProviderErrorCreditExhausted
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		pe.Kind = providers.ProviderErrorAuthFailed
	case status == http.StatusTooManyRequests:
		pe.Kind = providers.ProviderErrorRateLimited
	case status == http.StatusNotFound:
		pe.Kind = providers.ProviderErrorNotFound
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		pe.Kind = providers.ProviderErrorTimeout
	case status >= 500:
		pe.Kind = providers.ProviderErrorUpstream
	default:
		pe.Kind = providers.ProviderErrorValidationRejected
		if pe.Hint == "" && pe.Code == CodeFilterValueType {
			pe.Hint = "a filter value has the wrong type; numeric filters need numbers, not strings"
		}
	}
	return pe
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	if pe, ok := providers.AsProviderError(err); ok {
		return string(pe.Kind)
	}
	return "error"
}
