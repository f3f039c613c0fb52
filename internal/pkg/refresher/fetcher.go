package refresher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JanBecker/ClipFox/app/models"
	"github.com/JanBecker/ClipFox/internal/pkg/env"
)

// Metrics is one observation fetched from a platform for a social account.
type Metrics struct {
	FollowerCount  int     `json:"follower_count"`
	PostCount      int     `json:"post_count"`
	EngagementRate float64 `json:"engagement_rate"`
	IsVerified     bool    `json:"is_verified"`
}

// MetricsFetcher fetches current metrics for one social account. The context
// carries the per-account deadline; implementations must honor it.
type MetricsFetcher interface {
	FetchMetrics(ctx context.Context, account *models.SocialAccount) (*Metrics, error)
}

// HTTPMetricsFetcher talks to the metrics gateway, a single upstream that
// proxies the per-platform APIs.
type HTTPMetricsFetcher struct {
	BaseURL    string
	APIToken   string
	HTTPClient *http.Client
}

// NewHTTPMetricsFetcherFromEnv builds the gateway client from the environment.
func NewHTTPMetricsFetcherFromEnv() *HTTPMetricsFetcher {
	return &HTTPMetricsFetcher{
		BaseURL:  strings.TrimRight(env.GetEnv("METRICS_GATEWAY_URL", ""), "/"),
		APIToken: strings.TrimSpace(env.GetEnv("METRICS_GATEWAY_TOKEN", "")),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// FetchMetrics requests /metrics/{platform}/{external_id} from the gateway.
func (f *HTTPMetricsFetcher) FetchMetrics(ctx context.Context, account *models.SocialAccount) (*Metrics, error) {
	if strings.TrimSpace(f.BaseURL) == "" {
		return nil, errors.New("METRICS_GATEWAY_URL is not configured")
	}
	if account == nil || account.Platform == "" || account.ExternalAccountID == "" {
		return nil, errors.New("account platform and external id are required")
	}

	endpoint := fmt.Sprintf("%s/metrics/%s/%s",
		f.BaseURL,
		url.PathEscape(account.Platform),
		url.PathEscape(account.ExternalAccountID),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if f.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIToken)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("metrics fetch for %s/%s failed: status=%d body=%s",
			account.Platform, account.ExternalAccountID, resp.StatusCode, string(body))
	}

	var out Metrics
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("invalid metrics response: %w", err)
	}
	if out.FollowerCount < 0 || out.PostCount < 0 {
		return nil, fmt.Errorf("metrics response out of range: followers=%d posts=%d", out.FollowerCount, out.PostCount)
	}
	return &out, nil
}
