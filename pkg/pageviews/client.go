package pageviews

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/wikimetrics/pageviews-client/pkg/cache"
	"github.com/wikimetrics/pageviews-client/pkg/client"
)

// Getter is the HTTP layer the query client runs on. *client.Client
// implements it; tests substitute a plain stub.
type Getter interface {
	// Get performs a GET request against an API endpoint path.
	Get(ctx context.Context, endpoint string) (*http.Response, error)

	// GetWithTTL performs a GET request with an explicit cache TTL override.
	GetWithTTL(ctx context.Context, endpoint string, cacheTTL time.Duration) (*http.Response, error)
}

// Config holds the query client configuration.
type Config struct {
	// Parallelism is the maximum number of in-flight requests during a
	// batch query (default: 5).
	Parallelism int

	// CallTimeout bounds a whole batch call. On expiry, results gathered
	// so far are returned and uncompleted entities carry a timeout error
	// (default: 60s).
	CallTimeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		Parallelism: 5,
		CallTimeout: 60 * time.Second,
	}
}

// Client is the pageview query client. It translates high-level query
// requests into one API request per entity, dispatches them concurrently
// up to the configured parallelism, and aggregates the results keyed by
// the caller's original entity strings.
type Client struct {
	api    Getter
	config Config
	logger zerolog.Logger
}

// New creates a new pageview query client.
func New(api Getter, cfg Config) (*Client, error) {
	if api == nil {
		return nil, fmt.Errorf("api client is required")
	}

	if cfg.Parallelism == 0 {
		cfg.Parallelism = 5
	}
	if cfg.Parallelism < 0 {
		return nil, fmt.Errorf("parallelism must be positive (got %d)", cfg.Parallelism)
	}

	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = 60 * time.Second
	}
	if cfg.CallTimeout < 0 {
		return nil, fmt.Errorf("call timeout must be positive (got %v)", cfg.CallTimeout)
	}

	return &Client{
		api:    api,
		config: cfg,
		logger: log.With().Str("component", "pageviews-query").Logger(),
	}, nil
}

// ArticleViews fetches view counts for one or more articles of a project.
//
// One request per article is issued against the per-article endpoint,
// concurrently up to Config.Parallelism. The result map is keyed by the
// caller's original article strings; duplicate articles collapse to a
// single key and a single request. Article titles are sent to the API
// as given (path-escaped, no case or underscore normalization).
//
// A failure fetching one article never aborts the others: the failing
// article's slot carries the error and all remaining articles are still
// fetched.
func (c *Client) ArticleViews(ctx context.Context, project string, articles []string, opts Options) (map[string]EntityResult, error) {
	if project == "" {
		return nil, fmt.Errorf("project must not be empty")
	}
	if len(articles) == 0 {
		return nil, fmt.Errorf("articles must not be empty")
	}
	for _, a := range articles {
		if a == "" {
			return nil, fmt.Errorf("article names must not be empty")
		}
	}

	opts = opts.withDefaults()
	if err := opts.validate(true); err != nil {
		return nil, err
	}

	start := opts.Start.Format(timestampFormat)
	end := opts.End.Format(timestampFormat)
	ttl := cacheTTLForRange(opts.End)

	results := c.fetchConcurrent(ctx, dedupe(articles), func(ctx context.Context, article string) EntityResult {
		endpoint := fmt.Sprintf("/metrics/pageviews/per-article/%s/%s/%s/%s/%s/%s/%s",
			project, opts.Access, opts.Agent, url.PathEscape(article), opts.Granularity, start, end)
		return c.fetchTimeseries(ctx, endpoint, ttl)
	})

	return results, nil
}

// ProjectViews fetches aggregate view counts for one or more projects.
//
// Same concurrency and aggregation contract as ArticleViews, keyed by
// project domain (e.g. "en.wikipedia"); one request per project against
// the aggregate endpoint.
func (c *Client) ProjectViews(ctx context.Context, projects []string, opts Options) (map[string]EntityResult, error) {
	if len(projects) == 0 {
		return nil, fmt.Errorf("projects must not be empty")
	}
	for _, p := range projects {
		if p == "" {
			return nil, fmt.Errorf("project names must not be empty")
		}
	}

	opts = opts.withDefaults()
	if err := opts.validate(false); err != nil {
		return nil, err
	}

	start := opts.Start.Format(timestampFormat)
	end := opts.End.Format(timestampFormat)
	ttl := cacheTTLForRange(opts.End)

	results := c.fetchConcurrent(ctx, dedupe(projects), func(ctx context.Context, project string) EntityResult {
		endpoint := fmt.Sprintf("/metrics/pageviews/aggregate/%s/%s/%s/%s/%s/%s",
			project, opts.Access, opts.Agent, opts.Granularity, start, end)
		return c.fetchTimeseries(ctx, endpoint, ttl)
	})

	return results, nil
}

// TopArticles fetches the ranked list of most-viewed articles of a project
// for a single day. A single upstream request; no fan-out. At most
// opts.Limit entries are returned, in upstream rank order. When the API
// reports no data for the date, the returned slice is empty.
func (c *Client) TopArticles(ctx context.Context, project string, opts TopOptions) ([]RankedArticle, error) {
	if project == "" {
		return nil, fmt.Errorf("project must not be empty")
	}

	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("/metrics/pageviews/top/%s/%s/%04d/%02d/%02d",
		project, opts.Access, opts.Year, opts.Month, opts.Day)

	day := time.Date(opts.Year, time.Month(opts.Month), opts.Day, 0, 0, 0, 0, time.UTC)
	resp, err := c.api.GetWithTTL(ctx, endpoint, cacheTTLForRange(day))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// No ranking recorded for this date
		return []RankedArticle{}, nil
	}
	if resp.StatusCode >= 400 {
		return nil, &client.APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: client.ClassifyStatus(resp.StatusCode),
			Message:    resp.Status,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var parsed topResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse top articles response: %w", err)
	}

	if len(parsed.Items) == 0 {
		return []RankedArticle{}, nil
	}

	ranked := parsed.Items[0].Articles
	sortRanking(ranked)

	if len(ranked) > opts.Limit {
		ranked = ranked[:opts.Limit]
	}
	return ranked, nil
}

// sortRanking orders a ranking by upstream rank when present. Rankings
// without rank values are sorted by views descending, ties broken by
// article name ascending for determinism.
func sortRanking(ranked []RankedArticle) {
	hasRanks := false
	for _, r := range ranked {
		if r.Rank > 0 {
			hasRanks = true
			break
		}
	}

	if hasRanks {
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].Rank < ranked[j].Rank
		})
		return
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Views != ranked[j].Views {
			return ranked[i].Views > ranked[j].Views
		}
		return ranked[i].Article < ranked[j].Article
	})
}

// itemsResponse is the wire shape of per-article and aggregate responses.
type itemsResponse struct {
	Items []struct {
		Project   string `json:"project"`
		Article   string `json:"article"`
		Timestamp string `json:"timestamp"`
		Views     int64  `json:"views"`
	} `json:"items"`
}

// topResponse is the wire shape of top-articles responses.
type topResponse struct {
	Items []struct {
		Articles []RankedArticle `json:"articles"`
	} `json:"items"`
}

// fetchTimeseries fetches one entity's timeseries endpoint and folds the
// response into an EntityResult. All failure modes land in the result,
// never in a panic or a batch-level error.
func (c *Client) fetchTimeseries(ctx context.Context, endpoint string, cacheTTL time.Duration) EntityResult {
	resp, err := c.api.GetWithTTL(ctx, endpoint, cacheTTL)
	if err != nil {
		return EntityResult{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return EntityResult{NotFound: true}
	}
	if resp.StatusCode >= 400 {
		return EntityResult{Err: &client.APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: client.ClassifyStatus(resp.StatusCode),
			Message:    resp.Status,
		}}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return EntityResult{Err: fmt.Errorf("read response body: %w", err)}
	}

	var parsed itemsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return EntityResult{Err: fmt.Errorf("parse pageview response: %w", err)}
	}

	result := EntityResult{
		Timeseries: make([]DataPoint, 0, len(parsed.Items)),
	}
	for _, item := range parsed.Items {
		ts, err := time.Parse(timestampFormat, item.Timestamp)
		if err != nil {
			return EntityResult{Err: fmt.Errorf("parse timestamp %q: %w", item.Timestamp, err)}
		}
		result.Views += item.Views
		result.Timeseries = append(result.Timeseries, DataPoint{Timestamp: ts, Views: item.Views})
	}
	return result
}

// cacheTTLForRange picks the response cache TTL for a query whose range ends
// at end. Fully historical ranges are immutable upstream and get a long TTL;
// ranges touching today defer to the response headers.
func cacheTTLForRange(end time.Time) time.Duration {
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if end.Before(today) {
		return cache.HistoricalTTL
	}
	return 0
}

// dedupe collapses duplicate entities, preserving first-seen order.
// Duplicates in the input map to a single result key and a single request.
func dedupe(entities []string) []string {
	seen := make(map[string]struct{}, len(entities))
	unique := make([]string, 0, len(entities))
	for _, e := range entities {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		unique = append(unique, e)
	}
	return unique
}
