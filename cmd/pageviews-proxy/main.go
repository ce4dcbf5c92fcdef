// Command pageviews-proxy exposes the pageview query client over HTTP:
// JSON endpoints for article views, project views and top articles, plus
// health and Prometheus metrics.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/wikimetrics/pageviews-client/pkg/client"
	"github.com/wikimetrics/pageviews-client/pkg/logging"
	"github.com/wikimetrics/pageviews-client/pkg/pageviews"
)

func main() {
	logger := logging.Setup(logging.DefaultConfig())

	// Configuration from environment
	redisURL := getEnv("REDIS_URL", "localhost:6379")
	port := getEnv("PORT", "8080")
	userAgent := getEnv("USER_AGENT", "pageviews-proxy/0.1.0")
	parallelism := getEnvInt("PARALLELISM", 5)

	// Setup Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: redisURL,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("redis_url", redisURL).Msg("Failed to connect to Redis")
	}
	logger.Info().Str("redis_url", redisURL).Msg("Connected to Redis")

	// Create API client and query client
	apiClient, err := client.New(client.DefaultConfig(redisClient, userAgent))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create API client")
	}
	defer apiClient.Close()

	queryCfg := pageviews.DefaultConfig()
	queryCfg.Parallelism = parallelism
	pv, err := pageviews.New(apiClient, queryCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create query client")
	}

	// HTTP server
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/v1/article-views", articleViewsHandler(pv))
	mux.HandleFunc("/v1/project-views", projectViewsHandler(pv))
	mux.HandleFunc("/v1/top", topArticlesHandler(pv))

	addr := ":" + port
	logger.Info().
		Str("addr", addr).
		Str("user_agent", userAgent).
		Int("parallelism", parallelism).
		Msg("Starting pageviews proxy server")

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// entityResultJSON is the wire shape of one entity's result. Err is
// flattened to a string so the three outcomes stay distinguishable.
type entityResultJSON struct {
	Views    int64  `json:"views"`
	NotFound bool   `json:"not_found,omitempty"`
	Error    string `json:"error,omitempty"`
}

func toJSONResults(results map[string]pageviews.EntityResult) map[string]entityResultJSON {
	out := make(map[string]entityResultJSON, len(results))
	for key, r := range results {
		j := entityResultJSON{Views: r.Views, NotFound: r.NotFound}
		if r.Err != nil {
			j.Error = r.Err.Error()
		}
		out[key] = j
	}
	return out
}

// parseOptions reads the shared query options from request parameters.
// Dates use YYYYMMDD.
func parseOptions(r *http.Request) (pageviews.Options, error) {
	opts := pageviews.Options{
		Access:      pageviews.Access(r.URL.Query().Get("access")),
		Agent:       pageviews.Agent(r.URL.Query().Get("agent")),
		Granularity: pageviews.Granularity(r.URL.Query().Get("granularity")),
	}

	if start := r.URL.Query().Get("start"); start != "" {
		t, err := time.Parse("20060102", start)
		if err != nil {
			return opts, fmt.Errorf("invalid start date %q: %v", start, err)
		}
		opts.Start = t
	}
	if end := r.URL.Query().Get("end"); end != "" {
		t, err := time.Parse("20060102", end)
		if err != nil {
			return opts, fmt.Errorf("invalid end date %q: %v", end, err)
		}
		opts.End = t
	}

	return opts, nil
}

func articleViewsHandler(pv *pageviews.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		project := r.URL.Query().Get("project")
		articles := splitParam(r.URL.Query().Get("articles"))

		opts, err := parseOptions(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		results, err := pv.ArticleViews(r.Context(), project, articles, opts)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		writeJSON(w, map[string]interface{}{
			"project":  project,
			"articles": toJSONResults(results),
		})
	}
}

func projectViewsHandler(pv *pageviews.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects := splitParam(r.URL.Query().Get("projects"))

		opts, err := parseOptions(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		results, err := pv.ProjectViews(r.Context(), projects, opts)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		writeJSON(w, map[string]interface{}{
			"projects": toJSONResults(results),
		})
	}
}

func topArticlesHandler(pv *pageviews.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		project := r.URL.Query().Get("project")

		opts := pageviews.TopOptions{
			Access: pageviews.Access(r.URL.Query().Get("access")),
			Year:   queryInt(r, "year"),
			Month:  queryInt(r, "month"),
			Day:    queryInt(r, "day"),
			Limit:  queryInt(r, "limit"),
		}

		ranking, err := pv.TopArticles(r.Context(), project, opts)
		if err != nil {
			http.Error(w, err.Error(), statusForError(err))
			return
		}

		writeJSON(w, map[string]interface{}{
			"project":  project,
			"articles": ranking,
		})
	}
}

// statusForError maps a query error to an HTTP status. Upstream failures
// become 502; everything else is a caller mistake and stays 400.
func statusForError(err error) int {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) ||
		errors.Is(err, client.ErrRetryExhausted) ||
		errors.Is(err, client.ErrContextCancelled) {
		return http.StatusBadGateway
	}
	return http.StatusBadRequest
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "encode response: "+err.Error(), http.StatusInternalServerError)
	}
}

// splitParam splits a pipe-separated list parameter, MediaWiki style.
func splitParam(value string) []string {
	if value == "" {
		return nil
	}
	return strings.Split(value, "|")
}

func queryInt(r *http.Request, name string) int {
	value := r.URL.Query().Get(name)
	if value == "" {
		return 0
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
