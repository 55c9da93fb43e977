package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/ladder/pkg/logger"
)

// HTTPClient wraps http.Client with timeout.
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with JSON body.
func (c *HTTPClient) Post(ctx context.Context, url string, body interface{}) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// readResponseBody reads and closes the response body.
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// submitMatches submits matches concurrently using a worker pool. Matches are
// fed in simulation order; per-team ordering is the service's problem, not
// the harness's.
func submitMatches(ctx context.Context, config *Config, matches []Match, stats *Stats) error {
	logger.Get().Info(ctx, "submitting matches",
		logger.Int("matches", len(matches)),
		logger.Int("workers", config.Workers))

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/matches"

	var (
		successful int64
		failed     int64
		submitted  int64
	)

	matchChan := make(chan Match, config.Workers*2)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for match := range matchChan {
				select {
				case <-ctx.Done():
					return
				default:
					atomic.AddInt64(&submitted, 1)
					if submitSingleMatch(ctx, client, url, match) {
						atomic.AddInt64(&successful, 1)
					} else {
						atomic.AddInt64(&failed, 1)
					}
				}
			}
		}()
	}

	go func() {
		defer close(matchChan)
		for _, match := range matches {
			select {
			case <-ctx.Done():
				return
			case matchChan <- match:
			}
		}
	}()

	wg.Wait()

	stats.MatchesSubmitted = int(atomic.LoadInt64(&submitted))
	stats.MatchesSuccessful = int(atomic.LoadInt64(&successful))
	stats.MatchesFailed = int(atomic.LoadInt64(&failed))

	logger.Get().Info(ctx, "match submission completed",
		logger.Int("successful", stats.MatchesSuccessful),
		logger.Int("failed", stats.MatchesFailed))
	return nil
}

// submitSingleMatch submits one match; accepted and duplicate both count as
// success.
func submitSingleMatch(ctx context.Context, client *HTTPClient, url string, match Match) bool {
	resp, err := client.Post(ctx, url, match)
	if err != nil {
		return false
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return false
	}

	if resp.StatusCode != StatusAccepted {
		return false
	}
	var ack AckResponse
	if err := json.Unmarshal(body, &ack); err != nil {
		return true // 202 without a parseable body still counts
	}
	return ack.Status == "accepted"
}

// getLeaderboard fetches the top-N entries for the configured bracket.
func getLeaderboard(ctx context.Context, config *Config, stats *Stats) ([]Entry, error) {
	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/leaderboard?bracket=" + config.Bracket + "&limit=" + strconv.Itoa(config.TopN)

	resp, err := client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch leaderboard: %w", err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard response: %w", err)
	}
	if resp.StatusCode != StatusOK {
		return nil, fmt.Errorf("leaderboard request failed with status: %d", resp.StatusCode)
	}

	var entries []Entry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse leaderboard: %w", err)
	}

	stats.LeaderboardEntries = len(entries)
	return entries, nil
}
