package simulate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/ladder/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
)

// Run executes a complete ladder simulation: generate a population with
// hidden skills, play out matches, submit them, and verify the ladder
// recovered the skill ordering.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting ladder simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("teams", config.NumTeams),
		logger.Int("matches", config.NumMatches),
		logger.String("bracket", config.Bracket),
		logger.Int("workers", config.Workers),
		logger.Int("topN", config.TopN))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate the population and play out the season
	teams := generateTeams(ctx, config, stats)
	matches := generateMatches(ctx, config, teams, stats)

	// Step 3: Submit matches concurrently
	if err := submitMatches(ctx, config, matches, stats); err != nil {
		return fmt.Errorf("match submission failed: %w", err)
	}

	// Step 4: Wait for the rating pipeline to drain
	logger.Get().Info(ctx, "waiting for matches to be processed")
	time.Sleep(ProcessingDelay)

	// Step 5: Get leaderboard
	leaderboard, err := getLeaderboard(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("leaderboard retrieval failed: %w", err)
	}

	// Step 6: Verify skill recovery
	if err := verifyResults(ctx, config, teams, leaderboard, stats); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	// Step 7: Save matches to file
	if err := saveMatchesToFile(ctx, config, matches); err != nil {
		logger.Get().Warn(ctx, "failed to save matches to file", logger.Error(err))
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	logger.Get().Info(ctx, "simulation completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/healthz"

	resp, err := client.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	// Accept any 200 response as healthy (the service returns Prometheus metrics)
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveMatchesToFile saves the simulated matches to a JSON file.
func saveMatchesToFile(ctx context.Context, config *Config, matches []Match) error {
	if len(matches) == 0 {
		return fmt.Errorf("no matches to save")
	}

	filename := config.OutputFile
	if filename == "" {
		timestamp := time.Now().Format("20060102_150405")
		filename = "simulated_matches_" + timestamp + ".json"
	}

	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close file", logger.Error(err))
		}
	}()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(matches); err != nil {
		return fmt.Errorf("failed to encode matches: %w", err)
	}

	logger.Get().Info(ctx, "matches saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final simulation statistics.
func displayFinalStats(stats *Stats) {
	var successRate, matchesPerSecond float64

	if stats.MatchesSubmitted > 0 {
		successRate = float64(stats.MatchesSuccessful) / float64(stats.MatchesSubmitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		matchesPerSecond = float64(stats.MatchesSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("teamsGenerated", stats.TeamsGenerated),
		logger.Int("matchesGenerated", stats.MatchesGenerated),
		logger.Int("matchesSubmitted", stats.MatchesSubmitted),
		logger.Int("matchesSuccessful", stats.MatchesSuccessful),
		logger.Int("matchesFailed", stats.MatchesFailed),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.Float64("rankCorrelation", stats.RankCorrelation),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("matchesPerSecond", matchesPerSecond))
}
