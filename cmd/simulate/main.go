package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/ladder/internal/simulate"
)

// Default configuration constants.
const (
	defaultNumTeams   = 200
	defaultNumMatches = 10000
	defaultTopN       = 50
	defaultWorkers    = 2 // multiplier for runtime.NumCPU()
	defaultTimeout    = 30 * time.Second
	defaultRunTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numTeams   = flag.Int("teams", defaultNumTeams, "Number of teams in the population")
		numMatches = flag.Int("matches", defaultNumMatches, "Number of matches to simulate")
		bracket    = flag.String("bracket", "1v1", "Bracket to play in")
		topN       = flag.Int("top", defaultTopN, "Number of top entries to fetch from leaderboard")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile = flag.String("output", "", "Output file for simulated matches (default: simulated_matches_TIMESTAMP.json)")
		logFile    = flag.String("log", "", "Log file for run output (default: simulation_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	if err := simulate.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	config := &simulate.Config{
		BaseURL:    *baseURL,
		NumTeams:   *numTeams,
		NumMatches: *numMatches,
		Bracket:    *bracket,
		TopN:       *topN,
		Workers:    *workers,
		Timeout:    *timeout,
		OutputFile: *outputFile,
		LogFile:    *logFile,
		Verbose:    *verbose,
	}

	if err := simulate.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		return
	}
}
