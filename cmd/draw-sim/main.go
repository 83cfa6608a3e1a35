package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/breakfast/internal/drawsim"
	"github.com/okian/breakfast/pkg/logger"
)

// Default configuration constants.
const (
	defaultDraws      = 2000
	defaultWorkers    = 2 // multiplier for runtime.NumCPU()
	defaultRPS        = 0.0
	defaultTimeout    = 30 * time.Second
	defaultTolerance  = 0.05
	defaultRunTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:8080", "Base URL of the service")
		draws     = flag.Int("draws", defaultDraws, "Number of quick draws to request")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		rps       = flag.Float64("rps", defaultRPS, "Client-side request rate (0 = unlimited)")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		tolerance = flag.Float64("tolerance", defaultTolerance, "Allowed absolute difference between observed and expected share")
		output    = flag.String("output", "", "Write the JSON report to this file")
		format    = flag.String("log-format", "text", "Log format (text or json)")
		verbose   = flag.Bool("verbose", false, "Log per-recipe shares")
	)
	flag.Parse()

	if err := logger.Init(logger.WithFormat(logger.Format(*format))); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	_, err := drawsim.Run(ctx, drawsim.Config{
		BaseURL:    *baseURL,
		Draws:      *draws,
		Workers:    *workers,
		RPS:        *rps,
		Timeout:    *timeout,
		Tolerance:  *tolerance,
		OutputFile: *output,
		Verbose:    *verbose,
	})
	if err != nil {
		if errors.Is(err, drawsim.ErrOutOfTolerance) {
			logger.Get().Warn(ctx, "observed distribution differs from the advertised odds")
		} else {
			logger.Get().Error(ctx, "simulation failed", logger.Error(err))
		}
		cancel()
		os.Exit(1)
	}
}
