package drawsim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/okian/breakfast/pkg/logger"
)

const (
	defaultWorkers   = 4
	defaultTolerance = 0.05
	reportFilePerm   = 0o600
	reportDirPerm    = 0o750
)

// ErrOutOfTolerance is returned when some recipe's observed share strays
// further than the configured tolerance from its expected share.
var ErrOutOfTolerance = errors.New("drawsim: observed distribution out of tolerance")

// Run executes the simulation and returns the report. The report is
// returned alongside ErrOutOfTolerance so callers can still print it.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	if cfg.Draws <= 0 {
		return nil, fmt.Errorf("drawsim: draws must be positive, got %d", cfg.Draws)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = defaultTolerance
	}
	log := logger.Default("drawsim")
	c := newClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting draw simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("draws", cfg.Draws),
		logger.Int("workers", cfg.Workers),
		logger.Float64("rps", cfg.RPS))

	if err := c.health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}
	odds, err := c.odds(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch odds: %w", err)
	}
	if len(odds) == 0 {
		return nil, errors.New("drawsim: catalog is empty")
	}

	report := &Report{Requested: cfg.Draws, StartedAt: time.Now()}
	counts, err := draw(ctx, c, cfg, report)
	if err != nil {
		return nil, err
	}
	report.FinishedAt = time.Now()
	report.Duration = report.FinishedAt.Sub(report.StartedAt)
	if secs := report.Duration.Seconds(); secs > 0 {
		report.DrawsPerS = float64(report.Succeeded) / secs
	}

	compare(report, odds, counts, cfg.Tolerance)
	display(ctx, log, report, cfg.Verbose)

	if cfg.OutputFile != "" {
		if err := save(cfg.OutputFile, report); err != nil {
			log.Warn(ctx, "failed to save report", logger.Error(err))
		}
	}
	if !report.Within {
		return report, ErrOutOfTolerance
	}
	return report, nil
}

// draw issues cfg.Draws quick draws over cfg.Workers goroutines and
// returns the pick count per recipe ID.
func draw(ctx context.Context, c *client, cfg Config, report *Report) (map[int64]int, error) {
	var limiter *rate.Limiter
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Workers)
	}

	var mu sync.Mutex
	counts := make(map[int64]int)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i := 0; i < cfg.Draws; i++ {
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}
			}
			res, err := c.quickDraw(gctx)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, errThrottled):
				report.Throttled++
			case err != nil:
				if gctx.Err() != nil {
					return gctx.Err()
				}
				report.Failed++
			default:
				report.Succeeded++
				counts[res.ID]++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return counts, nil
}

// compare fills the per-recipe rows, the chi-square statistic and the
// tolerance verdict.
func compare(report *Report, odds []Odds, counts map[int64]int, tolerance float64) {
	n := float64(report.Succeeded)
	known := make(map[int64]bool, len(odds))
	report.Rows = make([]Row, 0, len(odds))
	report.Within = n > 0

	for _, o := range odds {
		known[o.RecipeID] = true
		row := Row{
			RecipeID: o.RecipeID,
			Name:     o.Name,
			Rating:   o.Rating,
			Expected: o.Probability,
			Count:    counts[o.RecipeID],
		}
		if n > 0 {
			row.Observed = float64(row.Count) / n
		}
		row.Deviation = math.Abs(row.Observed - row.Expected)
		if row.Deviation > report.MaxDev {
			report.MaxDev = row.Deviation
		}
		if exp := o.Probability * n; exp > 0 {
			d := float64(row.Count) - exp
			report.ChiSquare += d * d / exp
		}
		report.Rows = append(report.Rows, row)
	}
	for id, c := range counts {
		if !known[id] {
			report.Unknown += c
		}
	}
	if report.MaxDev > tolerance || report.Unknown > 0 {
		report.Within = false
	}

	sort.Slice(report.Rows, func(i, j int) bool {
		return report.Rows[i].Expected > report.Rows[j].Expected
	})
}

func display(ctx context.Context, log logger.Logger, report *Report, verbose bool) {
	if verbose {
		for _, r := range report.Rows {
			log.Info(ctx, "recipe share",
				logger.String("recipe", r.Name),
				logger.Float64("rating", r.Rating),
				logger.Float64("expected", r.Expected),
				logger.Float64("observed", r.Observed),
				logger.Int("count", r.Count))
		}
	}
	log.Info(ctx, "final statistics",
		logger.Int("requested", report.Requested),
		logger.Int("succeeded", report.Succeeded),
		logger.Int("failed", report.Failed),
		logger.Int("throttled", report.Throttled),
		logger.Int("unknown", report.Unknown),
		logger.Float64("chiSquare", report.ChiSquare),
		logger.Float64("maxDeviation", report.MaxDev),
		logger.Bool("withinTolerance", report.Within),
		logger.Duration("duration", report.Duration),
		logger.Float64("drawsPerSecond", report.DrawsPerS))
}

func save(path string, report *Report) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, reportDirPerm); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return os.WriteFile(path, data, reportFilePerm)
}
