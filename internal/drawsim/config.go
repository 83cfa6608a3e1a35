// Package drawsim drives the quick-draw endpoint of a running server and
// compares the observed pick frequencies with the advertised odds.
package drawsim

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Draws      int           // Number of quick draws to request
	Workers    int           // Number of concurrent workers
	RPS        float64       // Client-side request rate limit; 0 disables it
	Timeout    time.Duration // HTTP request timeout
	Tolerance  float64       // Maximum allowed |observed - expected| share
	OutputFile string        // Optional JSON report path
	Verbose    bool          // Log per-recipe rows
}

// Odds is one row of /api/draw/odds.
type Odds struct {
	RecipeID    int64   `json:"recipe_id"`
	Name        string  `json:"recipe_name"`
	Rating      float64 `json:"user_rating"`
	Weight      float64 `json:"weight"`
	Probability float64 `json:"probability"`
}

// drawResponse is the subset of a draw reply the simulator reads.
type drawResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"recipe_name"`
}

// Row compares one recipe's expected and observed share.
type Row struct {
	RecipeID  int64   `json:"recipe_id"`
	Name      string  `json:"recipe_name"`
	Rating    float64 `json:"user_rating"`
	Expected  float64 `json:"expected"`
	Observed  float64 `json:"observed"`
	Count     int     `json:"count"`
	Deviation float64 `json:"deviation"`
}

// Report is the outcome of a run.
type Report struct {
	Requested  int           `json:"requested"`
	Succeeded  int           `json:"succeeded"`
	Failed     int           `json:"failed"`
	Throttled  int           `json:"throttled"`
	Unknown    int           `json:"unknown"`
	ChiSquare  float64       `json:"chi_square"`
	MaxDev     float64       `json:"max_deviation"`
	Within     bool          `json:"within_tolerance"`
	Rows       []Row         `json:"rows"`
	Duration   time.Duration `json:"duration"`
	DrawsPerS  float64       `json:"draws_per_second"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}
