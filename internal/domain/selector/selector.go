// Package selector performs the weighted breakfast lottery.
//
// Each recipe is weighted by the square of its rating and one recipe is
// chosen by a cumulative-distribution search over a seeded random source,
// so a fixed seed reproduces the same sequence of picks.
package selector

import (
	"errors"
	"math/rand"
	"sort"
	"sync"

	"github.com/okian/breakfast/internal/domain/model"
)

const defaultSeed = 42

// ErrEmptyCatalog is returned when there is nothing to choose from.
var ErrEmptyCatalog = errors.New("selector: empty catalog")

// Option configures a Selector.
type Option func(*Selector)

// WithSeed seeds the random source.
func WithSeed(seed int64) Option {
	return func(s *Selector) {
		s.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible draws
	}
}

// WithSource replaces the random source, mainly for tests.
func WithSource(src rand.Source) Option {
	return func(s *Selector) {
		if src != nil {
			s.rng = rand.New(src) //nolint:gosec // reproducible draws
		}
	}
}

// Selector draws one recipe from a catalog snapshot. It is safe for
// concurrent use.
type Selector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Selector seeded with a fixed default seed.
func New(opts ...Option) *Selector {
	s := &Selector{
		rng: rand.New(rand.NewSource(defaultSeed)), //nolint:gosec // reproducible draws
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Weight returns rating², treating an unset rating as model.DefaultRating.
func Weight(rating float64) float64 {
	if rating <= 0 {
		rating = model.DefaultRating
	}
	return rating * rating
}

// Probabilities returns each recipe's selection probability in input order.
func Probabilities(recipes []model.Recipe) ([]float64, error) {
	cum, total, err := cumulative(recipes)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(cum))
	prev := 0.0
	for i, c := range cum {
		out[i] = (c - prev) / total
		prev = c
	}
	return out, nil
}

// Select picks one recipe and returns its id.
func (s *Selector) Select(recipes []model.Recipe) (model.RecipeID, error) {
	i, err := s.SelectIndex(recipes)
	if err != nil {
		return 0, err
	}
	return recipes[i].ID, nil
}

// SelectIndex picks one recipe and returns its position in recipes.
func (s *Selector) SelectIndex(recipes []model.Recipe) (int, error) {
	cum, total, err := cumulative(recipes)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	u := s.rng.Float64()
	s.mu.Unlock()

	target := u * total
	// first index whose cumulative weight exceeds target
	i := sort.Search(len(cum), func(i int) bool { return cum[i] > target })
	if i == len(cum) {
		i = len(cum) - 1
	}
	return i, nil
}

func cumulative(recipes []model.Recipe) ([]float64, float64, error) {
	if len(recipes) == 0 {
		return nil, 0, ErrEmptyCatalog
	}
	cum := make([]float64, len(recipes))
	total := 0.0
	for i, r := range recipes {
		total += Weight(r.Rating)
		cum[i] = total
	}
	return cum, total, nil
}
