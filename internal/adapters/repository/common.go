package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/okian/breakfast/internal/domain/model"
	"github.com/okian/breakfast/pkg/metrics"
)

const (
	driverMemory   = "memory"
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"
)

// observe records the latency of one store operation and, when *errp is
// set on return, an error for that operation. Misses are not errors.
func observe(driver, op string, errp *error) func() {
	start := time.Now()
	return func() {
		metrics.RecordStoreLatency(driver, op, float64(time.Since(start).Microseconds())/1000)
		if errp == nil || *errp == nil {
			return
		}
		err := *errp
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNoConfirmedDraw) || errors.Is(err, ErrDateConfirmed) {
			return
		}
		metrics.RecordStoreError(driver, op)
		metrics.RecordErrorByComponent("repository", op)
	}
}

// unavailable wraps a driver error so callers can match ErrUnavailable
// while keeping the cause. Context errors pass through unchanged.
func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

func validateDraft(d model.RecipeDraft) error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRecipe)
	}
	return nil
}

func sortRecipes(recipes []model.Recipe) {
	sort.SliceStable(recipes, func(i, j int) bool {
		ri, rj := recipes[i].EffectiveRating(), recipes[j].EffectiveRating()
		if ri != rj {
			return ri > rj
		}
		return recipes[i].ID < recipes[j].ID
	})
}

// sortHistory orders newest date first, then newest record first.
func sortHistory(entries []model.HistoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		di, dj := entries[i].Date.String(), entries[j].Date.String()
		if di != dj {
			return di > dj
		}
		return entries[i].ID > entries[j].ID
	})
}
