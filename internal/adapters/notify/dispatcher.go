package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/breakfast/pkg/logger"
	"github.com/okian/breakfast/pkg/metrics"
)

// Result is the outcome of one channel's delivery.
type Result struct {
	Channel string
	Err     error
	Elapsed time.Duration
}

// Dispatcher sends a message to every enabled channel concurrently.
type Dispatcher struct {
	channels []Channel
	log      logger.Logger
}

// NewDispatcher keeps the enabled channels. Disabled ones are logged once
// and skipped.
func NewDispatcher(log logger.Logger, channels ...Channel) *Dispatcher {
	if log == nil {
		log = logger.Default("notify")
	}
	d := &Dispatcher{log: log}
	for _, ch := range channels {
		if ch == nil {
			continue
		}
		if !ch.Enabled() {
			log.Warn(context.Background(), "notification channel incomplete, skipping",
				logger.String("channel", ch.Name()))
			continue
		}
		d.channels = append(d.channels, ch)
	}
	return d
}

// Channels returns the names of the enabled channels.
func (d *Dispatcher) Channels() []string {
	out := make([]string, 0, len(d.channels))
	for _, ch := range d.channels {
		out = append(out, ch.Name())
	}
	return out
}

// Dispatch delivers msg on every channel. A failing channel does not stop the
// others; the returned error joins every channel failure.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) ([]Result, error) {
	if len(d.channels) == 0 {
		return nil, ErrNoChannels
	}

	results := make([]Result, len(d.channels))
	var g errgroup.Group
	for i, ch := range d.channels {
		g.Go(func() error {
			start := time.Now()
			err := ch.Send(ctx, msg)
			results[i] = Result{Channel: ch.Name(), Err: err, Elapsed: time.Since(start)}
			if err != nil {
				metrics.RecordNotification(ch.Name(), "failed")
				d.log.Error(ctx, "notification failed",
					logger.String("channel", ch.Name()),
					logger.String("date", msg.Date.String()),
					logger.Error(err))
				return nil
			}
			metrics.RecordNotification(ch.Name(), "sent")
			d.log.Info(ctx, "notification sent",
				logger.String("channel", ch.Name()),
				logger.String("date", msg.Date.String()),
				logger.Duration("elapsed", results[i].Elapsed))
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Channel, r.Err))
		}
	}
	return results, errors.Join(errs...)
}
