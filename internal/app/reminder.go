package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	workerpool "github.com/okian/breakfast/internal/adapters/mq/worker"
	"github.com/okian/breakfast/internal/adapters/notify"
	"github.com/okian/breakfast/internal/domain/draw"
	"github.com/okian/breakfast/internal/domain/model"
	"github.com/okian/breakfast/internal/domain/types"
	"github.com/okian/breakfast/pkg/logger"
	"github.com/okian/breakfast/pkg/metrics"
)

func reminderKey(date model.Date) string { return "reminder:" + date.String() }

// SendReminder renders date's reminder and delivers it on every channel.
// The returned result lists each channel's outcome even when some failed.
func (s *Service) SendReminder(ctx context.Context, date model.Date) (types.ReminderResult, error) {
	var recipe *model.Recipe
	r, err := s.coordinator.GetConfirmed(ctx, date)
	switch {
	case err == nil:
		recipe = &r
	case errors.Is(err, draw.ErrNoConfirmedDraw):
	default:
		return types.ReminderResult{}, err
	}

	msg, err := notify.Compose(date, recipe)
	if err != nil {
		return types.ReminderResult{}, err
	}

	results, dispatchErr := s.notifier.Dispatch(ctx, msg)
	out := types.ReminderResult{
		Success:   dispatchErr == nil,
		DrawDate:  date.String(),
		Confirmed: recipe != nil,
		Channels:  make([]types.ChannelResult, 0, len(results)),
	}
	if recipe != nil {
		out.Recipe = recipe.Name
	}
	for _, res := range results {
		cr := types.ChannelResult{Channel: res.Channel, Success: res.Err == nil}
		if res.Err != nil {
			cr.Error = res.Err.Error()
		}
		out.Channels = append(out.Channels, cr)
	}
	return out, dispatchErr
}

// ScheduleReminder queues one reminder for date. A date that already has a
// reminder queued is skipped and reported as false.
func (s *Service) ScheduleReminder(ctx context.Context, date model.Date, reason string) (bool, error) {
	key := reminderKey(date)
	if s.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordReminderDuplicate()
		s.logger.Debug(ctx, "reminder already scheduled", logger.String("date", date.String()))
		return false, nil
	}

	job := model.ReminderJob{
		ID:         uuid.NewString(),
		Date:       date,
		Reason:     reason,
		EnqueuedAt: s.now(),
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.deduper.Unrecord(ctx, key)
		return false, fmt.Errorf("enqueue reminder: %w", err)
	}
	metrics.RecordReminderScheduled()
	s.logger.Info(ctx, "reminder scheduled",
		logger.String("job_id", job.ID),
		logger.String("date", date.String()),
		logger.String("reason", reason))
	return true, nil
}

// Handle delivers a queued reminder. It makes Service a worker handler.
func (s *Service) Handle(ctx context.Context, job workerpool.Job) error {
	res, err := s.SendReminder(ctx, job.Date)
	if err != nil {
		return fmt.Errorf("reminder %s for %s: %w", job.ID, job.Date, err)
	}
	s.logger.Info(ctx, "reminder sent",
		logger.String("job_id", job.ID),
		logger.String("date", job.Date.String()),
		logger.Bool("confirmed", res.Confirmed),
		logger.Int("channels", len(res.Channels)))
	return nil
}

// ReminderPool returns the workers that drain the reminder queue.
func (s *Service) ReminderPool() *workerpool.Pool { return s.pool }

// NextRun returns the first hour:minute in loc strictly after now.
func NextRun(now time.Time, loc *time.Location, hour, minute int) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t := now.In(loc)
	next := time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, loc)
	if !next.After(t) {
		next = time.Date(t.Year(), t.Month(), t.Day()+1, hour, minute, 0, 0, loc)
	}
	return next
}

// ReminderScheduler queues tomorrow's reminder once a day.
type ReminderScheduler struct {
	svc   *Service
	after func(time.Duration) <-chan time.Time
}

// ReminderScheduler returns the daily scheduler, or nil when reminders are
// disabled.
func (s *Service) ReminderScheduler() *ReminderScheduler {
	if !s.reminderEnabled {
		return nil
	}
	return &ReminderScheduler{svc: s, after: time.After}
}

// Serve blocks until ctx is cancelled, queueing a reminder at each run.
func (r *ReminderScheduler) Serve(ctx context.Context) error {
	s := r.svc
	for {
		now := s.now()
		next := NextRun(now, s.loc, s.reminderHour, s.reminderMinute)
		s.logger.Debug(ctx, "next reminder run", logger.String("at", next.Format(time.RFC3339)))

		select {
		case <-ctx.Done():
			return nil
		case <-r.after(next.Sub(now)):
		}

		date := model.Tomorrow(next, s.loc)
		if _, err := s.ScheduleReminder(ctx, date, model.ReminderScheduled); err != nil {
			metrics.RecordErrorByComponent("scheduler", "enqueue")
			s.logger.Error(ctx, "scheduling reminder failed",
				logger.String("date", date.String()), logger.Error(err))
		}
	}
}

func (r *ReminderScheduler) String() string { return "reminder-scheduler" }
