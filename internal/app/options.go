package service

import (
	"time"

	repository "github.com/okian/breakfast/internal/adapters/repository"
	"github.com/okian/breakfast/internal/domain/model"
	"github.com/okian/breakfast/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the recipe store. The default is an empty memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithAdvisor sets the cooking advisor.
func WithAdvisor(a Advisor) Option {
	return func(s *Service) {
		if a != nil {
			s.advisor = a
		}
	}
}

// WithNotifier sets where reminders are delivered.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithLocation sets the zone that decides which day is tomorrow.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDrawSeed fixes the draw's random seed. Zero seeds from the clock.
func WithDrawSeed(seed int64) Option {
	return func(s *Service) {
		s.drawSeed = seed
	}
}

// WithRecordProvisional controls whether unconfirmed picks are kept.
func WithRecordProvisional(enabled bool) Option {
	return func(s *Service) {
		s.recordProvisional = enabled
	}
}

// WithCatalog sets the recipes loaded into an empty store on Start.
func WithCatalog(drafts []model.RecipeDraft) Option {
	return func(s *Service) {
		s.catalog = drafts
	}
}

// WithReminder enables the daily reminder at hour:minute local time.
func WithReminder(enabled bool, hour, minute int) Option {
	return func(s *Service) {
		s.reminderEnabled = enabled
		s.reminderHour = hour
		s.reminderMinute = minute
	}
}

// WithQueueSize sets the reminder queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithWorkerCount sets the number of reminder workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithJobTimeout bounds a single reminder delivery.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.jobTimeout = d
		}
	}
}

// WithDedupeSize sets how many reminder dates are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
