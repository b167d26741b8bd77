package reminder

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultPollInterval is how often a watcher re-checks its reminder.
	DefaultPollInterval = time.Second
	deliveryTimeout     = 30 * time.Second
)

// Notifier delivers a fired reminder to its owner. Implementations are best effort.
type Notifier interface {
	Notify(ctx context.Context, user, text string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, user, text string) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, user, text string) error {
	return f(ctx, user, text)
}

// Clock returns the current time in the service's fixed zone.
type Clock func() time.Time

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source used for scheduling and polling.
func WithClock(clock Clock) Option {
	return func(s *Service) { s.now = clock }
}

// WithPollInterval sets the delay between watcher polls.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.interval = d
		}
	}
}

// Service owns the reminder store and one watcher goroutine per pending reminder.
type Service struct {
	store    *Store
	notifier Notifier
	now      Clock
	interval time.Duration
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a Service whose clock reads the wall time in loc.
func NewService(store *Store, notifier Notifier, loc *time.Location, logger zerolog.Logger, opts ...Option) *Service {
	if loc == nil {
		loc = time.Local
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		store:    store,
		notifier: notifier,
		now:      func() time.Time { return time.Now().In(loc) },
		interval: DefaultPollInterval,
		logger:   logger.With().Str("component", "reminders").Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store exposes the underlying store for read access.
func (s *Service) Store() *Store {
	return s.store
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time {
	return s.now()
}

// Set stores a reminder for user and starts its watcher.
func (s *Service) Set(user, text, timeText string) (Reminder, error) {
	rem, err := s.store.Create(user, text, timeText, s.now())
	if err != nil {
		return Reminder{}, err
	}

	s.wg.Add(1)
	go s.watch(rem)

	s.logger.Info().
		Str("id", rem.ID).
		Str("user", rem.User).
		Time("target", rem.Target).
		Msg("reminder scheduled")
	return rem, nil
}

// Cancel removes the reminder with the given id.
func (s *Service) Cancel(id string) bool {
	ok := s.store.Cancel(id)
	if ok {
		s.logger.Info().Str("id", id).Msg("reminder cancelled")
	}
	return ok
}

// CancelMatching cancels the first reminder whose text contains fragment.
// The search is not restricted to any user.
func (s *Service) CancelMatching(fragment string) (Reminder, bool) {
	rem, ok := s.store.FindByText("", fragment)
	if !ok {
		return Reminder{}, false
	}
	if !s.Cancel(rem.ID) {
		return Reminder{}, false
	}
	return rem, true
}

// Pending lists the reminders still waiting for user.
func (s *Service) Pending(user string) []Reminder {
	return s.store.List(user)
}

// Close stops every watcher and waits for them to exit. Pending reminders are not delivered.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Service) watch(rem Reminder) {
	defer s.wg.Done()
	logger := s.logger.With().Str("id", rem.ID).Logger()
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("reminder watcher failed")
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		due, state := s.store.poll(rem.ID, rem.seq, s.now())
		switch state {
		case pollStopped:
			logger.Debug().Msg("reminder watcher stopped")
			return
		case pollFiring:
			s.fire(logger, due)
			return
		}

		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Service) fire(logger zerolog.Logger, rem Reminder) {
	if s.notifier == nil {
		logger.Warn().Msg("no notifier configured, reminder dropped")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	if err := s.notifier.Notify(ctx, rem.User, rem.Text); err != nil {
		logger.Warn().Err(err).Str("user", rem.User).Msg("reminder delivery failed")
		return
	}
	logger.Info().Str("user", rem.User).Msg("reminder delivered")
}
