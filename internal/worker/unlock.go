// Package worker runs background jobs that live next to the API server.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"love-sync-backend/internal/metrics"
	"love-sync-backend/internal/models"
	"love-sync-backend/internal/notify"
	"love-sync-backend/internal/repository"
	"love-sync-backend/internal/unlock"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	DefaultCheckInterval = time.Minute
	DefaultPushWorkers   = 4
)

// AnnouncerConfig tunes the unlock announcer
type AnnouncerConfig struct {
	Interval       time.Duration
	AnnounceWindow time.Duration
	Workers        int
}

// Announcer watches the calendar and pushes a notification to every registered device when a day opens
type Announcer struct {
	calendar *unlock.Calendar
	detector *unlock.Detector
	users    repository.UserStore
	notifier notify.Notifier
	metrics  metrics.Recorder
	clock    clockwork.Clock
	interval time.Duration
	workers  int
}

// NewAnnouncer creates an announcer; zero config values fall back to defaults
func NewAnnouncer(
	calendar *unlock.Calendar,
	users repository.UserStore,
	notifier notify.Notifier,
	recorder metrics.Recorder,
	clock clockwork.Clock,
	cfg AnnouncerConfig,
) *Announcer {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultCheckInterval
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultPushWorkers
	}
	return &Announcer{
		calendar: calendar,
		detector: unlock.NewDetector(cfg.AnnounceWindow),
		users:    users,
		notifier: notifier,
		metrics:  recorder,
		clock:    clock,
		interval: cfg.Interval,
		workers:  cfg.Workers,
	}
}

// Run checks the calendar once immediately and then on every tick until ctx is cancelled
func (a *Announcer) Run(ctx context.Context) error {
	log.Info().Dur("interval", a.interval).Msg("unlock announcer started")

	a.Check(ctx)

	ticker := a.clock.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("unlock announcer shutting down")
			return nil
		case <-ticker.Chan():
			a.Check(ctx)
		}
	}
}

// Check evaluates every day as a guest would see it and announces the ones that just opened.
// It returns the announced day numbers.
func (a *Announcer) Check(ctx context.Context) []int {
	now := a.clock.Now()
	var opened []int

	for _, day := range a.calendar.Days() {
		dec := unlock.Evaluate(models.RoleGuest, day, now)
		if !a.detector.Observe(day, dec, now) {
			continue
		}
		opened = append(opened, day.Day)

		if err := a.announce(ctx, day); err != nil {
			log.Error().Err(err).Int("day", day.Day).Msg("failed to announce unlocked day")
		}
	}
	return opened
}

func (a *Announcer) announce(ctx context.Context, day models.ContentDay) error {
	tokens, err := a.users.ListPushTokens(ctx)
	if err != nil {
		return fmt.Errorf("list push tokens: %w", err)
	}

	msg := notify.Message{
		Title: fmt.Sprintf("Day %d unlocked 💝", day.Day),
		Body:  fmt.Sprintf("%s is here. Open the app to play together.", day.Title),
		Data:  map[string]string{"day": strconv.Itoa(day.Day)},
	}

	workCh := make(chan string)
	var wg sync.WaitGroup
	var mu sync.Mutex
	sent := 0

	for i := 0; i < a.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for token := range workCh {
				err := a.notifier.Notify(ctx, token, msg)
				a.metrics.PushSent("day_unlocked", err == nil)
				if err != nil {
					log.Warn().Err(err).Int("day", day.Day).Msg("unlock push failed")
					continue
				}
				mu.Lock()
				sent++
				mu.Unlock()
			}
		}()
	}

feed:
	for _, token := range tokens {
		select {
		case workCh <- token:
		case <-ctx.Done():
			break feed
		}
	}
	close(workCh)
	wg.Wait()

	log.Info().
		Int("day", day.Day).
		Str("title", day.Title).
		Int("devices", len(tokens)).
		Int("sent", sent).
		Msg("day unlocked")
	return nil
}
