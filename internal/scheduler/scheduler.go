/*

This file contains the scheduler: four independent periodic drivers, one per
frequency class, plus the notifier driver on the critical cadence. Each
driver fires immediately at start and then on its interval. A class driver
runs its ticks one at a time, so an overrunning tick delays that class's
next tick; ticks of different classes run concurrently, and the
dispatcher's shared worker pool bounds concurrency across all of them.

*/

package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/avantgarde-labs/riskmon/internal/alerting"
	"github.com/avantgarde-labs/riskmon/internal/dispatcher"
	"github.com/avantgarde-labs/riskmon/internal/logger"
	"github.com/avantgarde-labs/riskmon/internal/types"
)

var schedLogger = logger.GetForComponent("scheduler")

// Intervals configures the per-class tick cadence.
type Intervals struct {
	Critical time.Duration
	High     time.Duration
	Medium   time.Duration
	Daily    time.Duration
}

// Scheduler owns the periodic drivers.
type Scheduler struct {
	dispatcher *dispatcher.Dispatcher
	notifier   *alerting.Notifier
	intervals  Intervals
}

// New builds a scheduler over the dispatcher and notifier.
func New(d *dispatcher.Dispatcher, n *alerting.Notifier, intervals Intervals) *Scheduler {
	return &Scheduler{dispatcher: d, notifier: n, intervals: intervals}
}

// Run starts every driver and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup

	drivers := []struct {
		class    types.FrequencyClass
		interval time.Duration
	}{
		{types.ClassCritical, s.intervals.Critical},
		{types.ClassHigh, s.intervals.High},
		{types.ClassMedium, s.intervals.Medium},
		{types.ClassDaily, s.intervals.Daily},
	}

	for _, driver := range drivers {
		wg.Add(1)
		go func(class types.FrequencyClass, interval time.Duration) {
			defer wg.Done()
			s.runClassDriver(ctx, class, interval)
		}(driver.class, driver.interval)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runNotifierDriver(ctx, s.intervals.Critical)
	}()

	schedLogger.Info().
		Str("critical", s.intervals.Critical.String()).
		Str("high", s.intervals.High.String()).
		Str("medium", s.intervals.Medium.String()).
		Str("daily", s.intervals.Daily.String()).
		Msg("Scheduler started")

	<-ctx.Done()
	schedLogger.Info().Msg("Scheduler stopping...")
	wg.Wait()
}

func (s *Scheduler) runClassDriver(ctx context.Context, class types.FrequencyClass, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// First tick right away so a fresh process has data before the first
	// interval elapses.
	s.dispatcher.RunTick(ctx, class)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatcher.RunTick(ctx, class)
		}
	}
}

func (s *Scheduler) runNotifierDriver(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.notifier.Drain(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.notifier.Drain(ctx)
		}
	}
}
