package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/taguhoiya/mansion-watch-scraper-sub000/config"
	"github.com/taguhoiya/mansion-watch-scraper-sub000/storage"
)

// JobRunner runs one scrape job for one subscription.
type JobRunner interface {
	RunJob(ctx context.Context, pageURL, lineUserID string) error
}

// Scheduler periodically re-scrapes subscriptions whose aggregation window
// has come due.
type Scheduler struct {
	cfg    config.SchedulerConfig
	runner JobRunner
	store  *storage.PostgresStore
	cron   *cron.Cron
	ticker *time.Ticker
	stopCh chan struct{}
}

func New(cfg config.SchedulerConfig, runner JobRunner, store *storage.PostgresStore) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		runner: runner,
		store:  store,
		cron:   cron.New(),
		stopCh: make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Cron)
		_, err := s.cron.AddFunc(s.cfg.Cron, func() {
			s.runDue(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Interval)
		s.ticker = time.NewTicker(s.cfg.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.runDue(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("No schedule configured, daemon will only respond to API requests")
	}

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

// TriggerNow runs one due batch immediately.
func (s *Scheduler) TriggerNow(ctx context.Context) {
	s.runDue(ctx)
}

func (s *Scheduler) runDue(ctx context.Context) {
	batchSize := s.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 20
	}

	due, err := s.store.GetDueSubscriptions(ctx, time.Now().UTC(), batchSize)
	if err != nil {
		log.Printf("Scheduler: query due subscriptions: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}

	log.Printf("Scheduler: %d subscriptions due", len(due))

	var failed int
	for _, d := range due {
		if err := s.runner.RunJob(ctx, d.URL, d.LineUserID); err != nil {
			// The failed subscription stays due and will be retried on the
			// next tick.
			failed++
		}
	}

	if failed > 0 {
		log.Printf("Scheduler: batch done, %d of %d failed", failed, len(due))
	}
}
