package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/italyre/casafeed/pkg/domain"
)

// Refresher runs one batch aggregation pass
type Refresher interface {
	Refresh(ctx context.Context) (*domain.RefreshReport, error)
}

// Scheduler triggers periodic batch aggregation passes
type Scheduler struct {
	refresher Refresher
	interval  time.Duration
	wg        sync.WaitGroup
	cancel    context.CancelFunc
}

// New creates a scheduler running the batch pass every interval
func New(refresher Refresher, interval time.Duration) *Scheduler {
	if interval == 0 {
		interval = 30 * time.Minute
	}
	return &Scheduler{refresher: refresher, interval: interval}
}

// Start begins the periodic worker, the first pass runs immediately
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.worker(ctx)

	lgr.Printf("[INFO] scheduler started with interval %v", s.interval)
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	lgr.Printf("[INFO] stopping scheduler...")
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	lgr.Printf("[INFO] scheduler stopped")
}

func (s *Scheduler) worker(ctx context.Context) {
	defer s.wg.Done()

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	report, err := s.refresher.Refresh(ctx)
	if err != nil {
		lgr.Printf("[ERROR] scheduled aggregation failed: %v", err)
		return
	}

	newItems := 0
	for _, res := range report.Results {
		newItems += res.ProcessedItems
	}
	lgr.Printf("[INFO] scheduled aggregation done: %d feeds, %d new items", report.ProcessedFeeds, newItems)
}
