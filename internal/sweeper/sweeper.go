// Package sweeper runs the scheduled trigger surface: a periodic in-process
// sweep that processes one batch of pending notification tasks.
package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/storehook/webhook-svc/internal/dispatcher"
	"github.com/storehook/webhook-svc/internal/models"
)

type Sweeper struct {
	disp     *dispatcher.Dispatcher
	interval time.Duration
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a sweeper that runs one batch every interval
func New(disp *dispatcher.Dispatcher, interval time.Duration, logger *zap.Logger) *Sweeper {
	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		disp:     disp,
		interval: interval,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop
func (s *Sweeper) Start() {
	go s.run()
	s.logger.Info("Sweeper started",
		zap.Duration("interval", s.interval),
	)
}

// Stop cancels the loop and waits for an in-progress sweep to settle
func (s *Sweeper) Stop() {
	s.cancel()
	<-s.done
	s.logger.Info("Sweeper stopped")
}

func (s *Sweeper) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	results, err := s.disp.ProcessBatch(s.ctx)
	if err != nil {
		s.logger.Error("Sweep failed to fetch pending tasks",
			zap.Error(err),
		)
		return
	}

	if len(results) == 0 {
		return
	}

	completed := 0
	for _, result := range results {
		if result.Status == models.StatusCompleted {
			completed++
		}
	}

	s.logger.Info("Sweep processed batch",
		zap.Int("task_count", len(results)),
		zap.Int("completed", completed),
	)
}
