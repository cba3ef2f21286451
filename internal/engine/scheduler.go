package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RetrainScheduler periodically evaluates the engine's retrain policy
// in the background. It provides lifecycle management (Start/Stop) with
// graceful shutdown; individual evaluation failures are logged and do
// not stop the loop.
//
// Thread safety: all public methods are safe for concurrent use.
type RetrainScheduler struct {
	engine   *Engine
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// NewRetrainScheduler creates a scheduler. It does not start
// automatically; call Start.
func NewRetrainScheduler(engine *Engine, interval time.Duration, logger *zap.Logger) (*RetrainScheduler, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %v", interval)
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &RetrainScheduler{
		engine:   engine,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start begins the background loop. Calling Start on a running
// scheduler returns an error without starting a second goroutine.
func (s *RetrainScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	s.stopCh = make(chan struct{})
	s.running = true

	s.logger.Info("retrain scheduler started", zap.Duration("interval", s.interval))
	go s.run()
	return nil
}

// Stop gracefully stops the scheduler. Stopping a stopped scheduler is
// a no-op.
func (s *RetrainScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
	s.logger.Info("retrain scheduler stopped")
}

// run is the scheduler loop. Panics are recovered so one bad evaluation
// cannot take the loop down.
func (s *RetrainScheduler) run() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("retrain scheduler panicked",
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evaluate()
		case <-s.stopCh:
			return
		}
	}
}

// evaluate runs one policy check with a bounded context.
func (s *RetrainScheduler) evaluate() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	retrained, reason, err := s.engine.RetrainIfNeeded(ctx)
	if err != nil {
		s.logger.Error("scheduled retrain evaluation failed", zap.Error(err))
		return
	}
	if retrained {
		s.logger.Info("scheduled retrain complete", zap.String("reason", reason))
	} else {
		s.logger.Debug("scheduled retrain skipped", zap.String("reason", reason))
	}
}
