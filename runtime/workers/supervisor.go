package workers

import (
	"chat-sync/contract"
	"chat-sync/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var _ contract.ISupervisor = (*Supervisor)(nil)

// maxBackoffFactor caps the restart delay at restartInterval * maxBackoffFactor.
const maxBackoffFactor = 16

// Supervisor keeps the background workers of the client alive: the event
// fanout, the channel sampler and the conversation refresh. A worker that
// panics or fails is restarted with a doubling delay; a worker that returns nil
// is done for good.
type Supervisor struct {
	mu              sync.Mutex
	cancel          context.CancelFunc
	stopped         bool
	wg              sync.WaitGroup
	log             *slog.Logger
	workers         []contract.Worker
	restarts        map[string]int
	restartInterval time.Duration
}

func NewSupervisor(log *slog.Logger, restartInterval time.Duration) *Supervisor {
	return &Supervisor{log: log, restartInterval: restartInterval, restarts: make(map[string]int)}
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Run starts every added worker and blocks until all of them returned.
// Canceling ctx or calling Stop ends the supervision.
func (s *Supervisor) Run(ctx context.Context) {
	supervised, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.cancel = cancel
	s.mu.Unlock()

	for _, worker := range s.workers {
		s.Start(supervised, worker)
	}
	s.wg.Wait()
}

// Start supervises worker on its own goroutine.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.supervise(ctx, worker, contract.GetWorkerName(worker))
	}()
}

func (s *Supervisor) supervise(ctx context.Context, worker contract.Worker, name string) {
	maxDelay := s.restartInterval * maxBackoffFactor
	delay := s.restartInterval
	for ctx.Err() == nil {
		startedAt := time.Now()
		err := runGuarded(ctx, worker)
		switch {
		case err == nil:
			s.log.Info(fmt.Sprintf("Worker finished : %s", name))
			return
		case ctx.Err() != nil:
			s.log.Info("Worker stopped (context canceled)", "name", name)
			return
		}

		// A worker that stayed up long enough starts over from the base delay.
		if time.Since(startedAt) > maxDelay {
			delay = s.restartInterval
		}
		s.mu.Lock()
		s.restarts[name]++
		s.mu.Unlock()
		s.log.Warn("Worker crashed, restarting", "name", name, "error", err, "in", delay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay = min(delay*2, maxDelay)
	}
	s.log.Info(fmt.Sprintf("Stopping : %s", name))
}

func runGuarded(ctx context.Context, worker contract.Worker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errors.ErrWorkerPanic, r)
		}
	}()
	return worker.Run(ctx)
}

// Restarts reports how many times the named worker was restarted.
func (s *Supervisor) Restarts(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts[name]
}

// Stop cancels the supervised workers. A Stop before Run makes Run return at once.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
}
