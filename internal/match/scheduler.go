package match

import (
	"sync"
	"time"
)

// Scheduler runs one retry loop per searching connection.
//
// Every interval it invokes onTick (a matchmaking attempt). Once the search
// has been running longer than timeout it invokes onTimeout exactly once and
// keeps ticking; the searcher stays in the pool until matched or gone.
type Scheduler struct {
	interval time.Duration
	timeout  time.Duration

	mu      sync.Mutex
	cancels map[string]chan struct{}
	wg      sync.WaitGroup
}

func NewScheduler(interval, timeout time.Duration) *Scheduler {
	return &Scheduler{
		interval: interval,
		timeout:  timeout,
		cancels:  make(map[string]chan struct{}),
	}
}

// Start begins the retry loop for connID. A second Start for the same
// connection replaces the previous loop.
func (s *Scheduler) Start(connID string, onTick func(), onTimeout func()) {
	stop := make(chan struct{})

	s.mu.Lock()
	if prev, ok := s.cancels[connID]; ok {
		close(prev)
	}
	s.cancels[connID] = stop
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		deadline := time.Now().Add(s.timeout)
		timedOut := false

		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				onTick()
				if !timedOut && now.After(deadline) {
					timedOut = true
					onTimeout()
				}
			}
		}
	}()
}

// Stop cancels the retry loop for connID, reporting whether one was running.
func (s *Scheduler) Stop(connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	stop, ok := s.cancels[connID]
	if !ok {
		return false
	}
	close(stop)
	delete(s.cancels, connID)
	return true
}

// StopAll cancels every loop and waits for the goroutines to exit. Used on
// server shutdown.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	for connID, stop := range s.cancels {
		close(stop)
		delete(s.cancels, connID)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Active reports how many retry loops are currently running.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cancels)
}
