package metrics

import (
	"log"
	"sync"
	"time"

	"github.com/web3cache/web3cache/internal/scanloop"
)

// BacklogCounter is the store dependency of the sampler.
type BacklogCounter interface {
	CountWorkItems() (int64, error)
}

// Sampler periodically samples the work-item backlog into the collector.
type Sampler struct {
	collector *Collector
	counter   BacklogCounter
	interval  time.Duration
	jitter    time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewSampler creates a backlog sampler with the default cadence.
func NewSampler(collector *Collector, counter BacklogCounter) *Sampler {
	return &Sampler{
		collector: collector,
		counter:   counter,
		interval:  scanloop.DefaultMinInterval,
		jitter:    scanloop.DefaultJitterRange,
		stopCh:    make(chan struct{}),
	}
}

// Start launches the sampling goroutine.
func (s *Sampler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		scanloop.Run(s.stopCh, s.interval, s.jitter, s.sample)
	}()
}

// Stop terminates the sampling goroutine and waits for it.
func (s *Sampler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Sampler) sample() {
	n, err := s.counter.CountWorkItems()
	if err != nil {
		log.Printf("[metrics] backlog sample failed: %v", err)
		return
	}
	s.collector.SetBacklog(n)
}
