package gossip

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

var log = logrus.WithField("prefix", "gossip")

// MaxWorkQueueLen bounds the manager's incoming event channel; a
// Submit that would exceed it fails with ErrQueueOverflow instead of
// blocking the caller (spec §4.10).
const MaxWorkQueueLen = 65535

// Default work-type queue capacities (spec §4.10).
const (
	AggregatedQueueCapacity   = 1024
	UnaggregatedQueueCapacity = 16384
)

type event interface{ isEvent() }

type workEvent struct{ job Job }

func (workEvent) isEvent() {}

type idleEvent struct{}

func (idleEvent) isEvent() {}

// ReportFunc receives the outcome of one completed Job.
type ReportFunc func(PropagationVerdict, *PeerMisbehaved)

// Scheduler is the single manager goroutine plus bounded worker pool
// described in spec §4.10: it consumes Work/WorkerIdle events, spawns
// workers up to maxWorkers, and otherwise enqueues onto one of two
// LIFO work-type queues. All queue mutation happens on the manager
// goroutine, so spec §5's "manager is single-threaded over its event
// channel, queue mutations need no lock" holds without any mutex here.
type Scheduler struct {
	events chan event

	sem        *semaphore.Weighted
	maxWorkers int64

	aggregated   *lifoQueue
	unaggregated *lifoQueue

	report ReportFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
	done      chan struct{}
}

// NewScheduler starts the manager goroutine and returns a ready
// Scheduler. maxWorkers is typically the CPU count (spec §4.10).
func NewScheduler(maxWorkers int64, report ReportFunc) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		events:       make(chan event, MaxWorkQueueLen),
		sem:          semaphore.NewWeighted(maxWorkers),
		maxWorkers:   maxWorkers,
		aggregated:   newLIFOQueue(AggregatedQueueCapacity),
		unaggregated: newLIFOQueue(UnaggregatedQueueCapacity),
		report:       report,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	go s.run()
	return s
}

// Submit enqueues job with the manager. It never blocks: if the event
// channel is already at MaxWorkQueueLen, it fails fast with
// ErrQueueOverflow rather than applying backpressure to the gossip
// layer.
func (s *Scheduler) Submit(job Job) error {
	select {
	case <-s.done:
		return ErrSchedulerClosed
	default:
	}

	select {
	case s.events <- workEvent{job: job}:
		return nil
	default:
		log.WithField("kind", job.Kind).Warn("Work queue overflow, dropping message")
		return ErrQueueOverflow
	}
}

// Close stops accepting new events and waits for in-flight workers to
// finish.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
	s.cancel()
}

func (s *Scheduler) run() {
	for {
		select {
		case ev := <-s.events:
			s.handle(ev)
		case <-s.done:
			return
		}
	}
}

func (s *Scheduler) handle(ev event) {
	switch e := ev.(type) {
	case workEvent:
		if s.sem.TryAcquire(1) {
			s.spawn(e.job)
			return
		}
		s.enqueue(e.job)
	case idleEvent:
		s.sem.Release(1)
		if job, ok := s.popNext(); ok {
			if !s.sem.TryAcquire(1) {
				// A slot was just released on this same goroutine; this
				// would mean a concurrent acquirer snuck in, which
				// can't happen since only the manager calls Acquire.
				log.Error("Worker slot unavailable immediately after release")
				s.enqueue(job)
				return
			}
			s.spawn(job)
		}
	}
}

func (s *Scheduler) enqueue(job Job) {
	switch job.Kind {
	case Aggregated:
		s.aggregated.push(job)
	default:
		s.unaggregated.push(job)
	}
}

// popNext drains the aggregated queue before the unaggregated queue,
// per spec §4.10's WorkerIdle policy.
func (s *Scheduler) popNext() (Job, bool) {
	if job, ok := s.aggregated.pop(); ok {
		return job, true
	}
	return s.unaggregated.pop()
}

func (s *Scheduler) spawn(job Job) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		verdict, misbehaved, err := job.Run(s.ctx)
		if err != nil {
			log.WithError(err).WithField("messageId", job.MessageID).Error("Work item failed")
		}
		if s.report != nil {
			s.report(verdict, misbehaved)
		}
		s.events <- idleEvent{}
	}()
}

// TryAcquireLock implements spec §5's bounded try_acquire(timeout):
// callers use this for the shared locks (committee cache, canonical
// head, etc.) instead of an unbounded Lock(), surfacing ErrLockTimeout
// rather than risking a deadlocked worker.
func TryAcquireLock(ctx context.Context, mu *semaphore.Weighted, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := mu.Acquire(ctx, 1); err != nil {
		return ErrLockTimeout
	}
	return nil
}
