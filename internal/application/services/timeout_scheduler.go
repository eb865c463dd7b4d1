package services

import (
	"container/heap"
	"context"
	"log"
	"sync"
	"time"

	"github.com/formsage/backend/internal/domain/ports"
)

// TimeoutHandler receives fired step deadlines. The approval pipeline
// implements it; the scheduler never mutates submission state itself.
type TimeoutHandler interface {
	OnTimeout(ctx context.Context, submissionID string, stepIndex int) error
}

// DeadlineScheduler tracks one deadline per active step-in-progress and
// fires the handler at or after the deadline unless disarmed first.
//
// Deadlines live in a min-heap polled by a background loop. Firing is
// "at least once, ideally once": the scheduler may fire slightly late but
// never before the deadline. Disarming is idempotent and best-effort; the
// pipeline's own state recheck makes a spurious fire harmless.
type DeadlineScheduler struct {
	handler  TimeoutHandler
	interval time.Duration

	mu      sync.Mutex
	heap    deadlineHeap
	entries map[deadlineKey]*deadlineEntry

	stopChan chan struct{}
	wg       sync.WaitGroup
	ctrl     sync.Mutex
	running  bool
	stopped  bool
}

var _ ports.TimeoutScheduler = (*DeadlineScheduler)(nil)

type deadlineKey struct {
	submissionID string
	stepIndex    int
}

type deadlineEntry struct {
	key      deadlineKey
	deadline time.Time
	canceled bool
}

// NewDeadlineScheduler creates a scheduler polling at the given interval.
// Production uses seconds; tests use millisecond intervals with short
// deadlines.
func NewDeadlineScheduler(interval time.Duration) *DeadlineScheduler {
	return &DeadlineScheduler{
		interval: interval,
		entries:  make(map[deadlineKey]*deadlineEntry),
		stopChan: make(chan struct{}),
	}
}

// SetHandler wires the timeout consumer. Must be called before Start.
func (s *DeadlineScheduler) SetHandler(h TimeoutHandler) {
	s.handler = h
}

// Arm registers a deadline for (submissionID, stepIndex), replacing any
// prior deadline for the same pair
func (s *DeadlineScheduler) Arm(submissionID string, stepIndex int, deadline time.Time) {
	key := deadlineKey{submissionID: submissionID, stepIndex: stepIndex}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.entries[key]; ok {
		// Lazy removal: the stale heap entry is skipped when popped
		prev.canceled = true
	}

	entry := &deadlineEntry{key: key, deadline: deadline}
	s.entries[key] = entry
	heap.Push(&s.heap, entry)
}

// Disarm cancels a pending deadline. Disarming a non-existent or
// already-fired deadline is a no-op.
func (s *DeadlineScheduler) Disarm(submissionID string, stepIndex int) {
	key := deadlineKey{submissionID: submissionID, stepIndex: stepIndex}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[key]; ok {
		entry.canceled = true
		delete(s.entries, key)
	}
}

// Start begins the background poll loop
func (s *DeadlineScheduler) Start() {
	s.ctrl.Lock()
	if s.running {
		s.ctrl.Unlock()
		return
	}
	s.running = true
	s.ctrl.Unlock()

	log.Printf("⏰ Deadline scheduler starting (poll interval %v)", s.interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Poll()
			case <-s.stopChan:
				log.Println("⏰ Deadline scheduler stopping...")
				return
			}
		}
	}()
}

// Stop gracefully stops the scheduler and waits for in-flight firings
func (s *DeadlineScheduler) Stop() {
	s.ctrl.Lock()
	if !s.running || s.stopped {
		s.ctrl.Unlock()
		return
	}
	s.running = false
	s.stopped = true
	s.ctrl.Unlock()

	close(s.stopChan)
	s.wg.Wait()
	log.Println("⏰ Deadline scheduler stopped")
}

// Poll fires every due deadline. Exposed so tests can drive the scheduler
// without waiting on the ticker, and so a durable deadline store could be
// swept by an external loop.
func (s *DeadlineScheduler) Poll() {
	now := time.Now()

	for {
		entry := s.popDue(now)
		if entry == nil {
			return
		}

		s.wg.Add(1)
		go func(e *deadlineEntry) {
			defer s.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("🔥 Panic handling timeout for submission %s step %d: %v",
						e.key.submissionID, e.key.stepIndex, r)
				}
			}()

			if err := s.handler.OnTimeout(context.Background(), e.key.submissionID, e.key.stepIndex); err != nil {
				log.Printf("⚠️ Timeout handler for submission %s step %d: %v",
					e.key.submissionID, e.key.stepIndex, err)
			}
		}(entry)
	}
}

// popDue removes and returns the next due, non-canceled entry, or nil
func (s *DeadlineScheduler) popDue(now time.Time) *deadlineEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.heap.Len() > 0 {
		next := s.heap[0]
		if next.canceled {
			heap.Pop(&s.heap)
			continue
		}
		if next.deadline.After(now) {
			return nil
		}
		heap.Pop(&s.heap)
		delete(s.entries, next.key)
		return next
	}
	return nil
}

// Armed reports whether a deadline is pending for the pair (test helper)
func (s *DeadlineScheduler) Armed(submissionID string, stepIndex int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[deadlineKey{submissionID: submissionID, stepIndex: stepIndex}]
	return ok
}

// deadlineHeap is a min-heap ordered by deadline
type deadlineHeap []*deadlineEntry

func (h deadlineHeap) Len() int            { return len(h) }
func (h deadlineHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h deadlineHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *deadlineHeap) Push(x interface{}) { *h = append(*h, x.(*deadlineEntry)) }
func (h *deadlineHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
