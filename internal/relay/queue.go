// Package relay orders inbound messages and carries them across a thread.
package relay

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Jochem-W/modmail/internal/report"
	"github.com/Jochem-W/modmail/internal/snowflake"
	"github.com/Jochem-W/modmail/internal/transport"
	"github.com/google/uuid"
)

// recentLimit bounds how many processed message ids are remembered to drop
// gateway redeliveries.
const recentLimit = 4096

type Handler func(ctx context.Context, job Job) error

type Job struct {
	ID      string
	Message transport.Message
	// Replay is set for messages fetched from history rather than received
	// live. Their handler skips what the thread cursor already covers.
	Replay bool
	at     time.Time
	seq    uint64
}

type Stats struct {
	Pending   int    `json:"pending"`
	Processed uint64 `json:"processed"`
	Failed    uint64 `json:"failed"`
	Started   bool   `json:"started"`
}

// Queue runs jobs one at a time, oldest message first. It holds jobs until
// Start is called.
type Queue struct {
	logger   *slog.Logger
	reporter *report.Reporter

	mu        sync.Mutex
	jobs      jobHeap
	queued    map[string]struct{}
	recent    *recentSet
	seq       uint64
	started   bool
	processed uint64
	failed    uint64

	startOnce sync.Once
	wake      chan struct{}
}

func NewQueue(logger *slog.Logger, reporter *report.Reporter) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	if reporter == nil {
		reporter = report.New(logger, nil, "")
	}
	return &Queue{
		logger:   logger,
		reporter: reporter,
		queued:   map[string]struct{}{},
		recent:   newRecentSet(recentLimit),
		wake:     make(chan struct{}, 1),
	}
}

// Enqueue schedules live messages. Messages already queued or already
// processed are dropped. It returns the number of jobs added.
func (q *Queue) Enqueue(msgs ...transport.Message) int {
	return q.push(false, msgs)
}

// Replay schedules messages fetched from history. Only messages still
// waiting in the queue are dropped: a message processed before, for example
// one that produced a creation prompt, must run again once its thread
// exists.
func (q *Queue) Replay(msgs ...transport.Message) int {
	return q.push(true, msgs)
}

func (q *Queue) push(replay bool, msgs []transport.Message) int {
	q.mu.Lock()
	added := 0
	for _, msg := range msgs {
		if msg.ID == "" {
			continue
		}
		if _, ok := q.queued[msg.ID]; ok {
			continue
		}
		if !replay && q.recent.has(msg.ID) {
			continue
		}
		q.seq++
		heap.Push(&q.jobs, &Job{
			ID:      uuid.NewString(),
			Message: msg,
			Replay:  replay,
			at:      messageTime(msg),
			seq:     q.seq,
		})
		q.queued[msg.ID] = struct{}{}
		added++
	}
	q.mu.Unlock()
	if added > 0 {
		q.signal()
	}
	return added
}

// Start releases the queue. Later calls do nothing.
func (q *Queue) Start() {
	q.startOnce.Do(func() {
		q.mu.Lock()
		q.started = true
		pending := q.jobs.Len()
		q.mu.Unlock()
		q.logger.Info("relay_queue_started", "pending", pending)
		q.signal()
	})
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Pending:   q.jobs.Len(),
		Processed: q.processed,
		Failed:    q.failed,
		Started:   q.started,
	}
}

// Run processes jobs until ctx is done.
func (q *Queue) Run(ctx context.Context, handle Handler) error {
	for {
		job, ok := q.next()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-q.wake:
			}
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		q.run(ctx, handle, job)
	}
}

func (q *Queue) next() (*Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.started || q.jobs.Len() == 0 {
		return nil, false
	}
	job := heap.Pop(&q.jobs).(*Job)
	delete(q.queued, job.Message.ID)
	q.recent.add(job.Message.ID)
	return job, true
}

func (q *Queue) run(ctx context.Context, handle Handler, job *Job) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
			}
		}()
		return handle(ctx, *job)
	}()

	q.mu.Lock()
	if err != nil {
		q.failed++
	} else {
		q.processed++
	}
	q.mu.Unlock()

	if err != nil {
		q.reporter.Report(ctx, "relay_job_error", err,
			"job_id", job.ID,
			"message_id", job.Message.ID,
			"channel_id", job.Message.ChannelID,
			"replay", job.Replay,
		)
		return
	}
	q.logger.Debug("relay_job_done", "job_id", job.ID, "message_id", job.Message.ID, "replay", job.Replay)
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func messageTime(msg transport.Message) time.Time {
	if !msg.CreatedAt.IsZero() {
		return msg.CreatedAt
	}
	if at, ok := snowflake.Time(msg.ID); ok {
		return at
	}
	return time.Time{}
}

type jobHeap []*Job

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if !h[i].at.Equal(h[j].at) {
		return h[i].at.Before(h[j].at)
	}
	return h[i].seq < h[j].seq
}

func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x any) { *h = append(*h, x.(*Job)) }

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return job
}

// recentSet is a fixed-size set that forgets the oldest ids first.
type recentSet struct {
	ids  map[string]struct{}
	ring []string
	next int
}

func newRecentSet(size int) *recentSet {
	return &recentSet{ids: make(map[string]struct{}, size), ring: make([]string, size)}
}

func (s *recentSet) has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *recentSet) add(id string) {
	if s.has(id) {
		return
	}
	if old := s.ring[s.next]; old != "" {
		delete(s.ids, old)
	}
	s.ring[s.next] = id
	s.ids[id] = struct{}{}
	s.next = (s.next + 1) % len(s.ring)
}
