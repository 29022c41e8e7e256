// Package resolve runs the expensive lazy operations of the browser off the
// owner goroutine: requiring namespaces, resolving documentation facets and
// toggling traces.
//
// Each operation occupies a slot. Issuing a task for a busy slot cancels the
// previous one; cancellation is cooperative, so an abandoned task may still
// finish, but Settle reports it as no longer current and the owner drops it.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/leapstack-labs/nsbrowse/pkg/core"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/semaphore"
)

// Defaults for Config fields left zero.
const (
	DefaultWorkers      = 4
	DefaultTimeout      = 30 * time.Second
	DefaultRetryBackoff = 100 * time.Millisecond
	DefaultQueueSize    = 64
)

// ErrNotTraceable is returned by Trace when the host cannot trace.
var ErrNotTraceable = errors.New("host does not support tracing")

// Config holds service configuration.
type Config struct {
	// Host performs the actual work
	Host core.Host
	// Workers bounds concurrently running host calls
	Workers int
	// Timeout bounds one task including retries; expiry fails the task
	Timeout time.Duration
	// Retries is how often a HostUnavailable failure is retried
	Retries uint64
	// RetryBackoff is the base of the exponential backoff between retries
	RetryBackoff time.Duration
	// QueueSize is the completion channel buffer
	QueueSize int
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Service issues and tracks resolution tasks. Issue, Settle and Cancel must
// be called from the owner goroutine.
type Service struct {
	host    core.Host
	sem     *semaphore.Weighted
	timeout time.Duration
	retries uint64
	backoff time.Duration
	logger  *slog.Logger

	out  chan Completion
	done chan struct{}
	wg   sync.WaitGroup

	nextID uint64
	slots  map[Slot]*Task

	closeOnce sync.Once
}

// New creates a service.
func New(cfg Config) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Service{
		host:    cfg.Host,
		sem:     semaphore.NewWeighted(int64(cfg.Workers)),
		timeout: cfg.Timeout,
		retries: cfg.Retries,
		backoff: cfg.RetryBackoff,
		logger:  logger,
		out:     make(chan Completion, cfg.QueueSize),
		done:    make(chan struct{}),
		slots:   make(map[Slot]*Task),
	}
}

// Completions delivers finished tasks in arrival order.
func (s *Service) Completions() <-chan Completion {
	return s.out
}

// Require loads a namespace in the host.
func (s *Service) Require(namespace string, generation uint64) *Task {
	req := Completion{Kind: TaskRequire, Slot: RequireSlot(namespace), Target: namespace, Generation: generation}
	return s.issue(req, func(ctx context.Context, c *Completion) error {
		return s.host.RequireNamespace(ctx, namespace)
	})
}

// ResolveDoc fetches one facet of a member into the doc slot.
func (s *Service) ResolveDoc(member core.Member, facet core.DocFacet, generation uint64) *Task {
	req := Completion{
		Kind:       TaskDoc,
		Slot:       DocSlot,
		Target:     member.QualifiedName(),
		Generation: generation,
		Member:     member,
		Facet:      facet,
	}
	return s.issue(req, func(ctx context.Context, c *Completion) error {
		text, err := s.host.FetchDoc(ctx, member, facet)
		c.Text = text
		return err
	})
}

// Trace toggles tracing of a member.
func (s *Service) Trace(member core.Member, generation uint64) (*Task, error) {
	tracer, ok := s.host.(core.Tracer)
	if !ok {
		return nil, ErrNotTraceable
	}
	qn := member.QualifiedName()
	req := Completion{Kind: TaskTrace, Slot: TraceSlot(qn), Target: qn, Generation: generation, Member: member}
	return s.issue(req, func(ctx context.Context, c *Completion) error {
		traced, err := tracer.ToggleTrace(ctx, member)
		c.Traced = traced
		return err
	}), nil
}

// Current returns the in-flight task of a slot.
func (s *Service) Current(slot Slot) (*Task, bool) {
	t, ok := s.slots[slot]
	return t, ok
}

// Pending reports whether a slot has an in-flight task.
func (s *Service) Pending(slot Slot) bool {
	_, ok := s.slots[slot]
	return ok
}

// InFlight returns the number of slots with a task in flight.
func (s *Service) InFlight() int {
	return len(s.slots)
}

// Cancel cancels the in-flight task of a slot, if any.
func (s *Service) Cancel(slot Slot) {
	if t, ok := s.slots[slot]; ok {
		t.cancel()
		t.Status = StatusCancelled
		delete(s.slots, slot)
		s.logger.Debug("task cancelled", "task", t.ID, "slot", slot)
	}
}

// Settle records the outcome of a completion and reports whether it is still
// the current task of its slot. Superseded completions return false and must
// be discarded by the caller.
func (s *Service) Settle(c Completion) bool {
	t, ok := s.slots[c.Slot]
	if !ok || t.ID != c.TaskID {
		s.logger.Debug("dropping superseded completion", "task", c.TaskID, "slot", c.Slot)
		return false
	}

	delete(s.slots, c.Slot)
	t.cancel()
	switch c.ErrorKind() {
	case core.ErrorNone:
		t.Status = StatusDone
	case core.ErrorCancelled:
		t.Status = StatusCancelled
	default:
		t.Status = StatusFailed
	}
	return true
}

// Close cancels every in-flight task and waits for the workers to exit.
// Completions produced afterwards are dropped.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		for slot := range s.slots {
			s.Cancel(slot)
		}
		close(s.done)
		s.wg.Wait()
	})
}

type operation func(ctx context.Context, c *Completion) error

func (s *Service) issue(req Completion, op operation) *Task {
	s.Cancel(req.Slot)

	s.nextID++
	req.TaskID = s.nextID

	ctx, cancel := context.WithCancel(context.Background())
	task := &Task{
		ID:         req.TaskID,
		Kind:       req.Kind,
		Slot:       req.Slot,
		Target:     req.Target,
		Generation: req.Generation,
		Status:     StatusPending,
		cancel:     cancel,
	}
	s.slots[req.Slot] = task

	s.logger.Debug("task issued",
		"task", task.ID,
		"kind", task.Kind,
		"slot", task.Slot,
		"generation", task.Generation)

	s.wg.Add(1)
	go s.run(ctx, req, op)
	return task
}

func (s *Service) run(ctx context.Context, c Completion, op operation) {
	defer s.wg.Done()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		c.Err = &core.ResolveError{Kind: core.ErrorCancelled, Target: c.Target, Err: core.ErrCancelled}
		s.deliver(c)
		return
	}
	defer s.sem.Release(1)

	start := time.Now()
	err := s.attempt(ctx, &c, op)
	if err != nil {
		kind := core.Classify(err)
		if errors.Is(ctx.Err(), context.Canceled) {
			kind = core.ErrorCancelled
			err = fmt.Errorf("%w: %w", core.ErrCancelled, err)
		}
		c.Err = &core.ResolveError{Kind: kind, Target: c.Target, Err: err}
	}

	s.logger.Debug("task finished",
		"task", c.TaskID,
		"kind", c.Kind,
		"target", c.Target,
		"duration", time.Since(start),
		"error", err)

	s.deliver(c)
}

// attempt runs op under the task timeout, retrying HostUnavailable failures.
func (s *Service) attempt(ctx context.Context, c *Completion, op operation) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	backoff := retry.WithMaxRetries(s.retries, retry.NewExponential(s.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := op(ctx, c)
		if err != nil && ctx.Err() == nil && core.Classify(err) == core.ErrorHostUnavailable {
			s.logger.Debug("retrying task", "task", c.TaskID, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return err
}

func (s *Service) deliver(c Completion) {
	select {
	case s.out <- c:
	case <-s.done:
	}
}
