package scheduler

import (
	"container/heap"
	"context"
	"io"
	"log"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/fridgecat/fridgecat-go/internal/errors"
	"github.com/fridgecat/fridgecat-go/internal/logging"
)

// Package-level logger specific to scheduler service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar) // Dynamic level control
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "scheduler.log")
	serviceLevelVar.Set(slog.LevelInfo)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "scheduler", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize scheduler file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "scheduler")
		closeLogger = func() error { return nil }
	}
}

// HandlerFunc processes a dequeued task and may return follow-up tasks.
// Returned tasks inherit the parent's depth plus one.
type HandlerFunc func(ctx context.Context, task *Task) ([]Task, error)

// Config controls queue politeness and fan-out limits
type Config struct {
	MaxConcurrentPerDomain int
	DownloadDelay          time.Duration // politeness floor per domain
	MaxDelay               time.Duration // adaptive delay ceiling
	AutoThrottle           bool
	DepthLimit             int
}

// Stats is a point-in-time snapshot of queue counters
type Stats struct {
	Enqueued       uint64
	Deduplicated   uint64
	Executed       uint64
	Succeeded      uint64
	DroppedNetwork uint64
	DroppedHTTP    uint64
	DroppedDepth   uint64
	DroppedPanic   uint64
	DroppedOther   uint64
}

// domainState tracks per-domain politeness and in-flight accounting.
// deferred holds tasks popped while the domain was at its concurrency
// cap; they rejoin the heap when a slot frees up.
type domainState struct {
	limiter  *rate.Limiter
	delay    time.Duration
	inFlight int
	deferred []*Task
}

// Scheduler is a priority crawl queue. Strictly higher priority tasks
// dequeue first; politeness and concurrency are enforced per domain.
type Scheduler struct {
	cfg      Config
	handlers map[Stage]HandlerFunc

	mu       sync.Mutex
	cond     *sync.Cond
	queue    taskHeap
	seen     map[string]struct{}
	domains  map[string]*domainState
	inFlight int
	seq      uint64
	stats    Stats
}

// New creates a scheduler with the given politeness configuration
func New(cfg Config) *Scheduler {
	if cfg.MaxConcurrentPerDomain < 1 {
		cfg.MaxConcurrentPerDomain = 1
	}
	if cfg.MaxDelay < cfg.DownloadDelay {
		cfg.MaxDelay = cfg.DownloadDelay
	}
	if cfg.DepthLimit < 1 {
		cfg.DepthLimit = 1
	}

	s := &Scheduler{
		cfg:      cfg,
		handlers: make(map[Stage]HandlerFunc),
		seen:     make(map[string]struct{}),
		domains:  make(map[string]*domainState),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// RegisterHandler binds a stage to its handler. Must be called before Run.
func (s *Scheduler) RegisterHandler(stage Stage, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[stage] = handler
}

// Enqueue adds a task to the queue. Duplicate tasks (same stage and
// normalized URL) and tasks beyond the depth limit are counted and
// silently dropped.
func (s *Scheduler) Enqueue(task Task) error {
	if task.Stage == "" || task.URL == "" {
		return errors.Newf("task requires a stage and a URL").
			Category(errors.CategoryValidation).
			Context("stage", string(task.Stage)).
			Context("url", task.URL).
			Component("scheduler").
			Build()
	}
	if task.ID == "" {
		task.ID = NewTask(task.Stage, task.URL, task.Priority).ID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if task.Depth > s.cfg.DepthLimit {
		s.stats.DroppedDepth++
		logger.Debug("dropping task beyond depth limit",
			"stage", string(task.Stage), "url", task.URL, "depth", task.Depth)
		return nil
	}

	if !task.DedupExempt {
		fp := fingerprint(&task)
		if _, dup := s.seen[fp]; dup {
			s.stats.Deduplicated++
			logger.Debug("dropping duplicate task",
				"stage", string(task.Stage), "url", task.URL)
			return nil
		}
		s.seen[fp] = struct{}{}
	}

	task.seq = s.seq
	s.seq++
	s.stats.Enqueued++
	heap.Push(&s.queue, &task)
	s.cond.Broadcast()
	return nil
}

// Run dispatches tasks until the queue drains or the context is
// cancelled. It blocks until all in-flight handlers have returned.
func (s *Scheduler) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		s.cond.Broadcast()
	})
	defer stop()

	logger.Info("scheduler started",
		"max_concurrent_per_domain", s.cfg.MaxConcurrentPerDomain,
		"download_delay", s.cfg.DownloadDelay,
		"max_delay", s.cfg.MaxDelay,
		"autothrottle", s.cfg.AutoThrottle,
		"depth_limit", s.cfg.DepthLimit)

	var wg sync.WaitGroup

	s.mu.Lock()
	for ctx.Err() == nil {
		task := s.nextRunnable()
		if task == nil {
			if s.inFlight == 0 && s.queue.Len() == 0 {
				break
			}
			s.cond.Wait()
			continue
		}

		ds := s.domainState(domainOf(task.URL))
		ds.inFlight++
		s.inFlight++

		wg.Add(1)
		go func(t *Task, ds *domainState) {
			defer wg.Done()
			s.execute(ctx, t, ds)
		}(task, ds)
	}
	s.mu.Unlock()

	wg.Wait()

	stats := s.Stats()
	logger.Info("scheduler stopped",
		"enqueued", stats.Enqueued,
		"executed", stats.Executed,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated)

	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// nextRunnable pops the highest-priority task whose domain has capacity.
// Tasks for saturated domains are parked on the domain's deferred list.
// Caller must hold s.mu.
func (s *Scheduler) nextRunnable() *Task {
	for s.queue.Len() > 0 {
		task := heap.Pop(&s.queue).(*Task)
		ds := s.domainState(domainOf(task.URL))
		if ds.inFlight >= s.cfg.MaxConcurrentPerDomain {
			ds.deferred = append(ds.deferred, task)
			continue
		}
		return task
	}
	return nil
}

// domainState returns the politeness state for a domain, creating it on
// first use. Caller must hold s.mu.
func (s *Scheduler) domainState(domain string) *domainState {
	ds, ok := s.domains[domain]
	if !ok {
		ds = &domainState{
			limiter: rate.NewLimiter(limitForDelay(s.cfg.DownloadDelay), 1),
			delay:   s.cfg.DownloadDelay,
		}
		s.domains[domain] = ds
	}
	return ds
}

func limitForDelay(delay time.Duration) rate.Limit {
	if delay <= 0 {
		return rate.Inf
	}
	return rate.Every(delay)
}

// execute runs one task through its handler, classifies failures, and
// feeds follow-up tasks back into the queue.
func (s *Scheduler) execute(ctx context.Context, task *Task, ds *domainState) {
	defer s.finish(ds)

	if err := ds.limiter.Wait(ctx); err != nil {
		return
	}

	handler := s.handlerFor(task.Stage)
	if handler == nil {
		s.mu.Lock()
		s.stats.Executed++
		s.stats.DroppedOther++
		s.mu.Unlock()
		logger.Error("no handler registered for stage",
			"stage", string(task.Stage), "url", task.URL)
		return
	}

	start := time.Now()
	var followUps []Task
	var err error
	panicked := false

	func() {
		defer func() {
			if r := recover(); r != nil {
				panicked = true
				logger.Error("handler panicked",
					"stage", string(task.Stage),
					"url", task.URL,
					"panic", r)
			}
		}()
		followUps, err = handler(ctx, task)
	}()

	latency := time.Since(start)

	s.mu.Lock()
	s.stats.Executed++
	switch {
	case panicked:
		s.stats.DroppedPanic++
	case err == nil:
		s.stats.Succeeded++
	default:
		s.classifyFailure(task, err)
	}
	s.adjustDelay(ds, latency, err == nil && !panicked)
	s.mu.Unlock()

	for i := range followUps {
		followUps[i].Depth = task.Depth + 1
		if enqErr := s.Enqueue(followUps[i]); enqErr != nil {
			logger.Error("failed to enqueue follow-up task",
				"stage", string(followUps[i].Stage),
				"url", followUps[i].URL,
				"error", enqErr)
		}
	}
}

// finish releases the task's domain slot and wakes the dispatch loop
func (s *Scheduler) finish(ds *domainState) {
	s.mu.Lock()
	ds.inFlight--
	s.inFlight--
	if len(ds.deferred) > 0 {
		for _, deferred := range ds.deferred {
			heap.Push(&s.queue, deferred)
		}
		ds.deferred = nil
	}
	s.mu.Unlock()
	s.cond.Broadcast()
}

func (s *Scheduler) handlerFor(stage Stage) HandlerFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handlers[stage]
}

// classifyFailure buckets a handler error into the drop counters.
// Caller must hold s.mu.
func (s *Scheduler) classifyFailure(task *Task, err error) {
	category := errors.CategoryOf(err)
	switch category {
	case errors.CategoryNetwork, errors.CategoryTimeout:
		s.stats.DroppedNetwork++
	case errors.CategoryHTTP:
		s.stats.DroppedHTTP++
	default:
		s.stats.DroppedOther++
	}
	logger.Warn("task dropped",
		"stage", string(task.Stage),
		"url", task.URL,
		"category", string(category),
		"error", err.Error())
}

// adjustDelay moves the domain's politeness delay toward the observed
// latency when responses slow down and decays it toward the configured
// floor otherwise. Failed responses never speed the domain up.
// Caller must hold s.mu.
func (s *Scheduler) adjustDelay(ds *domainState, latency time.Duration, ok bool) {
	if !s.cfg.AutoThrottle {
		return
	}

	floor := s.cfg.DownloadDelay
	target := latency
	if target < floor {
		target = floor
	}

	newDelay := (ds.delay + target) / 2
	if !ok && newDelay < ds.delay {
		newDelay = ds.delay
	}
	if newDelay > s.cfg.MaxDelay {
		newDelay = s.cfg.MaxDelay
	}
	if newDelay < floor {
		newDelay = floor
	}

	if newDelay != ds.delay {
		logger.Debug("adjusted politeness delay",
			"old_delay_ms", ds.delay.Milliseconds(),
			"new_delay_ms", newDelay.Milliseconds(),
			"latency_ms", latency.Milliseconds())
		ds.delay = newDelay
		ds.limiter.SetLimit(limitForDelay(newDelay))
	}
}

// Stats returns a snapshot of the queue counters
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// QueueLen reports the number of queued tasks, parked tasks included
func (s *Scheduler) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.queue.Len()
	for _, ds := range s.domains {
		n += len(ds.deferred)
	}
	return n
}

// Close releases the scheduler's log file
func (s *Scheduler) Close() {
	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			log.Printf("Error closing scheduler logger: %v", err)
		}
	}
}
