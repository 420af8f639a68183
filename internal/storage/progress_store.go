package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"mediadl/internal/model"
	"mediadl/pkg/logger"

	"go.uber.org/zap"
)

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrDuplicateJob      = errors.New("job already exists")
	ErrInvalidTransition = errors.New("invalid status transition")
)

const subscriberBuffer = 16

// StatusMirror keeps a copy of job records outside the process
type StatusMirror interface {
	Save(ctx context.Context, job model.JobStatus) error
	Load(ctx context.Context, id string) (*model.JobStatus, error)
}

type entry struct {
	mu      sync.Mutex
	status  model.JobStatus
	subs    map[int]chan model.JobStatus
	nextSub int
	removed bool
}

// ProgressStore holds the status of every known job. Updates to one job
// are serialised on that job's entry lock; the map lock only guards
// membership.
type ProgressStore struct {
	cfg      *model.JobsConfig
	mirror   StatusMirror
	jobs     map[string]*entry
	mu       sync.RWMutex
	now      func() time.Time
	quitChan chan struct{}
	stopOnce sync.Once
}

// NewProgressStore creates a store. mirror may be nil.
func NewProgressStore(cfg *model.JobsConfig, mirror StatusMirror) *ProgressStore {
	return &ProgressStore{
		cfg:      cfg,
		mirror:   mirror,
		jobs:     make(map[string]*entry),
		now:      time.Now,
		quitChan: make(chan struct{}),
	}
}

// Create inserts a new job record
func (s *ProgressStore) Create(job model.JobStatus) error {
	s.mu.Lock()
	if _, exists := s.jobs[job.ID]; exists {
		s.mu.Unlock()
		return ErrDuplicateJob
	}
	e := &entry{status: job, subs: make(map[int]chan model.JobStatus)}
	e.mu.Lock()
	defer e.mu.Unlock()
	s.jobs[job.ID] = e
	s.mu.Unlock()

	s.mirrorSave(job)
	return nil
}

// Update applies mutate to a copy of the job and stores the result when
// the status change is a forward transition.
func (s *ProgressStore) Update(id string, mutate func(*model.JobStatus)) (model.JobStatus, error) {
	e := s.lookup(id)
	if e == nil {
		return model.JobStatus{}, ErrJobNotFound
	}

	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		return model.JobStatus{}, ErrJobNotFound
	}

	prev := e.status
	next := prev
	mutate(&next)
	next.ID = prev.ID

	if !prev.Status.CanTransitionTo(next.Status) {
		e.mu.Unlock()
		return prev, ErrInvalidTransition
	}

	next.UpdatedAt = s.now()
	if next.Status.IsTerminal() && next.FinishedAt == nil {
		finished := next.UpdatedAt
		next.FinishedAt = &finished
	}
	e.status = next
	e.publish(next)
	// saved under e.mu so the mirror sees status changes in order
	if next.Status != prev.Status {
		s.mirrorSave(next)
	}
	e.mu.Unlock()
	return next, nil
}

// Get returns a copy of the job, consulting the mirror for jobs no longer
// held in memory.
func (s *ProgressStore) Get(id string) (model.JobStatus, bool) {
	if e := s.lookup(id); e != nil {
		e.mu.Lock()
		defer e.mu.Unlock()
		if !e.removed {
			return e.status, true
		}
	}

	if s.mirror == nil {
		return model.JobStatus{}, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	job, err := s.mirror.Load(ctx, id)
	if err != nil {
		logger.Logger.Warn("Mirror lookup failed", zap.String("job_id", id), zap.Error(err))
		return model.JobStatus{}, false
	}
	if job == nil {
		return model.JobStatus{}, false
	}
	return *job, true
}

// Delete removes the job and closes its subscriptions
func (s *ProgressStore) Delete(id string) {
	s.mu.Lock()
	e, ok := s.jobs[id]
	delete(s.jobs, id)
	s.mu.Unlock()
	if !ok {
		return
	}

	e.mu.Lock()
	e.removed = true
	e.closeSubs()
	e.mu.Unlock()
}

// Subscribe streams snapshots of the job, starting with the current one.
// The channel is closed once the job reaches a terminal state or is
// removed. cancel must be called when the caller stops reading.
func (s *ProgressStore) Subscribe(id string) (<-chan model.JobStatus, func(), error) {
	e := s.lookup(id)
	if e == nil {
		return nil, nil, ErrJobNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil, nil, ErrJobNotFound
	}

	ch := make(chan model.JobStatus, subscriberBuffer)
	ch <- e.status
	if e.status.Status.IsTerminal() {
		close(ch)
		return ch, func() {}, nil
	}

	key := e.nextSub
	e.nextSub++
	e.subs[key] = ch

	cancel := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if c, ok := e.subs[key]; ok {
			delete(e.subs, key)
			close(c)
		}
	}
	return ch, cancel, nil
}

// Snapshot counts jobs per status
func (s *ProgressStore) Snapshot() map[string]int {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.jobs))
	for _, e := range s.jobs {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	counts := map[string]int{"total": len(entries)}
	for _, e := range entries {
		e.mu.Lock()
		counts[string(e.status.Status)]++
		e.mu.Unlock()
	}
	return counts
}

// Start starts the reaper routine
func (s *ProgressStore) Start() {
	if s.cfg.JobTTL <= 0 || s.cfg.ReapInterval <= 0 {
		logger.Logger.Info("Job reaper disabled")
		return
	}
	go s.reapRoutine()
}

// Stop stops the reaper routine
func (s *ProgressStore) Stop() {
	s.stopOnce.Do(func() { close(s.quitChan) })
}

func (s *ProgressStore) reapRoutine() {
	ticker := time.NewTicker(time.Duration(s.cfg.ReapInterval) * time.Second)
	defer ticker.Stop()

	logger.Logger.Info("Job reaper started",
		zap.Int("reap_interval_seconds", s.cfg.ReapInterval),
		zap.Int("job_ttl_seconds", s.cfg.JobTTL))

	for {
		select {
		case <-s.quitChan:
			logger.Logger.Info("Job reaper stopped")
			return
		case <-ticker.C:
			s.ReapExpired()
		}
	}
}

// ReapExpired evicts terminal jobs that finished more than JobTTL ago and
// returns how many were removed. Active jobs are never evicted.
func (s *ProgressStore) ReapExpired() int {
	if s.cfg.JobTTL <= 0 {
		return 0
	}
	cutoff := s.now().Add(-time.Duration(s.cfg.JobTTL) * time.Second)

	s.mu.RLock()
	candidates := make(map[string]*entry, len(s.jobs))
	for id, e := range s.jobs {
		candidates[id] = e
	}
	s.mu.RUnlock()

	var expired []string
	for id, e := range candidates {
		e.mu.Lock()
		if e.status.Status.IsTerminal() && e.status.FinishedAt != nil && e.status.FinishedAt.Before(cutoff) {
			expired = append(expired, id)
		}
		e.mu.Unlock()
	}

	for _, id := range expired {
		s.Delete(id)
	}

	if len(expired) > 0 {
		logger.Logger.Info("Expired jobs evicted", zap.Int("count", len(expired)))
	}
	return len(expired)
}

func (s *ProgressStore) lookup(id string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobs[id]
}

func (s *ProgressStore) mirrorSave(job model.JobStatus) {
	if s.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.mirror.Save(ctx, job); err != nil {
		logger.Logger.Warn("Mirror save failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

// publish fans the snapshot out to subscribers without blocking. A full
// subscriber loses its oldest pending snapshot. Caller holds e.mu.
func (e *entry) publish(job model.JobStatus) {
	for _, ch := range e.subs {
		select {
		case ch <- job:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- job:
			default:
			}
		}
	}
	if job.Status.IsTerminal() {
		e.closeSubs()
	}
}

func (e *entry) closeSubs() {
	for key, ch := range e.subs {
		delete(e.subs, key)
		close(ch)
	}
}
