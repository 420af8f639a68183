package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"mediadl/internal/model"
	"mediadl/internal/storage"
	"mediadl/pkg/logger"
	"mediadl/pkg/validator"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultSelector  = "best[height<=1080]/best"
	playlistSelector = "best[height<=1080]"
	mergeContainer   = "mp4"
)

// SubmitRequest describes a job to enqueue
type SubmitRequest struct {
	URL          string
	FormatID     string
	Kind         model.JobKind
	MaxDownloads int
}

// DownloadStats is a point-in-time view of the worker pool
type DownloadStats struct {
	Workers   int   `json:"workers"`
	Queued    int64 `json:"queued"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

type queuedJob struct {
	id       string
	ctx      context.Context
	kind     model.JobKind
	platform model.Platform
	spec     model.DownloadSpec
}

// DownloadService runs download jobs on a bounded worker pool and records
// their progress in the ProgressStore.
type DownloadService struct {
	cfg        *model.Config
	classifier *validator.Classifier
	store      *storage.ProgressStore
	downloader Downloader

	queue  chan queuedJob
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	cancels map[string]context.CancelFunc

	queuedJobs    int64
	activeJobs    int64
	completedJobs int64
	failedJobs    int64

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewDownloadService creates a new download service
func NewDownloadService(cfg *model.Config, classifier *validator.Classifier, store *storage.ProgressStore, downloader Downloader) *DownloadService {
	queueSize := cfg.Jobs.QueueSize
	if queueSize <= 0 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &DownloadService{
		cfg:        cfg,
		classifier: classifier,
		store:      store,
		downloader: downloader,
		queue:      make(chan queuedJob, queueSize),
		ctx:        ctx,
		cancel:     cancel,
		cancels:    make(map[string]context.CancelFunc),
	}
}

// Start launches the worker pool
func (s *DownloadService) Start() {
	s.startOnce.Do(func() {
		workers := s.workerCount()
		for i := 1; i <= workers; i++ {
			s.wg.Add(1)
			go s.worker(i)
		}
		logger.Logger.Info("Download workers started",
			zap.Int("workers", workers),
			zap.Int("queue_size", cap(s.queue)))
	})
}

// Stop cancels running jobs and waits for the workers to exit
func (s *DownloadService) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
		drained := s.drainQueue()
		logger.Logger.Info("Download workers stopped", zap.Int("drained", drained))
	})
}

// drainQueue marks jobs that never reached a worker as cancelled
func (s *DownloadService) drainQueue() int {
	drained := 0
	for {
		select {
		case job := <-s.queue:
			atomic.AddInt64(&s.queuedJobs, -1)
			s.forget(job.id)
			_, err := s.store.Update(job.id, func(j *model.JobStatus) {
				j.Status = model.StatusError
				j.Error = "download cancelled"
				j.ErrorKind = model.ErrCancelled
			})
			if err != nil && !errors.Is(err, storage.ErrInvalidTransition) {
				logger.Logger.Warn("Could not cancel queued job", zap.String("job_id", job.id), zap.Error(err))
			}
			atomic.AddInt64(&s.failedJobs, 1)
			drained++
		default:
			return drained
		}
	}
}

// Submit validates the request, records a starting job and enqueues it.
// It never waits for the transfer itself.
func (s *DownloadService) Submit(req SubmitRequest) (string, error) {
	rawURL := strings.TrimSpace(req.URL)
	if rawURL == "" {
		return "", model.NewError(model.ErrValidation, "URL is required")
	}
	platform, ok := s.classifier.Classify(rawURL)
	if !ok {
		return "", model.NewError(model.ErrValidation, "Unsupported URL format")
	}
	formatID := strings.TrimSpace(req.FormatID)
	if formatID != "" && !validator.ValidateFormatID(formatID) {
		return "", model.NewError(model.ErrValidation, "Invalid format id")
	}
	if s.ctx.Err() != nil {
		return "", model.NewError(model.ErrBusy, "Download service is shutting down")
	}

	kind := req.Kind
	if kind == "" {
		kind = model.KindSingle
	}
	maxDownloads := 0
	if kind == model.KindPlaylist {
		maxDownloads = s.playlistLimit(req.MaxDownloads)
	}

	id := fmt.Sprintf("%s_%s", kind.IDPrefix(), uuid.NewString())
	job := model.NewJobStatus(id, rawURL, formatID, kind)
	job.MaxDownloads = maxDownloads
	if err := s.store.Create(job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	jobCtx, cancel := context.WithCancel(s.ctx)
	s.mu.Lock()
	s.cancels[id] = cancel
	s.mu.Unlock()

	spec := buildSpec(rawURL, formatID, kind, maxDownloads, platform, s.cfg.Storage.DownloadDir)
	atomic.AddInt64(&s.queuedJobs, 1)
	select {
	case s.queue <- queuedJob{id: id, ctx: jobCtx, kind: kind, platform: platform, spec: spec}:
	default:
		atomic.AddInt64(&s.queuedJobs, -1)
		s.forget(id)
		s.store.Delete(id)
		logger.Logger.Warn("Download queue full", zap.String("url", rawURL))
		return "", model.NewError(model.ErrBusy, "Download queue is full, try again later")
	}

	logger.Logger.Info("Download job queued",
		zap.String("job_id", id),
		zap.String("url", rawURL),
		zap.String("platform", platform.Name),
		zap.String("format", spec.Format))
	return id, nil
}

// SubmitBatch queues one batch job per supported URL. Unsupported URLs are
// skipped. When the queue fills up the ids queued so far are returned with
// the busy error.
func (s *DownloadService) SubmitBatch(urls []string) ([]string, error) {
	if limit := s.cfg.Security.MaxBatchURLs; limit > 0 && len(urls) > limit {
		return nil, model.NewError(model.ErrValidation, fmt.Sprintf("At most %d URLs per batch", limit))
	}

	ids := make([]string, 0, len(urls))
	for _, u := range urls {
		id, err := s.Submit(SubmitRequest{URL: u, Kind: model.KindBatch})
		if err != nil {
			if model.KindOf(err, "") == model.ErrValidation {
				logger.Logger.Debug("Skipping batch URL", zap.String("url", u), zap.Error(err))
				continue
			}
			return ids, err
		}
		ids = append(ids, id)
	}

	if len(ids) == 0 {
		return nil, model.NewError(model.ErrValidation, "No supported URLs provided")
	}
	return ids, nil
}

// Cancel stops a queued or running job. The job ends in error with the
// cancelled kind.
func (s *DownloadService) Cancel(id string) error {
	s.mu.Lock()
	cancel, ok := s.cancels[id]
	s.mu.Unlock()

	if !ok {
		job, found := s.store.Get(id)
		if !found {
			return storage.ErrJobNotFound
		}
		if job.Status.IsTerminal() {
			return model.NewError(model.ErrValidation, "Job already finished")
		}
		return storage.ErrJobNotFound
	}

	cancel()
	_, err := s.store.Update(id, func(j *model.JobStatus) {
		j.Status = model.StatusError
		j.Error = "download cancelled"
		j.ErrorKind = model.ErrCancelled
	})
	if errors.Is(err, storage.ErrInvalidTransition) {
		return model.NewError(model.ErrValidation, "Job already finished")
	}
	if err == nil {
		logger.Logger.Info("Download job cancelled", zap.String("job_id", id))
	}
	return err
}

// Stats reports pool counters
func (s *DownloadService) Stats() DownloadStats {
	return DownloadStats{
		Workers:   s.workerCount(),
		Queued:    atomic.LoadInt64(&s.queuedJobs),
		Active:    atomic.LoadInt64(&s.activeJobs),
		Completed: atomic.LoadInt64(&s.completedJobs),
		Failed:    atomic.LoadInt64(&s.failedJobs),
	}
}

func (s *DownloadService) worker(workerID int) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case job := <-s.queue:
			atomic.AddInt64(&s.queuedJobs, -1)
			s.processJob(job, workerID)
		}
	}
}

func (s *DownloadService) processJob(job queuedJob, workerID int) {
	atomic.AddInt64(&s.activeJobs, 1)
	defer atomic.AddInt64(&s.activeJobs, -1)
	defer s.forget(job.id)

	logger.Logger.Info("Processing download job",
		zap.Int("worker", workerID),
		zap.String("job_id", job.id),
		zap.String("url", job.spec.URL))

	maxAttempts := 1
	if job.platform.RetryEligible && s.cfg.Jobs.MaxRetries > 0 {
		maxAttempts += s.cfg.Jobs.MaxRetries
	}

	var lastErr error
	attempts := 0
attemptLoop:
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(s.retryDelay()):
			case <-job.ctx.Done():
				lastErr = job.ctx.Err()
				break attemptLoop
			}
			logger.Logger.Warn("Retrying download",
				zap.String("job_id", job.id),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", maxAttempts))
		}
		if err := job.ctx.Err(); err != nil {
			lastErr = err
			break
		}

		attempts = attempt
		if _, err := s.store.Update(job.id, func(j *model.JobStatus) { j.Attempts = attempt }); err != nil {
			lastErr = err
			break
		}

		lastErr = s.runAttempt(job)
		if lastErr == nil || job.ctx.Err() != nil {
			break
		}
		logger.Logger.Warn("Download attempt failed",
			zap.String("job_id", job.id),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
	}

	s.finalize(job, attempts, maxAttempts, lastErr)
}

// runAttempt performs one bounded transfer attempt. Progress events are
// drained into the store by a goroutine owned by this attempt.
func (s *DownloadService) runAttempt(job queuedJob) error {
	timeout := s.attemptTimeout()
	ctx, cancel := context.WithTimeout(job.ctx, timeout)
	defer cancel()

	events := make(chan model.ProgressEvent, 32)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for ev := range events {
			s.applyProgress(job.id, ev)
		}
	}()

	err := s.downloader.Download(ctx, job.spec, events)
	close(events)
	<-drained

	if err != nil && job.ctx.Err() == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return model.WrapError(model.ErrDownload, fmt.Sprintf("attempt timed out after %s", timeout), err)
	}
	return err
}

func (s *DownloadService) applyProgress(id string, ev model.ProgressEvent) {
	_, err := s.store.Update(id, func(j *model.JobStatus) {
		j.Status = model.StatusDownloading
		if p := validator.StripANSI(ev.Percent); p != "" {
			j.Percent = p
		}
		if sp := validator.StripANSI(ev.Speed); sp != "" {
			j.Speed = sp
		}
		if f := validator.StripANSI(ev.Filename); f != "" {
			j.Filename = f
		}
	})
	if err != nil {
		logger.Logger.Debug("Progress update dropped", zap.String("job_id", id), zap.Error(err))
	}
}

func (s *DownloadService) finalize(job queuedJob, attempts, maxAttempts int, lastErr error) {
	if lastErr == nil {
		_, err := s.store.Update(job.id, func(j *model.JobStatus) {
			j.Status = job.kind.SuccessStatus()
			j.Percent = "100%"
		})
		if err != nil {
			// Cancel already moved the job to a terminal state
			atomic.AddInt64(&s.failedJobs, 1)
			logger.Logger.Info("Download job cancelled before completion",
				zap.String("job_id", job.id), zap.Error(err))
			return
		}
		atomic.AddInt64(&s.completedJobs, 1)
		logger.Logger.Info("Download job finished", zap.String("job_id", job.id), zap.Int("attempts", attempts))
		return
	}

	kind := model.KindOf(lastErr, model.ErrDownload)
	msg := lastErr.Error()
	switch {
	case job.ctx.Err() != nil || kind == model.ErrCancelled:
		kind = model.ErrCancelled
		msg = "download cancelled"
	case job.platform.RetryEligible && maxAttempts > 1 && attempts >= maxAttempts:
		kind = model.ErrRetriesExhausted
		msg = fmt.Sprintf("retries exhausted after %d attempts: %s", attempts, msg)
	}

	_, err := s.store.Update(job.id, func(j *model.JobStatus) {
		j.Status = model.StatusError
		j.Error = msg
		j.ErrorKind = kind
	})
	if err != nil && !errors.Is(err, storage.ErrInvalidTransition) {
		logger.Logger.Warn("Could not mark job failed", zap.String("job_id", job.id), zap.Error(err))
	}
	atomic.AddInt64(&s.failedJobs, 1)
	logger.Logger.Error("Download job failed",
		zap.String("job_id", job.id),
		zap.String("kind", string(kind)),
		zap.Int("attempts", attempts),
		zap.Error(lastErr))
}

func (s *DownloadService) forget(id string) {
	s.mu.Lock()
	cancel, ok := s.cancels[id]
	delete(s.cancels, id)
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

func (s *DownloadService) workerCount() int {
	if s.cfg.Jobs.Workers <= 0 {
		return 1
	}
	return s.cfg.Jobs.Workers
}

func (s *DownloadService) retryDelay() time.Duration {
	return time.Duration(s.cfg.Jobs.RetryDelay) * time.Millisecond
}

func (s *DownloadService) attemptTimeout() time.Duration {
	if s.cfg.Jobs.AttemptTimeout <= 0 {
		return 300 * time.Second
	}
	return time.Duration(s.cfg.Jobs.AttemptTimeout) * time.Second
}

func (s *DownloadService) playlistLimit(requested int) int {
	limit := s.cfg.Security.MaxPlaylistDownload
	if requested > 0 && (limit <= 0 || requested < limit) {
		return requested
	}
	return limit
}

// buildSpec maps a job onto the selector handed to the downloader
func buildSpec(url, formatID string, kind model.JobKind, maxDownloads int, platform model.Platform, outputDir string) model.DownloadSpec {
	spec := model.DownloadSpec{
		URL:         url,
		OutputDir:   outputDir,
		Restrictive: platform.Hint == model.HintShortFormRestrictive,
	}
	switch {
	case kind == model.KindPlaylist:
		spec.Format = playlistSelector
		spec.Playlist = true
		spec.MaxDownloads = maxDownloads
	case strings.Contains(formatID, "+"):
		spec.Format = formatID
		spec.MergeOutput = mergeContainer
	case formatID != "":
		spec.Format = formatID
	default:
		spec.Format = defaultSelector
		spec.MergeOutput = mergeContainer
	}
	return spec
}
