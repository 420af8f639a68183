package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"mediadl/internal/model"
	"mediadl/internal/storage"
	"mediadl/pkg/validator"
)

// fakeDownloader fails the first `failures` attempts, then succeeds
type fakeDownloader struct {
	mu       sync.Mutex
	failures int
	calls    int
	specs    []model.DownloadSpec
	events   []model.ProgressEvent
	block    bool
	err      error
	onRun    func()
}

func (f *fakeDownloader) Download(ctx context.Context, spec model.DownloadSpec, events chan<- model.ProgressEvent) error {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.specs = append(f.specs, spec)
	block := f.block
	failErr := f.err
	fail := call <= f.failures
	toSend := append([]model.ProgressEvent(nil), f.events...)
	onRun := f.onRun
	f.mu.Unlock()

	for _, ev := range toSend {
		events <- ev
	}
	if onRun != nil {
		onRun()
	}
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if fail {
		if failErr != nil {
			return failErr
		}
		return errors.New("HTTP Error 429: Too Many Requests")
	}
	return nil
}

func (f *fakeDownloader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testConfig() *model.Config {
	return &model.Config{
		Storage: model.StorageConfig{DownloadDir: "downloads"},
		Jobs: model.JobsConfig{
			Workers:        2,
			QueueSize:      10,
			MaxRetries:     2,
			RetryDelay:     1,
			AttemptTimeout: 5,
		},
		Security: model.SecurityConfig{
			PlatformVariant:     validator.VariantExtended,
			RetryEligibleHosts:  []string{"instagram.com"},
			RestrictiveHosts:    []string{"instagram.com"},
			MaxBatchURLs:        5,
			MaxPlaylistDownload: 50,
		},
	}
}

func newTestDownloadService(t *testing.T, cfg *model.Config, dl Downloader) (*DownloadService, *storage.ProgressStore) {
	t.Helper()
	store := storage.NewProgressStore(&cfg.Jobs, nil)
	svc := NewDownloadService(cfg, validator.NewClassifier(&cfg.Security), store, dl)
	svc.Start()
	t.Cleanup(svc.Stop)
	return svc, store
}

func waitTerminal(t *testing.T, store *storage.ProgressStore, id string) model.JobStatus {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if job, ok := store.Get(id); ok && job.Status.IsTerminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := store.Get(id)
	t.Fatalf("job %s did not finish, last status %+v", id, job)
	return job
}

const (
	instagramURL = "https://www.instagram.com/reel/abc123/"
	youtubeURL   = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
)

func TestDownloadService_RetryEligibleRecovers(t *testing.T) {
	dl := &fakeDownloader{failures: 2}
	svc, store := newTestDownloadService(t, testConfig(), dl)

	id, err := svc.Submit(SubmitRequest{URL: instagramURL})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	job := waitTerminal(t, store, id)
	if job.Status != model.StatusFinished {
		t.Errorf("Status = %s, expected finished (error %q)", job.Status, job.Error)
	}
	if job.Attempts != 3 || dl.callCount() != 3 {
		t.Errorf("attempts = %d, calls = %d, expected 3", job.Attempts, dl.callCount())
	}
	if job.Percent != "100%" {
		t.Errorf("Percent = %s, expected 100%%", job.Percent)
	}
}

func TestDownloadService_RetriesExhausted(t *testing.T) {
	dl := &fakeDownloader{failures: 3}
	svc, store := newTestDownloadService(t, testConfig(), dl)

	id, _ := svc.Submit(SubmitRequest{URL: instagramURL})
	job := waitTerminal(t, store, id)

	if job.Status != model.StatusError || job.ErrorKind != model.ErrRetriesExhausted {
		t.Errorf("got %s/%s, expected error/retries_exhausted", job.Status, job.ErrorKind)
	}
	if job.Attempts != 3 || dl.callCount() != 3 {
		t.Errorf("attempts = %d, calls = %d, expected 3", job.Attempts, dl.callCount())
	}
	if !strings.Contains(job.Error, "retries exhausted") || !strings.Contains(job.Error, "429") {
		t.Errorf("Error = %q, expected retries exhausted with last failure", job.Error)
	}
}

func TestDownloadService_NonEligibleFailsOnce(t *testing.T) {
	dl := &fakeDownloader{failures: 1}
	svc, store := newTestDownloadService(t, testConfig(), dl)

	id, _ := svc.Submit(SubmitRequest{URL: youtubeURL})
	job := waitTerminal(t, store, id)

	if job.Status != model.StatusError || job.ErrorKind != model.ErrDownload {
		t.Errorf("got %s/%s, expected error/download", job.Status, job.ErrorKind)
	}
	if job.Attempts != 1 || dl.callCount() != 1 {
		t.Errorf("attempts = %d, calls = %d, expected 1", job.Attempts, dl.callCount())
	}
}

func TestDownloadService_ErrorKindFromCapability(t *testing.T) {
	dl := &fakeDownloader{failures: 1, err: model.WrapError(model.ErrExtraction, "extract", errors.New("private video"))}
	svc, store := newTestDownloadService(t, testConfig(), dl)

	id, _ := svc.Submit(SubmitRequest{URL: youtubeURL})
	job := waitTerminal(t, store, id)
	if job.ErrorKind != model.ErrExtraction {
		t.Errorf("ErrorKind = %s, expected extraction", job.ErrorKind)
	}
}

func TestDownloadService_PlaylistCompletes(t *testing.T) {
	dl := &fakeDownloader{}
	svc, store := newTestDownloadService(t, testConfig(), dl)

	id, err := svc.Submit(SubmitRequest{URL: "https://www.youtube.com/playlist?list=PL123", Kind: model.KindPlaylist, MaxDownloads: 5})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !strings.HasPrefix(id, "playlist_") {
		t.Errorf("id = %s, expected playlist_ prefix", id)
	}

	job := waitTerminal(t, store, id)
	if job.Status != model.StatusCompleted {
		t.Errorf("Status = %s, expected completed", job.Status)
	}
	spec := dl.specs[0]
	if !spec.Playlist || spec.MaxDownloads != 5 || spec.Format != "best[height<=1080]" {
		t.Errorf("spec = %+v", spec)
	}
}

func TestDownloadService_ProgressIsStripped(t *testing.T) {
	dl := &fakeDownloader{events: []model.ProgressEvent{
		{Status: model.StatusDownloading, Percent: "\x1b[0;94m 45.3%\x1b[0m", Speed: "\x1b[0;32m1.2MiB/s\x1b[0m", Filename: "downloads/clip.mp4"},
	}, block: true}
	svc, store := newTestDownloadService(t, testConfig(), dl)

	id, _ := svc.Submit(SubmitRequest{URL: youtubeURL})

	deadline := time.Now().Add(5 * time.Second)
	var job model.JobStatus
	for time.Now().Before(deadline) {
		job, _ = store.Get(id)
		if job.Status == model.StatusDownloading {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if job.Status != model.StatusDownloading {
		t.Fatalf("Status = %s, expected downloading", job.Status)
	}
	if job.Percent != "45.3%" || job.Speed != "1.2MiB/s" || job.Filename != "downloads/clip.mp4" {
		t.Errorf("progress = %q %q %q", job.Percent, job.Speed, job.Filename)
	}

	if err := svc.Cancel(id); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	job = waitTerminal(t, store, id)
	if job.Status != model.StatusError || job.ErrorKind != model.ErrCancelled {
		t.Errorf("after cancel got %s/%s", job.Status, job.ErrorKind)
	}
}

func TestDownloadService_SubmitValidation(t *testing.T) {
	dl := &fakeDownloader{}
	svc, store := newTestDownloadService(t, testConfig(), dl)

	tests := []struct {
		name string
		req  SubmitRequest
	}{
		{"empty", SubmitRequest{URL: "  "}},
		{"unsupported", SubmitRequest{URL: "https://example.com/video"}},
		{"bad format", SubmitRequest{URL: youtubeURL, FormatID: "137; rm -rf /"}},
	}
	for _, test := range tests {
		id, err := svc.Submit(test.req)
		if model.KindOf(err, "") != model.ErrValidation || id != "" {
			t.Errorf("%s: Submit() = %q, %v, expected validation error", test.name, id, err)
		}
	}
	if counts := store.Snapshot(); counts["total"] != 0 {
		t.Errorf("rejected jobs entered the store: %v", counts)
	}
}

func TestDownloadService_QueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.Jobs.QueueSize = 1
	store := storage.NewProgressStore(&cfg.Jobs, nil)
	svc := NewDownloadService(cfg, validator.NewClassifier(&cfg.Security), store, &fakeDownloader{})

	if _, err := svc.Submit(SubmitRequest{URL: youtubeURL}); err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}
	_, err := svc.Submit(SubmitRequest{URL: youtubeURL})
	if model.KindOf(err, "") != model.ErrBusy {
		t.Errorf("second Submit() error = %v, expected busy", err)
	}
	if counts := store.Snapshot(); counts["total"] != 1 {
		t.Errorf("store holds %d jobs, expected 1", counts["total"])
	}
	if stats := svc.Stats(); stats.Queued != 1 {
		t.Errorf("Queued = %d, expected 1", stats.Queued)
	}
	svc.Stop()
}

func TestDownloadService_SubmitBatch(t *testing.T) {
	dl := &fakeDownloader{}
	svc, store := newTestDownloadService(t, testConfig(), dl)

	ids, err := svc.SubmitBatch([]string{youtubeURL, "not a url", "https://youtu.be/abc"})
	if err != nil {
		t.Fatalf("SubmitBatch() error = %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("got %d ids, expected 2", len(ids))
	}
	for _, id := range ids {
		if !strings.HasPrefix(id, "batch_") {
			t.Errorf("id = %s, expected batch_ prefix", id)
		}
		if job := waitTerminal(t, store, id); job.Status != model.StatusFinished {
			t.Errorf("%s status = %s", id, job.Status)
		}
	}

	if _, err := svc.SubmitBatch([]string{"nope"}); model.KindOf(err, "") != model.ErrValidation {
		t.Errorf("all-invalid batch error = %v", err)
	}
	if _, err := svc.SubmitBatch(make([]string, 6)); model.KindOf(err, "") != model.ErrValidation {
		t.Errorf("oversized batch error = %v", err)
	}
}

func TestDownloadService_CancelUnknown(t *testing.T) {
	svc, _ := newTestDownloadService(t, testConfig(), &fakeDownloader{})
	if err := svc.Cancel("download_missing"); !errors.Is(err, storage.ErrJobNotFound) {
		t.Errorf("Cancel() error = %v, expected ErrJobNotFound", err)
	}
}

func TestBuildSpec(t *testing.T) {
	generic := model.Platform{Name: "youtube"}
	restrictive := model.Platform{Name: "instagram", Hint: model.HintShortFormRestrictive}

	tests := []struct {
		name     string
		formatID string
		kind     model.JobKind
		platform model.Platform
		format   string
		merge    string
	}{
		{"virtual", "137+140", model.KindSingle, generic, "137+140", "mp4"},
		{"literal", "22", model.KindSingle, generic, "22", ""},
		{"default", "", model.KindSingle, generic, "best[height<=1080]/best", "mp4"},
		{"batch default", "", model.KindBatch, generic, "best[height<=1080]/best", "mp4"},
		{"playlist", "22", model.KindPlaylist, generic, "best[height<=1080]", ""},
		{"restrictive", "", model.KindSingle, restrictive, "best[height<=1080]/best", "mp4"},
	}
	for _, test := range tests {
		spec := buildSpec("u", test.formatID, test.kind, 3, test.platform, "out")
		if spec.Format != test.format || spec.MergeOutput != test.merge {
			t.Errorf("%s: got %q merge %q, expected %q merge %q", test.name, spec.Format, spec.MergeOutput, test.format, test.merge)
		}
		if spec.Restrictive != (test.platform.Hint == model.HintShortFormRestrictive) {
			t.Errorf("%s: Restrictive = %v", test.name, spec.Restrictive)
		}
		if spec.OutputDir != "out" {
			t.Errorf("%s: OutputDir = %s", test.name, spec.OutputDir)
		}
	}
}

func TestDownloadService_AttemptTimeout(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		attempts int
		kind     model.ErrorKind
	}{
		{"single attempt", youtubeURL, 1, model.ErrDownload},
		{"retry eligible", instagramURL, 3, model.ErrRetriesExhausted},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Jobs.AttemptTimeout = 1
			dl := &fakeDownloader{block: true}
			svc, store := newTestDownloadService(t, cfg, dl)

			id, err := svc.Submit(SubmitRequest{URL: test.url})
			if err != nil {
				t.Fatalf("Submit() error = %v", err)
			}
			job := waitTerminal(t, store, id)

			if job.Status != model.StatusError || job.ErrorKind != test.kind {
				t.Errorf("got %s/%s, expected error/%s", job.Status, job.ErrorKind, test.kind)
			}
			if !strings.Contains(job.Error, "timed out") {
				t.Errorf("Error = %q, expected a timeout message", job.Error)
			}
			if job.Attempts != test.attempts || dl.callCount() != test.attempts {
				t.Errorf("attempts = %d, calls = %d, expected %d", job.Attempts, dl.callCount(), test.attempts)
			}
		})
	}
}

func TestDownloadService_CancelBeforeCompletion(t *testing.T) {
	ids := make(chan string, 1)
	dl := &fakeDownloader{}
	svc, store := newTestDownloadService(t, testConfig(), dl)
	dl.onRun = func() {
		id := <-ids
		if err := svc.Cancel(id); err != nil {
			t.Errorf("Cancel() error = %v", err)
		}
	}

	id, err := svc.Submit(SubmitRequest{URL: youtubeURL})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	ids <- id

	job := waitTerminal(t, store, id)
	if job.Status != model.StatusError || job.ErrorKind != model.ErrCancelled {
		t.Errorf("got %s/%s, expected error/cancelled", job.Status, job.ErrorKind)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if stats := svc.Stats(); stats.Active == 0 && stats.Completed+stats.Failed == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if stats := svc.Stats(); stats.Completed != 0 || stats.Failed != 1 {
		t.Errorf("Completed = %d, Failed = %d, expected 0 and 1", stats.Completed, stats.Failed)
	}
}

func TestDownloadService_StopCancelsQueuedJobs(t *testing.T) {
	cfg := testConfig()
	cfg.Jobs.Workers = 1
	dl := &fakeDownloader{block: true}
	svc, store := newTestDownloadService(t, cfg, dl)

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := svc.Submit(SubmitRequest{URL: youtubeURL})
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		ids = append(ids, id)
	}
	svc.Stop()

	for _, id := range ids {
		job, ok := store.Get(id)
		if !ok || job.Status != model.StatusError || job.ErrorKind != model.ErrCancelled {
			t.Errorf("%s = %s/%s, expected error/cancelled", id, job.Status, job.ErrorKind)
		}
	}
	if stats := svc.Stats(); stats.Queued != 0 {
		t.Errorf("Queued = %d after Stop, expected 0", stats.Queued)
	}
	if _, err := svc.Submit(SubmitRequest{URL: youtubeURL}); model.KindOf(err, "") != model.ErrBusy {
		t.Errorf("Submit() after Stop error = %v, expected busy", err)
	}
}
