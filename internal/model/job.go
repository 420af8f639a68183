package model

import "time"

// Status is the lifecycle state of a download job
type Status string

const (
	StatusStarting    Status = "starting"
	StatusDownloading Status = "downloading"
	StatusFinished    Status = "finished"
	StatusCompleted   Status = "completed" // playlist jobs
	StatusError       Status = "error"
)

// IsTerminal reports whether no further transition is allowed
func (s Status) IsTerminal() bool {
	return s == StatusFinished || s == StatusCompleted || s == StatusError
}

func (s Status) rank() int {
	switch s {
	case StatusStarting:
		return 0
	case StatusDownloading:
		return 1
	case StatusFinished, StatusCompleted, StatusError:
		return 2
	}
	return -1
}

// CanTransitionTo reports whether moving from s to next keeps the lifecycle
// forward-only. Re-applying the current non-terminal state is allowed so
// progress updates can carry the same status.
func (s Status) CanTransitionTo(next Status) bool {
	if s.rank() < 0 || next.rank() < 0 {
		return false
	}
	if s.IsTerminal() {
		return false
	}
	return next.rank() >= s.rank()
}

// JobKind distinguishes how a job was submitted
type JobKind string

const (
	KindSingle   JobKind = "single"
	KindBatch    JobKind = "batch"
	KindPlaylist JobKind = "playlist"
)

// IDPrefix is the job id prefix for the kind
func (k JobKind) IDPrefix() string {
	switch k {
	case KindBatch:
		return "batch"
	case KindPlaylist:
		return "playlist"
	default:
		return "download"
	}
}

// SuccessStatus is the terminal state reached on success
func (k JobKind) SuccessStatus() Status {
	if k == KindPlaylist {
		return StatusCompleted
	}
	return StatusFinished
}

// JobStatus is the observable progress record of one download job
type JobStatus struct {
	ID           string     `json:"job_id"`
	URL          string     `json:"url"`
	FormatID     string     `json:"format_id,omitempty"`
	Kind         JobKind    `json:"kind"`
	Status       Status     `json:"status"`
	Percent      string     `json:"percent"`
	Speed        string     `json:"speed"`
	Filename     string     `json:"filename,omitempty"`
	Error        string     `json:"error,omitempty"`
	ErrorKind    ErrorKind  `json:"error_kind,omitempty"`
	Attempts     int        `json:"attempts"`
	MaxDownloads int        `json:"max_downloads,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// NewJobStatus builds the initial record for a submitted job
func NewJobStatus(id, url, formatID string, kind JobKind) JobStatus {
	now := time.Now()
	return JobStatus{
		ID:        id,
		URL:       url,
		FormatID:  formatID,
		Kind:      kind,
		Status:    StatusStarting,
		Percent:   "0%",
		Speed:     "N/A",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ProgressEvent is pushed by the extractor while a transfer runs
type ProgressEvent struct {
	Status   Status
	Percent  string
	Speed    string
	Filename string
}

// ResolutionHint selects the scoring policy of the format resolver
type ResolutionHint int

const (
	HintGeneric ResolutionHint = iota
	HintShortFormRestrictive
)

// Platform is the classification of a supported URL
type Platform struct {
	Name          string
	Hint          ResolutionHint
	RetryEligible bool
}

// DownloadSpec is what the orchestrator asks the extractor to fetch
type DownloadSpec struct {
	URL          string
	Format       string
	MergeOutput  string // container to merge into, empty = none
	Playlist     bool
	MaxDownloads int
	Restrictive  bool
	OutputDir    string
}
