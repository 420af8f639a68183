package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"mediadl/internal/model"
	"mediadl/pkg/logger"

	"github.com/lrstanley/go-ytdlp"
	"go.uber.org/zap"
)

const (
	desktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	singleTemplate   = "%(title)s.%(ext)s"
	playlistTemplate = "%(playlist)s/%(playlist_index)s - %(title)s.%(ext)s"
	progressInterval = 500 * time.Millisecond
)

// YTDLP drives the yt-dlp program for metadata, playlists and downloads
type YTDLP struct {
	cfg *model.ExtractorConfig
}

// NewYTDLP creates the yt-dlp adapter
func NewYTDLP(cfg *model.ExtractorConfig) *YTDLP {
	return &YTDLP{cfg: cfg}
}

// EnsureInstalled downloads a yt-dlp binary when auto-install is enabled
// and no explicit binary is configured.
func (y *YTDLP) EnsureInstalled(ctx context.Context) error {
	if !y.cfg.AutoInstall || y.cfg.Binary != "" {
		return nil
	}
	resolved, err := ytdlp.Install(ctx, nil)
	if err != nil {
		return fmt.Errorf("install yt-dlp: %w", err)
	}
	logger.Logger.Info("yt-dlp ready", zap.String("executable", resolved.Executable))
	return nil
}

// EnsureDownloadDir ensures download directory exists
func EnsureDownloadDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

func (y *YTDLP) command() *ytdlp.Command {
	dl := ytdlp.New().NoWarnings()
	if y.cfg.Binary != "" {
		dl = dl.SetExecutable(y.cfg.Binary)
	}
	return dl
}

// ExtractInfo dumps the metadata of a URL without downloading it.
// Playlist entries are listed flat.
func (y *YTDLP) ExtractInfo(ctx context.Context, url string, platform model.Platform) (*model.MediaInfo, error) {
	dl := y.command().DumpSingleJSON().SkipDownload().FlatPlaylist()
	if platform.Hint == model.HintShortFormRestrictive {
		dl = dl.AddHeaders("User-Agent:" + desktopUserAgent)
	}

	res, err := dl.Run(ctx, url)
	if err != nil {
		return nil, commandError("extract info", res, err)
	}
	return parseInfo([]byte(res.Stdout))
}

// ExtractPlaylist lists the entries of a playlist URL
func (y *YTDLP) ExtractPlaylist(ctx context.Context, url string) (*model.PlaylistInfo, error) {
	res, err := y.command().DumpSingleJSON().SkipDownload().FlatPlaylist().YesPlaylist().Run(ctx, url)
	if err != nil {
		return nil, commandError("extract playlist", res, err)
	}
	info, err := parseInfo([]byte(res.Stdout))
	if err != nil {
		return nil, err
	}
	if !info.IsPlaylist || info.Playlist == nil {
		return nil, errors.New("URL does not contain a playlist")
	}
	return info.Playlist, nil
}

// Download runs one yt-dlp transfer, reporting progress on events until it
// returns.
func (y *YTDLP) Download(ctx context.Context, spec model.DownloadSpec, events chan<- model.ProgressEvent) error {
	template := singleTemplate
	if spec.Playlist {
		template = playlistTemplate
	}

	dl := y.command().
		Format(spec.Format).
		Output(filepath.Join(spec.OutputDir, template))
	if spec.MergeOutput != "" {
		dl = dl.MergeOutputFormat(spec.MergeOutput)
	}
	if spec.Playlist {
		dl = dl.YesPlaylist()
		if spec.MaxDownloads > 0 {
			dl = dl.PlaylistItems(fmt.Sprintf("1:%d", spec.MaxDownloads))
		}
	} else {
		dl = dl.NoPlaylist()
	}
	if spec.Restrictive {
		dl = dl.AddHeaders("User-Agent:" + desktopUserAgent)
	}

	// the callback may still fire while Run unwinds; closed gates the send
	var (
		mu     sync.Mutex
		closed bool
	)
	dl.ProgressFunc(progressInterval, func(update ytdlp.ProgressUpdate) {
		ev := progressEvent(update)
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	})

	res, err := dl.Run(ctx, spec.URL)

	mu.Lock()
	closed = true
	mu.Unlock()

	if err != nil {
		return commandError("download", res, err)
	}
	return nil
}

func progressEvent(update ytdlp.ProgressUpdate) model.ProgressEvent {
	ev := model.ProgressEvent{
		Status:   model.StatusDownloading,
		Filename: update.Filename,
	}
	if update.TotalBytes > 0 {
		percent := float64(update.DownloadedBytes) / float64(update.TotalBytes) * 100
		ev.Percent = fmt.Sprintf("%.1f%%", percent)
	}
	if !update.Started.IsZero() {
		elapsed := time.Since(update.Started)
		if elapsed.Seconds() > 0 {
			bytesPerSecond := float64(update.DownloadedBytes) / elapsed.Seconds()
			ev.Speed = fmt.Sprintf("%.1fMB/s", bytesPerSecond/1024/1024)
		}
	}
	return ev
}

// commandError keeps the tail of stderr, which is where yt-dlp explains
// extractor failures.
func commandError(op string, res *ytdlp.Result, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res != nil {
		if msg := lastLine(res.Stderr); msg != "" {
			return fmt.Errorf("%s: %s: %w", op, msg, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

type rawThumbnail struct {
	URL string `json:"url"`
}

type rawFormat struct {
	FormatID       string  `json:"format_id"`
	URL            string  `json:"url"`
	Ext            string  `json:"ext"`
	Resolution     string  `json:"resolution"`
	Height         float64 `json:"height"`
	Width          float64 `json:"width"`
	FPS            float64 `json:"fps"`
	FileSize       float64 `json:"filesize"`
	FileSizeApprox float64 `json:"filesize_approx"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	ABR            float64 `json:"abr"`
}

type rawInfo struct {
	Type        string         `json:"_type"`
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Uploader    string         `json:"uploader"`
	Channel     string         `json:"channel"`
	Description string         `json:"description"`
	Duration    float64        `json:"duration"`
	Thumbnail   string         `json:"thumbnail"`
	Thumbnails  []rawThumbnail `json:"thumbnails"`
	ViewCount   float64        `json:"view_count"`
	URL         string         `json:"url"`
	WebpageURL  string         `json:"webpage_url"`
	Formats     []rawFormat    `json:"formats"`
	Entries     []rawInfo      `json:"entries"`
}

func (r rawInfo) uploader() string {
	if r.Uploader != "" {
		return r.Uploader
	}
	return r.Channel
}

func (r rawInfo) thumbnail() string {
	if r.Thumbnail != "" {
		return r.Thumbnail
	}
	if n := len(r.Thumbnails); n > 0 {
		return r.Thumbnails[n-1].URL
	}
	return ""
}

// parseInfo converts yt-dlp JSON output into the media model
func parseInfo(data []byte) (*model.MediaInfo, error) {
	var raw rawInfo
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode yt-dlp output: %w", err)
	}

	info := &model.MediaInfo{
		Title:     raw.Title,
		Uploader:  raw.uploader(),
		Duration:  raw.Duration,
		Thumbnail: raw.thumbnail(),
		ViewCount: int64(raw.ViewCount),
	}

	if raw.Type == "playlist" || len(raw.Entries) > 0 {
		info.IsPlaylist = true
		playlist := &model.PlaylistInfo{
			Title:       raw.Title,
			Uploader:    raw.uploader(),
			Description: raw.Description,
			Videos:      make([]model.PlaylistEntry, 0, len(raw.Entries)),
			IsPlaylist:  true,
		}
		for _, e := range raw.Entries {
			url := e.WebpageURL
			if url == "" {
				url = e.URL
			}
			playlist.Videos = append(playlist.Videos, model.PlaylistEntry{
				VideoID:   e.ID,
				Title:     e.Title,
				Duration:  e.Duration,
				Uploader:  e.uploader(),
				Thumbnail: e.thumbnail(),
				URL:       url,
			})
		}
		playlist.VideoCount = len(playlist.Videos)
		info.Playlist = playlist
		return info, nil
	}

	info.Streams = make([]model.StreamDescriptor, 0, len(raw.Formats))
	for _, f := range raw.Formats {
		size := f.FileSize
		if size == 0 {
			size = f.FileSizeApprox
		}
		info.Streams = append(info.Streams, model.StreamDescriptor{
			FormatID:     f.FormatID,
			URL:          f.URL,
			Ext:          f.Ext,
			Resolution:   f.Resolution,
			Height:       int(f.Height),
			Width:        int(f.Width),
			FPS:          f.FPS,
			FileSize:     int64(size),
			VideoCodec:   f.VCodec,
			AudioCodec:   f.ACodec,
			AudioBitrate: f.ABR,
		})
	}
	return info, nil
}
