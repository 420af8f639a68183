package service

import (
	"context"

	"mediadl/internal/model"
)

// InfoExtractor fetches metadata and the raw stream catalog of a URL
type InfoExtractor interface {
	ExtractInfo(ctx context.Context, url string, platform model.Platform) (*model.MediaInfo, error)
}

// PlaylistExtractor lists the entries of a playlist URL
type PlaylistExtractor interface {
	ExtractPlaylist(ctx context.Context, url string) (*model.PlaylistInfo, error)
}

// Downloader performs one transfer attempt. Progress is pushed on events;
// implementations must not send on events after Download returns.
type Downloader interface {
	Download(ctx context.Context, spec model.DownloadSpec, events chan<- model.ProgressEvent) error
}
