package extractor

import (
	"context"
	"fmt"

	"mediadl/internal/model"
	"mediadl/internal/service"
	"mediadl/pkg/logger"
	"mediadl/pkg/validator"

	ytnative "github.com/ytget/ytdlp/v2"
	"go.uber.org/zap"
)

const youTubeVideoURLTemplate = "https://www.youtube.com/watch?v=%s"

// NativePlaylist lists YouTube playlists in-process without spawning
// yt-dlp. Other URLs go to the fallback extractor.
type NativePlaylist struct {
	fallback service.PlaylistExtractor
}

// NewNativePlaylist creates the in-process playlist lister
func NewNativePlaylist(fallback service.PlaylistExtractor) *NativePlaylist {
	return &NativePlaylist{fallback: fallback}
}

// ExtractPlaylist implements service.PlaylistExtractor
func (n *NativePlaylist) ExtractPlaylist(ctx context.Context, url string) (*model.PlaylistInfo, error) {
	playlistID := validator.PlaylistID(url)
	if playlistID == "" {
		return n.fallback.ExtractPlaylist(ctx, url)
	}

	items, err := ytnative.New().GetPlaylistItemsAll(ctx, playlistID, 0)
	if err != nil {
		logger.Logger.Warn("Native playlist listing failed, using yt-dlp",
			zap.String("playlist_id", playlistID), zap.Error(err))
		return n.fallback.ExtractPlaylist(ctx, url)
	}

	info := &model.PlaylistInfo{
		Title:      fmt.Sprintf("Playlist %s", playlistID),
		Videos:     make([]model.PlaylistEntry, 0, len(items)),
		IsPlaylist: true,
	}
	for _, it := range items {
		if it.VideoID == "" {
			continue
		}
		info.Videos = append(info.Videos, model.PlaylistEntry{
			VideoID: it.VideoID,
			Title:   it.Title,
			URL:     fmt.Sprintf(youTubeVideoURLTemplate, it.VideoID),
		})
	}
	info.VideoCount = len(info.Videos)
	return info, nil
}
