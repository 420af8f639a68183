package service

import (
	"context"
	"strings"
	"time"

	"mediadl/internal/model"
	"mediadl/pkg/logger"
	"mediadl/pkg/validator"

	"go.uber.org/zap"
)

// VideoService handles video metadata extraction
type VideoService struct {
	classifier *validator.Classifier
	extractor  InfoExtractor
	timeout    time.Duration
}

// NewVideoService creates a new video service
func NewVideoService(classifier *validator.Classifier, extractor InfoExtractor, timeout int) *VideoService {
	return &VideoService{
		classifier: classifier,
		extractor:  extractor,
		timeout:    time.Duration(timeout) * time.Second,
	}
}

// GetVideoInfo resolves the selectable formats of a URL. When the URL turns
// out to be a playlist the playlist is returned instead and the video is nil.
func (s *VideoService) GetVideoInfo(ctx context.Context, rawURL string) (*model.VideoInfo, *model.PlaylistInfo, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, nil, model.NewError(model.ErrValidation, "URL is required")
	}
	platform, ok := s.classifier.Classify(rawURL)
	if !ok {
		return nil, nil, model.NewError(model.ErrValidation, "Unsupported URL format")
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	info, err := s.extractor.ExtractInfo(ctx, rawURL, platform)
	if err != nil {
		logger.Logger.Error("Failed to fetch video info", zap.Error(err), zap.String("url", rawURL))
		return nil, nil, model.WrapError(model.ErrExtraction, "Failed to fetch video information", err)
	}

	if info.IsPlaylist && info.Playlist != nil && len(info.Playlist.Videos) > 0 {
		logger.Logger.Info("Playlist detected",
			zap.String("title", info.Playlist.Title),
			zap.Int("videos", info.Playlist.VideoCount))
		return nil, info.Playlist, nil
	}

	formats := ResolveFormats(info.Streams, platform.Hint)
	videoInfo := &model.VideoInfo{
		URL:        rawURL,
		Title:      info.Title,
		Uploader:   info.Uploader,
		Duration:   info.Duration,
		Thumbnail:  info.Thumbnail,
		ViewCount:  info.ViewCount,
		Platform:   platform.Name,
		Formats:    formats,
		IsPlaylist: false,
	}
	if platform.Hint == model.HintShortFormRestrictive {
		videoInfo.BestFormatID = BestFormatID(formats)
	}

	logger.Logger.Info("Video info retrieved",
		zap.String("title", videoInfo.Title),
		zap.Int("streams", len(info.Streams)),
		zap.Int("formats", len(formats)))
	return videoInfo, nil, nil
}
