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

// PlaylistService expands playlist URLs into their video entries
type PlaylistService struct {
	classifier *validator.Classifier
	extractor  PlaylistExtractor
	timeout    time.Duration
}

// NewPlaylistService creates a new playlist service
func NewPlaylistService(classifier *validator.Classifier, extractor PlaylistExtractor, timeout int) *PlaylistService {
	return &PlaylistService{
		classifier: classifier,
		extractor:  extractor,
		timeout:    time.Duration(timeout) * time.Second,
	}
}

// Info returns the metadata and entries of a playlist URL
func (s *PlaylistService) Info(ctx context.Context, rawURL string) (*model.PlaylistInfo, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, model.NewError(model.ErrValidation, "URL is required")
	}
	if _, ok := s.classifier.Classify(rawURL); !ok {
		return nil, model.NewError(model.ErrValidation, "Unsupported URL format")
	}

	info, err := s.extract(ctx, rawURL)
	if err != nil {
		return nil, model.WrapError(model.ErrExtraction, "Failed to fetch playlist information", err)
	}
	if len(info.Videos) == 0 {
		return nil, model.NewError(model.ErrExtraction, "This URL does not contain a playlist")
	}
	return info, nil
}

// Expand classifies each URL in order. Playlist-like URLs are replaced by
// their entries; a playlist that cannot be listed degrades to the original
// URL. Blank and unsupported URLs are skipped.
func (s *PlaylistService) Expand(ctx context.Context, urls []string) model.ExpandResult {
	result := model.ExpandResult{
		IndividualURLs: []string{},
		PlaylistVideos: []model.PlaylistEntry{},
		AllURLs:        []string{},
	}

	for _, raw := range urls {
		u := strings.TrimSpace(raw)
		if u == "" {
			continue
		}
		if _, ok := s.classifier.Classify(u); !ok {
			logger.Logger.Debug("Skipping unsupported URL", zap.String("url", u))
			continue
		}

		if !validator.IsPlaylistURL(u) {
			result.IndividualURLs = append(result.IndividualURLs, u)
			result.AllURLs = append(result.AllURLs, u)
			continue
		}

		info, err := s.extract(ctx, u)
		if err != nil || info == nil || len(info.Videos) == 0 {
			logger.Logger.Warn("Playlist expansion failed, keeping URL as single entry",
				zap.String("url", u), zap.Error(err))
			result.IndividualURLs = append(result.IndividualURLs, u)
			result.AllURLs = append(result.AllURLs, u)
			continue
		}

		result.PlaylistsProcessed++
		for _, entry := range info.Videos {
			if entry.URL == "" {
				continue
			}
			entry.PlaylistTitle = info.Title
			result.PlaylistVideos = append(result.PlaylistVideos, entry)
			result.AllURLs = append(result.AllURLs, entry.URL)
		}
	}

	result.TotalVideos = len(result.AllURLs)
	return result
}

func (s *PlaylistService) extract(ctx context.Context, rawURL string) (*model.PlaylistInfo, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.extractor.ExtractPlaylist(ctx, rawURL)
}
