package service

import (
	"context"
	"errors"
	"testing"

	"mediadl/internal/model"
	"mediadl/pkg/validator"
)

type fakeInfo struct {
	info     *model.MediaInfo
	err      error
	platform model.Platform
}

func (f *fakeInfo) ExtractInfo(ctx context.Context, url string, platform model.Platform) (*model.MediaInfo, error) {
	f.platform = platform
	return f.info, f.err
}

func newTestVideoService(f *fakeInfo) *VideoService {
	cfg := testConfig()
	return NewVideoService(validator.NewClassifier(&cfg.Security), f, 5)
}

func TestVideoService_GetVideoInfo(t *testing.T) {
	f := &fakeInfo{info: &model.MediaInfo{
		Title:    "Clip",
		Uploader: "someone",
		Duration: 12.5,
		Streams:  []model.StreamDescriptor{video("v", 1080), audio("a", 128), combined("c", 360)},
	}}
	svc := newTestVideoService(f)

	info, playlist, err := svc.GetVideoInfo(context.Background(), youtubeURL)
	if err != nil || playlist != nil {
		t.Fatalf("GetVideoInfo() = %v, %v", playlist, err)
	}
	if info.Title != "Clip" || info.Platform != "youtube" || info.IsPlaylist {
		t.Errorf("info = %+v", info)
	}
	if len(info.Formats) != 2 || info.Formats[0].FormatID != "c" {
		t.Errorf("formats = %+v", info.Formats)
	}
	if info.BestFormatID != "" {
		t.Errorf("generic platform should not report a best format, got %s", info.BestFormatID)
	}
}

func TestVideoService_RestrictivePlatform(t *testing.T) {
	f := &fakeInfo{info: &model.MediaInfo{
		Streams: []model.StreamDescriptor{video("v720", 720), video("v1080", 1080), audio("a", 64)},
	}}
	svc := newTestVideoService(f)

	info, _, err := svc.GetVideoInfo(context.Background(), instagramURL)
	if err != nil {
		t.Fatalf("GetVideoInfo() error = %v", err)
	}
	if f.platform.Hint != model.HintShortFormRestrictive {
		t.Error("instagram should be classified restrictive")
	}
	if info.BestFormatID != "v1080+a" {
		t.Errorf("BestFormatID = %s, expected v1080+a", info.BestFormatID)
	}
}

func TestVideoService_Playlist(t *testing.T) {
	f := &fakeInfo{info: &model.MediaInfo{
		IsPlaylist: true,
		Playlist: &model.PlaylistInfo{
			Title:      "List",
			VideoCount: 1,
			Videos:     []model.PlaylistEntry{{VideoID: "x", URL: "https://www.youtube.com/watch?v=x"}},
			IsPlaylist: true,
		},
	}}
	svc := newTestVideoService(f)

	info, playlist, err := svc.GetVideoInfo(context.Background(), "https://www.youtube.com/playlist?list=PL1")
	if err != nil || info != nil || playlist == nil || playlist.Title != "List" {
		t.Errorf("GetVideoInfo() = %+v, %+v, %v", info, playlist, err)
	}
}

func TestVideoService_Errors(t *testing.T) {
	svc := newTestVideoService(&fakeInfo{err: errors.New("Sign in to confirm you're not a bot")})

	if _, _, err := svc.GetVideoInfo(context.Background(), ""); model.KindOf(err, "") != model.ErrValidation {
		t.Errorf("empty URL error = %v", err)
	}
	if _, _, err := svc.GetVideoInfo(context.Background(), "ftp://youtube.com/x"); model.KindOf(err, "") != model.ErrValidation {
		t.Errorf("unsupported URL error = %v", err)
	}
	if _, _, err := svc.GetVideoInfo(context.Background(), youtubeURL); model.KindOf(err, "") != model.ErrExtraction {
		t.Errorf("extractor failure error = %v, expected extraction", err)
	}
}
