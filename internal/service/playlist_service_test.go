package service

import (
	"context"
	"errors"
	"testing"

	"mediadl/internal/model"
	"mediadl/pkg/validator"
)

type fakePlaylists struct {
	playlists map[string]*model.PlaylistInfo
	calls     []string
}

func (f *fakePlaylists) ExtractPlaylist(ctx context.Context, url string) (*model.PlaylistInfo, error) {
	f.calls = append(f.calls, url)
	if info, ok := f.playlists[url]; ok {
		return info, nil
	}
	return nil, errors.New("ERROR: unable to download playlist")
}

func newTestPlaylistService(f *fakePlaylists) *PlaylistService {
	cfg := testConfig()
	return NewPlaylistService(validator.NewClassifier(&cfg.Security), f, 0)
}

const (
	goodPlaylist = "https://www.youtube.com/playlist?list=PLgood"
	badPlaylist  = "https://www.youtube.com/playlist?list=PLbad"
)

func playlistFixture() *fakePlaylists {
	return &fakePlaylists{playlists: map[string]*model.PlaylistInfo{
		goodPlaylist: {
			Title: "Mix",
			Videos: []model.PlaylistEntry{
				{VideoID: "a", Title: "A", URL: "https://www.youtube.com/watch?v=a"},
				{VideoID: "gone", Title: "Deleted video"},
				{VideoID: "b", Title: "B", URL: "https://www.youtube.com/watch?v=b"},
			},
			IsPlaylist: true,
		},
	}}
}

func TestPlaylistService_ExpandPreservesOrder(t *testing.T) {
	f := playlistFixture()
	svc := newTestPlaylistService(f)

	result := svc.Expand(context.Background(), []string{
		"https://youtu.be/first",
		goodPlaylist,
		"https://www.youtube.com/watch?v=last",
	})

	expectedAll := []string{
		"https://youtu.be/first",
		"https://www.youtube.com/watch?v=a",
		"https://www.youtube.com/watch?v=b",
		"https://www.youtube.com/watch?v=last",
	}
	if len(result.AllURLs) != len(expectedAll) {
		t.Fatalf("AllURLs = %v, expected %v", result.AllURLs, expectedAll)
	}
	for i := range expectedAll {
		if result.AllURLs[i] != expectedAll[i] {
			t.Errorf("AllURLs[%d] = %s, expected %s", i, result.AllURLs[i], expectedAll[i])
		}
	}
	if result.PlaylistsProcessed != 1 || result.TotalVideos != 4 {
		t.Errorf("processed = %d, total = %d", result.PlaylistsProcessed, result.TotalVideos)
	}
	if len(result.IndividualURLs) != 2 {
		t.Errorf("IndividualURLs = %v", result.IndividualURLs)
	}
	if len(result.PlaylistVideos) != 2 {
		t.Fatalf("PlaylistVideos = %+v", result.PlaylistVideos)
	}
	for _, v := range result.PlaylistVideos {
		if v.PlaylistTitle != "Mix" {
			t.Errorf("entry %s PlaylistTitle = %q", v.VideoID, v.PlaylistTitle)
		}
	}
	if len(f.calls) != 1 {
		t.Errorf("extractor called %d times, expected once", len(f.calls))
	}
}

func TestPlaylistService_ExpandFallsBackOnFailure(t *testing.T) {
	svc := newTestPlaylistService(playlistFixture())

	result := svc.Expand(context.Background(), []string{badPlaylist})

	if result.PlaylistsProcessed != 0 {
		t.Errorf("PlaylistsProcessed = %d, expected 0", result.PlaylistsProcessed)
	}
	if len(result.IndividualURLs) != 1 || result.IndividualURLs[0] != badPlaylist {
		t.Errorf("IndividualURLs = %v, expected the original URL", result.IndividualURLs)
	}
	if result.TotalVideos != 1 || len(result.PlaylistVideos) != 0 {
		t.Errorf("TotalVideos = %d, PlaylistVideos = %v", result.TotalVideos, result.PlaylistVideos)
	}
}

func TestPlaylistService_ExpandEmptyPlaylistFallsBack(t *testing.T) {
	f := &fakePlaylists{playlists: map[string]*model.PlaylistInfo{goodPlaylist: {Title: "Empty", IsPlaylist: true}}}
	svc := newTestPlaylistService(f)

	result := svc.Expand(context.Background(), []string{goodPlaylist})
	if result.PlaylistsProcessed != 0 || len(result.IndividualURLs) != 1 {
		t.Errorf("result = %+v, expected single-entry fallback", result)
	}
}

func TestPlaylistService_ExpandSkipsUnsupported(t *testing.T) {
	f := playlistFixture()
	svc := newTestPlaylistService(f)

	result := svc.Expand(context.Background(), []string{"", "   ", "https://example.com/playlist?list=x", "https://youtu.be/ok"})
	if len(result.AllURLs) != 1 || result.AllURLs[0] != "https://youtu.be/ok" {
		t.Errorf("AllURLs = %v", result.AllURLs)
	}
	if len(f.calls) != 0 {
		t.Errorf("extractor called for unsupported URLs: %v", f.calls)
	}

	empty := svc.Expand(context.Background(), nil)
	if empty.AllURLs == nil || empty.PlaylistVideos == nil || empty.IndividualURLs == nil {
		t.Error("empty result should use empty slices")
	}
}

func TestPlaylistService_Info(t *testing.T) {
	svc := newTestPlaylistService(playlistFixture())

	info, err := svc.Info(context.Background(), goodPlaylist)
	if err != nil || info.Title != "Mix" {
		t.Fatalf("Info() = %+v, %v", info, err)
	}

	if _, err := svc.Info(context.Background(), badPlaylist); model.KindOf(err, "") != model.ErrExtraction {
		t.Errorf("Info(bad) error = %v, expected extraction", err)
	}
	if _, err := svc.Info(context.Background(), "https://example.com/x"); model.KindOf(err, "") != model.ErrValidation {
		t.Errorf("Info(unsupported) error = %v, expected validation", err)
	}
}
