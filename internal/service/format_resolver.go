package service

import (
	"fmt"
	"sort"

	"mediadl/internal/model"
)

const (
	combinedBonus    = 2000
	virtualBonus     = 1000
	restrictiveBase  = 10000
	restrictiveMP4   = 100
	restrictiveFPS   = 50
	minVirtualHeight = 240
	defaultExt       = "mp4"
)

// ResolveFormats turns a raw stream catalog into the list of selectable
// formats, best first. Every returned format carries both audio and video:
// combined streams are exposed as-is and each video-only stream is paired
// with the best audio-only stream. Unpaired single-track streams are never
// returned.
func ResolveFormats(streams []model.StreamDescriptor, hint model.ResolutionHint) []model.ResolvedFormat {
	var combined, videoOnly, audioOnly []model.StreamDescriptor
	for _, s := range streams {
		if s.URL == "" {
			continue
		}
		switch {
		case s.HasVideo() && s.HasAudio():
			combined = append(combined, s)
		case s.HasVideo():
			videoOnly = append(videoOnly, s)
		case s.HasAudio():
			audioOnly = append(audioOnly, s)
		}
	}

	restrictive := hint == model.HintShortFormRestrictive
	formats := make([]model.ResolvedFormat, 0, len(combined)+len(videoOnly))

	for _, s := range combined {
		ext := s.Ext
		if ext == "" {
			ext = defaultExt
		}
		formats = append(formats, model.ResolvedFormat{
			FormatID:     s.FormatID,
			Resolution:   resolutionLabel(s),
			Ext:          ext,
			FileSize:     s.FileSize,
			FPS:          s.FPS,
			VideoCodec:   s.VideoCodec,
			AudioCodec:   s.AudioCodec,
			HasVideo:     true,
			HasAudio:     true,
			QualityScore: combinedScore(s, restrictive),
		})
	}

	if len(videoOnly) > 0 && len(audioOnly) > 0 {
		audio := bestAudio(audioOnly)
		for _, v := range videoOnly {
			if v.Height < minVirtualHeight {
				continue
			}
			score := v.Height + virtualBonus
			if restrictive {
				score = restrictiveBase + v.Height
			}
			formats = append(formats, model.ResolvedFormat{
				FormatID:      v.FormatID + "+" + audio.FormatID,
				Resolution:    resolutionLabel(v),
				Ext:           defaultExt,
				FileSize:      v.FileSize + audio.FileSize,
				FPS:           v.FPS,
				VideoCodec:    v.VideoCodec,
				AudioCodec:    audio.AudioCodec,
				HasVideo:      true,
				HasAudio:      true,
				QualityScore:  score,
				IsVirtual:     true,
				VideoFormatID: v.FormatID,
				AudioFormatID: audio.FormatID,
			})
		}
	}

	sort.SliceStable(formats, func(i, j int) bool {
		return formats[i].QualityScore > formats[j].QualityScore
	})

	if restrictive && len(formats) > 0 {
		formats[0].IsBest = true
	}

	return formats
}

// BestFormatID returns the id of the format flagged as best, if any
func BestFormatID(formats []model.ResolvedFormat) string {
	for _, f := range formats {
		if f.IsBest {
			return f.FormatID
		}
	}
	return ""
}

func combinedScore(s model.StreamDescriptor, restrictive bool) int {
	if !restrictive {
		return s.Height + combinedBonus
	}
	score := restrictiveBase + s.Height
	if s.Ext == "mp4" {
		score += restrictiveMP4
	}
	if s.FPS >= 30 {
		score += restrictiveFPS
	}
	return score
}

// bestAudio picks the highest bitrate; the first one seen wins ties
func bestAudio(audio []model.StreamDescriptor) model.StreamDescriptor {
	best := audio[0]
	for _, a := range audio[1:] {
		if a.AudioBitrate > best.AudioBitrate {
			best = a
		}
	}
	return best
}

func resolutionLabel(s model.StreamDescriptor) string {
	switch {
	case s.Resolution != "":
		return s.Resolution
	case s.Height > 0 && s.Width > 0:
		return fmt.Sprintf("%dx%d", s.Width, s.Height)
	case s.Height > 0:
		return fmt.Sprintf("%dp", s.Height)
	default:
		return "Unknown"
	}
}
