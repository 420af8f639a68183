package model

// StreamDescriptor is one raw stream reported by the extractor
type StreamDescriptor struct {
	FormatID     string
	URL          string // empty means the stream cannot be fetched
	Ext          string
	Resolution   string // extractor-provided label, optional
	Height       int
	Width        int
	FPS          float64
	FileSize     int64
	VideoCodec   string // "none" or empty = no video track
	AudioCodec   string // "none" or empty = no audio track
	AudioBitrate float64
}

// HasVideo reports whether the stream carries a video track
func (s StreamDescriptor) HasVideo() bool {
	return s.VideoCodec != "" && s.VideoCodec != "none"
}

// HasAudio reports whether the stream carries an audio track
func (s StreamDescriptor) HasAudio() bool {
	return s.AudioCodec != "" && s.AudioCodec != "none"
}

// ResolvedFormat is a selectable format with both audio and video
type ResolvedFormat struct {
	FormatID      string  `json:"format_id"`
	Resolution    string  `json:"resolution"`
	Ext           string  `json:"ext"`
	FileSize      int64   `json:"filesize"`
	FPS           float64 `json:"fps"`
	VideoCodec    string  `json:"vcodec"`
	AudioCodec    string  `json:"acodec"`
	HasVideo      bool    `json:"has_video"`
	HasAudio      bool    `json:"has_audio"`
	QualityScore  int     `json:"quality_score"`
	IsVirtual     bool    `json:"is_virtual"`
	IsBest        bool    `json:"is_best,omitempty"`
	VideoFormatID string  `json:"video_format_id,omitempty"`
	AudioFormatID string  `json:"audio_format_id,omitempty"`
}

// MediaInfo is the metadata of a single media item or a playlist
type MediaInfo struct {
	Title      string
	Uploader   string
	Duration   float64
	Thumbnail  string
	ViewCount  int64
	Streams    []StreamDescriptor
	IsPlaylist bool
	Playlist   *PlaylistInfo
}

// VideoInfo is the response body for a single media item
type VideoInfo struct {
	URL          string           `json:"url"`
	Title        string           `json:"title"`
	Uploader     string           `json:"uploader"`
	Duration     float64          `json:"duration"`
	Thumbnail    string           `json:"thumbnail"`
	ViewCount    int64            `json:"view_count"`
	Platform     string           `json:"platform"`
	Formats      []ResolvedFormat `json:"formats"`
	BestFormatID string           `json:"best_format_id,omitempty"`
	IsPlaylist   bool             `json:"is_playlist"`
}

// PlaylistEntry is one video inside a playlist
type PlaylistEntry struct {
	VideoID       string  `json:"id"`
	Title         string  `json:"title"`
	Duration      float64 `json:"duration,omitempty"`
	Uploader      string  `json:"uploader,omitempty"`
	Thumbnail     string  `json:"thumbnail,omitempty"`
	URL           string  `json:"url"`
	PlaylistTitle string  `json:"playlist_title,omitempty"`
}

// PlaylistInfo describes a playlist and its entries
type PlaylistInfo struct {
	Title       string          `json:"title"`
	Uploader    string          `json:"uploader"`
	Description string          `json:"description"`
	VideoCount  int             `json:"video_count"`
	Videos      []PlaylistEntry `json:"videos"`
	IsPlaylist  bool            `json:"is_playlist"`
}

// ExpandResult is the classification of a bulk URL list
type ExpandResult struct {
	IndividualURLs     []string        `json:"individual_urls"`
	PlaylistVideos     []PlaylistEntry `json:"playlist_videos"`
	PlaylistsProcessed int             `json:"playlists_processed"`
	AllURLs            []string        `json:"all_urls"`
	TotalVideos        int             `json:"total_videos"`
}

// VideoInfoRequest is the POST body of the metadata endpoints
type VideoInfoRequest struct {
	URL string `json:"url" binding:"required"`
}

// DownloadRequest represents a user's download request
type DownloadRequest struct {
	URL      string `json:"url" binding:"required"`
	FormatID string `json:"format_id"`
}

// PlaylistDownloadRequest starts a playlist job
type PlaylistDownloadRequest struct {
	URL          string `json:"url" binding:"required"`
	MaxDownloads int    `json:"max_downloads"`
}

// BatchRequest carries a list of URLs
type BatchRequest struct {
	URLs []string `json:"urls" binding:"required"`
}

// DownloadResponse represents the response to a download request
type DownloadResponse struct {
	Success bool     `json:"success"`
	JobID   string   `json:"job_id,omitempty"`
	JobIDs  []string `json:"job_ids,omitempty"`
	Message string   `json:"message,omitempty"`
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}
