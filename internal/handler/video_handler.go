package handler

import (
	"net/http"

	"mediadl/internal/model"
	"mediadl/internal/service"
	"mediadl/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// VideoHandler handles metadata and playlist requests
type VideoHandler struct {
	videoService    *service.VideoService
	playlistService *service.PlaylistService
}

// NewVideoHandler creates a new video handler
func NewVideoHandler(vs *service.VideoService, ps *service.PlaylistService) *VideoHandler {
	return &VideoHandler{
		videoService:    vs,
		playlistService: ps,
	}
}

// GetVideoInfo handles GET and POST /api/video/info
func (h *VideoHandler) GetVideoInfo(c *gin.Context) {
	videoURL := c.Query("url")
	if c.Request.Method == http.MethodPost {
		var req model.VideoInfoRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "URL is required")
			return
		}
		videoURL = req.URL
	}

	video, playlist, err := h.videoService.GetVideoInfo(c.Request.Context(), videoURL)
	if err != nil {
		logger.Logger.Warn("Video info request failed", zap.String("url", videoURL), zap.Error(err))
		respondError(c, err)
		return
	}

	if playlist != nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": playlist})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": video})
}

// GetPlaylistInfo handles POST /api/playlist/info
func (h *VideoHandler) GetPlaylistInfo(c *gin.Context) {
	var req model.VideoInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "URL is required")
		return
	}

	info, err := h.playlistService.Info(c.Request.Context(), req.URL)
	if err != nil {
		logger.Logger.Warn("Playlist info request failed", zap.String("url", req.URL), zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": info})
}

// ExpandBatch handles POST /api/batch/expand
func (h *VideoHandler) ExpandBatch(c *gin.Context) {
	var req model.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.URLs) == 0 {
		respondBadRequest(c, "No URLs provided")
		return
	}

	result := h.playlistService.Expand(c.Request.Context(), req.URLs)
	logger.Logger.Info("Batch expanded",
		zap.Int("input", len(req.URLs)),
		zap.Int("playlists", result.PlaylistsProcessed),
		zap.Int("total_videos", result.TotalVideos))
	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}
