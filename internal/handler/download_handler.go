package handler

import (
	"net/http"

	"mediadl/internal/model"
	"mediadl/internal/service"
	"mediadl/internal/storage"
	"mediadl/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DownloadHandler handles job submission and progress requests
type DownloadHandler struct {
	downloadService *service.DownloadService
	store           *storage.ProgressStore
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(ds *service.DownloadService, store *storage.ProgressStore) *DownloadHandler {
	return &DownloadHandler{
		downloadService: ds,
		store:           store,
	}
}

// StartDownload handles POST /api/download
func (h *DownloadHandler) StartDownload(c *gin.Context) {
	var req model.DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "URL is required")
		return
	}

	jobID, err := h.downloadService.Submit(service.SubmitRequest{
		URL:      req.URL,
		FormatID: req.FormatID,
		Kind:     model.KindSingle,
	})
	if err != nil {
		logger.Logger.Warn("Download rejected", zap.String("url", req.URL), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.DownloadResponse{Success: true, JobID: jobID})
}

// StartPlaylistDownload handles POST /api/playlist/download
func (h *DownloadHandler) StartPlaylistDownload(c *gin.Context) {
	var req model.PlaylistDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "URL is required")
		return
	}

	jobID, err := h.downloadService.Submit(service.SubmitRequest{
		URL:          req.URL,
		Kind:         model.KindPlaylist,
		MaxDownloads: req.MaxDownloads,
	})
	if err != nil {
		logger.Logger.Warn("Playlist download rejected", zap.String("url", req.URL), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.DownloadResponse{Success: true, JobID: jobID})
}

// StartBatchDownload handles POST /api/batch/download
func (h *DownloadHandler) StartBatchDownload(c *gin.Context) {
	var req model.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.URLs) == 0 {
		respondBadRequest(c, "No URLs provided")
		return
	}

	jobIDs, err := h.downloadService.SubmitBatch(req.URLs)
	if err != nil && len(jobIDs) == 0 {
		respondError(c, err)
		return
	}

	resp := model.DownloadResponse{Success: true, JobIDs: jobIDs}
	if err != nil {
		resp.Message = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// GetProgress handles GET /api/progress/:id
func (h *DownloadHandler) GetProgress(c *gin.Context) {
	job, ok := h.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"status": "not_found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// CancelDownload handles DELETE /api/download/:id
func (h *DownloadHandler) CancelDownload(c *gin.Context) {
	id := c.Param("id")
	if err := h.downloadService.Cancel(id); err != nil {
		respondError(c, err)
		return
	}
	job, _ := h.store.Get(id)
	c.JSON(http.StatusOK, gin.H{"success": true, "data": job})
}

// HealthCheck handles GET /api/health
func (h *DownloadHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "media-downloader",
		"workers": h.downloadService.Stats(),
		"jobs":    h.store.Snapshot(),
	})
}
