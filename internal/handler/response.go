package handler

import (
	"errors"
	"net/http"

	"mediadl/internal/model"
	"mediadl/internal/storage"

	"github.com/gin-gonic/gin"
)

func statusForError(err error) int {
	if errors.Is(err, storage.ErrJobNotFound) {
		return http.StatusNotFound
	}
	switch model.KindOf(err, "") {
	case model.ErrValidation:
		return http.StatusBadRequest
	case model.ErrExtraction:
		return http.StatusBadGateway
	case model.ErrBusy:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error with a status derived from its kind
func respondError(c *gin.Context, err error) {
	code := statusForError(err)
	c.JSON(code, model.ErrorResponse{
		Success: false,
		Error:   err.Error(),
		Kind:    string(model.KindOf(err, "")),
		Code:    code,
	})
}

func respondBadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, model.ErrorResponse{
		Success: false,
		Error:   msg,
		Kind:    string(model.ErrValidation),
		Code:    http.StatusBadRequest,
	})
}
