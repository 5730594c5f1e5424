// Package handlers implements the gin handlers of the ggufdeck HTTP API.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ThatCatDev/ggufdeck/internal/chats"
	"github.com/ThatCatDev/ggufdeck/internal/experiment"
	"github.com/ThatCatDev/ggufdeck/internal/hub"
	"github.com/ThatCatDev/ggufdeck/internal/models"
	"github.com/ThatCatDev/ggufdeck/internal/session"
	"github.com/ThatCatDev/ggufdeck/pkg/api"
)

func writeError(c *gin.Context, status int, errType, message string) {
	c.AbortWithStatusJSON(status, api.ErrorResponse{
		Error: api.ErrorDetail{
			Message: message,
			Type:    errType,
		},
	})
}

func badRequest(c *gin.Context, message string) {
	writeError(c, http.StatusBadRequest, "invalid_request", message)
}

// classify maps a domain error to an HTTP status and error type.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, models.ErrNotFound),
		errors.Is(err, chats.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, experiment.ErrUnknownKind):
		return http.StatusNotFound, "unknown_experiment"
	case errors.Is(err, session.ErrNotLoaded):
		return http.StatusConflict, "not_loaded"
	case errors.Is(err, session.ErrAlreadyLoaded):
		return http.StatusConflict, "already_loaded"
	case errors.Is(err, session.ErrLoading):
		return http.StatusConflict, "loading"
	case errors.Is(err, session.ErrBusy):
		return http.StatusTooManyRequests, "busy"
	case errors.Is(err, chats.ErrParse):
		return http.StatusUnprocessableEntity, "parse_error"
	case errors.Is(err, hub.ErrInvalidModelID):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, hub.ErrDownload):
		return http.StatusBadGateway, "download_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeDomainError(c *gin.Context, err error) {
	status, errType := classify(err)
	writeError(c, status, errType, err.Error())
}
