package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/spigell/hh-outreach/internal/conversation"
	"github.com/spigell/hh-outreach/internal/outreach"
	"github.com/spigell/hh-outreach/internal/store"
)

type errorResponse struct {
	Error       string `json:"error"`
	Field       string `json:"field,omitempty"`
	Recoverable bool   `json:"recoverable"`
}

func statusOf(err error) int {
	var (
		vErr   *outreach.ValidationError
		genErr *outreach.GenerationError
		trErr  *outreach.TransportError
	)

	switch {
	case errors.Is(err, conversation.ErrContactNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicateContact):
		return http.StatusConflict
	case errors.As(err, &vErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &genErr), errors.As(err, &trErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func abort(c *gin.Context, err error) {
	resp := errorResponse{Error: err.Error(), Recoverable: outreach.IsRecoverable(err)}

	var vErr *outreach.ValidationError
	if errors.As(err, &vErr) {
		resp.Field = vErr.Field
	}

	c.AbortWithStatusJSON(statusOf(err), resp)
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}
