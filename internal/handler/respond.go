package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"event-planner-core/internal/transport/httpdto"
	core_errors "event-planner-core/pkg/errors"
)

// respondError translates service sentinels into the HTTP envelope. Anything
// unrecognized is an opaque 500.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core_errors.ErrMissingSignature):
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("missing signature", httpdto.CodeMissingSignature))
	case errors.Is(err, core_errors.ErrInvalidSignature):
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("invalid signature", httpdto.CodeInvalidSignature))
	case errors.Is(err, core_errors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", httpdto.CodeUnauthorized))
	case errors.Is(err, core_errors.ErrForbidden):
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("insufficient permissions", httpdto.CodeForbidden))
	case errors.Is(err, core_errors.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), httpdto.CodeInvalidInput))
	case errors.Is(err, core_errors.ErrNotFound):
		c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("not found", httpdto.CodeNotFound))
	case errors.Is(err, core_errors.ErrNotRetryable):
		c.JSON(http.StatusConflict, httpdto.NewErrorResponse("job is not in a retryable state", httpdto.CodeJobNotInPending))
	case errors.Is(err, core_errors.ErrNotCancellable):
		c.JSON(http.StatusConflict, httpdto.NewErrorResponse("job is not cancellable", httpdto.CodeNotCancellable))
	case errors.Is(err, core_errors.ErrDeliveryInProgress):
		c.JSON(http.StatusConflict, httpdto.NewErrorResponse("delivery is being processed", httpdto.CodeInProgress))
	case errors.Is(err, core_errors.ErrConflict), errors.Is(err, core_errors.ErrInvalidTransition), errors.Is(err, core_errors.ErrAlreadyExists):
		c.JSON(http.StatusConflict, httpdto.NewErrorResponse(err.Error(), httpdto.CodeConflict))
	case errors.Is(err, core_errors.ErrServiceUnavailable):
		c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse("collaborator unavailable", httpdto.CodeServiceUnavailable))
	default:
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("internal error", httpdto.CodeInternalError))
	}
}
