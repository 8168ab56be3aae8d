package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/logsmarket001/api-fidelity-trust/internal/apperrors"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// respondError maps the error taxonomy onto HTTP status codes.
func respondError(ctx *gin.Context, err error) {
	status := http.StatusInternalServerError
	label := "Internal error"

	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		status = http.StatusBadRequest
		label = "Validation failed"
	case apperrors.KindNotFound:
		status = http.StatusNotFound
		label = "Not found"
	case apperrors.KindInsufficientFunds:
		status = http.StatusUnprocessableEntity
		label = "Insufficient funds"
	case apperrors.KindConflict:
		status = http.StatusConflict
		label = "Conflict"
	case apperrors.KindDependency:
		status = http.StatusServiceUnavailable
		label = "Dependency unavailable"
	}

	ctx.JSON(status, ErrorResponse{Error: label, Message: err.Error()})
}

func parsePagination(ctx *gin.Context) (limit, offset int) {
	limit = 50
	offset = 0
	if v, err := strconv.Atoi(ctx.DefaultQuery("limit", "50")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	if v, err := strconv.Atoi(ctx.DefaultQuery("offset", "0")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}

func idempotencyKey(ctx *gin.Context) string {
	return ctx.GetHeader("Idempotency-Key")
}
