package apperr

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/faisalantu/tradebridge-systems/libs/metrics"
	"github.com/gin-gonic/gin"
)

type Response struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Status maps err to the HTTP status and response body. Internal details are
// never copied into the body.
func Status(err error) (int, Response) {
	var e *Error
	if !errors.As(err, &e) {
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusServiceUnavailable, Response{Code: "UNAVAILABLE", Message: "upstream timeout"}
		}
		return http.StatusInternalServerError, Response{Code: "INTERNAL_ERROR", Message: "internal error"}
	}

	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest, Response{Code: codeOr(e, "INVALID_REQUEST"), Message: e.Message, Fields: e.Fields}
	case KindNotFound:
		return http.StatusNotFound, Response{Code: codeOr(e, "NOT_FOUND"), Message: e.Message}
	case KindConflict:
		return http.StatusConflict, Response{Code: codeOr(e, "CONFLICT"), Message: e.Message}
	case KindTransient:
		return http.StatusServiceUnavailable, Response{Code: codeOr(e, "UNAVAILABLE"), Message: e.Message}
	case KindAuth:
		return http.StatusUnauthorized, Response{Code: codeOr(e, "UNAUTHORIZED"), Message: e.Message}
	case KindForbidden:
		return http.StatusForbidden, Response{Code: codeOr(e, "FORBIDDEN"), Message: e.Message}
	default:
		return http.StatusInternalServerError, Response{Code: "INTERNAL_ERROR", Message: "internal error"}
	}
}

func codeOr(e *Error, fallback string) string {
	if e.Code != "" {
		return e.Code
	}
	return fallback
}

// Write renders err as JSON. Validation and lookup failures are logged at
// debug, everything else at error with the full chain.
func Write(c *gin.Context, logger *slog.Logger, err error) {
	status, body := Status(err)
	metrics.ErrorResponses.WithLabelValues(body.Code).Inc()

	if logger != nil {
		attrs := []any{"code", body.Code, "path", c.FullPath(), "error", err}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request failed", attrs...)
		case status == http.StatusConflict:
			logger.Info("request conflict", attrs...)
		default:
			logger.Debug("request rejected", attrs...)
		}
	}
	c.AbortWithStatusJSON(status, body)
}
