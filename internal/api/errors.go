// Package api provides error handling utilities for HTTP APIs
package api

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/mantonx/fragreel/internal/logger"
	"github.com/mantonx/fragreel/internal/types"
)

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// RespondWithError sends a structured error response
func RespondWithError(c *gin.Context, err error) {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		appErr = types.NewInternalError("Internal server error", err)
	}

	status := appErr.HTTPStatus
	if status == 0 {
		status = types.HTTPStatusFromErrorCode(appErr.Code)
	}

	logError(c, appErr)

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:   appErr.Message,
		Code:    string(appErr.Code),
		Details: appErr.Context,
	})
}

// RespondWithValidationError sends a validation error response
func RespondWithValidationError(c *gin.Context, message string, details ...string) {
	RespondWithError(c, types.NewValidationError(message, details...))
}

// RespondWithNotFound sends a not found error response
func RespondWithNotFound(c *gin.Context, message string) {
	RespondWithError(c, types.NewNotFoundError(message))
}

// RespondWithInternalError sends an internal error response
func RespondWithInternalError(c *gin.Context, message string, cause error) {
	RespondWithError(c, types.NewInternalError(message, cause))
}

// logError logs the error with appropriate severity
func logError(c *gin.Context, err *types.AppError) {
	fields := []interface{}{
		"error_code", err.Code,
		"error_message", err.Message,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
	}

	if err.Details != "" {
		fields = append(fields, "details", err.Details)
	}

	for k, v := range err.Context {
		fields = append(fields, k, v)
	}

	if err.Cause != nil {
		fields = append(fields, "cause", err.Cause.Error())
	}

	switch err.Severity {
	case types.SeverityCritical, types.SeverityError:
		logger.Error("request failed", fields...)
	case types.SeverityWarning:
		logger.Warn("request rejected", fields...)
	default:
		logger.Debug("request rejected", fields...)
	}
}

// ErrorMiddleware is a middleware that recovers from panics and handles errors
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				var err error
				switch v := r.(type) {
				case error:
					err = v
				default:
					err = fmt.Errorf("%v", v)
				}

				logger.Error("panic recovered",
					"error", err,
					"request_path", c.Request.URL.Path,
					"request_method", c.Request.Method,
				)

				RespondWithError(c, types.NewInternalError("Internal server error", err))
			}
		}()

		c.Next()
	}
}

// NoRoute answers unknown paths with the standard error body
func NoRoute(c *gin.Context) {
	RespondWithNotFound(c, "Not found")
}
