package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"docpipe/internal/doccache"
	"docpipe/internal/filestore"
	"docpipe/internal/http/middleware"
	"docpipe/internal/parser"
	"docpipe/internal/pipeline"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// writeDomainError maps pipeline/store errors onto HTTP statuses. NotFound is
// recoverable (re-upload / re-parse), InvalidFormat is a caller input error,
// ErrUnavailable means the parser capability is missing and callers should
// degrade, Parse/Export errors blame the artifact itself.
func writeDomainError(c *fiber.Ctx, err error) error {
	var parseErr *parser.ParseError
	var exportErr *parser.ExportError

	switch {
	case errors.Is(err, filestore.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "FILE_NOT_FOUND", "file not found or expired")
	case errors.Is(err, doccache.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "DOCUMENT_NOT_FOUND", "document not found or expired")
	case errors.Is(err, pipeline.ErrInvalidFormat):
		return writeError(c, fiber.StatusBadRequest, "INVALID_FORMAT", "unsupported export format")
	case errors.Is(err, parser.ErrUnavailable):
		return writeError(c, fiber.StatusServiceUnavailable, "PARSER_UNAVAILABLE", "parser capability unavailable")
	case errors.As(err, &parseErr):
		return writeError(c, fiber.StatusUnprocessableEntity, "PARSE_FAILED", parseErr.Cause)
	case errors.As(err, &exportErr):
		return writeError(c, fiber.StatusUnprocessableEntity, "EXPORT_FAILED", exportErr.Cause)
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
