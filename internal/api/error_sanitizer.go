package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/zysolutions/octodash/internal/emailoctopus"
	"github.com/zysolutions/octodash/internal/pkg/httputil"
	"github.com/zysolutions/octodash/internal/pkg/logger"
)

// respondSafeError logs the internal error and sends a sanitized JSON error.
func respondSafeError(w http.ResponseWriter, code int, internalErr error, publicMsg string) {
	if internalErr != nil {
		logger.Error("API: request failed", "status", code, "msg", publicMsg, "error", internalErr.Error())
	}
	httputil.Error(w, code, publicMsg)
}

// respondUpstreamError maps an EmailOctopus failure to a response. 404s
// pass through; other API errors become 502 with the upstream status in
// details; transport failures get a generic message.
func respondUpstreamError(w http.ResponseWriter, err error) {
	var apiErr *emailoctopus.APIError
	switch {
	case errors.Is(err, emailoctopus.ErrNotFound):
		httputil.NotFound(w, "not found")
	case errors.As(err, &apiErr):
		logger.Warn("API: EmailOctopus error", "status", apiErr.StatusCode,
			"endpoint", apiErr.Endpoint, "body", truncate(apiErr.Body, 200))
		httputil.ErrorWithDetails(w, http.StatusBadGateway,
			fmt.Sprintf("EmailOctopus API error: %d", apiErr.StatusCode),
			map[string]interface{}{"status": apiErr.StatusCode})
	default:
		respondSafeError(w, http.StatusBadGateway, err, safeErrorMessage(http.StatusBadGateway, err))
	}
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// safeErrorMessage maps common internal error patterns to public-safe messages.
func safeErrorMessage(code int, internalErr error) string {
	if code < 500 {
		if internalErr != nil {
			return internalErr.Error()
		}
		return "Bad request"
	}

	if internalErr == nil {
		return "An internal error occurred"
	}

	errStr := strings.ToLower(internalErr.Error())

	switch {
	case strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "dial tcp"):
		return "Service temporarily unavailable"

	case strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "context canceled"):
		return "Request timed out"

	case strings.Contains(errStr, "sql") ||
		strings.Contains(errStr, "pq:") ||
		strings.Contains(errStr, "database"):
		return "A database error occurred"

	case strings.Contains(errStr, "permission") ||
		strings.Contains(errStr, "access denied"):
		return "Access denied"

	default:
		return "An internal error occurred"
	}
}
