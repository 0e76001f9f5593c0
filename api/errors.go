package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jrsteele09/bimi-admin/internal/errors"
)

const maxErrorBody = 64 << 10

// Error is a failure reported by the backend. Detail is the backend's own
// message, shown to the user verbatim.
type Error struct {
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Unauthorized reports whether the backend rejected the credentials.
func (e *Error) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// Is lets callers match backend refusals against the shared sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case errors.ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case errors.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// errorFromResponse reads and closes resp.Body.
func errorFromResponse(resp *http.Response) error {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &Error{
		StatusCode: resp.StatusCode,
		Detail:     extractDetail(body),
	}
}

// extractDetail pulls the human readable message out of an error payload.
// The backend uses {"detail": ...}; "message" and "error" are also accepted.
func extractDetail(body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	for _, key := range []string{"detail", "message", "error"} {
		if s := flattenDetail(payload[key]); s != "" {
			return s
		}
	}
	return ""
}

func flattenDetail(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := flattenDetail(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	case map[string]any:
		if s, ok := t["msg"].(string); ok {
			return s
		}
		if s, ok := t["message"].(string); ok {
			return s
		}
	}
	return ""
}

// Generic messages for failures that carry no backend detail.
const (
	MessageNetwork       = "Network error. Please check your connection and try again."
	MessageSessionEnded  = "Your session has ended. Please log in again."
	MessageRequestFailed = "Request failed. Please try again."
	MessageForbidden     = "You do not have permission to do that."
)

// DetailOf turns any client error into the message shown to the user.
func DetailOf(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		if apiErr.Unauthorized() {
			return MessageSessionEnded
		}
		if errors.Is(apiErr, errors.ErrForbidden) {
			return MessageForbidden
		}
		return MessageRequestFailed
	case errors.Is(err, errors.ErrNotAuthenticated),
		errors.Is(err, errors.ErrNoRefreshToken),
		errors.Is(err, errors.ErrRefreshFailed),
		errors.Is(err, errors.ErrSessionExpired):
		return MessageSessionEnded
	case errors.Is(err, errors.ErrTransport):
		return MessageNetwork
	case errors.Is(err, errors.ErrValidation):
		return strings.TrimSuffix(err.Error(), ": "+errors.ErrValidation.Error())
	default:
		return err.Error()
	}
}
