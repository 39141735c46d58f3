package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// ErrInvalidArgument is returned before any I/O when an operation is called
// with an empty id or an impossible page.
var ErrInvalidArgument = errors.New("invalid argument")

// AuthError reports a missing, expired or rejected credential (HTTP 401/403).
type AuthError struct {
	StatusCode int
	Detail     string
	Method     string
	Path       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s %s: not authorized (status %d): %s", e.Method, e.Path, e.StatusCode, e.Detail)
}

// RequestError reports a non-2xx response other than an auth rejection.
type RequestError struct {
	StatusCode int
	Detail     string
	Method     string
	Path       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Detail)
}

// NotFound reports whether the server answered 404.
func (e *RequestError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// NetworkError reports a request that never produced a response.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: network error: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// DecodeError reports a response body that is not the expected JSON.
type DecodeError struct {
	Method string
	Path   string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s %s: decode response: %v", e.Method, e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsAuth reports whether err is an *AuthError.
func IsAuth(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// outcome buckets an error for metrics labels.
func outcome(err error) string {
	var (
		authErr    *AuthError
		requestErr *RequestError
		networkErr *NetworkError
		decodeErr  *DecodeError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &authErr):
		return "auth_error"
	case errors.As(err, &requestErr):
		return "request_error"
	case errors.As(err, &networkErr):
		return "network_error"
	case errors.As(err, &decodeErr):
		return "decode_error"
	default:
		return "invalid"
	}
}

const maxDetailLength = 512

// errorDetail extracts the server's explanation from an error body. It
// understands {"detail": "..."}, {"detail": [{"msg": "..."}]},
// {"message": "..."} and {"error": "..."}, then falls back to the raw body
// and finally the status text.
func errorDetail(status int, body []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if len(payload.Detail) > 0 {
			var text string
			if json.Unmarshal(payload.Detail, &text) == nil && text != "" {
				return text
			}
			var items []struct {
				Msg string `json:"msg"`
			}
			if json.Unmarshal(payload.Detail, &items) == nil && len(items) > 0 {
				msgs := make([]string, 0, len(items))
				for _, item := range items {
					if item.Msg != "" {
						msgs = append(msgs, item.Msg)
					}
				}
				if len(msgs) > 0 {
					return strings.Join(msgs, "; ")
				}
			}
		}
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" && !strings.HasPrefix(text, "{") {
		if len(text) > maxDetailLength {
			cut := maxDetailLength
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			text = text[:cut]
		}
		return text
	}
	return http.StatusText(status)
}
