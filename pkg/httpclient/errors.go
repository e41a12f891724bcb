package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/myreviews/storefront/pkg/errors"
)

// upstreamErrorBody covers the error shapes the product API is known to send:
// {"error":{"code":..,"message":..}}, {"error":"..."} and {"message":"..."}.
type upstreamErrorBody struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

type upstreamErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ParseResponseError consumes and closes the body of a non-2xx response and
// translates it into an AppError. Only call it when the status is not 2xx.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperrors.Upstream(serviceName, fmt.Errorf("status %d, read body: %w", resp.StatusCode, err))
	}

	return mapUpstreamError(resp.StatusCode, extractMessage(body), serviceName)
}

func extractMessage(body []byte) string {
	var parsed upstreamErrorBody
	if json.Unmarshal(body, &parsed) != nil {
		return strings.TrimSpace(string(body))
	}

	if len(parsed.Error) > 0 {
		var detail upstreamErrorDetail
		if json.Unmarshal(parsed.Error, &detail) == nil && detail.Message != "" {
			return detail.Message
		}
		var msg string
		if json.Unmarshal(parsed.Error, &msg) == nil && msg != "" {
			return msg
		}
	}
	if parsed.Message != "" {
		return parsed.Message
	}
	return strings.TrimSpace(string(body))
}

func mapUpstreamError(status int, message, serviceName string) error {
	if message == "" {
		message = http.StatusText(status)
	}

	switch {
	case status == http.StatusNotFound:
		return &apperrors.AppError{
			Code:    "NOT_FOUND",
			Message: message,
			Status:  http.StatusNotFound,
			Err:     apperrors.ErrNotFound,
		}
	case status == http.StatusBadRequest:
		return apperrors.InvalidInput(message)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperrors.Unauthorized(message)
	case status == http.StatusConflict:
		return apperrors.Conflict(message)
	case status == http.StatusUnprocessableEntity:
		return apperrors.Rejected(message)
	case status == http.StatusTooManyRequests:
		return apperrors.RateLimited(message)
	case status == http.StatusServiceUnavailable:
		return &apperrors.AppError{
			Code:    "SERVICE_UNAVAILABLE",
			Message: serviceName + " is unavailable",
			Status:  http.StatusServiceUnavailable,
			Err:     errors.Join(apperrors.ErrServiceUnavail, errors.New(message)),
		}
	default:
		return apperrors.Upstream(serviceName, fmt.Errorf("status %d: %s", status, message))
	}
}

// IsClientError reports whether status is a 4xx.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
