package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/dpedwards/webstore/pkg/errors"
)

// errorEnvelope mirrors the error half of httputil.Response.
type errorEnvelope struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponseError reads a non-2xx response into an *apperrors.AppError
// keeping the remote code and status. The body is consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	var env errorEnvelope
	if json.Unmarshal(body, &env) != nil || env.Error == nil {
		return fmt.Errorf("%s returned status %d: %s", serviceName, resp.StatusCode, string(body))
	}

	return &apperrors.AppError{
		Code:    env.Error.Code,
		Message: fmt.Sprintf("%s: %s", serviceName, env.Error.Message),
		Status:  resp.StatusCode,
		Err:     sentinelFor(resp.StatusCode),
	}
}

func sentinelFor(status int) error {
	switch {
	case status == http.StatusNotFound:
		return apperrors.ErrNotFound
	case status == http.StatusBadRequest, status == http.StatusUnsupportedMediaType:
		return apperrors.ErrInvalidInput
	case status == http.StatusConflict:
		return apperrors.ErrConflict
	case status == http.StatusServiceUnavailable:
		return apperrors.ErrServiceUnavail
	case status >= 500:
		return apperrors.ErrInternal
	default:
		return nil
	}
}
