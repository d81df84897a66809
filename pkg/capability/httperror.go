package capability

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ntclick/ai-research-roma/pkg/agent/llmerrors"
)

// HTTPError is a non-2xx response from a capability API.
type HTTPError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s error: HTTP %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s error: HTTP %d: %s", e.Service, e.StatusCode, e.Body)
}

// Transient reports whether the status is worth retrying later.
func (e *HTTPError) Transient() bool {
	switch llmerrors.ClassifyStatus(e.StatusCode) {
	case llmerrors.ErrorTypeTransient, llmerrors.ErrorTypeRateLimit:
		return true
	default:
		return false
	}
}

// CheckResponse returns an *HTTPError for non-2xx responses. The body is read
// and truncated; the caller still closes it.
func CheckResponse(service string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &HTTPError{Service: service, StatusCode: resp.StatusCode, Body: llmerrors.StubBody(string(body))}
}

// NewHTTPClient returns a client with a whole-request timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
