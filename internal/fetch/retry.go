package fetch

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
)

// retryTransport retries GET requests answered with a transient gateway
// status, with exponential backoff and a fixed attempt cap. Transport errors
// are returned as is.
type retryTransport struct {
	base     http.RoundTripper
	attempts uint
	backoff  time.Duration
	logger   *zap.Logger
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("transient HTTP status %d", e.code)
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var attempt uint
	return retry.DoWithData(func() (*http.Response, error) {
		attempt++
		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return nil, retry.Unrecoverable(err)
		}
		// The last attempt hands the response back to the caller.
		if isRetryableStatus(resp.StatusCode) && attempt < t.attempts {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			return nil, &statusError{code: resp.StatusCode}
		}
		return resp, nil
	},
		retry.Attempts(t.attempts),
		retry.Delay(t.backoff),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(req.Context()),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			t.logger.Debug("transient response, backing off",
				zap.String("url", req.URL.String()),
				zap.Uint("attempt", n+1),
				zap.Error(err))
		}),
	)
}

// CloseIdleConnections forwards to the wrapped transport.
func (t *retryTransport) CloseIdleConnections() {
	type closeIdler interface{ CloseIdleConnections() }
	if ci, ok := t.base.(closeIdler); ok {
		ci.CloseIdleConnections()
	}
}
