package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"

	"deckforge/internal/services"
)

// Marker maps a client error to the sentinel the workflow manager uses to
// decide whether the stage attempt is retried. Timeouts and rate limits are
// retryable; provider refusals are job-terminal.
func Marker(err error) error {
	if err == nil {
		return nil
	}

	var refusal *refusalError
	if errors.As(err, &refusal) {
		return services.ErrPolicyRejection
	}
	if errors.Is(err, services.ErrConfiguration) {
		return services.ErrConfiguration
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return services.ErrRateLimited
		case statusErr.StatusCode == http.StatusUnauthorized,
			statusErr.StatusCode == http.StatusForbidden:
			return services.ErrConfiguration
		default:
			return services.ErrTransient
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return services.ErrTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.ErrTransient
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return services.ErrTransient
	}

	return services.ErrTransient
}
