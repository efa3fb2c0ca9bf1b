package services

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel markers for failure classification. Stage processors never retry
// internally; they tag errors with one of these markers and the workflow
// manager decides whether the attempt is repeated.
var (
	// ErrTransient marks capability timeouts and other failures worth retrying.
	ErrTransient = errors.New("transient capability error")
	// ErrRateLimited marks capability rate-limit responses. Retryable.
	ErrRateLimited = errors.New("capability rate limited")
	// ErrMalformedInput marks empty/unsupported documents and corrupt chunk
	// data. Non-retryable and job-terminal.
	ErrMalformedInput = errors.New("malformed input")
	// ErrPolicyRejection marks content refused by a capability provider.
	// Non-retryable and job-terminal, kept distinct from malformed input for
	// user messaging.
	ErrPolicyRejection = errors.New("policy rejection")
	// ErrLeaseExpired marks work reclaimed after a lease deadline passed.
	// Internal; invisible to the job owner unless attempts exhaust.
	ErrLeaseExpired = errors.New("lease expired")
	// ErrConfiguration marks missing or invalid runtime configuration.
	ErrConfiguration = errors.New("configuration error")
)

// Classification is the stable error taxonomy surfaced through job status.
type Classification string

const (
	ClassTransient Classification = "transient_capability_error"
	ClassMalformed Classification = "malformed_input_error"
	ClassPolicy    Classification = "policy_rejection_error"
	ClassLease     Classification = "lease_expired_error"
	ClassUnknown   Classification = "internal_error"
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error to its taxonomy entry. Rate limits fold into the
// transient class for reporting; Retryable distinguishes them where it matters.
func Classify(err error) Classification {
	switch {
	case err == nil:
		return ClassUnknown
	case errors.Is(err, ErrTransient), errors.Is(err, ErrRateLimited):
		return ClassTransient
	case errors.Is(err, ErrMalformedInput), errors.Is(err, ErrConfiguration):
		return ClassMalformed
	case errors.Is(err, ErrPolicyRejection):
		return ClassPolicy
	case errors.Is(err, ErrLeaseExpired):
		return ClassLease
	default:
		return ClassUnknown
	}
}

// Retryable reports whether the workflow manager may re-attempt the stage.
// Unclassified errors are treated as retryable so an unexpected infrastructure
// hiccup does not immediately kill the job; attempts stay bounded either way.
func Retryable(err error) bool {
	switch Classify(err) {
	case ClassTransient, ClassLease, ClassUnknown:
		return err != nil
	default:
		return false
	}
}

// RetryAfterHint extracts a provider-supplied minimum delay before the next
// attempt, such as a Retry-After header carried by a rate-limit error. Zero
// means the error holds no hint.
func RetryAfterHint(err error) time.Duration {
	var hinted interface{ RetryAfterHint() time.Duration }
	if errors.As(err, &hinted) {
		return hinted.RetryAfterHint()
	}
	return 0
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

// Details extracts a user-presentable message from a wrapped stage error,
// dropping the sentinel prefix when present.
func Details(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, marker := range []error{ErrTransient, ErrRateLimited, ErrMalformedInput, ErrPolicyRejection, ErrLeaseExpired, ErrConfiguration} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return msg
}
