package inference

import (
	"errors"
	"fmt"
)

// ErrUnreachable wraps connect/network failures talking to the inference
// service. The worker treats these as retryable.
var ErrUnreachable = errors.New("inference service unreachable")

// ErrTimeout wraps deadline exceedances. Also retryable.
var ErrTimeout = errors.New("inference request timed out")

// RemoteError is a non-2xx response from the inference service. 4xx means
// the input itself is bad and a retry cannot help.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("inference service returned %d: %s", e.Status, e.Message)
}

// Retryable reports whether a retry could plausibly succeed.
func (e *RemoteError) Retryable() bool {
	return e.Status >= 500
}

// IsRetryable classifies an inference client error for retry policy.
// Unreachable, timeouts and 5xx are retryable; 4xx is permanent.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrUnreachable) || errors.Is(err, ErrTimeout) {
		return true
	}
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.Retryable()
	}
	return false
}
