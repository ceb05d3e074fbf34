package ai

import "errors"

// ErrRateLimited indicates the model service rejected a request because of rate
// limiting or an exhausted quota.
var ErrRateLimited = errors.New("model service rate limited")

// ErrInvalidMaxAttempts is returned by RetryWithBackoff when maxAttempts is not positive.
var ErrInvalidMaxAttempts = errors.New("max attempts must be positive")
