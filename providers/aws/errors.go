package aws

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"

	"github.com/kilnhq/kiln/internal/ir"
)

// Error codes the SDK reports for conditions that clear on their own.
var transientCodes = map[string]bool{
	"Throttling":                  true,
	"ThrottlingException":         true,
	"ThrottledException":          true,
	"RequestLimitExceeded":        true,
	"TooManyRequestsException":    true,
	"RequestTimeout":              true,
	"RequestTimeoutException":     true,
	"ServiceUnavailable":          true,
	"ServiceUnavailableException": true,
	"InternalError":               true,
	"InternalFailure":             true,
}

// classify wraps an SDK error as transient or permanent so the engine
// knows whether retrying is worthwhile. A nil error stays nil.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if transientCodes[apiErr.ErrorCode()] {
			return &ir.TransientAPIError{Err: err}
		}
		return &ir.PermanentAPIError{Err: err}
	}

	// Connection-level failures never carry an API error code.
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "connection reset", "connection refused", "no such host", "eof"} {
		if strings.Contains(msg, pattern) {
			return &ir.TransientAPIError{Err: err}
		}
	}
	return &ir.PermanentAPIError{Err: err}
}
