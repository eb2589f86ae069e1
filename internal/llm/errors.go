package llm

import (
	"errors"
	"strings"
)

// ErrFatalAPI marks provider errors that will not succeed on retry:
// exhausted credits, quota, or bad credentials. Callers should fail the
// task instead of retrying.
var ErrFatalAPI = errors.New("fatal API error")

// fatalPatterns are substrings of provider error messages that indicate
// a non-retryable condition.
var fatalPatterns = []string{
	"credit balance",
	"rate limit",
	"quota",
	"billing",
	"api key",
	"authentication",
	"unauthorized",
	"401",
	"403",
}

// isFatalAPIError reports whether err matches a known non-retryable
// provider failure.
func isFatalAPIError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range fatalPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// wrapFatalError joins ErrFatalAPI onto fatal provider errors so callers
// can check with errors.Is. Non-fatal errors pass through unchanged.
func wrapFatalError(err error) error {
	if err == nil {
		return nil
	}
	if isFatalAPIError(err) {
		return errors.Join(ErrFatalAPI, err)
	}
	return err
}
