package services

import (
	"context"
	"errors"
	"fmt"
	"net"

	"storyforge/internal/retry"
)

// ErrorCode identifies the normalized failure category of a provider call.
type ErrorCode string

const (
	ErrCodeAuthentication ErrorCode = "authentication"
	ErrCodeForbidden      ErrorCode = "forbidden"
	ErrCodeInvalidRequest ErrorCode = "invalid_request"
	ErrCodeQuotaExceeded  ErrorCode = "quota_exceeded"
	ErrCodeRateLimited    ErrorCode = "rate_limited"
	ErrCodeUpstream       ErrorCode = "upstream_unavailable"
	ErrCodeTimeout        ErrorCode = "timeout"
	ErrCodeNetwork        ErrorCode = "network"
	ErrCodeServer         ErrorCode = "server_error"
	ErrCodeBadResponse    ErrorCode = "bad_response"
)

// ProviderError is the uniform error shape both backends normalize into. It
// carries enough for the retry classifier without leaking backend payloads.
type ProviderError struct {
	Provider   string
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Provider, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Code, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

func newProviderError(provider string, code ErrorCode, msg string, cause error) *ProviderError {
	return &ProviderError{Provider: provider, Code: code, Message: msg, Cause: cause}
}

// codeForHTTPStatus maps an upstream HTTP status to a normalized code.
func codeForHTTPStatus(status int) ErrorCode {
	switch status {
	case 401:
		return ErrCodeAuthentication
	case 402:
		return ErrCodeQuotaExceeded
	case 403:
		return ErrCodeForbidden
	case 400, 404, 413, 422:
		return ErrCodeInvalidRequest
	case 408:
		return ErrCodeTimeout
	case 429:
		return ErrCodeRateLimited
	case 502, 503, 504:
		return ErrCodeUpstream
	default:
		if status >= 500 {
			return ErrCodeServer
		}
		return ErrCodeBadResponse
	}
}

// classify buckets a normalized provider failure for the retry policy.
// Anything not explicitly permanent or transient stays unknown, which the
// policy treats as retryable.
func classify(err error) retry.ErrorClass {
	var pe *ProviderError
	if errors.As(err, &pe) {
		switch pe.Code {
		case ErrCodeAuthentication, ErrCodeForbidden, ErrCodeInvalidRequest, ErrCodeQuotaExceeded:
			return retry.ClassPermanent
		case ErrCodeRateLimited, ErrCodeUpstream, ErrCodeTimeout, ErrCodeNetwork:
			return retry.ClassTransient
		default:
			return retry.ClassUnknown
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return retry.ClassTransient
	}
	if errors.Is(err, context.Canceled) {
		return retry.ClassPermanent
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return retry.ClassTransient
	}
	return retry.ClassUnknown
}

// ClassifyImageError and ClassifyStoryError are the call-site classifiers
// injected into the retry policy. They share one table today but stay
// separate so the boundaries can diverge per call site.
var (
	ClassifyImageError retry.ClassifyFunc = classify
	ClassifyStoryError retry.ClassifyFunc = classify
)
