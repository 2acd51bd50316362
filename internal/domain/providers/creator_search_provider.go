package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/zatekoja/creatorexplorer/backend/internal/domain/entities"
)

// CreatorSearchProvider runs paid searches against the creator data API
type CreatorSearchProvider interface {
	// Search returns the provider batch that contains the requested page.
	// The caller slices the page out with SearchBatch.Window.
	Search(ctx context.Context, identity entities.SearchIdentity, page, size int) (*entities.SearchBatch, error)
}

// ProfileProvider looks up the basic profile of one platform account
type ProfileProvider interface {
	GetBasicProfile(ctx context.Context, platform, platformID string) (*entities.BasicProfile, error)
}

// ProviderErrorKind classifies creator API failures
type ProviderErrorKind string

const (
	ProviderErrorAuthFailed         ProviderErrorKind = "AuthFailed"
	ProviderErrorCreditExhausted    ProviderErrorKind = "CreditExhausted"
	ProviderErrorRateLimited        ProviderErrorKind = "RateLimited"
	ProviderErrorValidationRejected ProviderErrorKind = "ValidationRejected"
	ProviderErrorNotFound           ProviderErrorKind = "NotFound"
	ProviderErrorTimeout            ProviderErrorKind = "Timeout"
	ProviderErrorUpstream           ProviderErrorKind = "Upstream"
	ProviderErrorDecode             ProviderErrorKind = "Decode"
)

// ProviderError is a typed failure from the creator data API
type ProviderError struct {
	Kind       ProviderErrorKind
	StatusCode int
	Code       string // provider error code, e.g. "FilterValueType"
	Message    string
	Hint       string
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("creator provider %s", e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Code != "" {
		msg += " " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Transient reports whether retrying the call may succeed
func (e *ProviderError) Transient() bool {
	switch e.Kind {
	case ProviderErrorRateLimited, ProviderErrorTimeout, ProviderErrorUpstream:
		return true
	}
	return false
}

// AsProviderError extracts a ProviderError from err's chain
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsTransient reports whether err is a retryable provider failure
func IsTransient(err error) bool {
	if pe, ok := AsProviderError(err); ok {
		return pe.Transient()
	}
	return false
}
