package access

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

// ErrUnableToFindSession is returned when a request carries no session
var ErrUnableToFindSession = errors.New("unable to find session")

// ErrUnableToDecodeSession unable to decode the session token
var ErrUnableToDecodeSession = errors.New("unable to decode session")

// ErrUnableToMapClaims unable to get claims from token
var ErrUnableToMapClaims = errors.New("unable to map claims")

// ErrUnableToParseData parse error
var ErrUnableToParseData = errors.New("unable to parse data")

const (
	textCodeNotAuthenticated   = "NOT_AUTHENTICATED"
	textCodeVerificationFailed = "VERIFICATION_FAILED"
	textCodeRelayTimeout       = "RELAY_TIMEOUT"
	textCodeDeliveryFailed     = "DELIVERY_FAILED"
	textCodeUnknownResponse    = "UNKNOWN_RESPONSE"
	textCodeStaleSession       = "STALE_SESSION"
	textCodeStoreError         = "STORE_ERROR"
	textCodeDuplicateAccount   = "DUPLICATE_ACCOUNT"
	textCodeInvalidCredentials = "INVALID_CREDENTIALS"
)

// ErrNotAuthenticated is returned by mutating operations attempted
// without a live session.
var ErrNotAuthenticated = goerrors.New("Not authenticated", goerrors.CategoryAuth).
	WithTextCode(textCodeNotAuthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrVerificationFailed means the bot check rejected the token or scored it
// below threshold.
var ErrVerificationFailed = goerrors.New("Human verification failed. Please try again.", goerrors.CategoryAuth).
	WithTextCode(textCodeVerificationFailed).
	WithCode(goerrors.CodeUnauthorized)

// ErrRelayTimeout means the relay got no response within its bounded window.
// The underlying request is aborted, not abandoned.
var ErrRelayTimeout = goerrors.New("Request timed out. Please try again.", goerrors.CategoryOperation).
	WithTextCode(textCodeRelayTimeout).
	WithCode(goerrors.CodeInternal)

// ErrDeliveryFailed means verification passed but the downstream notification
// dispatch did not.
var ErrDeliveryFailed = goerrors.New("Failed to send notification.", goerrors.CategoryInternal).
	WithTextCode(textCodeDeliveryFailed).
	WithCode(goerrors.CodeInternal)

// ErrUnknownResponse means the relay endpoint answered with something we
// could not parse.
var ErrUnknownResponse = goerrors.New("Unable to send. Please try again.", goerrors.CategoryInternal).
	WithTextCode(textCodeUnknownResponse).
	WithCode(goerrors.CodeInternal)

// ErrStaleSession means a session failed server-side revalidation. It is
// recovered internally by a forced sign-out and never reaches callers.
var ErrStaleSession = goerrors.New("session failed revalidation", goerrors.CategoryAuth).
	WithTextCode(textCodeStaleSession).
	WithCode(goerrors.CodeUnauthorized)

// ErrDuplicateAccount is reported when sign-up hits an already registered
// email. No session is created.
var ErrDuplicateAccount = goerrors.New("An account with this email already exists. Please log in instead.", goerrors.CategoryConflict).
	WithTextCode(textCodeDuplicateAccount).
	WithCode(goerrors.CodeConflict)

// ErrInvalidCredentials is the generic sign-in failure. It deliberately does
// not distinguish unknown email from wrong password.
var ErrInvalidCredentials = goerrors.New("Invalid email or password", goerrors.CategoryAuth).
	WithTextCode(textCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned for tokens past their expiry.
var ErrTokenExpired = goerrors.New("Authentication token expired", goerrors.CategoryAuth).
	WithTextCode("TOKEN_EXPIRED").
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned for tokens we cannot parse or verify.
var ErrTokenMalformed = goerrors.New("Invalid authentication token", goerrors.CategoryAuth).
	WithTextCode("TOKEN_MALFORMED").
	WithCode(goerrors.CodeUnauthorized)

// NormalizeStoreError converts raw store failures into the fixed taxonomy at
// the boundary, passing the message through as-is. Rich errors are returned
// untouched so sentinels survive errors.Is checks downstream.
func NormalizeStoreError(err error) error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}

	return goerrors.Wrap(err, goerrors.CategoryInternal, err.Error()).
		WithTextCode(textCodeStoreError).
		WithCode(goerrors.CodeInternal)
}

// UserMessage extracts the user-displayable string for an operation failure.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Message
	}

	return err.Error()
}
