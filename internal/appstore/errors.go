package appstore

import "errors"

// Error taxonomy surfaced by the login, purchase and download paths. Callers
// match with errors.Is; ErrTokenExpired is the one a caller is expected to
// handle specially (force logout and re-login).
var (
	ErrInvalidCredentials     = errors.New("invalid apple id or password")
	ErrNetwork                = errors.New("network error")
	ErrTwoFactorRequired      = errors.New("two-factor authentication required")
	ErrAccountLocked          = errors.New("account is locked")
	ErrTokenExpired           = errors.New("password token expired")
	ErrLicenseNotFound        = errors.New("license not found")
	ErrTemporarilyUnavailable = errors.New("item is temporarily unavailable")
)

// UnknownError carries the server's customer facing message when no more
// specific classification applies.
type UnknownError struct {
	Message string
}

func (e *UnknownError) Error() string {
	if e.Message == "" {
		return "unknown error"
	}
	return e.Message
}

// classifyFailure maps the fixed set of MZFinance failureType codes to typed
// errors. The same mapping is shared by login, purchase and download.
func classifyFailure(failureType, customerMessage string) error {
	switch failureType {
	case "":
		return nil
	case FailureTypeInvalidCredentials:
		return ErrInvalidCredentials
	case FailureTypePasswordTokenExpired:
		return ErrTokenExpired
	case FailureTypeLicenseNotFound:
		return ErrLicenseNotFound
	case FailureTypeTemporarilyUnavailable:
		return ErrTemporarilyUnavailable
	default:
		return &UnknownError{Message: customerMessage}
	}
}
