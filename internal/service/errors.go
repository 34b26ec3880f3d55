package service

import "errors"

var (
	// ErrNotIdentityCode is returned when a scanned code does not identify a user.
	ErrNotIdentityCode = errors.New("code is not an identity code")
	// ErrIdentityMismatch is returned when a hash code does not match the
	// current profile of the user it names.
	ErrIdentityMismatch = errors.New("identity code does not match user")
	// ErrRevoked is returned for signed codes whose ID has been revoked.
	ErrRevoked = errors.New("identity code has been revoked")
	// ErrSigningDisabled is returned when no signing secret is configured.
	ErrSigningDisabled = errors.New("signed identity codes are disabled")
	// ErrScanLogDisabled is returned when no database is configured.
	ErrScanLogDisabled = errors.New("scan log is disabled")
	// ErrForbidden is returned when the caller's level is too low.
	ErrForbidden = errors.New("insufficient permission")
	// ErrUndecodable is returned when an activity hash matches no candidate.
	ErrUndecodable = errors.New("activity hash could not be decoded")
	// ErrInvalidInput is returned for missing or malformed arguments.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAlreadySignedIn is returned when checking in a volunteer who has an
	// open record.
	ErrAlreadySignedIn = errors.New("volunteer is already signed in")
	// ErrNotSignedIn is returned when checking out a volunteer without an
	// open record.
	ErrNotSignedIn = errors.New("volunteer is not signed in")
)
