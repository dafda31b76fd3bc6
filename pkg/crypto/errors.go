package crypto

import "errors"

// Error taxonomy for the cipher, CMAC and CCM primitives.
//
// Parameter errors are detected before any output is produced and may be
// retried with corrected inputs. ErrAuthenticationFailure is the only
// security-relevant failure: no plaintext is released when it is returned.
var (
	// ErrBadParameters is the root of every parameter validation error.
	ErrBadParameters = errors.New("crypto: bad parameters")

	// ErrAuthenticationFailure is returned when a tag does not verify.
	ErrAuthenticationFailure = errors.New("crypto: message authentication failed")
)
