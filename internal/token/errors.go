package token

import "errors"

// Code identifies one verification failure class. Codes are stable wire
// values consumed by callers and logs.
type Code string

const (
	CodeInvalidFormat        Code = "INVALID_FORMAT"
	CodeInvalidJSON          Code = "INVALID_JSON"
	CodeUnsupportedAlgorithm Code = "UNSUPPORTED_ALGORITHM"
	CodeInvalidSignature     Code = "INVALID_SIGNATURE"
	CodeInvalidIssuer        Code = "INVALID_ISSUER"
	CodeInvalidAudience      Code = "INVALID_AUDIENCE"
	CodeExpired              Code = "TOKEN_EXPIRED"
	CodeNotYetValid          Code = "TOKEN_NOT_YET_VALID"
	CodeRevoked              Code = "TOKEN_REVOKED"
)

// Error is a verification failure carrying its stable code.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return "token: " + e.Message }

// Verification failure sentinels, one per code. Callers match with errors.Is.
var (
	ErrInvalidFormat        = &Error{CodeInvalidFormat, "token must have three segments"}
	ErrInvalidJSON          = &Error{CodeInvalidJSON, "segment is not valid base64url JSON"}
	ErrUnsupportedAlgorithm = &Error{CodeUnsupportedAlgorithm, "unsupported signing algorithm"}
	ErrInvalidSignature     = &Error{CodeInvalidSignature, "signature mismatch"}
	ErrInvalidIssuer        = &Error{CodeInvalidIssuer, "unexpected issuer"}
	ErrInvalidAudience      = &Error{CodeInvalidAudience, "unexpected audience"}
	ErrExpired              = &Error{CodeExpired, "token expired"}
	ErrNotYetValid          = &Error{CodeNotYetValid, "token not yet valid"}
	ErrRevoked              = &Error{CodeRevoked, "token revoked"}
)

// CodeOf extracts the failure code from an error returned by Verify.
// Unknown errors map to the empty code.
func CodeOf(err error) Code {
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}
