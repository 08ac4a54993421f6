// Package hns error types.
//
// Every failure surfaced by the signing engine is an *Error carrying one of
// the ErrorKind categories below. The kind decides what the engine discards
// (see the engine package) and which status word the transport reports; the
// code identifies the precise condition for programmatic handling and logs.
package hns

import (
	"errors"
	"fmt"
)

// ErrorKind identifies a category of engine failure. It implements error so
// that callers can test categories with errors.Is.
type ErrorKind string

const (
	// ErrProtocol covers malformed headers, declared-length mismatches and
	// unsupported opcodes. Fatal to the whole session.
	ErrProtocol = ErrorKind("ErrProtocol")

	// ErrEncoding covers invalid varint prefixes and oversized or malformed
	// length-prefixed fields.
	ErrEncoding = ErrorKind("ErrEncoding")

	// ErrState covers fields read out of sequence, exceeded counts and sign
	// requests issued before the transaction was parsed.
	ErrState = ErrorKind("ErrState")

	// ErrPolicy covers unsupported sighash types, non-address derivation
	// depths and unsupported covenant types.
	ErrPolicy = ErrorKind("ErrPolicy")

	// ErrIntegrity covers name-hash and change-address mismatches.
	ErrIntegrity = ErrorKind("ErrIntegrity")

	// ErrUserRejected is reported when the user declines a confirmation.
	ErrUserRejected = ErrorKind("ErrUserRejected")
)

// Error satisfies the error interface.
func (k ErrorKind) Error() string {
	return string(k)
}

// Error codes identifying specific conditions within a kind.
const (
	CodeMalformedHeader       = "MALFORMED_HEADER"        // begin header cannot be read
	CodeLengthMismatch        = "LENGTH_MISMATCH"         // declared length disagrees with data
	CodeCacheOverflow         = "CACHE_OVERFLOW"          // residual bytes exceed the cache
	CodeUnsupportedClass      = "UNSUPPORTED_CLASS"       // CLA not understood
	CodeUnsupportedOpcode     = "UNSUPPORTED_OPCODE"      // INS not understood
	CodeInvalidParameters     = "INVALID_PARAMETERS"      // P1/P2 not understood
	CodeIncorrectLength       = "INCORRECT_LENGTH"        // Lc disagrees with the payload
	CodeInvalidVarint         = "INVALID_VARINT"          // 0xff prefix or non-minimal form
	CodeFieldTooLarge         = "FIELD_TOO_LARGE"         // length exceeds a policy bound
	CodeInvalidName           = "INVALID_NAME"            // name violates the naming rules
	CodeInvalidItem           = "INVALID_ITEM"            // covenant item has the wrong size
	CodeParserState           = "PARSER_STATE"            // field read out of sequence
	CodeNotParsed             = "NOT_PARSED"              // sign before parse completed
	CodeConfirmationPending   = "CONFIRMATION_PENDING"    // message arrived while awaiting the user
	CodeInputIndex            = "INPUT_INDEX"             // input index out of range
	CodeUnsupportedSighash    = "UNSUPPORTED_SIGHASH"     // sighash type outside the policy
	CodeInvalidPath           = "INVALID_PATH"            // derivation path not at address depth
	CodeUnsupportedCovenant   = "UNSUPPORTED_COVENANT"    // covenant type not supported
	CodeTooManyInputs         = "TOO_MANY_INPUTS"         // declared inputs exceed the bound
	CodeTooManyOutputs        = "TOO_MANY_OUTPUTS"        // declared outputs exceed the bound
	CodeNameHashMismatch      = "NAME_HASH_MISMATCH"      // plaintext name does not hash to the item
	CodeChangeAddressMismatch = "CHANGE_ADDRESS_MISMATCH" // change output pays elsewhere
	CodeInputMismatch         = "INPUT_MISMATCH"          // signed input differs from the parsed one
	CodeSignerFailure         = "SIGNER_FAILURE"          // key derivation or signing failed
	CodeUserRejected          = "USER_REJECTED"           // user declined
)

// Error is the structured error returned by the engine.
type Error struct {
	Kind    ErrorKind // Failure category
	Code    string    // Specific condition (one of the Code constants)
	Message string    // Human-readable detail
	Cause   error     // Underlying error (if any)
}

// NewError returns an *Error without an underlying cause.
func NewError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// WrapError returns an *Error wrapping cause.
func WrapError(kind ErrorKind, code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is this error's kind.
func (e *Error) Is(target error) bool {
	kind, ok := target.(ErrorKind)
	return ok && e.Kind == kind
}

// KindOf returns the kind of err, if err is or wraps an *Error.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// CodeOf returns the code of err, if err is or wraps an *Error.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
