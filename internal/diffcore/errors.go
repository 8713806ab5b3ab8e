// Package diffcore holds the types shared by every stage of the diff
// engine: the typed error taxonomy, the Event wire model, and the
// canonical key hash. None of it talks to disk or the network.
package diffcore

import "fmt"

// Code is one of the stable machine-readable error codes from the
// external error envelope. Runtimes branch on Code, not on Message.
type Code string

const (
	CodeDuplicateColumnName     Code = "duplicate_column_name"
	CodeHeaderMismatch          Code = "header_mismatch"
	CodeMissingKeyColumn        Code = "missing_key_column"
	CodeMissingKeyValue         Code = "missing_key_value"
	CodeDuplicateKey            Code = "duplicate_key"
	CodeRowWidthMismatch        Code = "row_width_mismatch"
	CodeCSVParseError           Code = "csv_parse_error"
	CodeEmptyFile               Code = "empty_file"
	CodeInvalidOptionCombo      Code = "invalid_option_combination"
	CodeStorageError            Code = "storage_error"
	CodeCancelled               Code = "cancelled"
	CodeCompareFailed           Code = "compare_failed"
)

// DiffError is the one error type the engine ever returns. It carries a
// stable Code alongside a human Message, mirroring the envelope in the
// wire contract so a CLI or RPC boundary can re-serialize it verbatim.
type DiffError struct {
	Code    Code
	Message string
	// Err, when set, is the underlying cause (e.g. a driver error from a
	// Spill Backend). It is not part of the wire envelope.
	Err error
}

func (e *DiffError) Error() string {
	return e.Message
}

func (e *DiffError) Unwrap() error {
	return e.Err
}

// New builds a DiffError with no underlying cause.
func New(code Code, format string, args ...any) *DiffError {
	return &DiffError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a DiffError that carries cause as its Unwrap target, so
// callers using errors.Is/As against the driver error still succeed.
func Wrap(code Code, cause error, format string, args ...any) *DiffError {
	return &DiffError{Code: code, Message: fmt.Sprintf(format, args...), Err: cause}
}

// AsDiffError extracts a *DiffError from err, if any is in its chain.
func AsDiffError(err error) (*DiffError, bool) {
	de, ok := err.(*DiffError)
	if ok {
		return de, true
	}
	type unwrapper interface{ Unwrap() error }
	for u, ok := err.(unwrapper); ok; u, ok = err.(unwrapper) {
		err = u.Unwrap()
		if de, ok := err.(*DiffError); ok {
			return de, true
		}
	}
	return nil, false
}
