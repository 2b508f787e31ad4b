package datgrid

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a DecodeError.
type ErrorKind int

const (
	// InvalidInput marks a precondition failure detected before any scan.
	InvalidInput ErrorKind = iota + 1

	// EncodingFailed marks a failure to serialize a raster into a container.
	EncodingFailed
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidInput:
		return "invalid input"
	case EncodingFailed:
		return "encoding failed"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching against *DecodeError.
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrEncodingFailed = errors.New("encoding failed")
)

// DecodeError describes why a frame could not be decoded.
type DecodeError struct {
	Kind ErrorKind

	// Check names the precondition or stage that failed, e.g. "dimensions",
	// "buffer length" or "png".
	Check string

	Msg string
	Err error
}

func (e *DecodeError) Error() string {
	s := fmt.Sprintf("%s: %s: %s", e.Kind, e.Check, e.Msg)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrInvalidInput) and errors.Is(err,
// ErrEncodingFailed) match on Kind.
func (e *DecodeError) Is(target error) bool {
	switch target {
	case ErrInvalidInput:
		return e.Kind == InvalidInput
	case ErrEncodingFailed:
		return e.Kind == EncodingFailed
	}
	return false
}

func invalidInput(check, format string, args ...interface{}) *DecodeError {
	return &DecodeError{Kind: InvalidInput, Check: check, Msg: fmt.Sprintf(format, args...)}
}

func encodingFailed(check string, err error) *DecodeError {
	return &DecodeError{Kind: EncodingFailed, Check: check, Msg: "cannot serialize raster", Err: err}
}
