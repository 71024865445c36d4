package rpc

import (
	"errors"
	"fmt"
)

// ErrClosed indicates the wire has been closed.
var ErrClosed = errors.New("rpc: wire closed")

// UnexpectedLineError reports a line read where a Content-Length header was
// expected. The frame is abandoned; the caller may keep scanning the stream.
type UnexpectedLineError struct {
	Line string
}

func (e *UnexpectedLineError) Error() string {
	return fmt.Sprintf("rpc: unexpected line %q where Content-Length header expected", e.Line)
}

// BadLengthError reports a Content-Length header whose value did not parse as
// a decimal byte count.
type BadLengthError struct {
	Value string
	Err   error
}

func (e *BadLengthError) Error() string {
	return fmt.Sprintf("rpc: bad Content-Length %q: %v", e.Value, e.Err)
}

func (e *BadLengthError) Unwrap() error { return e.Err }

// ShortReadError reports a stream that ended before the declared body length
// was available.
type ShortReadError struct {
	Want int
	Got  int
}

func (e *ShortReadError) Error() string {
	return fmt.Sprintf("rpc: short read: want %d body bytes, got %d", e.Want, e.Got)
}

// IsFramingError reports whether err is one of the recoverable framing error
// kinds. Framing errors abandon the current frame but not the stream.
func IsFramingError(err error) bool {
	var unexpected *UnexpectedLineError
	var badLength *BadLengthError
	var short *ShortReadError
	return errors.As(err, &unexpected) || errors.As(err, &badLength) || errors.As(err, &short)
}

// RPCError represents a JSON-RPC error object from the server.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("rpc error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// LSP-specific errors
	CodeServerNotInitialized = -32002
	CodeUnknownErrorCode     = -32001
	CodeRequestCancelled     = -32800
	CodeContentModified      = -32801
	CodeServerCancelled      = -32802
	CodeRequestFailed        = -32803
)
