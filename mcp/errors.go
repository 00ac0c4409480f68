package mcp

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Error classes. Errors produced by this package are marked with one of
// these, so errors.Is can be used while the message stays intact.
var (
	// ErrMalformedRequest is returned when the payload is not a well-formed request
	ErrMalformedRequest = errors.New("malformed request")
	// ErrUnsupportedProtocolVersion is returned when the jsonrpc marker does not match
	ErrUnsupportedProtocolVersion = errors.New("unsupported protocol version")
	// ErrMethodNotFound is returned for methods outside of the supported set
	ErrMethodNotFound = errors.New("method not found")
	// ErrInvalidParams is returned when method params can not be decoded
	ErrInvalidParams = errors.New("invalid params")
	// ErrToolNotFound is returned when a tool is not registered
	ErrToolNotFound = errors.New("tool not found")
	// ErrDuplicateToolName is returned when a tool name is registered twice
	ErrDuplicateToolName = errors.New("duplicate tool name")
	// ErrToolExecutionFailure wraps any failure raised by a tool call
	ErrToolExecutionFailure = errors.New("tool execution failure")
	// ErrTransportFailure is returned when publish or subscribe fails
	ErrTransportFailure = errors.New("transport failure")
	// ErrInvalidState is returned when the server lifecycle is violated
	ErrInvalidState = errors.New("invalid server state")

	// errInvalidShape marks a malformed request that parsed as JSON
	errInvalidShape = errors.New("invalid request shape")
)

// ErrorCode is a JSON-RPC error code
type ErrorCode int

// Error codes
const (
	CodeParseError           ErrorCode = -32700
	CodeInvalidRequest       ErrorCode = -32600
	CodeMethodNotFound       ErrorCode = -32601
	CodeInvalidParams        ErrorCode = -32602
	CodeInternalError        ErrorCode = -32603
	CodeToolExecutionFailure ErrorCode = -32000
	CodeToolNotFound         ErrorCode = -32001
)

// ErrorKind names the error class in the error data
type ErrorKind string

// Error kinds
const (
	KindMalformedRequest           ErrorKind = "MalformedRequest"
	KindUnsupportedProtocolVersion ErrorKind = "UnsupportedProtocolVersion"
	KindMethodNotFound             ErrorKind = "MethodNotFound"
	KindInvalidParams              ErrorKind = "InvalidParams"
	KindToolNotFound               ErrorKind = "ToolNotFound"
	KindToolExecutionFailure       ErrorKind = "ToolExecutionFailure"
	KindInternalError              ErrorKind = "InternalError"
)

// ErrorData is the structured details of an error response
type ErrorData struct {
	Kind    ErrorKind `json:"kind"`
	Details any       `json:"details,omitempty"`
}

// Error is the error object of a response envelope
type Error struct {
	Code    ErrorCode  `json:"code"`
	Message string     `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

// Error implements error interface
func (e *Error) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// Kind returns the kind of the error, if provided
func (e *Error) Kind() ErrorKind {
	if e.Data == nil {
		return ""
	}
	return e.Data.Kind
}

func markf(class error, format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), class)
}

func invalidShapef(format string, args ...any) error {
	return errors.Mark(markf(ErrMalformedRequest, format, args...), errInvalidShape)
}

// ToError converts err into the error object of a response envelope
func ToError(err error) *Error {
	var rpcErr *Error
	if !errors.Is(err, ErrToolExecutionFailure) && errors.As(err, &rpcErr) {
		return rpcErr
	}

	kind, code := classify(err)
	return &Error{
		Code:    code,
		Message: err.Error(),
		Data:    &ErrorData{Kind: kind},
	}
}

func classify(err error) (ErrorKind, ErrorCode) {
	switch {
	// tool failures first: a tool may return errors of any class
	case errors.Is(err, ErrToolExecutionFailure):
		return KindToolExecutionFailure, CodeToolExecutionFailure
	case errors.Is(err, ErrToolNotFound):
		return KindToolNotFound, CodeToolNotFound
	case errors.Is(err, ErrMethodNotFound):
		return KindMethodNotFound, CodeMethodNotFound
	case errors.Is(err, ErrInvalidParams):
		return KindInvalidParams, CodeInvalidParams
	case errors.Is(err, ErrUnsupportedProtocolVersion):
		return KindUnsupportedProtocolVersion, CodeInvalidRequest
	case errors.Is(err, ErrMalformedRequest):
		if errors.Is(err, errInvalidShape) {
			return KindMalformedRequest, CodeInvalidRequest
		}
		return KindMalformedRequest, CodeParseError
	default:
		return KindInternalError, CodeInternalError
	}
}
