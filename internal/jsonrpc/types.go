package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Version is the JSON-RPC version
const Version = "2.0"

// Standard JSON-RPC error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// ID represents a JSON-RPC request/response ID.
// It holds an int64, a string, or nothing (null).
type ID struct {
	value interface{}
}

// NewIDString creates an ID from a string
func NewIDString(s string) ID {
	return ID{value: s}
}

// NewIDInt creates an ID from an integer
func NewIDInt(n int64) ID {
	return ID{value: n}
}

// IsNull returns true if the ID is null
func (id ID) IsNull() bool {
	return id.value == nil
}

// Value returns the underlying value (int64, string, json.Number or nil)
func (id ID) Value() interface{} {
	return id.value
}

// Int returns the integer value and true if the ID is numeric
func (id ID) Int() (int64, bool) {
	n, ok := id.value.(int64)
	return n, ok
}

// String formats the ID for logs
func (id ID) String() string {
	switch v := id.value.(type) {
	case nil:
		return "null"
	case int64:
		return strconv.FormatInt(v, 10)
	case string:
		return strconv.Quote(v)
	default:
		return fmt.Sprint(v)
	}
}

// MarshalJSON implements json.Marshaler
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.value)
}

// UnmarshalJSON implements json.Unmarshaler.
// Integral numbers decode to int64; other numbers are kept as json.Number.
func (id *ID) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return err
	}

	switch val := v.(type) {
	case nil:
		id.value = nil
	case string:
		id.value = val
	case json.Number:
		if n, err := val.Int64(); err == nil {
			id.value = n
		} else {
			id.value = val
		}
	default:
		return fmt.Errorf("invalid id type %T", v)
	}
	return nil
}

// Error represents a JSON-RPC error
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// Is matches another *Error by code, so wrapped copies of the
// package-level values still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a JSON-RPC error value
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Common errors
var (
	ErrInvalidRequest = NewError(CodeInvalidRequest, "Invalid Request")
	ErrMethodNotFound = NewError(CodeMethodNotFound, "Method not found")
	ErrInvalidParams  = NewError(CodeInvalidParams, "Invalid params")
)
