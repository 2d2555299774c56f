package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Response represents a JSON-RPC response with an undecoded result
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// HasError returns true if the response contains an error
func (r *Response) HasError() bool {
	return r.Error != nil
}

// ResultIsNull returns true if the response result is JSON null
func (r *Response) ResultIsNull() bool {
	if r == nil {
		return true
	}
	if len(r.Result) == 0 {
		return true
	}
	return bytes.Equal(r.Result, []byte("null"))
}

// GetResultAs unmarshals the result into the provided type
func (r *Response) GetResultAs(v interface{}) error {
	if r.Result == nil {
		return nil
	}
	return json.Unmarshal(r.Result, v)
}

// ParseResponse parses a JSON-RPC response from bytes
func ParseResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ErrNotEnvelope is returned when a response element carries neither
// "result" nor "error".
var ErrNotEnvelope = errors.New("response has neither result nor error")

// Result is one decoded element of a batch response: either a value of
// type T or a per-call error reported by the server.
type Result[T any] struct {
	JSONRPC string
	ID      ID
	Value   T
	Error   *Error
}

// IsError returns true if the server reported an error for this call
func (r Result[T]) IsError() bool {
	return r.Error != nil
}

// UnmarshalJSON decodes either envelope shape; the presence of "error"
// or "result" decides which one.
func (r *Result[T]) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var out Result[T]
	if raw, ok := fields["jsonrpc"]; ok {
		if err := json.Unmarshal(raw, &out.JSONRPC); err != nil {
			return fmt.Errorf("invalid jsonrpc field: %w", err)
		}
	}
	if raw, ok := fields["id"]; ok {
		if err := json.Unmarshal(raw, &out.ID); err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}
	}

	if raw, ok := fields["error"]; ok && !bytes.Equal(raw, []byte("null")) {
		var rpcErr Error
		if err := json.Unmarshal(raw, &rpcErr); err != nil {
			return fmt.Errorf("invalid error object: %w", err)
		}
		out.Error = &rpcErr
		*r = out
		return nil
	}

	raw, ok := fields["result"]
	if !ok {
		return ErrNotEnvelope
	}
	if err := json.Unmarshal(raw, &out.Value); err != nil {
		return fmt.Errorf("invalid result: %w", err)
	}
	*r = out
	return nil
}

// MarshalJSON encodes the element back into its envelope shape
func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.Error != nil {
		return json.Marshal(&Response{JSONRPC: r.JSONRPC, ID: r.ID, Error: r.Error})
	}
	value, err := json.Marshal(r.Value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&Response{JSONRPC: r.JSONRPC, ID: r.ID, Result: value})
}

// DecodeBatch decodes a batch response body. The body must be a JSON
// array; element order is preserved.
func DecodeBatch[T any](data []byte) ([]Result[T], error) {
	data = bytes.TrimLeft(data, " \t\r\n")
	if len(data) == 0 || data[0] != '[' {
		return nil, fmt.Errorf("batch response is not an array")
	}

	var results []Result[T]
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, err
	}
	return results, nil
}
