package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// Request is one call envelope. Params is always a JSON array.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

var emptyParams = json.RawMessage("[]")

// NewRequest builds an envelope with positional params; nil params encode as []
func NewRequest(method string, params []interface{}, id ID) (*Request, error) {
	req := &Request{JSONRPC: Version, ID: id, Method: method, Params: emptyParams}
	if len(params) == 0 {
		return req, nil
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("params of %s: %w", method, err)
	}
	req.Params = raw
	return req, nil
}

// Bytes encodes the envelope
func (r *Request) Bytes() ([]byte, error) {
	return json.Marshal(r)
}

// MarshalBatchRequest encodes envelopes as one JSON array, in slice order
func MarshalBatchRequest(requests []*Request) ([]byte, error) {
	return json.Marshal(requests)
}
