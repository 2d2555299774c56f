// Package rpctest provides the node side of JSON-RPC for tests: decoding
// the envelopes a client sent and encoding replies the way a node would.
package rpctest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"rpcprovider/internal/jsonrpc"
)

// Handler answers one call
type Handler func(req *jsonrpc.Request) *jsonrpc.Response

// DecodeRequests decodes either an array of envelopes or a single one.
// The bool reports whether the input was an array.
func DecodeRequests(data []byte) ([]*jsonrpc.Request, bool, error) {
	data = bytes.TrimLeft(data, " \t\r\n")
	switch {
	case len(data) == 0:
		return nil, false, jsonrpc.ErrInvalidRequest
	case data[0] == '[':
		var requests []*jsonrpc.Request
		if err := json.Unmarshal(data, &requests); err != nil {
			return nil, true, fmt.Errorf("batch request: %w", err)
		}
		if len(requests) == 0 {
			return nil, true, jsonrpc.ErrInvalidRequest
		}
		return requests, true, nil
	default:
		var req jsonrpc.Request
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, false, fmt.Errorf("request: %w", err)
		}
		return []*jsonrpc.Request{&req}, false, nil
	}
}

// Reply builds a success response. A result that cannot be encoded
// becomes an internal error reply.
func Reply(id jsonrpc.ID, result interface{}) *jsonrpc.Response {
	raw, err := json.Marshal(result)
	if err != nil {
		return ReplyError(id, jsonrpc.NewError(-32603, err.Error()))
	}
	return &jsonrpc.Response{JSONRPC: jsonrpc.Version, ID: id, Result: raw}
}

// ReplyError builds an error response
func ReplyError(id jsonrpc.ID, rpcErr *jsonrpc.Error) *jsonrpc.Response {
	return &jsonrpc.Response{JSONRPC: jsonrpc.Version, ID: id, Error: rpcErr}
}

// Respond runs h over reqs and encodes the replies, as an array when
// isBatch is set
func Respond(reqs []*jsonrpc.Request, isBatch bool, h Handler) []byte {
	responses := make([]*jsonrpc.Response, len(reqs))
	for i, req := range reqs {
		responses[i] = h(req)
	}

	var data []byte
	if isBatch {
		data, _ = json.Marshal(responses)
	} else {
		data, _ = json.Marshal(responses[0])
	}
	return data
}

// Answer decodes body and returns the encoded replies of h
func Answer(body []byte, h Handler) ([]byte, error) {
	reqs, isBatch, err := DecodeRequests(body)
	if err != nil {
		return nil, err
	}
	return Respond(reqs, isBatch, h), nil
}
