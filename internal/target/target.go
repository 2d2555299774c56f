package target

import (
	"net/url"
	"sort"
	"strings"

	"rpcprovider/internal/jsonrpc"
)

// Target describes one outbound HTTP call
type Target interface {
	// BaseURL returns the scheme and host, e.g. "https://rpc.ankr.com"
	BaseURL() string

	// Method returns the HTTP verb
	Method() HTTPMethod

	// Path is appended to BaseURL
	Path() string

	// Query returns the query parameters, or nil
	Query() map[string]string

	// Headers returns request headers, or nil
	Headers() map[string]string

	// Authentication returns the auth scheme, or nil for none
	Authentication() *AuthMethod

	// Body builds the request body
	Body() (*HTTPBody, error)
}

// JSONRPCTarget is a Target that can also be sent as one element of a
// JSON-RPC batch.
type JSONRPCTarget interface {
	Target

	// MethodName returns the JSON-RPC method, e.g. "eth_chainId"
	MethodName() string

	// Params returns the positional parameters
	Params() []interface{}
}

// QueryString renders the target query as k=v pairs sorted by key
func QueryString(t Target) string {
	query := t.Query()
	if len(query) == 0 {
		return ""
	}

	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, url.QueryEscape(k)+"="+url.QueryEscape(query[k]))
	}
	return strings.Join(pairs, "&")
}

// AbsoluteURL returns BaseURL + Path with the query string appended
func AbsoluteURL(t Target) string {
	u := t.BaseURL() + t.Path()
	if qs := QueryString(t); qs != "" {
		u += "?" + qs
	}
	return u
}

// JSONRPCBody builds the single-call envelope body for t with id 1
func JSONRPCBody(t JSONRPCTarget) (*HTTPBody, error) {
	req, err := jsonrpc.NewRequest(t.MethodName(), t.Params(), jsonrpc.NewIDInt(1))
	if err != nil {
		return nil, err
	}
	return NewJSONBody(req)
}
