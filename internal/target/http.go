package target

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
)

// HTTPMethod is the HTTP verb of a target
type HTTPMethod int

const (
	GET HTTPMethod = iota
	POST
	PUT
	DELETE
	PATCH
	OPTIONS
	HEAD
	CONNECT
)

// String returns the verb as sent on the wire
func (m HTTPMethod) String() string {
	switch m {
	case GET:
		return http.MethodGet
	case POST:
		return http.MethodPost
	case PUT:
		return http.MethodPut
	case DELETE:
		return http.MethodDelete
	case PATCH:
		return http.MethodPatch
	case OPTIONS:
		return http.MethodOptions
	case HEAD:
		return http.MethodHead
	case CONNECT:
		return http.MethodConnect
	default:
		return fmt.Sprintf("HTTPMethod(%d)", int(m))
	}
}

// HTTPBody is an encoded request body
type HTTPBody struct {
	data []byte
}

// EmptyBody returns a body with no content
func EmptyBody() *HTTPBody {
	return &HTTPBody{}
}

// NewJSONBody encodes v as JSON
func NewJSONBody(v interface{}) (*HTTPBody, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode body: %w", err)
	}
	return &HTTPBody{data: data}, nil
}

// Bytes returns the encoded body
func (b *HTTPBody) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.data
}

type authKind int

const (
	authBasic authKind = iota
	authBearer
	authCustom
)

// AuthMethod is the authentication attached to a request
type AuthMethod struct {
	kind     authKind
	username string
	password *string
	token    string
	custom   func(http.Header)
}

// Basic creates HTTP basic authentication; password may be nil
func Basic(username string, password *string) *AuthMethod {
	return &AuthMethod{kind: authBasic, username: username, password: password}
}

// Bearer creates bearer token authentication
func Bearer(token string) *AuthMethod {
	return &AuthMethod{kind: authBearer, token: token}
}

// Custom creates authentication that edits the request headers directly
func Custom(fn func(http.Header)) *AuthMethod {
	return &AuthMethod{kind: authCustom, custom: fn}
}

// HeaderAPIKey sends an API key in the named header
func HeaderAPIKey(headerName, apiKey string) *AuthMethod {
	return Custom(func(h http.Header) {
		h.Set(headerName, apiKey)
	})
}

// Apply resolves the auth scheme into headers
func (a *AuthMethod) Apply(h http.Header) {
	if a == nil {
		return
	}
	switch a.kind {
	case authBasic:
		creds := a.username + ":"
		if a.password != nil {
			creds += *a.password
		}
		h.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(creds)))
	case authBearer:
		h.Set("Authorization", "Bearer "+a.token)
	case authCustom:
		if a.custom != nil {
			a.custom(h)
		}
	}
}

// String describes the scheme without leaking credentials
func (a *AuthMethod) String() string {
	if a == nil {
		return "None"
	}
	switch a.kind {
	case authBasic:
		return fmt.Sprintf("Basic(%s)", a.username)
	case authBearer:
		return "Bearer(***)"
	default:
		return "Custom(<function>)"
	}
}
