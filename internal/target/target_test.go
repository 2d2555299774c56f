package target

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type httpBin struct {
	path  string
	query map[string]string
}

func (h httpBin) BaseURL() string { return "https://httpbin.org" }
func (h httpBin) Method() HTTPMethod { return GET }
func (h httpBin) Path() string { return h.path }
func (h httpBin) Query() map[string]string { return h.query }
func (h httpBin) Headers() map[string]string { return nil }
func (h httpBin) Authentication() *AuthMethod { return nil }
func (h httpBin) Body() (*HTTPBody, error) { return EmptyBody(), nil }

type rpcCall struct {
	httpBin
	method string
	params []interface{}
}

func (r rpcCall) MethodName() string { return r.method }
func (r rpcCall) Params() []interface{} { return r.params }

func TestAbsoluteURL(t *testing.T) {
	assert.Equal(t, "https://httpbin.org/get", AbsoluteURL(httpBin{path: "/get"}))

	withQuery := httpBin{path: "/get", query: map[string]string{"foo": "bar", "a": "b c"}}
	assert.Equal(t, "a=b+c&foo=bar", QueryString(withQuery))
	assert.Equal(t, "https://httpbin.org/get?a=b+c&foo=bar", AbsoluteURL(withQuery))
}

func TestHTTPMethod_String(t *testing.T) {
	assert.Equal(t, "GET", GET.String())
	assert.Equal(t, "POST", POST.String())
	assert.Equal(t, "CONNECT", CONNECT.String())
	assert.Equal(t, "HTTPMethod(42)", HTTPMethod(42).String())
}

func TestAuthMethod_Apply(t *testing.T) {
	secret := "pass"

	tests := []struct {
		name   string
		auth   *AuthMethod
		header string
		want   string
	}{
		{"basic with password", Basic("user", &secret), "Authorization", "Basic dXNlcjpwYXNz"},
		{"basic without password", Basic("user", nil), "Authorization", "Basic dXNlcjo="},
		{"bearer", Bearer("tok"), "Authorization", "Bearer tok"},
		{"api key", HeaderAPIKey("X-Api-Key", "k1"), "X-Api-Key", "k1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			tt.auth.Apply(h)
			assert.Equal(t, tt.want, h.Get(tt.header))
		})
	}
}

func TestAuthMethod_NilIsNoop(t *testing.T) {
	var a *AuthMethod
	h := http.Header{}
	a.Apply(h)
	assert.Empty(t, h)
	assert.Equal(t, "None", a.String())
}

func TestAuthMethod_StringHidesSecrets(t *testing.T) {
	assert.Equal(t, "Bearer(***)", Bearer("secret").String())
	assert.Equal(t, "Custom(<function>)", HeaderAPIKey("X", "secret").String())
	assert.Equal(t, "Basic(alice)", Basic("alice", nil).String())
}

func TestJSONRPCBody(t *testing.T) {
	body, err := JSONRPCBody(rpcCall{method: "eth_getBalance", params: []interface{}{"0x1", "latest"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"method":"eth_getBalance","params":["0x1","latest"]}`, string(body.Bytes()))
}

func TestHTTPBody(t *testing.T) {
	assert.Nil(t, EmptyBody().Bytes())
	var nilBody *HTTPBody
	assert.Nil(t, nilBody.Bytes())

	b, err := NewJSONBody(map[string]int{"age": 20})
	require.NoError(t, err)
	assert.JSONEq(t, `{"age":20}`, string(b.Bytes()))

	_, err = NewJSONBody(make(chan int))
	assert.Error(t, err)
}
