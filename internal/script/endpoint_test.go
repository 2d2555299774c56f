package script

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpcprovider/internal/ethereum"
)

const routeScript = `
function endpoint(t) {
    if (t.method === "eth_sendRawTransaction") {
        return "https://relay.example/rpc";
    }
    return t.baseUrl + t.path + "/" + t.httpMethod.toLowerCase();
}
`

func TestEndpoint_Resolve(t *testing.T) {
	e, err := NewEndpoint(routeScript, zerolog.Nop())
	require.NoError(t, err)

	u, err := e.Resolve(ethereum.ChainID{})
	require.NoError(t, err)
	assert.Equal(t, "https://rpc.ankr.com/eth/post", u)

	u, err = e.Resolve(ethereum.SendRawTransaction{Tx: "0x01"})
	require.NoError(t, err)
	assert.Equal(t, "https://relay.example/rpc", u)
}

func TestEndpoint_Params(t *testing.T) {
	src := `function endpoint(t) { return "https://node/" + t.params[0]; }`
	e, err := NewEndpoint(src, zerolog.Nop())
	require.NoError(t, err)

	u, err := e.Resolve(ethereum.GetBalance{Address: "0xabc"})
	require.NoError(t, err)
	assert.Equal(t, "https://node/0xabc", u)
}

func TestEndpoint_Helpers(t *testing.T) {
	src := `
function endpoint(t) {
    return "https://node/" + keccak256("0x") + "/" + toChecksumAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed");
}`
	e, err := NewEndpoint(src, zerolog.Nop())
	require.NoError(t, err)

	u, err := e.Resolve(ethereum.ChainID{})
	require.NoError(t, err)
	assert.Equal(t,
		"https://node/0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470/0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		u)
}

func TestNewEndpoint_Errors(t *testing.T) {
	_, err := NewEndpoint(`function other() {}`, zerolog.Nop())
	assert.ErrorIs(t, err, ErrNoEndpoint)

	_, err = NewEndpoint(`function endpoint( {`, zerolog.Nop())
	assert.Error(t, err)
}

func TestEndpoint_BadReturnFallsBack(t *testing.T) {
	e, err := NewEndpoint(`function endpoint(t) { return 42; }`, zerolog.Nop())
	require.NoError(t, err)

	_, err = e.Resolve(ethereum.ChainID{})
	assert.Error(t, err)

	assert.Equal(t, "https://rpc.ankr.com/eth", e.Func()(ethereum.ChainID{}))
}

func TestEndpoint_ThrowFallsBack(t *testing.T) {
	fn, err := NewEndpointFunc(`function endpoint(t) { throw new Error("nope"); }`, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "https://rpc.ankr.com/eth", fn(ethereum.BlockNumber{}))
}

func TestEndpoint_Timeout(t *testing.T) {
	e, err := NewEndpoint(`function endpoint(t) { for (;;) {} }`, zerolog.Nop())
	require.NoError(t, err)
	e.SetTimeout(50 * time.Millisecond)

	_, err = e.Resolve(ethereum.ChainID{})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "timed out"), err.Error())
}

func TestEndpoint_Concurrent(t *testing.T) {
	fn, err := NewEndpointFunc(routeScript, zerolog.Nop())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "https://rpc.ankr.com/eth/post", fn(ethereum.GasPrice{}))
		}()
	}
	wg.Wait()
}

func TestLoadEndpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endpoint.js")
	require.NoError(t, os.WriteFile(path, []byte(routeScript), 0o644))

	e, err := LoadEndpoint(path, zerolog.Nop())
	require.NoError(t, err)
	u, err := e.Resolve(ethereum.ChainID{})
	require.NoError(t, err)
	assert.Equal(t, "https://rpc.ankr.com/eth/post", u)

	_, err = LoadEndpoint(filepath.Join(t.TempDir(), "missing.js"), zerolog.Nop())
	assert.Error(t, err)
}
