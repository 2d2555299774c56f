package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpcprovider/internal/batch"
	"rpcprovider/internal/cache"
	"rpcprovider/internal/ethereum"
	"rpcprovider/internal/jsonrpc"
	"rpcprovider/internal/jsonrpc/rpctest"
	"rpcprovider/internal/target"
	"rpcprovider/internal/transport"
)

// rpcServer is a fake JSON-RPC node recording every exchange it receives
type rpcServer struct {
	*httptest.Server

	exchanges atomic.Int32
	mu        sync.Mutex
	batches   [][]*jsonrpc.Request
	headers   []http.Header

	// fail makes the whole exchange answer 500 when it returns true
	fail func(reqs []*jsonrpc.Request) bool
	// before runs ahead of answering an exchange
	before func()
}

func newRPCServer(t *testing.T, configure ...func(*rpcServer)) *rpcServer {
	t.Helper()
	s := &rpcServer{}
	for _, fn := range configure {
		fn(s)
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	t.Cleanup(s.Close)
	return s
}

func (s *rpcServer) serveHTTP(w http.ResponseWriter, r *http.Request) {
	s.exchanges.Add(1)
	body, _ := io.ReadAll(r.Body)

	reqs, isBatch, err := rpctest.DecodeRequests(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.batches = append(s.batches, reqs)
	s.headers = append(s.headers, r.Header.Clone())
	s.mu.Unlock()

	if s.before != nil {
		s.before()
	}
	if s.fail != nil && s.fail(reqs) {
		http.Error(w, "node unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(rpctest.Respond(reqs, isBatch, handle))
}

func handle(req *jsonrpc.Request) *jsonrpc.Response {
	var result interface{}
	switch req.Method {
	case "eth_chainId":
		result = "0x1"
	case "eth_gasPrice":
		result = "0x3b9aca00"
	case "eth_blockNumber":
		result = "0x10"
	case "echo":
		var params []interface{}
		json.Unmarshal(req.Params, &params)
		result = params[0]
	default:
		return rpctest.ReplyError(req.ID, jsonrpc.ErrMethodNotFound)
	}
	return rpctest.Reply(req.ID, result)
}

func (s *rpcServer) recorded() [][]*jsonrpc.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]*jsonrpc.Request(nil), s.batches...)
}

func (s *rpcServer) provider(opts ...Option) *Provider {
	opts = append([]Option{
		WithLogger(zerolog.Nop()),
		WithEndpointFunc(func(target.Target) string { return s.URL }),
	}, opts...)
	return NewProvider(opts...)
}

func ids(reqs []*jsonrpc.Request) []int64 {
	out := make([]int64, len(reqs))
	for i, r := range reqs {
		out[i], _ = r.ID.Int()
	}
	return out
}

func echoCalls(n int) []target.JSONRPCTarget {
	calls := make([]target.JSONRPCTarget, n)
	for i := range calls {
		calls[i] = ethereum.Custom{Name: "echo", Args: []interface{}{i}}
	}
	return calls
}

func ethCalls() []target.JSONRPCTarget {
	return []target.JSONRPCTarget{ethereum.ChainID{}, ethereum.GasPrice{}, ethereum.BlockNumber{}}
}

func TestBatch_SingleExchange(t *testing.T) {
	srv := newRPCServer(t)
	p := srv.provider()

	results, err := Batch[string](context.Background(), p, ethCalls())
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, "0x1", results[0].Value)
	assert.Equal(t, "0x3b9aca00", results[1].Value)
	assert.Equal(t, "0x10", results[2].Value)

	batches := srv.recorded()
	require.Len(t, batches, 1)
	assert.Equal(t, []int64{1, 2, 3}, ids(batches[0]))
	assert.Equal(t, "eth_chainId", batches[0][0].Method)
	assert.JSONEq(t, `[]`, string(batches[0][0].Params))
}

func TestBatchChunkBy_IDsContinueAcrossChunks(t *testing.T) {
	srv := newRPCServer(t)
	p := srv.provider()

	results, err := BatchChunkBy[string](context.Background(), p, ethCalls(), 2)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, "0x1", results[0].Value)
	assert.Equal(t, "0x3b9aca00", results[1].Value)
	assert.Equal(t, "0x10", results[2].Value)

	var got [][]int64
	for _, b := range srv.recorded() {
		got = append(got, ids(b))
	}
	assert.ElementsMatch(t, [][]int64{{1, 2}, {3}}, got)
}

func TestBatchChunkBy_LengthAndOrder(t *testing.T) {
	srv := newRPCServer(t)
	p := srv.provider()

	for n := 1; n <= 9; n++ {
		for size := 1; size <= n+1; size++ {
			results, err := BatchChunkBy[int](context.Background(), p, echoCalls(n), size)
			require.NoError(t, err, "n=%d size=%d", n, size)
			require.Len(t, results, n, "n=%d size=%d", n, size)

			for i, r := range results {
				assert.Equal(t, i, r.Value, "n=%d size=%d", n, size)
				id, ok := r.ID.Int()
				assert.True(t, ok)
				assert.Equal(t, int64(i+1), id, "n=%d size=%d", n, size)
			}
		}
	}
}

func TestBatchChunkBy_SingleChunkMatchesBatch(t *testing.T) {
	srv := newRPCServer(t)
	p := srv.provider()

	viaBatch, err := Batch[int](context.Background(), p, echoCalls(4))
	require.NoError(t, err)
	viaChunks, err := BatchChunkBy[int](context.Background(), p, echoCalls(4), 10)
	require.NoError(t, err)

	assert.Equal(t, viaBatch, viaChunks)
}

func TestBatch_InvalidRequest(t *testing.T) {
	srv := newRPCServer(t)
	p := srv.provider()

	_, err := Batch[string](context.Background(), p, nil)
	assert.ErrorIs(t, err, jsonrpc.ErrInvalidRequest)

	_, err = BatchChunkBy[string](context.Background(), p, nil, 2)
	assert.ErrorIs(t, err, jsonrpc.ErrInvalidRequest)

	_, err = BatchChunkBy[string](context.Background(), p, ethCalls(), 0)
	require.ErrorIs(t, err, jsonrpc.ErrInvalidRequest)

	var rpcErr *jsonrpc.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, jsonrpc.CodeInvalidRequest, rpcErr.Code)
	assert.Equal(t, "Invalid Request", rpcErr.Message)

	assert.Equal(t, int32(0), srv.exchanges.Load())
	assert.Equal(t, uint64(0), p.Stats().Requests)
}

func TestBatchChunkBy_FailedChunkFailsAll(t *testing.T) {
	srv := newRPCServer(t, func(s *rpcServer) {
		s.fail = func(reqs []*jsonrpc.Request) bool {
			for _, r := range reqs {
				if r.Method == "eth_blockNumber" {
					return true
				}
			}
			return false
		}
	})
	p := srv.provider()

	results, err := BatchChunkBy[string](context.Background(), p, ethCalls(), 2)
	require.Error(t, err)
	assert.Nil(t, results)

	var chunkErr *batch.ChunkError
	require.ErrorAs(t, err, &chunkErr)
	assert.Equal(t, 1, chunkErr.Index)

	var statusErr *transport.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.ErrorIs(t, err, transport.ErrTransport)

	// Both chunks were still sent
	assert.Equal(t, int32(2), srv.exchanges.Load())
	assert.Equal(t, uint64(1), p.Stats().Failures)
}

func TestBatchChunkBy_PerItemErrorsAreResults(t *testing.T) {
	srv := newRPCServer(t)
	p := srv.provider()

	calls := []target.JSONRPCTarget{
		ethereum.ChainID{},
		ethereum.Custom{Name: "eth_unknown"},
		ethereum.BlockNumber{},
	}
	results, err := BatchChunkBy[string](context.Background(), p, calls, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.False(t, results[0].IsError())
	require.True(t, results[1].IsError())
	assert.Equal(t, jsonrpc.CodeMethodNotFound, results[1].Error.Code)
	assert.Equal(t, "0x10", results[2].Value)
}

func TestBatch_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32600,"message":"Invalid Request"}}`))
	}))
	defer srv.Close()

	p := NewProvider(WithLogger(zerolog.Nop()), WithEndpointFunc(func(target.Target) string { return srv.URL }))
	_, err := Batch[string](context.Background(), p, ethCalls())
	assert.ErrorIs(t, err, ErrDecode)

	_, err = BatchChunkBy[string](context.Background(), p, ethCalls(), 1)
	assert.ErrorIs(t, err, ErrDecode)
	var chunkErr *batch.ChunkError
	assert.ErrorAs(t, err, &chunkErr)
}

func TestBatch_WrongResultType(t *testing.T) {
	srv := newRPCServer(t)
	p := srv.provider()

	_, err := Batch[int](context.Background(), p, ethCalls())
	assert.ErrorIs(t, err, ErrDecode)
}

func TestBatchChunkBy_ChunksRunConcurrently(t *testing.T) {
	var inFlight, peak atomic.Int32
	arrived := make(chan struct{}, 8)
	release := make(chan struct{})
	before := func() {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		arrived <- struct{}{}
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
		inFlight.Add(-1)
	}
	srv := newRPCServer(t, func(s *rpcServer) { s.before = before })

	p := srv.provider()
	done := make(chan error, 1)
	go func() {
		_, err := BatchChunkBy[int](context.Background(), p, echoCalls(6), 2)
		done <- err
	}()

	for i := 0; i < 3; i++ {
		select {
		case <-arrived:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d chunks in flight", i)
		}
	}
	close(release)

	require.NoError(t, <-done)
	assert.Equal(t, int32(3), peak.Load())
}

func TestBatchChunkBy_MaxConcurrentChunks(t *testing.T) {
	var inFlight, peak atomic.Int32
	before := func() {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
	}
	srv := newRPCServer(t, func(s *rpcServer) { s.before = before })

	p := srv.provider(WithMaxConcurrentChunks(1))
	results, err := BatchChunkBy[int](context.Background(), p, echoCalls(5), 2)
	require.NoError(t, err)
	assert.Len(t, results, 5)
	assert.Equal(t, int32(1), peak.Load())
	assert.Equal(t, int32(3), srv.exchanges.Load())
}

// rpcCall is a JSON-RPC target carrying its own auth and headers
type rpcCall struct {
	url    string
	method string
	auth   *target.AuthMethod
	header map[string]string
}

func (c rpcCall) BaseURL() string { return c.url }
func (c rpcCall) Method() target.HTTPMethod { return target.POST }
func (c rpcCall) Path() string { return "/rpc" }
func (c rpcCall) Query() map[string]string { return map[string]string{"key": "abc"} }
func (c rpcCall) Headers() map[string]string { return c.header }
func (c rpcCall) Authentication() *target.AuthMethod { return c.auth }
func (c rpcCall) MethodName() string { return c.method }
func (c rpcCall) Params() []interface{} { return nil }
func (c rpcCall) Body() (*target.HTTPBody, error) { return target.JSONRPCBody(c) }

func TestBatch_UsesFirstTargetForTransport(t *testing.T) {
	var gotPath, gotQuery, gotAuth, gotClient, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		gotClient = r.Header.Get("X-Client")
		gotType = r.Header.Get("Content-Type")

		body, _ := io.ReadAll(r.Body)
		data, _ := rpctest.Answer(body, handle)
		w.Write(data)
	}))
	defer srv.Close()

	p := NewProvider(WithLogger(zerolog.Nop()))
	calls := []target.JSONRPCTarget{
		rpcCall{url: srv.URL, method: "eth_chainId", auth: target.Bearer("first"), header: map[string]string{"X-Client": "one"}},
		rpcCall{url: "http://unused.invalid", method: "eth_gasPrice", auth: target.Bearer("second")},
	}

	results, err := Batch[string](context.Background(), p, calls)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "/rpc", gotPath)
	assert.Equal(t, "key=abc", gotQuery)
	assert.Equal(t, "Bearer first", gotAuth)
	assert.Equal(t, "one", gotClient)
	assert.Equal(t, "application/json", gotType)
}

func TestRequestURL(t *testing.T) {
	p := NewProvider()
	assert.Equal(t, "https://rpc.ankr.com/eth", p.RequestURL(ethereum.ChainID{}))

	p = NewProvider(WithEndpointFunc(func(t target.Target) string {
		return "http://localhost:8545" + t.Path()
	}))
	assert.Equal(t, "http://localhost:8545/eth", p.RequestURL(ethereum.ChainID{}))
}

func TestRequestFunc(t *testing.T) {
	srv := newRPCServer(t)
	p := srv.provider(WithRequestFunc(func(t target.Target, ex *transport.Exchange) *transport.Exchange {
		ex.Header.Set("X-Trace", "42")
		return ex
	}))

	_, err := p.Call(context.Background(), ethereum.BlockNumber{})
	require.NoError(t, err)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.Len(t, srv.headers, 1)
	assert.Equal(t, "42", srv.headers[0].Get("X-Trace"))
}

type person struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

type httpBin struct {
	url  string
	body func() (*target.HTTPBody, error)
}

func (h httpBin) BaseURL() string { return h.url }
func (h httpBin) Method() target.HTTPMethod { return target.POST }
func (h httpBin) Path() string { return "/post" }
func (h httpBin) Query() map[string]string { return nil }
func (h httpBin) Headers() map[string]string { return map[string]string{"Content-Type": "application/json"} }
func (h httpBin) Authentication() *target.AuthMethod { return target.Basic("user", nil) }
func (h httpBin) Body() (*target.HTTPBody, error) { return h.body() }

func TestRequestJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _, ok := r.BasicAuth()
		if !ok || user != "user" || r.URL.Path != "/post" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		io.Copy(w, r.Body)
	}))
	defer srv.Close()

	p := NewProvider(WithLogger(zerolog.Nop()))
	bin := httpBin{url: srv.URL, body: func() (*target.HTTPBody, error) {
		return target.NewJSONBody(person{Name: "test", Age: 20})
	}}

	got, err := RequestJSON[person](context.Background(), p, bin)
	require.NoError(t, err)
	assert.Equal(t, person{Name: "test", Age: 20}, got)

	_, err = RequestJSON[[]int](context.Background(), p, bin)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestRequest_SerializationError(t *testing.T) {
	var calls atomic.Int32
	p := NewProvider(WithTransport(transport.Func(func(ctx context.Context, ex *transport.Exchange) (*transport.Response, error) {
		calls.Add(1)
		return &transport.Response{StatusCode: http.StatusOK}, nil
	})))

	bin := httpBin{url: "http://example", body: func() (*target.HTTPBody, error) {
		return nil, errors.New("cannot encode")
	}}
	_, err := p.Request(context.Background(), bin)
	assert.ErrorIs(t, err, ErrSerialization)
	assert.Equal(t, int32(0), calls.Load())
}

func TestBatch_SerializationError(t *testing.T) {
	srv := newRPCServer(t)
	p := srv.provider()

	calls := []target.JSONRPCTarget{
		ethereum.ChainID{},
		ethereum.Custom{Name: "echo", Args: []interface{}{make(chan int)}},
	}
	_, err := BatchChunkBy[string](context.Background(), p, calls, 1)
	assert.ErrorIs(t, err, ErrSerialization)
	assert.Equal(t, int32(0), srv.exchanges.Load())
}

func TestBatchChunkBy_EncodesAllChunksBeforeSending(t *testing.T) {
	srv := newRPCServer(t)
	p := srv.provider()

	calls := []target.JSONRPCTarget{
		ethereum.ChainID{},
		ethereum.GasPrice{},
		ethereum.Custom{Name: "echo", Args: []interface{}{make(chan int)}},
	}
	_, err := BatchChunkBy[string](context.Background(), p, calls, 2)
	require.ErrorIs(t, err, ErrSerialization)
	assert.Contains(t, err.Error(), "chunk 1")
	assert.Equal(t, int32(0), srv.exchanges.Load())
	assert.Equal(t, uint64(0), p.Stats().Requests)

	_, err = Batch[string](context.Background(), p, calls)
	assert.ErrorIs(t, err, ErrSerialization)
	assert.Equal(t, int32(0), srv.exchanges.Load())
}

func TestCall_UsesCache(t *testing.T) {
	srv := newRPCServer(t)
	mc, err := cache.NewMemoryCache(10, time.Minute)
	require.NoError(t, err)
	defer mc.Close()

	p := srv.provider(WithCache(mc, cache.Rules{}))

	for i := 0; i < 2; i++ {
		resp, err := p.Call(context.Background(), ethereum.ChainID{})
		require.NoError(t, err)
		var chainID string
		require.NoError(t, resp.GetResultAs(&chainID))
		assert.Equal(t, "0x1", chainID)
	}
	assert.Equal(t, int32(1), srv.exchanges.Load())
	assert.Equal(t, uint64(1), p.Stats().CacheHits)

	// Not cacheable: every call reaches the node
	for i := 0; i < 2; i++ {
		_, err := p.Call(context.Background(), ethereum.BlockNumber{})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), srv.exchanges.Load())
}

func TestCall_DisabledMethodBypassesCache(t *testing.T) {
	srv := newRPCServer(t)
	mc, err := cache.NewMemoryCache(10, time.Minute)
	require.NoError(t, err)
	defer mc.Close()

	p := srv.provider(WithCache(mc, cache.NewRules([]string{"eth_chainId"})))
	for i := 0; i < 2; i++ {
		_, err := p.Call(context.Background(), ethereum.ChainID{})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), srv.exchanges.Load())
}

func TestCall_ErrorResponse(t *testing.T) {
	srv := newRPCServer(t)
	p := srv.provider()

	resp, err := p.Call(context.Background(), ethereum.Custom{Name: "eth_unknown"})
	require.NoError(t, err)
	require.True(t, resp.HasError())
	assert.Equal(t, jsonrpc.CodeMethodNotFound, resp.Error.Code)
}

func TestBatch_OverWebSocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			out, err := rpctest.Answer(data, handle)
			if err != nil {
				return
			}
			conn.WriteMessage(websocket.TextMessage, out)
		}
	}))
	defer srv.Close()

	ws := transport.NewWebSocket(transport.WebSocketConfig{
		URL:    "ws" + strings.TrimPrefix(srv.URL, "http"),
		Logger: zerolog.Nop(),
	})
	defer ws.Close()

	p := NewProvider(WithLogger(zerolog.Nop()), WithTransport(ws))
	results, err := BatchChunkBy[string](context.Background(), p, ethCalls(), 2)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "0x1", results[0].Value)
	assert.Equal(t, "0x10", results[2].Value)
	assert.Equal(t, uint64(2), ws.Stats().Requests())
}

func ExampleBatchChunkBy() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		data, _ := rpctest.Answer(body, handle)
		w.Write(data)
	}))
	defer srv.Close()

	p := NewProvider(WithEndpointFunc(func(target.Target) string { return srv.URL }))
	results, err := BatchChunkBy[string](context.Background(), p, ethCalls(), 2)
	if err != nil {
		fmt.Println(err)
		return
	}
	for _, r := range results {
		id, _ := r.ID.Int()
		fmt.Println(id, r.Value)
	}
	// Output:
	// 1 0x1
	// 2 0x3b9aca00
	// 3 0x10
}
