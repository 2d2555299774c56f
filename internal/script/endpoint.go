// Package script resolves request URLs with a user-supplied JavaScript
// function.
//
// A script defines endpoint(target) and returns the URL to send the
// request to:
//
//	function endpoint(t) {
//	    if (t.method === "eth_sendRawTransaction") {
//	        return "https://relay.example/rpc";
//	    }
//	    return t.baseUrl + t.path;
//	}
package script

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/rs/zerolog"

	"rpcprovider/internal/target"
)

// DefaultTimeout bounds one endpoint() evaluation
const DefaultTimeout = time.Second

// ErrNoEndpoint is returned when the script does not define endpoint()
var ErrNoEndpoint = errors.New("script does not define an endpoint function")

// Endpoint evaluates a compiled endpoint script. A goja VM is not safe for
// concurrent use, so evaluations are serialized.
type Endpoint struct {
	vm      *goja.Runtime
	fn      goja.Callable
	timeout time.Duration
	logger  zerolog.Logger
	mu      sync.Mutex
}

// NewEndpoint compiles source and looks up its endpoint function
func NewEndpoint(source string, logger zerolog.Logger) (*Endpoint, error) {
	logger = logger.With().Str("component", "script").Logger()
	vm := newRuntime(logger)

	if _, err := vm.RunString(source); err != nil {
		return nil, fmt.Errorf("script error: %w", err)
	}

	fn, ok := goja.AssertFunction(vm.Get("endpoint"))
	if !ok {
		return nil, ErrNoEndpoint
	}

	return &Endpoint{
		vm:      vm,
		fn:      fn,
		timeout: DefaultTimeout,
		logger:  logger,
	}, nil
}

// LoadEndpoint reads and compiles a script file
func LoadEndpoint(path string, logger zerolog.Logger) (*Endpoint, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script file: %w", err)
	}
	return NewEndpoint(string(content), logger)
}

// NewEndpointFunc compiles source and returns its Func
func NewEndpointFunc(source string, logger zerolog.Logger) (func(target.Target) string, error) {
	e, err := NewEndpoint(source, logger)
	if err != nil {
		return nil, err
	}
	return e.Func(), nil
}

// SetTimeout sets the limit for one evaluation
func (e *Endpoint) SetTimeout(timeout time.Duration) {
	e.mu.Lock()
	e.timeout = timeout
	e.mu.Unlock()
}

// Resolve runs endpoint(t) and returns the URL it produced
func (e *Endpoint) Resolve(t target.Target) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	timer := time.AfterFunc(e.timeout, func() {
		e.vm.Interrupt("endpoint script timed out")
	})
	defer func() {
		timer.Stop()
		e.vm.ClearInterrupt()
	}()

	result, err := e.fn(goja.Undefined(), e.vm.ToValue(describe(t)))
	if err != nil {
		var jsErr *goja.Exception
		if errors.As(err, &jsErr) {
			return "", fmt.Errorf("endpoint script: %s", jsErr.String())
		}
		return "", fmt.Errorf("endpoint script: %w", err)
	}

	u, ok := result.Export().(string)
	if !ok || u == "" {
		return "", fmt.Errorf("endpoint script returned %v, want a non-empty string", result)
	}
	return u, nil
}

// Func adapts Resolve to an endpoint function. Evaluation failures fall
// back to the target's own BaseURL and Path.
func (e *Endpoint) Func() func(target.Target) string {
	return func(t target.Target) string {
		u, err := e.Resolve(t)
		if err != nil {
			e.logger.Warn().Err(err).Msg("endpoint script failed, using target url")
			return t.BaseURL() + t.Path()
		}
		return u
	}
}

// describe builds the object handed to endpoint()
func describe(t target.Target) map[string]interface{} {
	obj := map[string]interface{}{
		"baseUrl":    t.BaseURL(),
		"path":       t.Path(),
		"httpMethod": t.Method().String(),
		"query":      stringMap(t.Query()),
		"headers":    stringMap(t.Headers()),
		"method":     "",
		"params":     []interface{}{},
	}
	if rpc, ok := t.(target.JSONRPCTarget); ok {
		obj["method"] = rpc.MethodName()
		if params := rpc.Params(); params != nil {
			obj["params"] = params
		}
	}
	return obj
}

func stringMap(m map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
