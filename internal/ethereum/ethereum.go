// Package ethereum provides JSON-RPC descriptors for Ethereum nodes.
package ethereum

import (
	"fmt"

	"rpcprovider/internal/target"
)

const (
	// DefaultBaseURL is the public endpoint the descriptors point at
	DefaultBaseURL = "https://rpc.ankr.com"
	// DefaultPath selects the mainnet route on DefaultBaseURL
	DefaultPath = "/eth"
)

// Call is one Ethereum JSON-RPC call. The set of implementations is closed.
type Call interface {
	target.JSONRPCTarget
	isCall()
}

// endpoint carries the transport side shared by every call
type endpoint struct{}

func (endpoint) BaseURL() string { return DefaultBaseURL }
func (endpoint) Method() target.HTTPMethod { return target.POST }
func (endpoint) Path() string { return DefaultPath }
func (endpoint) Query() map[string]string { return nil }
func (endpoint) Authentication() *target.AuthMethod { return nil }
func (endpoint) isCall() {}

func (endpoint) Headers() map[string]string {
	return map[string]string{"Content-Type": "application/json"}
}

// ChainID calls eth_chainId
type ChainID struct{ endpoint }

// MethodName implements target.JSONRPCTarget
func (ChainID) MethodName() string { return "eth_chainId" }

// Params implements target.JSONRPCTarget
func (ChainID) Params() []interface{} { return nil }

// Body implements target.Target
func (c ChainID) Body() (*target.HTTPBody, error) { return target.JSONRPCBody(c) }

// GasPrice calls eth_gasPrice
type GasPrice struct{ endpoint }

// MethodName implements target.JSONRPCTarget
func (GasPrice) MethodName() string { return "eth_gasPrice" }

// Params implements target.JSONRPCTarget
func (GasPrice) Params() []interface{} { return nil }

// Body implements target.Target
func (c GasPrice) Body() (*target.HTTPBody, error) { return target.JSONRPCBody(c) }

// BlockNumber calls eth_blockNumber
type BlockNumber struct{ endpoint }

// MethodName implements target.JSONRPCTarget
func (BlockNumber) MethodName() string { return "eth_blockNumber" }

// Params implements target.JSONRPCTarget
func (BlockNumber) Params() []interface{} { return nil }

// Body implements target.Target
func (c BlockNumber) Body() (*target.HTTPBody, error) { return target.JSONRPCBody(c) }

// GetBalance calls eth_getBalance. A zero Block means latest.
type GetBalance struct {
	endpoint
	Address string
	Block   BlockParameter
}

// MethodName implements target.JSONRPCTarget
func (GetBalance) MethodName() string { return "eth_getBalance" }

// Params implements target.JSONRPCTarget
func (c GetBalance) Params() []interface{} {
	return []interface{}{c.Address, c.Block.String()}
}

// Body implements target.Target
func (c GetBalance) Body() (*target.HTTPBody, error) { return target.JSONRPCBody(c) }

// GetTransactionCount calls eth_getTransactionCount. A zero Block means latest.
type GetTransactionCount struct {
	endpoint
	Address string
	Block   BlockParameter
}

// MethodName implements target.JSONRPCTarget
func (GetTransactionCount) MethodName() string { return "eth_getTransactionCount" }

// Params implements target.JSONRPCTarget
func (c GetTransactionCount) Params() []interface{} {
	return []interface{}{c.Address, c.Block.String()}
}

// Body implements target.Target
func (c GetTransactionCount) Body() (*target.HTTPBody, error) { return target.JSONRPCBody(c) }

// SendRawTransaction calls eth_sendRawTransaction with a signed, hex
// encoded transaction
type SendRawTransaction struct {
	endpoint
	Tx string
}

// MethodName implements target.JSONRPCTarget
func (SendRawTransaction) MethodName() string { return "eth_sendRawTransaction" }

// Params implements target.JSONRPCTarget
func (c SendRawTransaction) Params() []interface{} { return []interface{}{c.Tx} }

// Body implements target.Target
func (c SendRawTransaction) Body() (*target.HTTPBody, error) { return target.JSONRPCBody(c) }

// Custom calls an arbitrary method
type Custom struct {
	endpoint
	Name string
	Args []interface{}
}

// MethodName implements target.JSONRPCTarget
func (c Custom) MethodName() string { return c.Name }

// Params implements target.JSONRPCTarget
func (c Custom) Params() []interface{} { return c.Args }

// Body implements target.Target
func (c Custom) Body() (*target.HTTPBody, error) {
	if c.Name == "" {
		return nil, fmt.Errorf("custom call: method name is required")
	}
	return target.JSONRPCBody(c)
}
