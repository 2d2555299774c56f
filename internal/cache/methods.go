package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"rpcprovider/internal/blockparam"
)

// Cacheability describes when a method's result may be reused
type Cacheability int

const (
	// NotCacheable results are never reused
	NotCacheable Cacheability = iota
	// AlwaysCacheable results are immutable
	AlwaysCacheable
	// CacheableWithBlockNumber results are fixed once the block param is a number or hash
	CacheableWithBlockNumber
	// CacheableWithBlockRange results are fixed once both filter bounds are numbers
	CacheableWithBlockRange
)

var defaultRules = map[string]Cacheability{
	"eth_chainId":                           AlwaysCacheable,
	"net_version":                           AlwaysCacheable,
	"eth_getBlockByHash":                    AlwaysCacheable,
	"eth_getTransactionByHash":              AlwaysCacheable,
	"eth_getTransactionReceipt":             AlwaysCacheable,
	"eth_getBlockTransactionCountByHash":    AlwaysCacheable,
	"eth_getTransactionByBlockHashAndIndex": AlwaysCacheable,
	"debug_traceTransaction":                AlwaysCacheable,
	"trace_transaction":                     AlwaysCacheable,

	"eth_getBlockByNumber":                    CacheableWithBlockNumber,
	"eth_getBalance":                          CacheableWithBlockNumber,
	"eth_getTransactionCount":                 CacheableWithBlockNumber,
	"eth_getCode":                             CacheableWithBlockNumber,
	"eth_getStorageAt":                        CacheableWithBlockNumber,
	"eth_call":                                CacheableWithBlockNumber,
	"eth_getBlockTransactionCountByNumber":    CacheableWithBlockNumber,
	"eth_getTransactionByBlockNumberAndIndex": CacheableWithBlockNumber,
	"eth_getBlockReceipts":                    CacheableWithBlockNumber,
	"eth_getProof":                            CacheableWithBlockNumber,
	"debug_traceBlockByNumber":                CacheableWithBlockNumber,
	"debug_traceCall":                         CacheableWithBlockNumber,
	"trace_call":                              CacheableWithBlockNumber,
	"trace_callMany":                          CacheableWithBlockNumber,
	"trace_replayBlockTransactions":           CacheableWithBlockNumber,

	"eth_getLogs":  CacheableWithBlockRange,
	"trace_filter": CacheableWithBlockRange,
}

// Rules decides which calls may be served from the cache. The zero value
// uses the built-in method table with nothing disabled.
type Rules struct {
	disabled map[string]bool
}

// NewRules returns rules with the given methods excluded from caching
func NewRules(disabledMethods []string) Rules {
	r := Rules{disabled: make(map[string]bool, len(disabledMethods))}
	for _, m := range disabledMethods {
		r.disabled[m] = true
	}
	return r
}

// IsDisabled reports whether method was excluded by configuration
func (r Rules) IsDisabled(method string) bool {
	return r.disabled[method]
}

// IsCacheable reports whether the result of method called with params may
// be cached
func (r Rules) IsCacheable(method string, params json.RawMessage) bool {
	if r.disabled[method] {
		return false
	}

	switch defaultRules[method] {
	case AlwaysCacheable:
		return true
	case CacheableWithBlockNumber:
		return !blockparam.HasDynamicBlock(method, params)
	case CacheableWithBlockRange:
		return !blockparam.HasDynamicRange(params)
	default:
		return false
	}
}

// GenerateCacheKey builds a key from scope (usually the endpoint URL),
// method and the normalized params
func GenerateCacheKey(scope, method string, params json.RawMessage) string {
	sum := sha256.Sum256(normalizeParams(params))
	return scope + ":" + method + ":" + hex.EncodeToString(sum[:8])
}

// normalizeParams re-encodes params so that key order and hex case do not
// change the key
func normalizeParams(params json.RawMessage) []byte {
	if len(params) == 0 {
		return []byte("[]")
	}

	var v interface{}
	if err := json.Unmarshal(params, &v); err != nil {
		return params
	}
	out, err := json.Marshal(normalizeValue(v))
	if err != nil {
		return params
	}
	return out
}

func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(val))
		for k, item := range val {
			m[k] = normalizeValue(item)
		}
		return m
	case []interface{}:
		arr := make([]interface{}, len(val))
		for i, item := range val {
			arr[i] = normalizeValue(item)
		}
		return arr
	case string:
		if strings.HasPrefix(val, "0x") || strings.HasPrefix(val, "0X") {
			return strings.ToLower(val)
		}
		return val
	default:
		return val
	}
}
