// Package blockparam locates and interprets the block parameter of
// Ethereum JSON-RPC calls.
package blockparam

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Tags lists the named block tags. Their meaning moves with the chain head.
var Tags = map[string]bool{
	"latest":    true,
	"pending":   true,
	"earliest":  true,
	"safe":      true,
	"finalized": true,
}

// IsTag reports whether s is a named block tag
func IsTag(s string) bool {
	return Tags[strings.ToLower(s)]
}

// Index returns the position of the block parameter in the params array of
// method, or -1 if the method takes none.
func Index(method string) int {
	switch method {
	case "eth_getBlockByNumber",
		"eth_getBlockTransactionCountByNumber",
		"eth_getTransactionByBlockNumberAndIndex",
		"eth_getBlockReceipts",
		"debug_traceBlockByNumber",
		"trace_replayBlockTransactions":
		return 0
	case "eth_getBalance",
		"eth_getCode",
		"eth_getTransactionCount",
		"eth_call",
		"debug_traceCall",
		"trace_call",
		"trace_callMany":
		return 1
	case "eth_getStorageAt", "eth_getProof":
		return 2
	default:
		return -1
	}
}

// FormatNumber renders n as a quantity ("0x1b4")
func FormatNumber(n uint64) string {
	return "0x" + strconv.FormatUint(n, 16)
}

// ParseNumber parses a 0x-prefixed hex quantity
func ParseNumber(s string) (uint64, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return 0, fmt.Errorf("block number %q: missing 0x prefix", s)
	}
	n, err := strconv.ParseUint(s[2:], 16, 64)
	if err != nil {
		return 0, fmt.Errorf("block number %q: %w", s, err)
	}
	return n, nil
}

// IsDynamic reports whether one raw param refers to a moving block: a tag,
// an object whose blockNumber is a tag, or anything unparseable. Block
// hashes and concrete numbers are fixed.
func IsDynamic(param json.RawMessage) bool {
	var s string
	if err := json.Unmarshal(param, &s); err == nil {
		return IsTag(s)
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(param, &obj); err != nil {
		return true
	}
	if v, ok := obj["blockNumber"].(string); ok {
		return IsTag(v)
	}
	return false
}

// HasDynamicBlock reports whether the call reads from a moving block. A
// method with a block parameter that was omitted defaults to latest.
func HasDynamicBlock(method string, params json.RawMessage) bool {
	idx := Index(method)
	if idx < 0 {
		return false
	}
	args, ok := splitParams(params)
	if !ok || idx >= len(args) {
		return true
	}
	return IsDynamic(args[idx])
}

// HasDynamicRange reports whether a filter call (eth_getLogs, trace_filter)
// leaves either bound open or set to a tag.
func HasDynamicRange(params json.RawMessage) bool {
	args, ok := splitParams(params)
	if !ok || len(args) == 0 {
		return true
	}

	var filter map[string]interface{}
	if err := json.Unmarshal(args[0], &filter); err != nil {
		return true
	}
	for _, key := range []string{"fromBlock", "toBlock"} {
		v, present := filter[key]
		if !present {
			return true
		}
		if s, ok := v.(string); ok && IsTag(s) {
			return true
		}
	}
	return false
}

// Requested returns the concrete block number a call reads, if any. For
// filter calls it is the upper bound of the range.
func Requested(method string, params json.RawMessage) (uint64, bool) {
	args, ok := splitParams(params)
	if !ok {
		return 0, false
	}

	if method == "eth_getLogs" || method == "trace_filter" {
		if len(args) == 0 || HasDynamicRange(params) {
			return 0, false
		}
		var filter map[string]string
		if err := json.Unmarshal(args[0], &filter); err != nil {
			return 0, false
		}
		from, errFrom := ParseNumber(filter["fromBlock"])
		to, errTo := ParseNumber(filter["toBlock"])
		if errFrom != nil || errTo != nil {
			return 0, false
		}
		return max(from, to), true
	}

	idx := Index(method)
	if idx < 0 || idx >= len(args) || IsDynamic(args[idx]) {
		return 0, false
	}
	return numberFromParam(args[idx])
}

func numberFromParam(param json.RawMessage) (uint64, bool) {
	var s string
	if err := json.Unmarshal(param, &s); err != nil {
		var obj struct {
			BlockNumber string `json:"blockNumber"`
		}
		if err := json.Unmarshal(param, &obj); err != nil || obj.BlockNumber == "" {
			return 0, false
		}
		s = obj.BlockNumber
	}
	n, err := ParseNumber(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func splitParams(params json.RawMessage) ([]json.RawMessage, bool) {
	if len(params) == 0 {
		return nil, false
	}
	var args []json.RawMessage
	if err := json.Unmarshal(params, &args); err != nil {
		return nil, false
	}
	return args, true
}
