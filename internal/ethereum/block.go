package ethereum

import (
	"fmt"
	"strings"

	"rpcprovider/internal/blockparam"
)

// BlockParameter selects the block a state query reads. The zero value is
// latest.
type BlockParameter struct {
	tag    string
	number uint64
}

var (
	Latest    = BlockParameter{}
	Pending   = BlockParameter{tag: "pending"}
	Earliest  = BlockParameter{tag: "earliest"}
	Safe      = BlockParameter{tag: "safe"}
	Finalized = BlockParameter{tag: "finalized"}
)

// AtBlock selects a concrete block number
func AtBlock(n uint64) BlockParameter {
	return BlockParameter{tag: "number", number: n}
}

// ParseBlockParameter accepts a tag name or a 0x quantity
func ParseBlockParameter(s string) (BlockParameter, error) {
	lower := strings.ToLower(s)
	if lower == "" || lower == "latest" {
		return Latest, nil
	}
	if blockparam.IsTag(lower) {
		return BlockParameter{tag: lower}, nil
	}
	n, err := blockparam.ParseNumber(lower)
	if err != nil {
		return BlockParameter{}, fmt.Errorf("invalid block parameter: %w", err)
	}
	return AtBlock(n), nil
}

// Number returns the block number and true when b selects a concrete block
func (b BlockParameter) Number() (uint64, bool) {
	return b.number, b.tag == "number"
}

// String returns the wire form: a tag name or a 0x quantity
func (b BlockParameter) String() string {
	switch b.tag {
	case "":
		return "latest"
	case "number":
		return blockparam.FormatNumber(b.number)
	default:
		return b.tag
	}
}
