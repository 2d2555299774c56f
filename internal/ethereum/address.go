package ethereum

import (
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/sha3"
)

// ErrInvalidAddress is returned for anything but 20 hex-encoded bytes
var ErrInvalidAddress = errors.New("invalid address")

// Keccak256 returns the legacy Keccak-256 digest of data
func Keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

// ChecksumAddress returns the EIP-55 mixed-case form of a hex address
func ChecksumAddress(addr string) (string, error) {
	raw := strings.TrimPrefix(strings.TrimPrefix(addr, "0x"), "0X")
	if len(raw) != 40 {
		return "", ErrInvalidAddress
	}
	if _, err := hex.DecodeString(raw); err != nil {
		return "", ErrInvalidAddress
	}

	lower := strings.ToLower(raw)
	hash := hex.EncodeToString(Keccak256([]byte(lower)))

	out := make([]byte, 0, 42)
	out = append(out, '0', 'x')
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		if c >= 'a' && c <= 'f' && hash[i] >= '8' {
			c -= 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out), nil
}

// IsChecksumAddress reports whether addr is already in EIP-55 form
func IsChecksumAddress(addr string) bool {
	sum, err := ChecksumAddress(addr)
	return err == nil && sum == addr
}
