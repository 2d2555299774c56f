package provider

import "errors"

var (
	// ErrSerialization is returned when a request body cannot be built
	ErrSerialization = errors.New("serialization error")

	// ErrDecode is returned when a response body cannot be decoded
	ErrDecode = errors.New("decode error")
)
