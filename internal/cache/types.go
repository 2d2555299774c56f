package cache

// Cache stores encoded JSON-RPC results by key
type Cache interface {
	// Get returns the cached value and true if present and not expired
	Get(key string) ([]byte, bool)

	// Set stores value under key
	Set(key string, value []byte)

	// Close releases any resources held by the cache
	Close()
}
