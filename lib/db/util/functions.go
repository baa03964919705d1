package util

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// --------------------------------------------------------------------------
// General Utility Functions
// --------------------------------------------------------------------------

// GenerateSeed creates a random seed for shard selection
func GenerateSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}

// --------------------------------------------------------------------------
// Hash Functions
// --------------------------------------------------------------------------

// HashString hashes a string with the FNV-1a algorithm mixed with a seed.
func HashString(s string, seed uint64) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)

	hash := uint64(offset64) ^ seed
	for i := 0; i < len(s); i++ {
		hash ^= uint64(s[i])
		hash *= prime64
	}
	return hash
}

// ShardIndex maps a key to one of n shards.
func ShardIndex(key string, seed uint64, n int) int {
	if n <= 1 {
		return 0
	}
	return int(HashString(key, seed) % uint64(n))
}
