package redis

import "fmt"

const (
	trustedSiteSetKey       = "ubx:trusted-sites"
	removeparamGuardKeyPrefix = "ubx:removeparam-guard:"
	snapshotSwapChannel     = "ubx:snapshot-swap"
)

// KeyGenerator provides universal Redis key generation for engine-coherence operations.
type KeyGenerator struct{}

// NewKeyGenerator creates a new KeyGenerator instance.
func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{}
}

// TrustedSiteSetKey returns the key of the SET holding trusted eTLD+1 values.
func (kg *KeyGenerator) TrustedSiteSetKey() string {
	return trustedSiteSetKey
}

// RemoveparamGuardKey returns the Redis key for a (tab, frame, URL) loop-guard entry.
// The value expires after the guard TTL (set via SETNX with that TTL by the caller).
func (kg *KeyGenerator) RemoveparamGuardKey(tabID, frameID int64, url string) string {
	return fmt.Sprintf("%s%d:%d:%s", removeparamGuardKeyPrefix, tabID, frameID, url)
}

// SnapshotSwapChannel returns the pub/sub channel engines publish to after a
// successful snapshot swap. No code in this module subscribes to it.
func (kg *KeyGenerator) SnapshotSwapChannel() string {
	return snapshotSwapChannel
}
