package auction

import (
	"crypto/sha256"
	"encoding/binary"
)

// ComputeShardID maps (asset, rate) to a shard. Pure and reproducible
// forever: the same inputs must route to the same shard so resubmission
// always finds the same book. shardCount > 0 is a caller precondition,
// enforced at Initialize.
func ComputeShardID(asset string, rate uint8, shardCount uint64) uint64 {
	h := sha256.New()
	h.Write([]byte(asset))
	h.Write([]byte{rate})
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum[:8]) % shardCount
}
