package zkvm

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

// Trace event kinds.
const (
	traceRead   byte = 0x01
	traceCommit byte = 0x02
	traceRand   byte = 0x03
	traceHalt   byte = 0x04
)

// traceEvent records one interaction of the guest with its environment. Only
// digests and lengths are kept; random bytes are never recorded.
type traceEvent struct {
	kind   byte
	length uint64
	digest [32]byte
}

func (ev traceEvent) leaf() [32]byte {
	var buf [1 + 8 + 32]byte
	buf[0] = ev.kind
	binary.BigEndian.PutUint64(buf[1:9], ev.length)
	copy(buf[9:], ev.digest[:])
	return sha256.Sum256(buf[:])
}

// traceCommitment computes the Merkle root over the event leaves.
func traceCommitment(events []traceEvent) common.Hash {
	leaves := make([][32]byte, len(events))
	for i, ev := range events {
		leaves[i] = ev.leaf()
	}
	return common.Hash(merkleRoot(leaves))
}

// merkleRoot computes a binary SHA-256 Merkle root, duplicating the last
// node on odd levels.
func merkleRoot(leaves [][32]byte) [32]byte {
	if len(leaves) == 0 {
		return sha256.Sum256(nil)
	}
	if len(leaves) == 1 {
		return leaves[0]
	}

	current := make([][32]byte, len(leaves))
	copy(current, leaves)
	for len(current) > 1 {
		if len(current)%2 != 0 {
			current = append(current, current[len(current)-1])
		}
		next := make([][32]byte, len(current)/2)
		for i := 0; i < len(current); i += 2 {
			h := sha256.New()
			h.Write(current[i][:])
			h.Write(current[i+1][:])
			copy(next[i/2][:], h.Sum(nil))
		}
		current = next
	}
	return current[0]
}
