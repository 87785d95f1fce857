package ttstore

import (
	"encoding/binary"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/require"

	"github.com/fastalign-go/paralign/walign"
)

func TestPartitionOfPositiveRemainder(t *testing.T) {
	require.Equal(t, 0, PartitionOf(0, 4))
	require.Equal(t, 1, PartitionOf(1, 4))
	require.Equal(t, 3, PartitionOf(-1, 4))
	require.Equal(t, 2, PartitionOf(-2, 4))
	require.Equal(t, 0, PartitionOf(8, 4))
}

// TestPartitionOfIsStablePerKey fuzzes a set of xxhash-derived WordIds
// (standing in for arbitrary integerized vocabulary ids) and checks every
// one routes to exactly one shard in [0, parts), and that the same key
// always maps to the same shard, catching a signed-overflow or off-by-one
// in the modulo arithmetic.
func TestPartitionOfIsStablePerKey(t *testing.T) {
	const parts = 7
	seen := make(map[walign.WordId]int)
	for i := 0; i < 10000; i++ {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(i))
		h := xxhash.Sum64(buf[:])
		src := walign.WordId(int32(h))

		part := PartitionOf(src, parts)
		require.GreaterOrEqual(t, part, 0)
		require.Less(t, part, parts)

		if prev, ok := seen[src]; ok {
			require.Equal(t, prev, part, "same src must always route to the same shard")
		} else {
			seen[src] = part
		}
	}
}
