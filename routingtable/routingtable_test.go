package routingtable

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dhtnode/remotenode"
	"dhtnode/util"
)

func idWithPrefix(prefixByte byte, suffix byte) util.NodeID {
	var id util.NodeID
	id[0] = prefixByte
	id[19] = suffix
	return id
}

func nodeAt(id util.NodeID, port uint16) remotenode.RemoteNode {
	return remotenode.New(id, net.IPv4(1, 2, 3, byte(port)), port)
}

// Scenario C: bucket split on overflow along the local-ID path.
func TestAddNodeSplitsLocalBucket(t *testing.T) {
	var local util.NodeID // 00...00
	rt := New(local)

	for i := 0; i < 9; i++ {
		id := idWithPrefix(0x00, byte(i+1))
		ok := rt.AddNode(nodeAt(id, uint16(1000+i)))
		require.True(t, ok, "node %d should have been accepted", i)
	}
	assert.Equal(t, 9, rt.ActiveCount())
	assert.Greater(t, rt.BucketCount(), 1, "table should have split")
}

// Scenario D: bucket full and not splittable drops the 9th node.
func TestAddNodeDropsWhenBucketFullAndNotSplittable(t *testing.T) {
	var local util.NodeID // 00...00, so 0xFF-prefixed nodes never share our bucket once split begins
	rt := New(local)

	for i := 0; i < 8; i++ {
		id := idWithPrefix(0xFF, byte(i+1))
		ok := rt.AddNode(nodeAt(id, uint16(2000+i)))
		require.True(t, ok)
	}
	ninth := idWithPrefix(0xFF, 9)
	ok := rt.AddNode(nodeAt(ninth, 2100))
	assert.False(t, ok, "9th node in a full, non-local bucket must be dropped")
	assert.Equal(t, 8, rt.ActiveCount())
}

func TestAddNodeRefreshesExisting(t *testing.T) {
	var local util.NodeID
	rt := New(local)
	id := idWithPrefix(0x01, 1)
	require.True(t, rt.AddNode(nodeAt(id, 111)))
	require.True(t, rt.AddNode(nodeAt(id, 222)))
	assert.Equal(t, 1, rt.ActiveCount())

	nodes := rt.ClosestNodes(id, 1)
	require.Len(t, nodes, 1)
	assert.Equal(t, uint16(222), nodes[0].Port)
}

func TestClosestNodesOrderedByXORDistance(t *testing.T) {
	var local util.NodeID
	rt := New(local)

	var target util.NodeID
	target[0] = 0x0F

	ids := []util.NodeID{
		idWithPrefix(0xFF, 1), // far
		idWithPrefix(0x00, 2), // very close to target in top bits... compute explicitly below
		idWithPrefix(0x0F, 3), // identical prefix byte as target
	}
	for i, id := range ids {
		require.True(t, rt.AddNode(nodeAt(id, uint16(3000+i))))
	}

	got := rt.ClosestNodes(target, 3)
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		prev := target.Distance(got[i-1].ID)
		cur := target.Distance(got[i].ID)
		assert.False(t, cur.Less(prev), "closest nodes must be nondecreasing by distance")
	}
}

func TestRemoveStaleEvictsOldNodes(t *testing.T) {
	var local util.NodeID
	rt := New(local)
	id := idWithPrefix(0x01, 1)
	require.True(t, rt.AddNode(nodeAt(id, 111)))

	future := time.Now().Add(20 * time.Minute)
	rt.RemoveStale(future, 15*time.Minute)
	assert.Equal(t, 0, rt.ActiveCount())
}

func TestRemoveStaleKeepsFreshNodes(t *testing.T) {
	var local util.NodeID
	rt := New(local)
	id := idWithPrefix(0x01, 1)
	require.True(t, rt.AddNode(nodeAt(id, 111)))

	rt.RemoveStale(time.Now(), 15*time.Minute)
	assert.Equal(t, 1, rt.ActiveCount())
}

func TestBucketCardinalityNeverExceedsK(t *testing.T) {
	var local util.NodeID
	rt := New(local)
	for i := 0; i < 200; i++ {
		id := idWithPrefix(byte(i), byte(i))
		rt.AddNode(nodeAt(id, uint16(4000+i)))
	}
	rt.mu.Lock()
	for _, b := range rt.buckets {
		assert.LessOrEqual(t, len(b.nodes), util.K)
	}
	rt.mu.Unlock()
}

func TestStaleBucketsReportsIdleBuckets(t *testing.T) {
	var local util.NodeID
	rt := New(local)
	id := idWithPrefix(0x01, 1)
	require.True(t, rt.AddNode(nodeAt(id, 111)))

	stale := rt.StaleBuckets(time.Now().Add(20*time.Minute), 15*time.Minute)
	require.Len(t, stale, 1)
	assert.Equal(t, uint16(111), stale[0].Via.Port)
}

func TestStaleBucketsEmptyWhenRecentlyActive(t *testing.T) {
	var local util.NodeID
	rt := New(local)
	id := idWithPrefix(0x01, 1)
	require.True(t, rt.AddNode(nodeAt(id, 111)))

	stale := rt.StaleBuckets(time.Now(), 15*time.Minute)
	assert.Empty(t, stale)
}
