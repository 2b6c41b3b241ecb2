// Package routingtable implements the BEP 5 routing table: a set of
// buckets partitioning the 160-bit keyspace, each holding up to K
// RemoteNodes, with the bucket on the path to the local node ID eligible
// to split when full.
//
// The teacher repository routed instead through an nTree: a
// compressed-path binary trie with no fixed bucket boundaries (see
// routingTable/routing.go in the teacher copy, now removed). That design
// predates BEP 5 bucket semantics and is exactly what
// jackpal/Taipei-Torrent's original dht.go flagged with
// "TODO: Create a proper routing table with buckets, per the protocol" —
// the split/refresh policy here is that TODO implemented, informed by the
// fixed-array bucket table in ethereum-go-ethereum's p2p/discover/table.go
// and by the teacher's own XOR-prefix reasoning, carried over into
// bucketRange.contains and NodeID.BitAt below.
package routingtable

import (
	"sort"
	"time"

	"dhtnode/remotenode"
	"dhtnode/util"
)

// bucketRange is a range of the keyspace: all IDs that share the first
// prefixLen bits given by prefix.
type bucketRange struct {
	prefix    util.NodeID
	prefixLen int // number of significant leading bits in prefix
}

// contains reports whether id falls within this bucket's range: its
// leading prefixLen bits match prefix's.
func (r bucketRange) contains(id util.NodeID) bool {
	for i := 0; i < r.prefixLen; i++ {
		if id.BitAt(i) != r.prefix.BitAt(i) {
			return false
		}
	}
	return true
}

// split partitions r into its two children, differing at bit prefixLen.
func (r bucketRange) split() (zero, one bucketRange) {
	zero = bucketRange{prefix: r.prefix, prefixLen: r.prefixLen + 1}
	one = zero
	one.prefix[r.prefixLen/8] |= 0x80 >> uint(r.prefixLen%8)
	return zero, one
}

// bucket holds up to util.K nodes whose IDs fall within rng, ordered by
// LastSeen ascending (oldest first, per spec.md §3).
type bucket struct {
	rng         bucketRange
	nodes       []remotenode.RemoteNode
	lastChanged time.Time
}

func newBucket(rng bucketRange) *bucket {
	return &bucket{rng: rng, lastChanged: time.Now()}
}

func (b *bucket) full() bool { return len(b.nodes) >= util.K }

func (b *bucket) indexOf(id util.NodeID) int {
	probe := remotenode.RemoteNode{ID: id}
	for i, n := range b.nodes {
		if n.Equal(probe) {
			return i
		}
	}
	return -1
}

// upsert refreshes an existing node (moving it to the tail) or appends a
// new one if there is room. Returns false if the node is new and the
// bucket is already full.
func (b *bucket) upsert(n remotenode.RemoteNode) bool {
	if i := b.indexOf(n.ID); i >= 0 {
		b.nodes = append(b.nodes[:i], b.nodes[i+1:]...)
		b.nodes = append(b.nodes, n.Touch())
		b.lastChanged = time.Now()
		return true
	}
	if b.full() {
		return false
	}
	b.nodes = append(b.nodes, n)
	b.lastChanged = time.Now()
	return true
}

func (b *bucket) remove(id util.NodeID) {
	if i := b.indexOf(id); i >= 0 {
		b.nodes = append(b.nodes[:i], b.nodes[i+1:]...)
	}
}

// removeStale evicts nodes last seen more than maxAge ago, relative to
// now.
func (b *bucket) removeStale(now time.Time, maxAge time.Duration) {
	var staleIDs []util.NodeID
	for _, n := range b.nodes {
		if now.Sub(n.LastSeen) > maxAge {
			staleIDs = append(staleIDs, n.ID)
		}
	}
	for _, id := range staleIDs {
		b.remove(id)
	}
}

// freshest returns the most recently seen node in the bucket, or the zero
// value and false if the bucket is empty.
func (b *bucket) freshest() (remotenode.RemoteNode, bool) {
	if len(b.nodes) == 0 {
		return remotenode.RemoteNode{}, false
	}
	best := b.nodes[0]
	for _, n := range b.nodes[1:] {
		if n.LastSeen.After(best.LastSeen) {
			best = n
		}
	}
	return best, true
}

// randomIDInRange returns a random NodeID whose leading bits match b's
// range, used to target a find_node query at this bucket during refresh.
func (b *bucket) randomIDInRange() util.NodeID {
	id, err := util.RandomNodeID()
	if err != nil {
		id = util.NodeID{}
	}
	for i := 0; i < b.rng.prefixLen; i++ {
		byteIdx := i / 8
		bitMask := byte(0x80 >> uint(i%8))
		id[byteIdx] &^= bitMask
		if b.rng.prefix.BitAt(i) == 1 {
			id[byteIdx] |= bitMask
		}
	}
	return id
}

// sortByDistance returns a copy of b's nodes ordered by ascending XOR
// distance to target, breaking ties by LastSeen ascending for a stable,
// deterministic order.
func (b *bucket) sortByDistance(target util.NodeID) []remotenode.RemoteNode {
	out := make([]remotenode.RemoteNode, len(b.nodes))
	copy(out, b.nodes)
	sort.SliceStable(out, func(i, j int) bool {
		di := target.Distance(out[i].ID)
		dj := target.Distance(out[j].ID)
		if di == dj {
			return out[i].LastSeen.Before(out[j].LastSeen)
		}
		return di.Less(dj)
	})
	return out
}
