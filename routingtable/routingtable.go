package routingtable

import (
	"sort"
	"sync"
	"time"

	"dhtnode/remotenode"
	"dhtnode/util"
)

// RoutingTable is a bounded collection of known remote nodes, organized
// into buckets by XOR-prefix range, per spec.md §3/§4.2. It is safe for
// concurrent use: every operation takes the table's own mutex, and no
// operation here ever also takes a lock belonging to another component
// (the pending-query store, the counters, ...), per spec.md §5's
// one-lock-at-a-time discipline.
type RoutingTable struct {
	mu      sync.Mutex
	localID util.NodeID
	buckets []*bucket
}

// New creates a RoutingTable for a node with the given local ID. It
// starts with a single bucket spanning the entire keyspace, per spec.md
// §3.
func New(localID util.NodeID) *RoutingTable {
	return &RoutingTable{
		localID: localID,
		buckets: []*bucket{newBucket(bucketRange{})},
	}
}

// bucketIndexFor returns the index of the bucket whose range contains id.
// Caller must hold mu.
func (t *RoutingTable) bucketIndexFor(id util.NodeID) int {
	for i, b := range t.buckets {
		if b.rng.contains(id) {
			return i
		}
	}
	// Ranges partition the keyspace, so this is unreachable so long as
	// the invariant in splitBucket holds.
	return len(t.buckets) - 1
}

// splitBucket replaces the bucket at index i with its two children,
// redistributing its nodes by their next prefix bit. Caller must hold mu.
func (t *RoutingTable) splitBucket(i int) {
	old := t.buckets[i]
	zeroRange, oneRange := old.rng.split()
	zeroBucket := newBucket(zeroRange)
	oneBucket := newBucket(oneRange)
	for _, n := range old.nodes {
		if n.ID.BitAt(old.rng.prefixLen) == 0 {
			zeroBucket.nodes = append(zeroBucket.nodes, n)
		} else {
			oneBucket.nodes = append(oneBucket.nodes, n)
		}
	}
	t.buckets = append(t.buckets[:i], append([]*bucket{zeroBucket, oneBucket}, t.buckets[i+1:]...)...)
}

// AddNode inserts or refreshes a RemoteNode, per spec.md §4.2. If the
// node's bucket is full and not eligible to split, the node is dropped
// and AddNode returns false.
func (t *RoutingTable) AddNode(n remotenode.RemoteNode) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.addNodeLocked(n)
}

func (t *RoutingTable) addNodeLocked(n remotenode.RemoteNode) bool {
	for {
		i := t.bucketIndexFor(n.ID)
		b := t.buckets[i]
		if b.upsert(n) {
			return true
		}
		// Bucket is full and the node is new. Split only if our own ID
		// falls in this bucket's range; otherwise the bucket is simply
		// full and the new node is dropped.
		if !b.rng.contains(t.localID) {
			return false
		}
		t.splitBucket(i)
		// Retry insertion against the (now narrower) bucket.
	}
}

// RemoveStale evicts nodes last seen more than maxAge before now, per
// spec.md §4.2/§8 invariant 6.
func (t *RoutingTable) RemoveStale(now time.Time, maxAge time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, b := range t.buckets {
		b.removeStale(now, maxAge)
	}
}

// ClosestNodes returns up to n nodes with the smallest XOR distance to
// target, ordered nondecreasing by distance (spec.md §8 invariant 3).
func (t *RoutingTable) ClosestNodes(target util.NodeID, n int) []remotenode.RemoteNode {
	t.mu.Lock()
	defer t.mu.Unlock()

	var all []remotenode.RemoteNode
	for _, b := range t.buckets {
		all = append(all, b.sortByDistance(target)...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		di := target.Distance(all[i].ID)
		dj := target.Distance(all[j].ID)
		if di == dj {
			return all[i].LastSeen.Before(all[j].LastSeen)
		}
		return di.Less(dj)
	})
	if len(all) > n {
		all = all[:n]
	}
	return all
}

// ActiveCount returns the total number of nodes across all buckets.
func (t *RoutingTable) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := 0
	for _, b := range t.buckets {
		total += len(b.nodes)
	}
	return total
}

// BucketCount returns the current number of buckets, mostly useful for
// tests asserting the split behavior.
func (t *RoutingTable) BucketCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buckets)
}

// StaleBucket describes a bucket eligible for maintenance refresh: a
// target ID within its range, and the freshest known node to send the
// refresh query to.
type StaleBucket struct {
	Target util.NodeID
	Via    remotenode.RemoteNode
}

// StaleBuckets returns, for every bucket that has not changed in at least
// idle, a refresh target within that bucket's range and the bucket's
// freshest node to route the query through. Buckets with no nodes at all
// are skipped: there is nothing to route a query through yet, and they
// will be populated by ordinary traffic or re-bootstrap instead.
func (t *RoutingTable) StaleBuckets(now time.Time, idle time.Duration) []StaleBucket {
	t.mu.Lock()
	defer t.mu.Unlock()

	var stale []StaleBucket
	for _, b := range t.buckets {
		if now.Sub(b.lastChanged) < idle {
			continue
		}
		via, ok := b.freshest()
		if !ok {
			continue
		}
		stale = append(stale, StaleBucket{Target: b.randomIDInRange(), Via: via})
	}
	return stale
}
