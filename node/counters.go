package node

import (
	"expvar"
	"sync"
)

// Process-wide traffic instruments, published alongside the per-node
// stats() snapshot, mirroring the teacher's own use of expvar.NewInt for
// totalNodes/totalKilledNodes in routingTable/routing_table.go.
var (
	expvarIncoming = expvar.NewInt("dhtnode.messagesIncoming")
	expvarOutgoing = expvar.NewInt("dhtnode.messagesOutgoing")
	expvarActive   = expvar.NewMap("dhtnode.activeNodes")
)

// counters tracks the two monotonic traffic counts from spec.md §3,
// readable via a snapshot-and-reset operation.
type counters struct {
	mu       sync.Mutex
	incoming int
	outgoing int
}

func newCounters() *counters {
	return &counters{}
}

func (c *counters) incIncoming() {
	c.mu.Lock()
	c.incoming++
	c.mu.Unlock()
	expvarIncoming.Add(1)
}

func (c *counters) incOutgoing() {
	c.mu.Lock()
	c.outgoing++
	c.mu.Unlock()
	expvarOutgoing.Add(1)
}

// setActive publishes the routing table's current active-node count for
// this node under the process-wide expvar map, keyed by node id, per
// spec.md §10.4.
func (c *counters) setActive(id string, n int) {
	v := new(expvar.Int)
	v.Set(int64(n))
	expvarActive.Set(id, v)
}

// snapshotAndReset returns the current counts and zeroes them, per
// spec.md §6's stats() contract.
func (c *counters) snapshotAndReset() (incoming, outgoing int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	incoming, outgoing = c.incoming, c.outgoing
	c.incoming, c.outgoing = 0, 0
	return incoming, outgoing
}
