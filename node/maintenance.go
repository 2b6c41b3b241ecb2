package node

import (
	"time"

	"dhtnode/util"
)

// maintenanceLoop is the second of the three concurrent activities from
// spec.md §5: it periodically evicts stale routing table entries, sweeps
// expired pending queries and blocked addresses, refreshes idle buckets,
// and re-bootstraps if the routing table has gone nearly empty. It stops
// when n.closed is signaled.
func (n *Node) maintenanceLoop() {
	defer n.wg.Done()

	ticker := time.NewTicker(n.cfg.MaintenanceTick)
	defer ticker.Stop()

	for {
		select {
		case <-n.closed:
			return
		case <-ticker.C:
			n.runMaintenance()
		}
	}
}

// runMaintenance performs one maintenance pass, per spec.md §4.4 step 2.
func (n *Node) runMaintenance() {
	now := time.Now()

	n.rt.RemoveStale(now, n.cfg.StaleNodeAge)
	n.pending.sweepExpired(now, n.cfg.PendingQueryTimeout)
	n.blocked.Sweep()

	for _, stale := range n.rt.StaleBuckets(now, n.cfg.BucketRefreshIdle) {
		n.sendFindNode(stale.Target, stale.Via.Addr())
	}

	if n.rt.ActiveCount() < util.K {
		n.log.Debugf("dht: routing table has only %d active nodes, re-bootstrapping", n.rt.ActiveCount())
		n.bootstrap()
	}
}
