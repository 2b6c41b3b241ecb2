// Package remotenode defines the RemoteNode tuple tracked by the routing
// table: a peer's identity, last known address and last contact time.
//
// This is a slimmed-down descendant of the teacher's
// remoteNode/remoteNode.go: the rich per-node query bookkeeping
// (PendingQueries, PastQueries, LastQueryID) that file carried moves up a
// level, into the node runtime's own pending-query store, since spec.md
// §3 defines PendingQuery as a single node-wide map keyed by transaction
// ID rather than something each RemoteNode tracks for itself.
package remotenode

import (
	"net"
	"time"

	"dhtnode/util"
)

// RemoteNode is a known participant in the DHT: its identity, its last
// observed network address, and when it was last heard from.
//
// Two RemoteNodes are equal iff their ID is equal; IP and Port are
// observational metadata, not identity, so a node that changes address is
// still "the same" node as far as the routing table is concerned.
type RemoteNode struct {
	ID       util.NodeID
	IP       net.IP
	Port     uint16
	LastSeen time.Time
}

// New builds a RemoteNode observed right now.
func New(id util.NodeID, ip net.IP, port uint16) RemoteNode {
	return RemoteNode{
		ID:       id,
		IP:       ip.To4(),
		Port:     port,
		LastSeen: time.Now(),
	}
}

// Addr renders the node's address as a *net.UDPAddr, suitable for
// net.PacketConn.WriteTo or Dial-style calls.
func (n RemoteNode) Addr() *net.UDPAddr {
	return &net.UDPAddr{IP: n.IP, Port: int(n.Port)}
}

// Touch returns a copy of n with LastSeen advanced to now, used when a
// node is refreshed rather than newly inserted.
func (n RemoteNode) Touch() RemoteNode {
	n.LastSeen = time.Now()
	return n
}

// Equal reports whether two RemoteNodes share the same identity, per the
// "equality is by ID only" rule above.
func (n RemoteNode) Equal(other RemoteNode) bool {
	return n.ID == other.ID
}
