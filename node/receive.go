package node

import (
	"errors"
	"net"
	"time"

	"dhtnode/krpc"
	"dhtnode/remotenode"
)

// receiveLoop is one of the three concurrent activities from spec.md §5:
// it owns the socket's read side, decodes inbound datagrams, updates the
// routing table, answers queries, and correlates responses against
// outstanding pending queries. It stops when n.closed is signaled.
func (n *Node) receiveLoop() {
	defer n.wg.Done()

	for {
		select {
		case <-n.closed:
			return
		default:
		}

		buf := n.bufArena.Pop()
		_ = n.conn.SetReadDeadline(time.Now().Add(n.cfg.ReceiveTimeout))
		count, addr, err := n.conn.ReadFromUDP(buf)
		if err != nil {
			n.bufArena.Push(buf)
			if isTimeout(err) {
				continue
			}
			select {
			case <-n.closed:
				return
			default:
			}
			n.log.Errorf("dht: read error: %v", err)
			continue
		}

		datagram := append([]byte(nil), buf[:count]...)
		n.bufArena.Push(buf)

		n.handleDatagram(datagram, addr)
	}
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// handleDatagram processes one inbound UDP datagram per spec.md §4.3.
func (n *Node) handleDatagram(datagram []byte, addr *net.UDPAddr) {
	ip := addr.IP.String()

	if n.blocked.Blocked(ip) {
		return
	}

	n.counters.incIncoming()

	if n.activity.recordAndCheck(ip, time.Now()) {
		n.log.Errorf("dht: blocking %s for excessive query rate", ip)
		n.blocked.Block(ip)
		n.activity.forget(ip)
		return
	}

	msg, err := krpc.Parse(datagram)
	if err != nil {
		n.log.Debugf("dht: dropping malformed datagram from %s: %v", addr, err)
		if errors.Is(err, krpc.ErrBadSenderID) {
			n.log.Errorf("dht: blocking %s for a malformed sender id", ip)
			n.blocked.Block(ip)
		}
		return
	}

	if msg.SenderID == n.id {
		n.log.Errorf("dht: blocking %s for claiming our own node id", ip)
		n.blocked.Block(ip)
		return
	}

	sender := remoteNodeFrom(msg.SenderID, addr)

	switch msg.Kind {
	case krpc.KindQuery:
		n.rt.AddNode(sender)
		n.handleQuery(msg, addr)

	case krpc.KindResponse:
		n.handleResponse(msg, sender)

	case krpc.KindError:
		n.handleError(msg)
	}

	n.dispatchToHandlers(msg, sender)
}

// handleQuery answers an inbound query, per spec.md §4.3's query row; the
// caller has already added the sender to the routing table. A query with
// an unrecognized q is dropped without a reply.
func (n *Node) handleQuery(msg krpc.Message, addr *net.UDPAddr) {
	switch msg.Query {
	case krpc.QueryPing, krpc.QueryFindNode, krpc.QueryGetPeers, krpc.QueryAnnouncePeer:
	default:
		n.log.Debugf("dht: dropping unknown %q query from %s", msg.Query, addr)
		return
	}
	reply, err := krpc.BuildResponse(n.id, n.rt, msg)
	if err != nil {
		n.log.Errorf("dht: building response to %s query from %s: %v", msg.Query, addr, err)
		return
	}
	n.sendTo(reply, addr)
}

// handleResponse correlates a response against the pending query table
// and, for a matched find_node or get_peers reply, folds any returned nodes into the
// routing table, per spec.md §4.3's response row.
func (n *Node) handleResponse(msg krpc.Message, sender remotenode.RemoteNode) {
	n.rt.AddNode(sender)

	pq, ok := n.pending.take(msg.Txn)
	if !ok {
		n.log.Debugf("dht: response with unmatched transaction id from %s", sender.Addr())
		return
	}

	if pq.query != krpc.QueryFindNode && pq.query != krpc.QueryGetPeers {
		return
	}
	nodesField, ok := msg.Return.GetString("nodes")
	if !ok {
		return
	}
	nodes, err := krpc.DecodeCompactNodes(nodesField)
	if err != nil {
		n.log.Debugf("dht: malformed nodes field from %s: %v", sender.Addr(), err)
		return
	}
	for _, rn := range nodes {
		n.rt.AddNode(rn)
	}
}

// handleError logs a query-side error reply; spec.md §4.3 does not
// require any routing-table action on an error response.
func (n *Node) handleError(msg krpc.Message) {
	if _, ok := n.pending.take(msg.Txn); ok {
		n.log.Debugf("dht: query failed: %d %s", msg.ErrorCode, msg.ErrorMsg)
	}
}

// dispatchToHandlers invokes every registered MessageHandler for msg, in
// registration order, recovering from a handler panic so one misbehaving
// handler can't take down the receive loop or block the rest of the
// chain, per spec.md §4.3/§8 Scenario F.
func (n *Node) dispatchToHandlers(msg krpc.Message, sender remotenode.RemoteNode) {
	for _, h := range n.handlers.snapshot() {
		n.invokeHandler(h, msg, sender)
	}
}

func (n *Node) invokeHandler(h MessageHandler, msg krpc.Message, sender remotenode.RemoteNode) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Errorf("dht: message handler panicked: %v", r)
		}
	}()
	h(msg, sender)
}
