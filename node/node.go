// Package node implements the Node Runtime described in spec.md §4.4: a
// UDP-socket-owning state machine that drives a receive activity, a
// maintenance activity and a user-facing send path over shared routing
// table, pending-query, counter and handler-chain state.
//
// Grounded on original_source/dht_node/dht_node.py's DHTNode class for
// the overall shape (start/stop/_process_messages/_maintain_routing_table
// map onto start/stop/receiveLoop/maintenanceLoop here), and on the
// teacher's arena package for the receive-path buffer pool.
package node

import (
	"crypto/rand"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"

	"dhtnode/arena"
	"dhtnode/bencode"
	"dhtnode/blocklist"
	"dhtnode/krpc"
	"dhtnode/logger"
	"dhtnode/remotenode"
	"dhtnode/routingtable"
	"dhtnode/util"
)

// runState is the node's lifecycle state, per spec.md §4.4: Created ->
// Running -> Stopped.
type runState int

const (
	stateCreated runState = iota
	stateRunning
	stateStopped
)

const (
	// scraperWindow/scraperLimit bound the activity tracker: more than
	// scraperLimit messages from one address within scraperWindow gets
	// that address blocked.
	scraperWindow = 10 * time.Second
	scraperLimit  = 50

	// bindRetries bounds how many random ports are tried before start()
	// gives up when the caller did not pin a specific port.
	bindRetries = 10

	// receiveArenaSize is the number of pre-allocated datagram buffers
	// kept ready for the receive loop.
	receiveArenaSize = 64
)

// Node is a single participant in the BitTorrent Mainline DHT, per
// spec.md §6.
type Node struct {
	cfg Config
	log logger.Logger

	id util.NodeID

	stateMu sync.Mutex
	state   runState

	conn     *net.UDPConn
	port     uint16
	closed   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rt       *routingtable.RoutingTable
	pending  *pendingQueries
	counters *counters
	handlers *handlerChain
	blocked  *blocklist.List
	activity *activityWindow
	bufArena arena.Arena

	// sendMu serializes writes to conn so concurrent send_message calls
	// from user code don't interleave datagrams; it is never held while
	// also holding any of the locks owned by rt/pending/counters/
	// handlers, per spec.md §5.
	sendMu sync.Mutex
}

// New constructs a Node. If cfg.NodeIDHex is empty a random ID is
// generated. An invalid NodeIDHex or out-of-range NodePort fails loudly
// here, before any socket or goroutine exists, per spec.md §7's
// input-validation error class.
func New(cfg Config) (*Node, error) {
	cfg = cfg.withDefaults()

	var id util.NodeID
	var err error
	if cfg.NodeIDHex != "" {
		id, err = util.ParseNodeID(cfg.NodeIDHex)
		if err != nil {
			return nil, errors.Wrap(err, "node: invalid node id")
		}
	} else {
		id, err = util.RandomNodeID()
		if err != nil {
			return nil, errors.Wrap(err, "node: generating node id")
		}
	}

	n := &Node{
		cfg:      cfg,
		log:      cfg.Logger,
		id:       id,
		state:    stateCreated,
		port:     cfg.NodePort,
		closed:   make(chan struct{}),
		rt:       routingtable.New(id),
		pending:  newPendingQueries(),
		counters: newCounters(),
		handlers: newHandlerChain(),
		blocked:  blocklist.New(cfg.BlockedAddressCacheSize, cfg.BlockedAddressTTL),
		activity: newActivityWindow(scraperWindow, scraperLimit),
		bufArena: arena.NewDatagramArena(receiveArenaSize),
	}
	return n, nil
}

// ID returns the node's identity as 40 lowercase hex characters.
func (n *Node) ID() string {
	return n.id.String()
}

// Stats is the spec.md §6 stats() result.
type Stats struct {
	ActiveNodes int
	Incoming    int
	Outgoing    int
}

// Stats returns the routing table's active node count and the traffic
// counters, resetting the counters to zero as a side effect (spec.md §6,
// §8 invariant 7).
func (n *Node) Stats() Stats {
	in, out := n.counters.snapshotAndReset()
	active := n.rt.ActiveCount()
	n.counters.setActive(n.ID(), active)
	return Stats{
		ActiveNodes: active,
		Incoming:    in,
		Outgoing:    out,
	}
}

// AddMessageHandler registers fn to be invoked for every successfully
// parsed inbound message, in registration order, per spec.md §6.
func (n *Node) AddMessageHandler(fn MessageHandler) {
	n.handlers.add(fn)
}

// Start binds the UDP socket, seeds the routing table from the bootstrap
// endpoints, and launches the receive and maintenance activities. Start
// is idempotent within the Running state: calling it again once the node
// is already running is a no-op. Calling it after Stop fails, since a
// stopped node must not be restarted.
func (n *Node) Start() error {
	n.stateMu.Lock()
	switch n.state {
	case stateRunning:
		n.stateMu.Unlock()
		return nil
	case stateStopped:
		n.stateMu.Unlock()
		return errors.New("node: start called on a stopped node; a stopped node cannot be restarted")
	}
	n.stateMu.Unlock()

	conn, port, err := bindSocket(n.port)
	if err != nil {
		return errors.Wrap(err, "node: bind failed")
	}

	n.stateMu.Lock()
	n.state = stateRunning
	n.stateMu.Unlock()

	n.conn = conn
	n.port = port
	n.log.Infof("dht: node %s listening on udp :%d", n.ID(), n.port)

	n.wg.Add(2)
	go n.receiveLoop()
	go n.maintenanceLoop()

	n.bootstrap()
	return nil
}

// bindSocket binds a UDP4 socket on port. If port is zero, a random port
// in [1025, 65535] is tried up to bindRetries times, per spec.md §4.4
// step 1.
func bindSocket(port uint16) (*net.UDPConn, uint16, error) {
	if port != 0 {
		conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: int(port)})
		if err != nil {
			return nil, 0, err
		}
		return conn, port, nil
	}
	var lastErr error
	for i := 0; i < bindRetries; i++ {
		candidate := randomPort()
		conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: int(candidate)})
		if err == nil {
			return conn, candidate, nil
		}
		lastErr = err
	}
	return nil, 0, errors.Wrapf(lastErr, "node: exhausted %d random port attempts", bindRetries)
}

func randomPort() uint16 {
	id, err := util.RandomNodeID()
	if err != nil {
		return 1025
	}
	span := uint32(65535 - 1025 + 1)
	v := uint32(id[0])<<24 | uint32(id[1])<<16 | uint32(id[2])<<8 | uint32(id[3])
	return uint16(1025 + v%span)
}

// Stop signals every activity to shut down, waits up to five seconds for
// them to drain, and closes the
// socket. Stop is idempotent within the Stopped state: calling it again
// once the node is already stopped is a no-op. Calling it before Start
// fails, since there is nothing running to stop.
func (n *Node) Stop() error {
	n.stateMu.Lock()
	switch n.state {
	case stateStopped:
		n.stateMu.Unlock()
		return nil
	case stateCreated:
		n.stateMu.Unlock()
		return errors.New("node: stop called before start")
	}
	n.state = stateStopped
	n.stateMu.Unlock()

	n.stopOnce.Do(func() {
		close(n.closed)
	})

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		n.log.Errorf("dht: node %s activities did not drain within grace period", n.ID())
	}

	if n.conn != nil {
		if err := n.conn.Close(); err != nil {
			n.log.Errorf("dht: closing socket: %v", err)
		}
	}
	n.log.Infof("dht: node %s stopped", n.ID())
	return nil
}

// SendMessage bencode-encodes message and transmits it to node_ip:
// node_port, per spec.md §4.3/§6. If message carries y=q, a PendingQuery
// entry is recorded under its t before the datagram goes out; the
// ordering matters so a reply that arrives unusually fast is never
// missed by a race between send and record.
//
// send is fire-and-forget: socket errors and oversized datagrams are
// logged, never returned, matching spec.md §4.3/§7.
func (n *Node) SendMessage(message bencode.Value, nodeIP string, nodePort uint16) {
	addr := &net.UDPAddr{IP: net.ParseIP(nodeIP), Port: int(nodePort)}
	n.sendTo(message, addr)
}

func (n *Node) sendTo(message bencode.Value, addr *net.UDPAddr) {
	if t, ok := message.GetString("t"); ok {
		if y, ok := message.GetString("y"); ok && string(y) == "q" {
			if q, ok := message.GetString("q"); ok {
				n.pending.add(t, string(q), addr)
			}
		}
	}

	raw, err := bencode.Encode(message)
	if err != nil {
		n.log.Errorf("dht: encoding outgoing message to %s: %v", addr, err)
		return
	}
	if len(raw) > util.MaxDatagramSize {
		n.log.Errorf("dht: outgoing message to %s is %d bytes, exceeds %d byte limit, dropping", addr, len(raw), util.MaxDatagramSize)
		return
	}

	n.sendMu.Lock()
	_, err = n.conn.WriteToUDP(raw, addr)
	n.sendMu.Unlock()
	if err != nil {
		n.log.Errorf("dht: sending to %s: %v", addr, err)
		return
	}
	n.counters.incOutgoing()
}

// bootstrap sends a find_node(target=self.id) to every configured
// bootstrap endpoint, per spec.md §4.4 step 2.
func (n *Node) bootstrap() {
	for _, hostport := range n.cfg.BootstrapAddrs {
		addr, err := net.ResolveUDPAddr("udp4", hostport)
		if err != nil {
			n.log.Errorf("dht: resolving bootstrap endpoint %s: %v", hostport, err)
			continue
		}
		n.sendFindNode(n.id, addr)
	}
}

func (n *Node) sendFindNode(target util.NodeID, addr *net.UDPAddr) {
	txn, err := randomTxnID()
	if err != nil {
		n.log.Errorf("dht: generating transaction id: %v", err)
		return
	}
	msg := krpc.NewQuery(txn, krpc.QueryFindNode, map[string]bencode.Value{
		"id":     bencode.Bytes(n.id.Bytes()),
		"target": bencode.Bytes(target.Bytes()),
	})
	n.sendTo(msg, addr)
}

func (n *Node) sendPing(addr *net.UDPAddr) {
	txn, err := randomTxnID()
	if err != nil {
		n.log.Errorf("dht: generating transaction id: %v", err)
		return
	}
	msg := krpc.NewQuery(txn, krpc.QueryPing, map[string]bencode.Value{
		"id": bencode.Bytes(n.id.Bytes()),
	})
	n.sendTo(msg, addr)
}

func randomTxnID() ([]byte, error) {
	txn := make([]byte, 2)
	if _, err := rand.Read(txn); err != nil {
		return nil, err
	}
	return txn, nil
}

func remoteNodeFrom(id util.NodeID, addr *net.UDPAddr) remotenode.RemoteNode {
	port := uint16(0)
	if addr.Port >= 0 && addr.Port <= 0xFFFF {
		port = uint16(addr.Port)
	}
	return remotenode.New(id, addr.IP, port)
}
