// Package krpc implements the BEP 5 KRPC message shapes on top of the
// bencode codec: query/response/error framing, the compact node-info
// encoding, and the fixed set of queries this node answers.
//
// Grounded on the teacher's remoteNode/krpc.go (ParseNodesString,
// GetPeersResponse/ResponseType field shapes, V4nodeContactLen/NodeIdLen
// constants) and original_source/dht_node/utils.py
// (create_compact_node_info/parse_compact_node_info/get_message_type),
// which fill in the exact framing this spec's table only sketches.
package krpc

import (
	"errors"
	"fmt"

	"dhtnode/bencode"
	"dhtnode/remotenode"
	"dhtnode/util"
)

// ErrBadSenderID wraps a parse failure caused specifically by a
// malformed sender id (wrong length), as opposed to any other framing
// problem. Callers use this to distinguish "drop and block" senders
// from ordinary malformed traffic, per spec.md §4.3.
var ErrBadSenderID = errors.New("krpc: sender id must be exactly 20 bytes")

// MessageKind identifies the top-level shape of a KRPC message, keyed off
// the "y" field.
type MessageKind int

const (
	KindQuery MessageKind = iota
	KindResponse
	KindError
)

// Query names this node understands.
const (
	QueryPing         = "ping"
	QueryFindNode     = "find_node"
	QueryGetPeers     = "get_peers"
	QueryAnnouncePeer = "announce_peer"
)

// Message is a parsed KRPC datagram: enough structure to dispatch on
// without every caller re-walking the raw bencode.Value.
type Message struct {
	Kind MessageKind
	Txn  []byte // "t"

	// Query fields, populated when Kind == KindQuery.
	Query string // "q"
	Args  bencode.Value // "a", a dict

	// Response fields, populated when Kind == KindResponse.
	Return bencode.Value // "r", a dict

	// Error fields, populated when Kind == KindError.
	ErrorCode int64
	ErrorMsg  string

	// SenderID is the "id" field read out of "a" or "r", present on
	// every well-formed query and response.
	SenderID util.NodeID

	Raw bencode.Value
}

// Parse decodes a raw datagram into a Message. It returns an error for
// anything spec.md §4.3 calls malformed: missing t/y, wrong field types,
// or a sender id that isn't exactly 20 bytes.
func Parse(datagram []byte) (Message, error) {
	v, err := bencode.Decode(datagram)
	if err != nil {
		return Message{}, fmt.Errorf("krpc: decode: %w", err)
	}
	if !v.IsDict() {
		return Message{}, fmt.Errorf("krpc: top-level value is not a dict")
	}

	txn, ok := v.GetString("t")
	if !ok {
		return Message{}, fmt.Errorf("krpc: missing transaction id (t)")
	}
	y, ok := v.GetString("y")
	if !ok {
		return Message{}, fmt.Errorf("krpc: missing message type (y)")
	}

	msg := Message{Txn: txn, Raw: v}

	switch string(y) {
	case "q":
		q, ok := v.GetString("q")
		if !ok {
			return Message{}, fmt.Errorf("krpc: query missing q")
		}
		args, ok := v.GetDict("a")
		if !ok {
			return Message{}, fmt.Errorf("krpc: query missing a")
		}
		id, ok := args.GetString("id")
		if !ok {
			return Message{}, fmt.Errorf("krpc: query missing a.id")
		}
		sender, err := util.NodeIDFromBytes(id)
		if err != nil {
			return Message{}, fmt.Errorf("%w: %v", ErrBadSenderID, err)
		}
		msg.Kind = KindQuery
		msg.Query = string(q)
		msg.Args = args
		msg.SenderID = sender
		return msg, nil

	case "r":
		ret, ok := v.GetDict("r")
		if !ok {
			return Message{}, fmt.Errorf("krpc: response missing r")
		}
		id, ok := ret.GetString("id")
		if !ok {
			return Message{}, fmt.Errorf("krpc: response missing r.id")
		}
		sender, err := util.NodeIDFromBytes(id)
		if err != nil {
			return Message{}, fmt.Errorf("%w: %v", ErrBadSenderID, err)
		}
		msg.Kind = KindResponse
		msg.Return = ret
		msg.SenderID = sender
		return msg, nil

	case "e":
		e, ok := v.Get("e")
		if !ok || !e.IsList() || len(e.List) != 2 {
			return Message{}, fmt.Errorf("krpc: malformed error field")
		}
		if !e.List[0].IsInt() || !e.List[1].IsString() {
			return Message{}, fmt.Errorf("krpc: malformed error field types")
		}
		msg.Kind = KindError
		msg.ErrorCode = e.List[0].Int
		msg.ErrorMsg = string(e.List[1].Str)
		return msg, nil

	default:
		return Message{}, fmt.Errorf("krpc: unknown message type %q", y)
	}
}

// NewQuery builds the bencode.Value for an outgoing query.
func NewQuery(txn []byte, query string, args map[string]bencode.Value) bencode.Value {
	return bencode.Dict(map[string]bencode.Value{
		"t": bencode.Bytes(txn),
		"y": bencode.String("q"),
		"q": bencode.String(query),
		"a": bencode.Dict(args),
	})
}

// NewResponse builds the bencode.Value for an outgoing response.
func NewResponse(txn []byte, ret map[string]bencode.Value) bencode.Value {
	return bencode.Dict(map[string]bencode.Value{
		"t": bencode.Bytes(txn),
		"y": bencode.String("r"),
		"r": bencode.Dict(ret),
	})
}

// NewError builds the bencode.Value for an outgoing protocol error, per
// BEP 5's [code, message] shape.
func NewError(txn []byte, code int64, message string) bencode.Value {
	return bencode.Dict(map[string]bencode.Value{
		"t": bencode.Bytes(txn),
		"y": bencode.String("e"),
		"e": bencode.List(bencode.Int64(code), bencode.String(message)),
	})
}

// EncodeCompactNodes concatenates the compact node-info encoding (20-byte
// id || 4-byte IPv4 || 2-byte port, big-endian) for each node in order.
func EncodeCompactNodes(nodes []remotenode.RemoteNode) []byte {
	out := make([]byte, 0, len(nodes)*util.CompactNodeInfoLength)
	for _, n := range nodes {
		out = append(out, n.ID.Bytes()...)
		ip4 := n.IP.To4()
		if ip4 == nil {
			ip4 = make([]byte, 4)
		}
		out = append(out, ip4...)
		out = append(out, byte(n.Port>>8), byte(n.Port))
	}
	return out
}

// DecodeCompactNodes parses a "nodes" field back into RemoteNodes, per the
// teacher's ParseNodesString (remoteNode/krpc.go) and
// parse_compact_node_info (original_source/dht_node/utils.py). A length
// that is not a multiple of CompactNodeInfoLength is rejected rather than
// silently truncated.
func DecodeCompactNodes(data []byte) ([]remotenode.RemoteNode, error) {
	if len(data)%util.CompactNodeInfoLength != 0 {
		return nil, fmt.Errorf("krpc: compact nodes length %d is not a multiple of %d", len(data), util.CompactNodeInfoLength)
	}
	n := len(data) / util.CompactNodeInfoLength
	out := make([]remotenode.RemoteNode, 0, n)
	for i := 0; i < n; i++ {
		chunk := data[i*util.CompactNodeInfoLength : (i+1)*util.CompactNodeInfoLength]
		id, err := util.NodeIDFromBytes(chunk[:util.IDLength])
		if err != nil {
			return nil, fmt.Errorf("krpc: %w", err)
		}
		ip := chunk[util.IDLength : util.IDLength+4]
		port := uint16(chunk[util.IDLength+4])<<8 | uint16(chunk[util.IDLength+5])
		out = append(out, remotenode.New(id, ip, port))
	}
	return out, nil
}
