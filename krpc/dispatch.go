package krpc

import (
	"crypto/rand"
	"fmt"

	"dhtnode/bencode"
	"dhtnode/routingtable"
	"dhtnode/util"
)

// BEP 5 standard protocol error codes, used for the error values
// BuildResponse returns for queries it cannot answer.
const (
	ErrorCodeGenericError  = 201
	ErrorCodeServerError   = 202
	ErrorCodeProtocolError = 203
	ErrorCodeMethodUnknown = 204
)

// BuildResponse constructs the reply bencode.Value for an incoming query,
// per the table in spec.md §4.3. For a Message of KindQuery it returns an
// error only if generating a get_peers token fails; an unrecognized q
// value yields a BEP 5 "Method Unknown" error value rather than an error
// return. The node's receive path does not send that value: it drops
// queries with an unrecognized q without replying.
func BuildResponse(localID util.NodeID, rt *routingtable.RoutingTable, msg Message) (bencode.Value, error) {
	if msg.Kind != KindQuery {
		return bencode.Value{}, fmt.Errorf("krpc: BuildResponse called on a non-query message")
	}

	switch msg.Query {
	case QueryPing:
		return NewResponse(msg.Txn, map[string]bencode.Value{
			"id": bencode.Bytes(localID.Bytes()),
		}), nil

	case QueryFindNode:
		target, ok := msg.Args.GetString("target")
		if !ok {
			return NewError(msg.Txn, ErrorCodeProtocolError, "find_node missing target"), nil
		}
		targetID, err := util.NodeIDFromBytes(target)
		if err != nil {
			return NewError(msg.Txn, ErrorCodeProtocolError, "find_node target must be 20 bytes"), nil
		}
		closest := rt.ClosestNodes(targetID, util.K)
		return NewResponse(msg.Txn, map[string]bencode.Value{
			"id":    bencode.Bytes(localID.Bytes()),
			"nodes": bencode.Bytes(EncodeCompactNodes(closest)),
		}), nil

	case QueryGetPeers:
		infoHash, ok := msg.Args.GetString("info_hash")
		if !ok {
			return NewError(msg.Txn, ErrorCodeProtocolError, "get_peers missing info_hash"), nil
		}
		target, err := util.NodeIDFromBytes(infoHash)
		if err != nil {
			return NewError(msg.Txn, ErrorCodeProtocolError, "get_peers info_hash must be 20 bytes"), nil
		}
		// This node does not track announced peers (spec.md §1/§9 open
		// question), so it always answers with the closest nodes it
		// knows, never a "values" list.
		closest := rt.ClosestNodes(target, util.K)
		token, err := randomToken()
		if err != nil {
			return bencode.Value{}, err
		}
		return NewResponse(msg.Txn, map[string]bencode.Value{
			"id":    bencode.Bytes(localID.Bytes()),
			"token": bencode.Bytes(token),
			"nodes": bencode.Bytes(EncodeCompactNodes(closest)),
		}), nil

	case QueryAnnouncePeer:
		// Acknowledged, not stored, matching
		// original_source/dht_node/dht_node.py's
		// _on_announce_peer_request and spec.md §9's open-question
		// decision (see DESIGN.md).
		return NewResponse(msg.Txn, map[string]bencode.Value{
			"id": bencode.Bytes(localID.Bytes()),
		}), nil

	default:
		return NewError(msg.Txn, ErrorCodeMethodUnknown, "Method Unknown"), nil
	}
}

// randomToken returns 8 random bytes suitable for a get_peers token.
func randomToken() ([]byte, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("krpc: generating token: %w", err)
	}
	return b, nil
}
