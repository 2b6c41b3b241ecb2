package krpc

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dhtnode/bencode"
	"dhtnode/remotenode"
	"dhtnode/util"
)

func TestParsePingQuery(t *testing.T) {
	id := make([]byte, 20)
	for i := range id {
		id[i] = 0x01
	}
	wire := NewQuery([]byte("aa"), QueryPing, map[string]bencode.Value{
		"id": bencode.Bytes(id),
	})
	raw, err := bencode.Encode(wire)
	require.NoError(t, err)

	msg, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, KindQuery, msg.Kind)
	assert.Equal(t, QueryPing, msg.Query)
	assert.Equal(t, "aa", string(msg.Txn))
}

// Scenario B: find_node response compact node encoding.
func TestEncodeCompactNodesSingleNode(t *testing.T) {
	id := make([]byte, 20)
	for i := range id {
		id[i] = 0x02
	}
	nid, err := util.NodeIDFromBytes(id)
	require.NoError(t, err)
	n := remotenode.New(nid, net.IPv4(1, 2, 3, 4), 6881)

	got := EncodeCompactNodes([]remotenode.RemoteNode{n})
	want := append(append([]byte{}, id...), []byte{1, 2, 3, 4, 0x1A, 0xE1}...)
	assert.Equal(t, want, got)
}

func TestDecodeCompactNodesRoundTrip(t *testing.T) {
	id1, _ := util.RandomNodeID()
	id2, _ := util.RandomNodeID()
	nodes := []remotenode.RemoteNode{
		remotenode.New(id1, net.IPv4(10, 0, 0, 1), 1000),
		remotenode.New(id2, net.IPv4(10, 0, 0, 2), 2000),
	}
	encoded := EncodeCompactNodes(nodes)
	decoded, err := DecodeCompactNodes(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, nodes[0].ID, decoded[0].ID)
	assert.Equal(t, nodes[0].Port, decoded[0].Port)
	assert.Equal(t, nodes[1].ID, decoded[1].ID)
}

func TestDecodeCompactNodesRejectsBadLength(t *testing.T) {
	_, err := DecodeCompactNodes(make([]byte, 25))
	assert.Error(t, err)
}

func TestParseRejectsMissingFields(t *testing.T) {
	cases := []bencode.Value{
		bencode.Dict(map[string]bencode.Value{"y": bencode.String("q")}),
		bencode.Dict(map[string]bencode.Value{"t": bencode.String("aa")}),
		bencode.Dict(map[string]bencode.Value{
			"t": bencode.String("aa"), "y": bencode.String("q"),
		}),
	}
	for _, c := range cases {
		raw, err := bencode.Encode(c)
		require.NoError(t, err)
		_, err = Parse(raw)
		assert.Error(t, err)
	}
}

func TestParseRejectsBadSenderIDLength(t *testing.T) {
	wire := bencode.Dict(map[string]bencode.Value{
		"t": bencode.String("aa"),
		"y": bencode.String("q"),
		"q": bencode.String(QueryPing),
		"a": bencode.Dict(map[string]bencode.Value{
			"id": bencode.String("tooshort"),
		}),
	})
	raw, err := bencode.Encode(wire)
	require.NoError(t, err)
	_, err = Parse(raw)
	assert.Error(t, err)
}

func TestParseErrorMessage(t *testing.T) {
	wire := NewError([]byte("bb"), 201, "Generic Error")
	raw, err := bencode.Encode(wire)
	require.NoError(t, err)
	msg, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, KindError, msg.Kind)
	assert.Equal(t, int64(201), msg.ErrorCode)
	assert.Equal(t, "Generic Error", msg.ErrorMsg)
}
