package krpc

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dhtnode/bencode"
	"dhtnode/remotenode"
	"dhtnode/routingtable"
	"dhtnode/util"
)

func TestBuildResponsePing(t *testing.T) {
	local, _ := util.RandomNodeID()
	rt := routingtable.New(local)

	sender, _ := util.RandomNodeID()
	query := NewQuery([]byte("aa"), QueryPing, map[string]bencode.Value{
		"id": bencode.Bytes(sender.Bytes()),
	})
	raw, err := bencode.Encode(query)
	require.NoError(t, err)
	msg, err := Parse(raw)
	require.NoError(t, err)

	resp, err := BuildResponse(local, rt, msg)
	require.NoError(t, err)
	id, ok := resp.GetDict("r")
	require.True(t, ok)
	gotID, ok := id.GetString("id")
	require.True(t, ok)
	assert.Equal(t, local.Bytes(), gotID)
}

// Scenario B: find_node response format with a single known node.
func TestBuildResponseFindNode(t *testing.T) {
	local, _ := util.RandomNodeID()
	rt := routingtable.New(local)

	idBytes := make([]byte, 20)
	for i := range idBytes {
		idBytes[i] = 0x02
	}
	nid, _ := util.NodeIDFromBytes(idBytes)
	require.True(t, rt.AddNode(remotenode.New(nid, net.IPv4(1, 2, 3, 4), 6881)))

	sender, _ := util.RandomNodeID()
	var target util.NodeID // 20 zero bytes
	query := NewQuery([]byte("aa"), QueryFindNode, map[string]bencode.Value{
		"id":     bencode.Bytes(sender.Bytes()),
		"target": bencode.Bytes(target.Bytes()),
	})
	raw, err := bencode.Encode(query)
	require.NoError(t, err)
	msg, err := Parse(raw)
	require.NoError(t, err)

	resp, err := BuildResponse(local, rt, msg)
	require.NoError(t, err)
	r, ok := resp.GetDict("r")
	require.True(t, ok)
	nodesField, ok := r.GetString("nodes")
	require.True(t, ok)

	want := append(append([]byte{}, idBytes...), []byte{1, 2, 3, 4, 0x1A, 0xE1}...)
	assert.Equal(t, want, nodesField)
}

func TestBuildResponseGetPeersNeverReturnsValues(t *testing.T) {
	local, _ := util.RandomNodeID()
	rt := routingtable.New(local)
	sender, _ := util.RandomNodeID()
	infoHash, _ := util.RandomNodeID()

	query := NewQuery([]byte("cc"), QueryGetPeers, map[string]bencode.Value{
		"id":        bencode.Bytes(sender.Bytes()),
		"info_hash": bencode.Bytes(infoHash.Bytes()),
	})
	raw, err := bencode.Encode(query)
	require.NoError(t, err)
	msg, err := Parse(raw)
	require.NoError(t, err)

	resp, err := BuildResponse(local, rt, msg)
	require.NoError(t, err)
	r, ok := resp.GetDict("r")
	require.True(t, ok)
	_, hasValues := r.Get("values")
	assert.False(t, hasValues)
	token, ok := r.GetString("token")
	require.True(t, ok)
	assert.Len(t, token, 8)
}

func TestBuildResponseAnnouncePeerAcknowledges(t *testing.T) {
	local, _ := util.RandomNodeID()
	rt := routingtable.New(local)
	sender, _ := util.RandomNodeID()
	infoHash, _ := util.RandomNodeID()

	query := NewQuery([]byte("dd"), QueryAnnouncePeer, map[string]bencode.Value{
		"id":        bencode.Bytes(sender.Bytes()),
		"info_hash": bencode.Bytes(infoHash.Bytes()),
		"port":      bencode.Int64(6881),
		"token":     bencode.String("xx"),
	})
	raw, err := bencode.Encode(query)
	require.NoError(t, err)
	msg, err := Parse(raw)
	require.NoError(t, err)

	resp, err := BuildResponse(local, rt, msg)
	require.NoError(t, err)
	r, ok := resp.GetDict("r")
	require.True(t, ok)
	gotID, ok := r.GetString("id")
	require.True(t, ok)
	assert.Equal(t, local.Bytes(), gotID)
}

func TestBuildResponseUnknownQueryReturnsMethodUnknownError(t *testing.T) {
	local, _ := util.RandomNodeID()
	rt := routingtable.New(local)
	sender, _ := util.RandomNodeID()

	query := NewQuery([]byte("ee"), "sample_infohashes", map[string]bencode.Value{
		"id": bencode.Bytes(sender.Bytes()),
	})
	raw, err := bencode.Encode(query)
	require.NoError(t, err)
	msg, err := Parse(raw)
	require.NoError(t, err)

	resp, err := BuildResponse(local, rt, msg)
	require.NoError(t, err)
	e, ok := resp.Get("e")
	require.True(t, ok)
	require.True(t, e.IsList())
	assert.Equal(t, int64(ErrorCodeMethodUnknown), e.List[0].Int)
}
