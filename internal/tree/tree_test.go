package tree

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

func nodeTx(t *testing.T, parent *chainhash.Hash, parentVout uint32, outScripts ...[]byte) (*wire.MsgTx, *psbt.Packet) {
	t.Helper()
	tx := wire.NewMsgTx(2)
	if parent != nil {
		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(parent, parentVout), nil, nil))
	} else {
		tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{}, nil, nil))
	}
	for _, s := range outScripts {
		tx.AddTxOut(wire.NewTxOut(1000, s))
	}
	pkt, err := psbt.NewFromUnsignedTx(tx)
	require.NoError(t, err)
	return tx, pkt
}

func TestTreeNavigation(t *testing.T) {
	_, rootPkt := nodeTx(t, nil, 0, []byte{0x51})
	rootTxid := rootPkt.UnsignedTx.TxHash()
	root := &Node{Txid: rootTxid, Packet: rootPkt}

	_, leafPkt := nodeTx(t, &rootTxid, 0, []byte{0x52})
	leafTxid := leafPkt.UnsignedTx.TxHash()
	leaf := &Node{Txid: leafTxid, Packet: leafPkt, ParentTxid: rootTxid, HasParent: true, IsLeaf: true}

	tr := New([][]*Node{{root}, {leaf}})

	found, ok := tr.NodeByTxid(leafTxid)
	require.True(t, ok)
	require.Same(t, leaf, found)

	parent, ok := tr.Parent(leaf)
	require.True(t, ok)
	require.Same(t, root, parent)

	_, ok = tr.Parent(root)
	require.False(t, ok)

	require.Equal(t, []*Node{leaf}, tr.Leaves())

	var visited []*Node
	require.NoError(t, tr.Walk(func(n *Node) error {
		visited = append(visited, n)
		return nil
	}))
	require.Equal(t, []*Node{root, leaf}, visited)

	require.Equal(t, 0, root.Level)
	require.Equal(t, 1, leaf.Level)
}

type fakeFetcher struct {
	value  int64
	script []byte
}

func (f fakeFetcher) FetchPrevOutput(chainhash.Hash, uint32) (int64, []byte, bool) {
	return f.value, f.script, true
}

func TestNodeMessagesSkipsLeaves(t *testing.T) {
	_, rootPkt := nodeTx(t, nil, 0, []byte{0x51, 0x20})
	rootTxid := rootPkt.UnsignedTx.TxHash()
	root := &Node{Txid: rootTxid, Packet: rootPkt}

	_, leafPkt := nodeTx(t, &rootTxid, 0, []byte{0x52})
	leaf := &Node{Txid: leafPkt.UnsignedTx.TxHash(), Packet: leafPkt, ParentTxid: rootTxid, HasParent: true, IsLeaf: true}

	tr := New([][]*Node{{root}, {leaf}})

	msgs, err := tr.NodeMessages(fakeFetcher{value: 100_000, script: []byte{0x51, 0x20}})
	require.NoError(t, err)
	require.NotNil(t, msgs[0][0])
	require.Nil(t, msgs[1][0])
}
