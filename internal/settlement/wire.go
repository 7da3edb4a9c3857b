package settlement

import (
	"fmt"
	"strings"

	"github.com/arkwallet/arkwalletd/internal/arkprovider"
	"github.com/arkwallet/arkwalletd/internal/tree"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

func decodeB64Psbt(b64 string) (*psbt.Packet, error) {
	if b64 == "" {
		return nil, fmt.Errorf("empty psbt")
	}
	pkt, err := psbt.NewFromRawBytes(strings.NewReader(b64), true)
	if err != nil {
		return nil, err
	}
	return pkt, nil
}

// buildTree groups a flat, level-tagged node list into an internal/tree.Tree.
func buildTree(nodes []arkprovider.TreeNodeWire) (*tree.Tree, error) {
	var maxLevel int
	for _, n := range nodes {
		if n.Level > maxLevel {
			maxLevel = n.Level
		}
	}

	levels := make([][]*tree.Node, maxLevel+1)
	for _, n := range nodes {
		pkt, err := decodeB64Psbt(n.Psbt)
		if err != nil {
			return nil, fmt.Errorf("decoding node %s psbt: %w", n.Txid, err)
		}
		txid, err := chainhash.NewHashFromStr(n.Txid)
		if err != nil {
			return nil, fmt.Errorf("parsing node txid %q: %w", n.Txid, err)
		}

		node := &tree.Node{
			Txid:       *txid,
			Packet:     pkt,
			Level:      n.Level,
			LevelIndex: n.LevelIndex,
			IsLeaf:     n.IsLeaf,
		}
		if n.ParentTxid != "" {
			parentTxid, err := chainhash.NewHashFromStr(n.ParentTxid)
			if err != nil {
				return nil, fmt.Errorf("parsing node %s parent txid: %w", n.Txid, err)
			}
			node.ParentTxid = *parentTxid
			node.HasParent = true
		}

		for len(levels[n.Level]) <= n.LevelIndex {
			levels[n.Level] = append(levels[n.Level], nil)
		}
		levels[n.Level][n.LevelIndex] = node
	}

	return tree.New(levels), nil
}

// treeSettlementFetcher resolves a tree node's prevout either against the
// tree itself (sibling node outputs) or, for root-level nodes, against
// whichever settlement transaction output the input names; sharedOutputIndex
// is stored but not used in the lookup.
type treeSettlementFetcher struct {
	t                 *tree.Tree
	settlementTx      *wire.MsgTx
	sharedOutputIndex uint32
}

func newTreeSettlementFetcher(t *tree.Tree, settlementTx *wire.MsgTx, sharedOutputIndex uint32) *treeSettlementFetcher {
	return &treeSettlementFetcher{t: t, settlementTx: settlementTx, sharedOutputIndex: sharedOutputIndex}
}

func (f *treeSettlementFetcher) FetchPrevOutput(txid chainhash.Hash, vout uint32) (int64, []byte, bool) {
	settlementTxid := f.settlementTx.TxHash()
	if txid == settlementTxid {
		if int(vout) >= len(f.settlementTx.TxOut) {
			return 0, nil, false
		}
		out := f.settlementTx.TxOut[vout]
		return out.Value, out.PkScript, true
	}

	n, ok := f.t.NodeByTxid(txid)
	if !ok {
		return 0, nil, false
	}
	if int(vout) >= len(n.Packet.UnsignedTx.TxOut) {
		return 0, nil, false
	}
	out := n.Packet.UnsignedTx.TxOut[vout]
	return out.Value, out.PkScript, true
}

var _ tree.PrevOutputFetcher = (*treeSettlementFetcher)(nil)
