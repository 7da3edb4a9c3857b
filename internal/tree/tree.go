// Package tree models the level-ordered forest of partially-signed
// transactions the Ark server returns at settlement time — the vtxo tree
// and the connectors tree — and validates their structure against the
// settlement transaction and the registered outputs.
package tree

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Node is one `{ txid, psbt, parentTxid, level, levelIndex, isLeaf }` entry
// of a vtxo or connectors tree, per spec.md §3.
type Node struct {
	Txid       chainhash.Hash
	Packet     *psbt.Packet
	ParentTxid chainhash.Hash
	HasParent  bool
	Level      int
	LevelIndex int
	IsLeaf     bool
}

// Tree is a level-indexed forest: Levels[0] holds the root(s) that spend
// the settlement transaction directly, and each subsequent level spends an
// output of the previous one.
type Tree struct {
	Levels [][]*Node

	byTxid map[chainhash.Hash]*Node
}

// New builds a Tree from nodes already grouped by level, indexing them by
// txid for parent lookups.
func New(levels [][]*Node) *Tree {
	t := &Tree{Levels: levels, byTxid: make(map[chainhash.Hash]*Node)}
	for level, row := range levels {
		for index, n := range row {
			n.Level = level
			n.LevelIndex = index
			t.byTxid[n.Txid] = n
		}
	}
	return t
}

// NodeByTxid looks up a node by its transaction id, across every level.
func (t *Tree) NodeByTxid(txid chainhash.Hash) (*Node, bool) {
	n, ok := t.byTxid[txid]
	return n, ok
}

// Parent returns the node's parent, if it has one.
func (t *Tree) Parent(n *Node) (*Node, bool) {
	if !n.HasParent {
		return nil, false
	}
	return t.NodeByTxid(n.ParentTxid)
}

// Leaves returns every leaf node across all levels, in level-major order.
func (t *Tree) Leaves() []*Node {
	var out []*Node
	for _, row := range t.Levels {
		for _, n := range row {
			if n.IsLeaf {
				out = append(out, n)
			}
		}
	}
	return out
}

// Walk visits every node in level-major order, root levels first.
func (t *Tree) Walk(fn func(n *Node) error) error {
	for _, row := range t.Levels {
		for _, n := range row {
			if err := fn(n); err != nil {
				return err
			}
		}
	}
	return nil
}

// NodeMessages computes the per-node sighash (SIGHASH_DEFAULT over the
// node's single input) needed by the MuSig2 tree signing session, shaped
// `[level][index]`. Only internal nodes need a cosigned sighash here: a
// leaf's output is the vtxo itself and is spent later by its owner, not by
// another tree node, so leaf cells are left nil, matching
// musig.NewSession's expected shape.
func (t *Tree) NodeMessages(prevoutFetcher PrevOutputFetcher) ([][]*chainhash.Hash, error) {
	out := make([][]*chainhash.Hash, len(t.Levels))
	for level, row := range t.Levels {
		out[level] = make([]*chainhash.Hash, len(row))
		for index, n := range row {
			if n.IsLeaf {
				continue
			}
			msg, err := sighashDefault(n.Packet, prevoutFetcher)
			if err != nil {
				return nil, fmt.Errorf("tree: computing sighash for node %s: %w", n.Txid, err)
			}
			out[level][index] = msg
		}
	}
	return out, nil
}

// PrevOutputFetcher resolves the previous output (value, script) spent by
// an input, the way txscript.PrevOutputFetcher does — implemented by the
// tree itself for inputs spending a sibling tree node, and by the caller
// for inputs spending the settlement transaction's shared/connector output.
type PrevOutputFetcher interface {
	FetchPrevOutput(txid chainhash.Hash, vout uint32) (value int64, script []byte, ok bool)
}
