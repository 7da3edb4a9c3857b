// Package musig drives the per-settlement MuSig2 tree signing session: key
// aggregation, Taproot tweak, nonce exchange, and partial signature
// production for every internal node of a vtxo tree.
package musig

import (
	"fmt"
	"sort"

	"github.com/arkwallet/arkwalletd/pkg/helpers"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr/musig2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
)

// Stage models where in the getNonces -> setAggregatedNonces -> sign
// pipeline a node session currently sits.
type Stage int

const (
	StageInit Stage = iota
	StageNonceGenerated
	StageAggregatedNonceSet
	StageSigned
)

func (s Stage) String() string {
	switch s {
	case StageInit:
		return "init"
	case StageNonceGenerated:
		return "nonce-generated"
	case StageAggregatedNonceSet:
		return "aggregated-nonce-set"
	case StageSigned:
		return "signed"
	default:
		return "unknown"
	}
}

// NodeSigningContext is the per-node MuSig2 state of spec.md §4.4's
// perNodeContext[level][index]: a fresh nonce and context for one internal
// tree node, keyed to the session-wide aggregated and tweaked keys.
type NodeSigningContext struct {
	Level int
	Index int

	stage Stage

	msg chainhash.Hash

	cosignerPub *btcec.PublicKey
	cosigners   []*btcec.PublicKey

	ctx     *musig2.Context
	session *musig2.Session

	partialSig *musig2.PartialSignature
}

// Session is the settlement-scoped MuSig2 tree signing session of
// spec.md §4.4.
type Session struct {
	cosignerSecret     *btcec.PrivateKey
	cosignerPub        *btcec.PublicKey
	cosigners          []*btcec.PublicKey
	sweepTapRoot       []byte
	sharedOutputAmount uint64

	aggregatedKey *btcec.PublicKey
	tweakedKey    *btcec.PublicKey

	// nodes is level-major; a nil entry marks a leaf, which this session
	// never signs.
	nodes [][]*NodeSigningContext
}

// NewSession constructs the tree signing session for one settlement.
// cosigners is the ordered `cosignersPublicKeys` from SigningStart with the
// unspendable internal key already excluded. nodeMessages is level-major;
// nodeMessages[level][index] is nil for a leaf node and the node's sighash
// (SIGHASH_DEFAULT over its single input) otherwise.
func NewSession(
	cosignerSecret *btcec.PrivateKey,
	cosigners []*btcec.PublicKey,
	sweepTapRoot []byte,
	sharedOutputAmount uint64,
	nodeMessages [][]*chainhash.Hash,
) (*Session, error) {
	if cosignerSecret == nil {
		return nil, fmt.Errorf("musig: cosigner secret is required")
	}
	if len(cosigners) == 0 {
		return nil, fmt.Errorf("musig: cosigner set must not be empty")
	}

	// Every cosigner must derive the identical aggregate key from the
	// identical signer ordering; sort lexicographically by compressed
	// pubkey so the set is canonical regardless of the order it arrived
	// in on the wire.
	cosigners = sortPubKeys(cosigners)

	aggKey, _, _, err := musig2.AggregateKeys(cosigners, true)
	if err != nil {
		return nil, fmt.Errorf("musig: aggregating cosigner keys: %w", err)
	}

	tweakedKey := txscript.ComputeTaprootOutputKey(aggKey.FinalKey, sweepTapRoot)

	s := &Session{
		cosignerSecret:     cosignerSecret,
		cosignerPub:        cosignerSecret.PubKey(),
		cosigners:          cosigners,
		sweepTapRoot:       sweepTapRoot,
		sharedOutputAmount: sharedOutputAmount,
		aggregatedKey:      aggKey.FinalKey,
		tweakedKey:         tweakedKey,
	}

	s.nodes = make([][]*NodeSigningContext, len(nodeMessages))
	for level, row := range nodeMessages {
		s.nodes[level] = make([]*NodeSigningContext, len(row))
		for index, msg := range row {
			if msg == nil {
				continue
			}
			s.nodes[level][index] = &NodeSigningContext{
				Level:       level,
				Index:       index,
				msg:         *msg,
				cosignerPub: s.cosignerPub,
				cosigners:   cosigners,
			}
		}
	}

	return s, nil
}

// sortPubKeys returns a copy of keys ordered lexicographically by
// compressed encoding, the way the teacher's swap package pre-sorts a
// MuSig2 signer set before building a signing context.
func sortPubKeys(keys []*btcec.PublicKey) []*btcec.PublicKey {
	sorted := append([]*btcec.PublicKey{}, keys...)
	sort.Slice(sorted, func(i, j int) bool {
		return helpers.CompareBytes(sorted[i].SerializeCompressed(), sorted[j].SerializeCompressed()) < 0
	})
	return sorted
}

// AggregatedPubKey returns X, the untweaked BIP-327 aggregate of the
// cosigner set.
func (s *Session) AggregatedPubKey() *btcec.PublicKey { return s.aggregatedKey }

// TweakedPubKey returns X', the aggregate tweaked by the sweep tapscript
// root — the key every tree output is ultimately paid to.
func (s *Session) TweakedPubKey() *btcec.PublicKey { return s.tweakedKey }

// GetNonces generates a fresh nonce for every internal node that hasn't
// been given one yet and returns the matrix of public nonces, shaped
// `[level][index]`, with a nil cell for every leaf.
func (s *Session) GetNonces() ([][]*[musig2.PubNonceSize]byte, error) {
	out := make([][]*[musig2.PubNonceSize]byte, len(s.nodes))
	for level, row := range s.nodes {
		out[level] = make([]*[musig2.PubNonceSize]byte, len(row))
		for index, node := range row {
			if node == nil {
				continue
			}
			if node.stage == StageInit {
				nonces, err := musig2.GenNonces(musig2.WithPublicKey(node.cosignerPub))
				if err != nil {
					return nil, fmt.Errorf("musig: generating nonce for node (%d,%d): %w", level, index, err)
				}

				ctx, err := musig2.NewContext(
					s.cosignerSecret, false,
					musig2.WithKnownSigners(node.cosigners),
					musig2.WithTaprootTweakCtx(s.sweepTapRoot),
				)
				if err != nil {
					return nil, fmt.Errorf("musig: building signing context for node (%d,%d): %w", level, index, err)
				}

				session, err := ctx.NewSession(musig2.WithPreGeneratedNonce(nonces))
				if err != nil {
					return nil, fmt.Errorf("musig: starting session for node (%d,%d): %w", level, index, err)
				}

				node.ctx = ctx
				node.session = session
				node.stage = StageNonceGenerated
			}

			pub := node.session.PublicNonce()
			out[level][index] = &pub
		}
	}
	return out, nil
}

// SetAggregatedNonces accepts the server's per-node aggregated nonce matrix,
// one cell per internal node, shaped the same as GetNonces's return value.
func (s *Session) SetAggregatedNonces(matrix [][]*[musig2.PubNonceSize]byte) error {
	for level, row := range s.nodes {
		if level >= len(matrix) {
			return fmt.Errorf("musig: aggregated nonce matrix missing level %d", level)
		}
		for index, node := range row {
			if node == nil {
				continue
			}
			if index >= len(matrix[level]) || matrix[level][index] == nil {
				return fmt.Errorf("musig: aggregated nonce matrix missing node (%d,%d)", level, index)
			}
			if node.stage != StageNonceGenerated {
				return &SigningStageViolation{Attempted: "setAggregatedNonces", Current: node.stage}
			}

			if _, err := node.session.RegisterPubNonce(*matrix[level][index]); err != nil {
				return fmt.Errorf("musig: registering aggregated nonce for node (%d,%d): %w", level, index, err)
			}
			node.stage = StageAggregatedNonceSet
		}
	}
	return nil
}

// Sign produces the matrix of partial signatures, one per internal node.
// musig2.Session.Sign clears its secnonce as soon as it has produced a
// signature, so a second call against the same node fails rather than
// reusing nonce material.
func (s *Session) Sign() ([][]*musig2.PartialSignature, error) {
	out := make([][]*musig2.PartialSignature, len(s.nodes))
	for level, row := range s.nodes {
		out[level] = make([]*musig2.PartialSignature, len(row))
		for index, node := range row {
			if node == nil {
				continue
			}
			if node.stage != StageAggregatedNonceSet {
				return nil, &SigningStageViolation{Attempted: "sign", Current: node.stage}
			}

			sig, err := node.session.Sign(node.msg)
			if err != nil {
				return nil, fmt.Errorf("musig: signing node (%d,%d): %w", level, index, err)
			}

			node.partialSig = sig
			node.stage = StageSigned
			out[level][index] = sig
		}
	}
	return out, nil
}
