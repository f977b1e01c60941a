package shachain

import (
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Producer is implemented by the side of a channel that generates
// per-commitment secrets: given a single root secret it can derive the
// secret for any commitment index without storing anything beyond the
// root.
type Producer interface {
	// AtIndex derives and returns the secret that should be revealed when
	// the commitment at the given index is superseded.
	AtIndex(index uint64) (*chainhash.Hash, error)

	// Encode serializes the producer's root secret to w.
	Encode(w io.Writer) error
}

// RevocationProducer is the shachain root holder: it generates the
// per-commitment secret for a given index via deriveChild, descending from
// a single 32-byte root seeded at channel-open time.
type RevocationProducer struct {
	root chainhash.Hash
}

// NewRevocationProducer creates a new RevocationProducer from a
// cryptographically random root secret, normally derived from the node's
// own commitment seed and the channel's own key material.
func NewRevocationProducer(root chainhash.Hash) *RevocationProducer {
	return &RevocationProducer{root: root}
}

// AtIndex derives the commitment secret for index by descending from the
// root, which is itself conceptually stored at index 0: every bit set in
// index is flipped in turn, from the highest to the lowest.
func (p *RevocationProducer) AtIndex(index uint64) (*chainhash.Hash, error) {
	child := deriveChild(p.root, 0, index)
	return &child, nil
}

// Encode writes the 32-byte root secret to w.
func (p *RevocationProducer) Encode(w io.Writer) error {
	_, err := w.Write(p.root[:])
	return err
}

// NewRevocationProducerFromBytes reconstructs a RevocationProducer from the
// serialized root previously written by Encode.
func NewRevocationProducerFromBytes(r io.Reader) (*RevocationProducer, error) {
	var root chainhash.Hash
	if _, err := io.ReadFull(r, root[:]); err != nil {
		return nil, err
	}
	return &RevocationProducer{root: root}, nil
}
