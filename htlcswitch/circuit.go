package htlcswitch

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lnchan/lnnode/lnwire"
)

// CircuitKey uniquely identifies one side of an open payment circuit: the
// short channel ID an HTLC is outstanding on, and its HTLC ID within that
// channel's update log.
type CircuitKey struct {
	ChanID lnwire.ShortChannelID
	HtlcID uint64
}

// PaymentCircuit records the two ends of a multi-hop HTLC forwarded through
// this node, so a settle or fail arriving on the outgoing side can be
// matched back to the link (or local payment) that opened it.
type PaymentCircuit struct {
	// PaymentHash is the payment hash shared by both the incoming and
	// outgoing HTLC.
	PaymentHash [32]byte

	IncomingChanID lnwire.ShortChannelID
	IncomingHTLCID uint64

	OutgoingChanID lnwire.ShortChannelID
	OutgoingHTLCID uint64

	// ErrorEncrypter is used to obfuscate any failure reason travelling
	// back along this circuit before it's forwarded to the incoming
	// link. Nil for circuits opened by a local payment, which never
	// needs obfuscation layered back on.
	ErrorEncrypter ErrorEncrypter
}

// CircuitMap is the in-memory index of open payment circuits, keyed by their
// outgoing (chanID, htlcID) pair since that's how a settle/fail is matched
// back to its origin.
type CircuitMap struct {
	mu       sync.RWMutex
	circuits map[CircuitKey]*PaymentCircuit
}

// NewCircuitMap returns an empty CircuitMap.
func NewCircuitMap() *CircuitMap {
	return &CircuitMap{
		circuits: make(map[CircuitKey]*PaymentCircuit),
	}
}

// Add registers circuit, indexed by its outgoing chanID/htlcID pair.
func (m *CircuitMap) Add(circuit *PaymentCircuit) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := CircuitKey{
		ChanID: circuit.OutgoingChanID,
		HtlcID: circuit.OutgoingHTLCID,
	}
	m.circuits[key] = circuit
}

// LookupByHTLC returns the circuit whose outgoing side is the given
// (chanID, htlcID) pair, or nil if none is open.
func (m *CircuitMap) LookupByHTLC(chanID lnwire.ShortChannelID,
	htlcID uint64) *PaymentCircuit {

	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.circuits[CircuitKey{ChanID: chanID, HtlcID: htlcID}]
}

// Remove tears down the circuit keyed by (chanID, htlcID).
func (m *CircuitMap) Remove(chanID lnwire.ShortChannelID, htlcID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := CircuitKey{ChanID: chanID, HtlcID: htlcID}
	if _, ok := m.circuits[key]; !ok {
		return fmt.Errorf("no circuit for chan_id=%v htlc_id=%d",
			chanID, htlcID)
	}

	delete(m.circuits, key)
	return nil
}

// FailureCode enumerates the local subset of BOLT-4 failure reasons this
// node needs to originate or interpret. Full network-wide onion failure
// decoding is out of scope; these codes only ever travel between links on
// this node or back to a local payment.
type FailureCode uint16

const (
	// FailTemporaryChannelFailure indicates the outgoing channel lacked
	// sufficient bandwidth at forwarding time.
	FailTemporaryChannelFailure FailureCode = 0x1007

	// FailUnknownNextPeer indicates the node has no channel open with
	// the requested next hop.
	FailUnknownNextPeer FailureCode = 0x4002

	// FailIncorrectPaymentDetails indicates the terminal hop could not
	// match the HTLC to a known invoice, or the amount/expiry did not
	// match what the invoice requires.
	FailIncorrectPaymentDetails FailureCode = 0x400f
)

// ForwardingError is returned to a payment's originator (or propagated
// onward as an encrypted reason) when an HTLC cannot be forwarded or
// settled.
type ForwardingError struct {
	// ErrorSource is the public key of the node that produced this
	// failure.
	ErrorSource *btcec.PublicKey

	// FailureCode classifies the failure.
	FailureCode FailureCode

	// ExtraMsg is a human-readable detail of the failure. The plain error
	// encrypter carries it in the reason blob after the failure code.
	ExtraMsg string
}

func (f *ForwardingError) Error() string {
	if f.ExtraMsg != "" {
		return fmt.Sprintf("%v: %v", f.FailureCode, f.ExtraMsg)
	}
	return f.FailureCode.String()
}

func (c FailureCode) String() string {
	switch c {
	case FailTemporaryChannelFailure:
		return "TemporaryChannelFailure"
	case FailUnknownNextPeer:
		return "UnknownNextPeer"
	case FailIncorrectPaymentDetails:
		return "IncorrectPaymentDetails"
	default:
		return fmt.Sprintf("FailureCode(%d)", uint16(c))
	}
}

// ErrorEncrypter obfuscates a failure on its way back along a payment
// circuit so that only the circuit's originator can read it in full.
type ErrorEncrypter interface {
	// EncryptFirstHop encodes and encrypts failure as the reason blob
	// placed in the UpdateFailHTLC sent back to the previous hop.
	EncryptFirstHop(failure *ForwardingError) ([]byte, error)

	// IntermediateEncrypt wraps an already-encrypted reason blob with
	// this hop's own layer, as it passes the failure back one more hop.
	IntermediateEncrypt(reason []byte) []byte
}

// ErrorDecrypter recovers the originating ForwardingError from a (possibly
// multiply wrapped) failure reason blob.
type ErrorDecrypter interface {
	DecryptError(reason []byte) (*ForwardingError, error)
}

// plainErrorEncrypter is the ErrorEncrypter used for single-hop and
// multi-hop-within-node forwarding, where every link trusts the others
// enough that onion-style layered encryption buys nothing: the reason blob
// is the 2-byte big-endian failure code followed by the raw message bytes,
// with no length prefix.
type plainErrorEncrypter struct{}

func newPlainErrorEncrypter() ErrorEncrypter {
	return &plainErrorEncrypter{}
}

func (p *plainErrorEncrypter) EncryptFirstHop(failure *ForwardingError) ([]byte, error) {
	buf := make([]byte, 2+len(failure.ExtraMsg))
	binary.BigEndian.PutUint16(buf[:2], uint16(failure.FailureCode))
	copy(buf[2:], failure.ExtraMsg)
	return buf, nil
}

func (p *plainErrorEncrypter) IntermediateEncrypt(reason []byte) []byte {
	return reason
}

// plainErrorDecrypter is the ErrorDecrypter counterpart of
// plainErrorEncrypter.
type plainErrorDecrypter struct {
	source *btcec.PublicKey
}

func newPlainErrorDecrypter(source *btcec.PublicKey) ErrorDecrypter {
	return &plainErrorDecrypter{source: source}
}

func (p *plainErrorDecrypter) DecryptError(reason []byte) (*ForwardingError, error) {
	if len(reason) < 2 {
		return nil, fmt.Errorf("malformed failure reason: %d bytes",
			len(reason))
	}

	return &ForwardingError{
		ErrorSource: p.source,
		FailureCode: FailureCode(binary.BigEndian.Uint16(reason[:2])),
		ExtraMsg:    string(reason[2:]),
	}, nil
}
