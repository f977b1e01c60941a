// Package zpay32 implements encoding and decoding of BOLT-11 Lightning
// invoices: human-readable, bech32-encoded payment requests signed by the
// payee's node key.
package zpay32

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lnchan/lnnode/lnwire"
)

// defaultFinalCLTVDelta is the minimum final CLTV expiry delta assumed when
// an invoice doesn't specify one via the `c` tagged field.
const defaultFinalCLTVDelta = 18

// MessageSigner is passed to Encode to provide a signature over the
// invoice's hash using the node's private key. The returned signature is
// the 65-byte compact form (a 1-byte header followed by the 64-byte
// r||s signature), matching btcec/v2/ecdsa.SignCompact's output.
type MessageSigner struct {
	SignCompact func(hash []byte) ([]byte, error)
}

// Invoice represents a decoded invoice, or one being constructed for
// encoding. Optional fields are nil unless present in the invoice this was
// decoded from, or explicitly set via a functional option before encoding.
type Invoice struct {
	// Net specifies which network this invoice targets.
	Net *chaincfg.Params

	// MilliSat is the requested payment amount. Optional: an invoice
	// with no amount lets the payer choose.
	MilliSat *lnwire.MilliSatoshi

	// Timestamp is when the invoice was created. Mandatory.
	Timestamp time.Time

	// PaymentHash is the hash the payer must produce the preimage of to
	// claim payment.
	PaymentHash *[32]byte

	// PaymentAddr is the `s` field payment secret: a value the payee
	// proves knowledge of by including it in the final HTLC, binding
	// that HTLC to this specific invoice and defeating probing by
	// intermediate nodes that only know the payment hash.
	PaymentAddr *[32]byte

	// Metadata is opaque payload data the payee asked to have echoed
	// back with the payment, per the `m` field.
	Metadata []byte

	// Destination is the payee's public key. Always set after a
	// successful Decode; optionally set before Encode to add it as an
	// explicit `n` field rather than relying on signature recovery.
	Destination *btcec.PublicKey

	// Features describes which BOLT-9 features the payee requires or
	// supports for this payment, per the `9` field.
	Features *lnwire.FeatureVector

	minFinalCLTVExpiry *uint64

	// Description is a short description of the invoice's purpose.
	// Exactly one of Description/DescriptionHash must be set.
	Description *string

	// DescriptionHash is the SHA-256 hash of a (possibly long)
	// description of the invoice's purpose.
	DescriptionHash *[32]byte

	expiry *time.Duration

	// FallbackAddr is an on-chain address payable in case the Lightning
	// payment fails.
	FallbackAddr btcutil.Address

	// RoutingInfo carries extra routing hints for paying a node that
	// isn't directly reachable or doesn't advertise its channels.
	RoutingInfo []ExtraRoutingInfo
}

// Amount sets the invoice's requested amount in millisatoshis.
func Amount(milliSat lnwire.MilliSatoshi) func(*Invoice) {
	return func(i *Invoice) { i.MilliSat = &milliSat }
}

// Destination explicitly sets the invoice's payee pubkey as an `n` field.
func Destination(destination *btcec.PublicKey) func(*Invoice) {
	return func(i *Invoice) { i.Destination = destination }
}

// Description sets the invoice's short description.
//
// NOTE: must be used if and only if DescriptionHash is not.
func Description(description string) func(*Invoice) {
	return func(i *Invoice) { i.Description = &description }
}

// CLTVExpiry sets the minimum final CLTV expiry delta the payee requires of
// the last HTLC extended to it.
func CLTVExpiry(delta uint64) func(*Invoice) {
	return func(i *Invoice) { i.minFinalCLTVExpiry = &delta }
}

// DescriptionHash sets the invoice's description hash.
//
// NOTE: must be used if and only if Description is not.
func DescriptionHash(descriptionHash [32]byte) func(*Invoice) {
	return func(i *Invoice) { i.DescriptionHash = &descriptionHash }
}

// Expiry sets how long the invoice remains payable after its timestamp. If
// unset, a default of 3600 seconds applies.
func Expiry(expiry time.Duration) func(*Invoice) {
	return func(i *Invoice) { i.expiry = &expiry }
}

// FallbackAddr sets an on-chain fallback address for the invoice.
func FallbackAddr(fallbackAddr btcutil.Address) func(*Invoice) {
	return func(i *Invoice) { i.FallbackAddr = fallbackAddr }
}

// RoutingInfo attaches private routing hints to the invoice.
func RoutingInfo(routingInfo []ExtraRoutingInfo) func(*Invoice) {
	return func(i *Invoice) { i.RoutingInfo = routingInfo }
}

// PaymentAddr sets the invoice's payment secret.
func PaymentAddr(addr [32]byte) func(*Invoice) {
	return func(i *Invoice) { i.PaymentAddr = &addr }
}

// Metadata attaches opaque payment metadata to the invoice.
func Metadata(metadata []byte) func(*Invoice) {
	return func(i *Invoice) { i.Metadata = metadata }
}

// Features sets the invoice's advertised feature vector.
func Features(fv *lnwire.FeatureVector) func(*Invoice) {
	return func(i *Invoice) { i.Features = fv }
}

// NewInvoice creates a new Invoice. Pass functional options to set any of
// the optional fields.
//
// NOTE: either Description or DescriptionHash must be provided.
func NewInvoice(net *chaincfg.Params, paymentHash [32]byte,
	timestamp time.Time, options ...func(*Invoice)) (*Invoice, error) {

	invoice := &Invoice{
		Net:         net,
		PaymentHash: &paymentHash,
		Timestamp:   timestamp,
	}

	for _, option := range options {
		option(invoice)
	}

	if err := validateInvoice(invoice); err != nil {
		return nil, err
	}

	return invoice, nil
}

// knownNets lists the chains a bech32 invoice prefix may name, in
// longest-prefix-first order so that e.g. "bcrt" is matched before the "bc"
// it starts with.
var knownNets = []*chaincfg.Params{
	&chaincfg.RegressionNetParams,
	&chaincfg.SigNetParams,
	&chaincfg.TestNet3Params,
	&chaincfg.SimNetParams,
	&chaincfg.MainNetParams,
}

// Decode parses an encoded invoice string into an Invoice, verifying its
// signature and every field's internal consistency in the process. The
// target chain is recovered from the invoice's own prefix.
func Decode(invoice string) (*Invoice, error) {
	decodedInvoice := Invoice{}

	hrp, data, err := decodeBech32(invoice)
	if err != nil {
		return nil, err
	}

	if len(hrp) < 4 {
		return nil, fmt.Errorf("hrp too short")
	}
	if hrp[:2] != "ln" {
		return nil, fmt.Errorf("prefix should be \"ln\"")
	}

	var net *chaincfg.Params
	for _, candidate := range knownNets {
		if strings.HasPrefix(hrp[2:], candidate.Bech32HRPSegwit) {
			net = candidate
			break
		}
	}
	if net == nil {
		return nil, fmt.Errorf("unknown network prefix in hrp %q", hrp)
	}
	decodedInvoice.Net = net

	if len(hrp) > 2+len(net.Bech32HRPSegwit) {
		amount, err := decodeAmount(hrp[2+len(net.Bech32HRPSegwit):])
		if err != nil {
			return nil, err
		}
		decodedInvoice.MilliSat = &amount
	}

	if len(data) < signatureBase32Len {
		return nil, fmt.Errorf("invoice data too short to contain a " +
			"signature")
	}
	invoiceData := data[:len(data)-signatureBase32Len]

	if err := parseData(&decodedInvoice, invoiceData, net); err != nil {
		return nil, err
	}

	sigBase32 := data[len(data)-signatureBase32Len:]
	sigBase256, err := bech32.ConvertBits(sigBase32, 5, 8, true)
	if err != nil {
		return nil, err
	}
	if len(sigBase256) < 65 {
		return nil, fmt.Errorf("signature field too short")
	}
	var sigBytes [64]byte
	copy(sigBytes[:], sigBase256[:64])
	recoveryID := sigBase256[64]

	taggedDataBytes, err := bech32.ConvertBits(invoiceData, 5, 8, true)
	if err != nil {
		return nil, err
	}
	toSign := append([]byte(hrp), taggedDataBytes...)
	hash := chainhash.HashB(toSign)

	headerByte := recoveryID + 27 + 4
	compactSig := append([]byte{headerByte}, sigBytes[:]...)
	pubkey, _, err := ecdsa.RecoverCompact(compactSig, hash)
	if err != nil {
		return nil, fmt.Errorf("unable to recover pubkey from "+
			"signature: %w", err)
	}

	if decodedInvoice.Destination != nil {
		if !decodedInvoice.Destination.IsEqual(pubkey) {
			return nil, fmt.Errorf("recovered pubkey does not " +
				"match explicit destination field")
		}
	} else {
		decodedInvoice.Destination = pubkey
	}

	if err := validateInvoice(&decodedInvoice); err != nil {
		return nil, err
	}

	return &decodedInvoice, nil
}

// Encode serializes the invoice, signed by the given MessageSigner, to its
// bech32 wire representation.
func (invoice *Invoice) Encode(signer MessageSigner) (string, error) {
	if err := validateInvoice(invoice); err != nil {
		return "", err
	}

	var bufferBase32 bytes.Buffer

	timestampBase32 := uint64ToBase32(uint64(invoice.Timestamp.Unix()))
	if len(timestampBase32) > timestampBase32Len {
		return "", fmt.Errorf("timestamp too big: %d",
			invoice.Timestamp.Unix())
	}
	zeroes := make([]byte, timestampBase32Len-len(timestampBase32))
	bufferBase32.Write(zeroes)
	bufferBase32.Write(timestampBase32)

	if err := writeTaggedFields(&bufferBase32, invoice); err != nil {
		return "", err
	}

	hrp := "ln" + invoice.Net.Bech32HRPSegwit
	if invoice.MilliSat != nil {
		am, err := encodeAmount(*invoice.MilliSat)
		if err != nil {
			return "", err
		}
		hrp += am
	}

	taggedFieldsBytes, err := bech32.ConvertBits(bufferBase32.Bytes(), 5, 8, true)
	if err != nil {
		return "", err
	}
	toSign := append([]byte(hrp), taggedFieldsBytes...)
	hash := chainhash.HashB(toSign)

	sign, err := signer.SignCompact(hash)
	if err != nil {
		return "", err
	}
	if len(sign) != 65 {
		return "", fmt.Errorf("expected 65-byte compact signature, "+
			"got %d bytes", len(sign))
	}

	recoveryID := sign[0] - 27 - 4
	var sigBytes [64]byte
	copy(sigBytes[:], sign[1:])

	if invoice.Destination != nil {
		pubkey, _, err := ecdsa.RecoverCompact(sign, hash)
		if err != nil {
			return "", fmt.Errorf("unable to recover pubkey from "+
				"generated signature: %w", err)
		}
		if !pubkey.IsEqual(invoice.Destination) {
			return "", fmt.Errorf("signature does not match " +
				"provided destination pubkey")
		}
	}

	signBase32, err := bech32.ConvertBits(
		append(sigBytes[:], recoveryID), 8, 5, true,
	)
	if err != nil {
		return "", err
	}
	bufferBase32.Write(signBase32)

	return bech32.Encode(hrp, bufferBase32.Bytes())
}

// Expiry returns how long after Timestamp this invoice remains payable. If
// unset, BOLT-11's default of 3600 seconds is returned.
func (invoice *Invoice) Expiry() time.Duration {
	if invoice.expiry != nil {
		return *invoice.expiry
	}
	return 3600 * time.Second
}

// MinFinalCLTVExpiry returns the minimum final CLTV expiry delta the payee
// requires. If unset, a conservative default is returned rather than
// assuming the shortest delta any implementation might pick.
func (invoice *Invoice) MinFinalCLTVExpiry() uint64 {
	if invoice.minFinalCLTVExpiry != nil {
		return *invoice.minFinalCLTVExpiry
	}
	return defaultFinalCLTVDelta
}

// validateInvoice checks that the Invoice has every field BOLT-11 requires,
// and that the fields present are internally consistent.
func validateInvoice(invoice *Invoice) error {
	if invoice.Net == nil {
		return fmt.Errorf("net params not set")
	}
	if invoice.PaymentHash == nil {
		return fmt.Errorf("no payment hash found")
	}

	if invoice.Description != nil && invoice.DescriptionHash != nil {
		return fmt.Errorf("both description and description hash set")
	}
	if invoice.Description == nil && invoice.DescriptionHash == nil {
		return fmt.Errorf("neither description nor description hash set")
	}

	if len(invoice.RoutingInfo) > 20 {
		return fmt.Errorf("too many extra hops: %d", len(invoice.RoutingInfo))
	}

	if invoice.Destination != nil &&
		len(invoice.Destination.SerializeCompressed()) != 33 {
		return fmt.Errorf("unsupported pubkey length")
	}

	if invoice.Features != nil {
		if unknown := invoice.Features.UnknownRequiredFeatures(); len(unknown) > 0 {
			return fmt.Errorf("invoice requires unknown even "+
				"feature bits: %v", unknown)
		}
		if invoice.Features.HasFeature(lnwire.PaymentAddrRequired) &&
			invoice.PaymentAddr == nil {

			return fmt.Errorf("invoice signals payment_addr " +
				"required but carries no payment_addr field")
		}
	}

	return nil
}

// parseData parses the timestamp and tagged fields out of the non-signature
// portion of an invoice's base32 data.
func parseData(invoice *Invoice, data []byte, net *chaincfg.Params) error {
	if len(data) < timestampBase32Len {
		return fmt.Errorf("data too short: %d", len(data))
	}

	t, err := base32ToUint64(data[:timestampBase32Len])
	if err != nil {
		return err
	}
	invoice.Timestamp = time.Unix(int64(t), 0)

	return parseTaggedFields(invoice, data[timestampBase32Len:], net)
}
