package zpay32

import (
	"bytes"
	"crypto/sha256"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lnchan/lnnode/lnwire"
)

var (
	testPrivKey = btcec.PrivKeyFromBytes([]byte{
		0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11,
		0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11,
		0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11,
		0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11,
	})
	testPubKey = testPrivKey.PubKey()
)

func testSigner(hash []byte) ([]byte, error) {
	return ecdsa.SignCompact(testPrivKey, hash, true), nil
}

func testPaymentHash() [32]byte {
	return sha256.Sum256([]byte("test payment preimage"))
}

// TestEncodeDecodeRoundTrip checks that an invoice built with every optional
// field set survives an Encode/Decode round trip with every field intact.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	paymentHash := testPaymentHash()
	var paymentAddr [32]byte
	copy(paymentAddr[:], bytes.Repeat([]byte{0x42}, 32))

	amt := lnwire.MilliSatoshi(250000000)
	timestamp := time.Unix(1600000000, 0)

	invoice, err := NewInvoice(
		&chaincfg.MainNetParams, paymentHash, timestamp,
		Amount(amt),
		Description("coffee"),
		Destination(testPubKey),
		PaymentAddr(paymentAddr),
		Features(lnwire.NewFeatureVector(
			lnwire.NewRawFeatureVector(lnwire.PaymentAddrRequired),
			lnwire.Features,
		)),
		CLTVExpiry(40),
		Expiry(7200*time.Second),
	)
	if err != nil {
		t.Fatalf("unable to create invoice: %v", err)
	}

	encoded, err := invoice.Encode(MessageSigner{SignCompact: testSigner})
	if err != nil {
		t.Fatalf("unable to encode invoice: %v", err)
	}

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("unable to decode invoice: %v", err)
	}

	if decoded.MilliSat == nil || *decoded.MilliSat != amt {
		t.Fatalf("amount mismatch: got %v", decoded.MilliSat)
	}
	if *decoded.PaymentHash != paymentHash {
		t.Fatalf("payment hash mismatch")
	}
	if *decoded.PaymentAddr != paymentAddr {
		t.Fatalf("payment addr mismatch")
	}
	if decoded.Description == nil || *decoded.Description != "coffee" {
		t.Fatalf("description mismatch: got %v", decoded.Description)
	}
	if !decoded.Destination.IsEqual(testPubKey) {
		t.Fatalf("destination pubkey mismatch")
	}
	if decoded.MinFinalCLTVExpiry() != 40 {
		t.Fatalf("cltv expiry mismatch: got %d", decoded.MinFinalCLTVExpiry())
	}
	if decoded.Expiry() != 7200*time.Second {
		t.Fatalf("expiry mismatch: got %v", decoded.Expiry())
	}
	if !decoded.Features.HasFeature(lnwire.PaymentAddrRequired) {
		t.Fatalf("expected decoded invoice to carry payment_addr feature")
	}
	if decoded.Timestamp.Unix() != timestamp.Unix() {
		t.Fatalf("timestamp mismatch: got %v want %v",
			decoded.Timestamp, timestamp)
	}
}

// TestEncodeDecodeNoAmount checks that an invoice with no amount field
// round-trips with MilliSat left nil, matching BOLT-11's "any amount"
// semantics.
func TestEncodeDecodeNoAmount(t *testing.T) {
	t.Parallel()

	paymentHash := testPaymentHash()
	invoice, err := NewInvoice(
		&chaincfg.MainNetParams, paymentHash, time.Unix(1600000000, 0),
		Description("no amount specified"),
	)
	if err != nil {
		t.Fatalf("unable to create invoice: %v", err)
	}

	encoded, err := invoice.Encode(MessageSigner{SignCompact: testSigner})
	if err != nil {
		t.Fatalf("unable to encode invoice: %v", err)
	}

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("unable to decode invoice: %v", err)
	}

	if decoded.MilliSat != nil {
		t.Fatalf("expected no amount, got %v", *decoded.MilliSat)
	}
}

// TestEncodeDecodeDescriptionHash checks the DescriptionHash variant of the
// mandatory description field.
func TestEncodeDecodeDescriptionHash(t *testing.T) {
	t.Parallel()

	paymentHash := testPaymentHash()
	descHash := sha256.Sum256([]byte("a long description of the payment"))

	invoice, err := NewInvoice(
		&chaincfg.MainNetParams, paymentHash, time.Unix(1600000000, 0),
		DescriptionHash(descHash),
	)
	if err != nil {
		t.Fatalf("unable to create invoice: %v", err)
	}

	encoded, err := invoice.Encode(MessageSigner{SignCompact: testSigner})
	if err != nil {
		t.Fatalf("unable to encode invoice: %v", err)
	}

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("unable to decode invoice: %v", err)
	}

	if decoded.DescriptionHash == nil || *decoded.DescriptionHash != descHash {
		t.Fatalf("description hash mismatch")
	}
}

// TestNewInvoiceRejectsBothDescriptions ensures the mutual-exclusivity
// invariant on Description/DescriptionHash is enforced at construction.
func TestNewInvoiceRejectsBothDescriptions(t *testing.T) {
	t.Parallel()

	_, err := NewInvoice(
		&chaincfg.MainNetParams, testPaymentHash(), time.Now(),
		Description("short"),
		DescriptionHash(sha256.Sum256([]byte("long"))),
	)
	if err == nil {
		t.Fatalf("expected error when both description fields are set")
	}

	_, err = NewInvoice(
		&chaincfg.MainNetParams, testPaymentHash(), time.Now(),
	)
	if err == nil {
		t.Fatalf("expected error when neither description field is set")
	}
}

// TestPaymentAddrRequiredNeedsPaymentAddr checks that signaling the
// payment_addr feature as required without actually attaching a
// payment_addr is rejected rather than producing an unpayable invoice.
func TestPaymentAddrRequiredNeedsPaymentAddr(t *testing.T) {
	t.Parallel()

	_, err := NewInvoice(
		&chaincfg.MainNetParams, testPaymentHash(), time.Now(),
		Description("missing payment addr"),
		Features(lnwire.NewFeatureVector(
			lnwire.NewRawFeatureVector(lnwire.PaymentAddrRequired),
			lnwire.Features,
		)),
	)
	if err == nil {
		t.Fatalf("expected error for payment_addr-required invoice " +
			"with no payment_addr field")
	}
}

// TestDecodeRejectsMixedCase ensures an invoice whose characters mix upper
// and lower case — invalid per the bech32 spec — is rejected outright
// rather than silently normalized.
func TestDecodeRejectsMixedCase(t *testing.T) {
	t.Parallel()

	paymentHash := testPaymentHash()
	invoice, err := NewInvoice(
		&chaincfg.MainNetParams, paymentHash, time.Unix(1600000000, 0),
		Description("case test"),
	)
	if err != nil {
		t.Fatalf("unable to create invoice: %v", err)
	}

	encoded, err := invoice.Encode(MessageSigner{SignCompact: testSigner})
	if err != nil {
		t.Fatalf("unable to encode invoice: %v", err)
	}

	mixedCase := encoded[:len(encoded)/2] + toUpper(encoded[len(encoded)/2:])

	if _, err := Decode(mixedCase); err == nil {
		t.Fatalf("expected decode of mixed-case invoice to fail")
	}
}

func toUpper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

// TestDecodeRejectsUnknownNetwork checks that an hrp with no recognized
// chain prefix is rejected rather than silently defaulting to mainnet.
func TestDecodeRejectsUnknownNetwork(t *testing.T) {
	t.Parallel()

	// A well-formed bech32 string, so that the hrp is what Decode rejects
	// rather than the checksum.
	encoded, err := bech32.Encode(
		"lnxy", make([]byte, timestampBase32Len+signatureBase32Len),
	)
	if err != nil {
		t.Fatalf("unable to encode test string: %v", err)
	}

	if _, err := Decode(encoded); err == nil {
		t.Fatalf("expected decode to reject unknown network prefix")
	}
}
