package htlcswitch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lnchan/lnnode/lnwire"
)

func TestCircuitMapAddLookupRemove(t *testing.T) {
	cm := NewCircuitMap()

	circuit := &PaymentCircuit{
		PaymentHash:    [32]byte{1, 2, 3},
		IncomingChanID: lnwire.NewShortChanIDFromInt(1),
		IncomingHTLCID: 5,
		OutgoingChanID: lnwire.NewShortChanIDFromInt(2),
		OutgoingHTLCID: 9,
	}
	cm.Add(circuit)

	found := cm.LookupByHTLC(lnwire.NewShortChanIDFromInt(2), 9)
	require.NotNil(t, found)
	require.Equal(t, circuit.PaymentHash, found.PaymentHash)

	require.Nil(t, cm.LookupByHTLC(lnwire.NewShortChanIDFromInt(2), 10))

	require.NoError(t, cm.Remove(lnwire.NewShortChanIDFromInt(2), 9))
	require.Nil(t, cm.LookupByHTLC(lnwire.NewShortChanIDFromInt(2), 9))

	err := cm.Remove(lnwire.NewShortChanIDFromInt(2), 9)
	require.Error(t, err)
}

func TestPlainErrorEncrypterRoundTrip(t *testing.T) {
	failure := &ForwardingError{
		FailureCode: FailIncorrectPaymentDetails,
		ExtraMsg:    "amount mismatch",
	}

	encrypter := newPlainErrorEncrypter()
	reason, err := encrypter.EncryptFirstHop(failure)
	require.NoError(t, err)

	decrypter := newPlainErrorDecrypter(nil)
	decoded, err := decrypter.DecryptError(reason)
	require.NoError(t, err)

	require.Equal(t, failure.FailureCode, decoded.FailureCode)
	require.Equal(t, failure.ExtraMsg, decoded.ExtraMsg)
}
