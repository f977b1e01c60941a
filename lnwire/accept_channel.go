package lnwire

import (
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
)

// AcceptChannel is the message the fundee sends in reply to OpenChannel
// once it has decided to proceed with the single-funder channel-opening
// workflow. Once the funder receives this, it has every parameter needed to
// build the funding transaction and both commitment transactions.
type AcceptChannel struct {
	PendingChannelID [32]byte

	DustLimit        btcutil.Amount
	MaxValueInFlight MilliSatoshi
	ChannelReserve   btcutil.Amount
	HtlcMinimum      MilliSatoshi
	MinAcceptDepth   uint32
	CsvDelay         uint16
	MaxAcceptedHTLCs uint16

	FundingKey           *btcec.PublicKey
	RevocationPoint      *btcec.PublicKey
	PaymentPoint         *btcec.PublicKey
	DelayedPaymentPoint  *btcec.PublicKey
	HtlcPoint            *btcec.PublicKey
	FirstCommitmentPoint *btcec.PublicKey

	UpfrontShutdownScript []byte
	ExtraData             ExtraOpaqueData
}

var _ Message = (*AcceptChannel)(nil)

func (a *AcceptChannel) Decode(r io.Reader, pver uint32) error {
	if _, err := io.ReadFull(r, a.PendingChannelID[:]); err != nil {
		return err
	}

	var err error
	if a.DustLimit, err = ReadSatoshi(r); err != nil {
		return err
	}
	if a.MaxValueInFlight, err = ReadMilliSatoshi(r); err != nil {
		return err
	}
	if a.ChannelReserve, err = ReadSatoshi(r); err != nil {
		return err
	}
	if a.HtlcMinimum, err = ReadMilliSatoshi(r); err != nil {
		return err
	}
	if a.MinAcceptDepth, err = ReadUint32(r); err != nil {
		return err
	}
	if a.CsvDelay, err = ReadUint16(r); err != nil {
		return err
	}
	if a.MaxAcceptedHTLCs, err = ReadUint16(r); err != nil {
		return err
	}
	if a.FundingKey, err = ReadPublicKey(r); err != nil {
		return err
	}
	if a.RevocationPoint, err = ReadPublicKey(r); err != nil {
		return err
	}
	if a.PaymentPoint, err = ReadPublicKey(r); err != nil {
		return err
	}
	if a.DelayedPaymentPoint, err = ReadPublicKey(r); err != nil {
		return err
	}
	if a.HtlcPoint, err = ReadPublicKey(r); err != nil {
		return err
	}
	if a.FirstCommitmentPoint, err = ReadPublicKey(r); err != nil {
		return err
	}

	tlvData, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	a.UpfrontShutdownScript, a.ExtraData, err = parseShutdownScript(tlvData)
	return err
}

func (a *AcceptChannel) Encode(w io.Writer, pver uint32) error {
	if err := WriteBytes(w, a.PendingChannelID[:]); err != nil {
		return err
	}
	if err := WriteSatoshi(w, a.DustLimit); err != nil {
		return err
	}
	if err := WriteMilliSatoshi(w, a.MaxValueInFlight); err != nil {
		return err
	}
	if err := WriteSatoshi(w, a.ChannelReserve); err != nil {
		return err
	}
	if err := WriteMilliSatoshi(w, a.HtlcMinimum); err != nil {
		return err
	}
	if err := WriteUint32(w, a.MinAcceptDepth); err != nil {
		return err
	}
	if err := WriteUint16(w, a.CsvDelay); err != nil {
		return err
	}
	if err := WriteUint16(w, a.MaxAcceptedHTLCs); err != nil {
		return err
	}
	if err := WritePublicKey(w, a.FundingKey); err != nil {
		return err
	}
	if err := WritePublicKey(w, a.RevocationPoint); err != nil {
		return err
	}
	if err := WritePublicKey(w, a.PaymentPoint); err != nil {
		return err
	}
	if err := WritePublicKey(w, a.DelayedPaymentPoint); err != nil {
		return err
	}
	if err := WritePublicKey(w, a.HtlcPoint); err != nil {
		return err
	}
	if err := WritePublicKey(w, a.FirstCommitmentPoint); err != nil {
		return err
	}

	tlvData, err := packShutdownScript(a.UpfrontShutdownScript, a.ExtraData)
	if err != nil {
		return err
	}
	return WriteBytes(w, tlvData)
}

func (a *AcceptChannel) MsgType() MessageType { return MsgAcceptChannel }

func (a *AcceptChannel) MaxPayloadLength(uint32) uint32 { return MaxMessagePayload }
