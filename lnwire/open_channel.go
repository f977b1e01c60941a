package lnwire

import (
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// OpenChannel is the message the funder sends to kick off the single-funder
// channel-establishment workflow. It carries every static parameter of
// spec.md §3's Channel.Commitments local-side record, plus the funding
// amount and push amount.
type OpenChannel struct {
	// ChainHash denotes the genesis hash of the chain this channel is
	// meant to reside within.
	ChainHash chainhash.Hash

	// PendingChannelID identifies the to-be-created channel throughout
	// the funding workflow, before a funding outpoint exists.
	PendingChannelID [32]byte

	FundingAmount    btcutil.Amount
	PushAmount       MilliSatoshi
	DustLimit        btcutil.Amount
	MaxValueInFlight MilliSatoshi
	ChannelReserve   btcutil.Amount
	HtlcMinimum      MilliSatoshi
	FeePerKiloWeight uint32
	CsvDelay         uint16
	MaxAcceptedHTLCs uint16

	FundingKey           *btcec.PublicKey
	RevocationPoint      *btcec.PublicKey
	PaymentPoint         *btcec.PublicKey
	DelayedPaymentPoint  *btcec.PublicKey
	HtlcPoint            *btcec.PublicKey
	FirstCommitmentPoint *btcec.PublicKey

	ChannelFlags byte

	UpfrontShutdownScript []byte
	ExtraData             ExtraOpaqueData
}

var _ Message = (*OpenChannel)(nil)

func (o *OpenChannel) Decode(r io.Reader, pver uint32) error {
	if _, err := io.ReadFull(r, o.ChainHash[:]); err != nil {
		return err
	}
	if _, err := io.ReadFull(r, o.PendingChannelID[:]); err != nil {
		return err
	}

	var err error
	if o.FundingAmount, err = ReadSatoshi(r); err != nil {
		return err
	}
	if o.PushAmount, err = ReadMilliSatoshi(r); err != nil {
		return err
	}
	if o.DustLimit, err = ReadSatoshi(r); err != nil {
		return err
	}
	if o.MaxValueInFlight, err = ReadMilliSatoshi(r); err != nil {
		return err
	}
	if o.ChannelReserve, err = ReadSatoshi(r); err != nil {
		return err
	}
	if o.HtlcMinimum, err = ReadMilliSatoshi(r); err != nil {
		return err
	}
	if o.FeePerKiloWeight, err = ReadUint32(r); err != nil {
		return err
	}
	if o.CsvDelay, err = ReadUint16(r); err != nil {
		return err
	}
	if o.MaxAcceptedHTLCs, err = ReadUint16(r); err != nil {
		return err
	}
	if o.FundingKey, err = ReadPublicKey(r); err != nil {
		return err
	}
	if o.RevocationPoint, err = ReadPublicKey(r); err != nil {
		return err
	}
	if o.PaymentPoint, err = ReadPublicKey(r); err != nil {
		return err
	}
	if o.DelayedPaymentPoint, err = ReadPublicKey(r); err != nil {
		return err
	}
	if o.HtlcPoint, err = ReadPublicKey(r); err != nil {
		return err
	}
	if o.FirstCommitmentPoint, err = ReadPublicKey(r); err != nil {
		return err
	}

	var flags [1]byte
	if _, err := io.ReadFull(r, flags[:]); err != nil {
		return err
	}
	o.ChannelFlags = flags[0]

	tlvData, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	o.UpfrontShutdownScript, o.ExtraData, err = parseShutdownScript(tlvData)
	return err
}

func (o *OpenChannel) Encode(w io.Writer, pver uint32) error {
	if err := WriteBytes(w, o.ChainHash[:]); err != nil {
		return err
	}
	if err := WriteBytes(w, o.PendingChannelID[:]); err != nil {
		return err
	}
	if err := WriteSatoshi(w, o.FundingAmount); err != nil {
		return err
	}
	if err := WriteMilliSatoshi(w, o.PushAmount); err != nil {
		return err
	}
	if err := WriteSatoshi(w, o.DustLimit); err != nil {
		return err
	}
	if err := WriteMilliSatoshi(w, o.MaxValueInFlight); err != nil {
		return err
	}
	if err := WriteSatoshi(w, o.ChannelReserve); err != nil {
		return err
	}
	if err := WriteMilliSatoshi(w, o.HtlcMinimum); err != nil {
		return err
	}
	if err := WriteUint32(w, o.FeePerKiloWeight); err != nil {
		return err
	}
	if err := WriteUint16(w, o.CsvDelay); err != nil {
		return err
	}
	if err := WriteUint16(w, o.MaxAcceptedHTLCs); err != nil {
		return err
	}
	if err := WritePublicKey(w, o.FundingKey); err != nil {
		return err
	}
	if err := WritePublicKey(w, o.RevocationPoint); err != nil {
		return err
	}
	if err := WritePublicKey(w, o.PaymentPoint); err != nil {
		return err
	}
	if err := WritePublicKey(w, o.DelayedPaymentPoint); err != nil {
		return err
	}
	if err := WritePublicKey(w, o.HtlcPoint); err != nil {
		return err
	}
	if err := WritePublicKey(w, o.FirstCommitmentPoint); err != nil {
		return err
	}
	if err := WriteBytes(w, []byte{o.ChannelFlags}); err != nil {
		return err
	}

	tlvData, err := packShutdownScript(o.UpfrontShutdownScript, o.ExtraData)
	if err != nil {
		return err
	}
	return WriteBytes(w, tlvData)
}

func (o *OpenChannel) MsgType() MessageType { return MsgOpenChannel }

func (o *OpenChannel) MaxPayloadLength(uint32) uint32 { return MaxMessagePayload }

// IsPublicChannel reports whether this OpenChannel's flags advertise that the
// sender intends to announce the channel to the network.
func (o *OpenChannel) IsPublicChannel() bool {
	return o.ChannelFlags&1 == 1
}
