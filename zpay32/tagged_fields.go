package zpay32

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lnchan/lnnode/lnwire"
)

const (
	// signatureBase32Len is the number of 5-bit groups needed to encode
	// the 512 bit signature + 8 bit recovery ID.
	signatureBase32Len = 104

	// timestampBase32Len is the number of 5-bit groups needed to encode
	// the 35-bit timestamp.
	timestampBase32Len = 7

	// hashBase32Len is the number of 5-bit groups needed to encode a
	// 256-bit hash. The last group is zero-padded.
	hashBase32Len = 52

	// pubKeyBase32Len is the number of 5-bit groups needed to encode a
	// 33-byte compressed pubkey. The last group is zero-padded.
	pubKeyBase32Len = 53

	// The following byte values correspond to the supported field types.
	// The field name is the character representing that 5-bit value in
	// the bech32 string.

	fieldTypeP = 1  // payment hash
	fieldTypeR = 3  // extra routing info
	fieldType9 = 5  // feature bits
	fieldTypeF = 9  // fallback on-chain address
	fieldTypeD = 13 // short description
	fieldTypeS = 16 // payment secret
	fieldTypeH = 23 // hash of a long description
	fieldTypeX = 6  // expiry delta in seconds
	fieldTypeC = 24 // min_final_cltv_expiry
	fieldTypeN = 19 // payee pubkey
	fieldTypeM = 27 // payment metadata
)

// ExtraRoutingInfo holds the information needed to route a payment along
// one private channel included as a routing hint within an invoice.
type ExtraRoutingInfo struct {
	PubKey                    *btcec.PublicKey
	ShortChanID               uint64
	FeeBaseMsat               uint32
	FeeProportionalMillionths uint32
	CltvExpDelta              uint16
}

// parseTaggedFields takes the base32 encoded tagged fields of the invoice
// and fills the Invoice struct accordingly. Per BOLT-11, a reader ignores
// fields of unknown type, skips fields whose length doesn't match what is
// expected for a known type, and keeps only the first occurrence of any
// field type it has already seen.
func parseTaggedFields(invoice *Invoice, fields []byte, net *chaincfg.Params) error {
	index := 0
	for {
		if len(fields)-index < 3 {
			break
		}

		typ := fields[index]
		dataLength := int(fields[index+1])<<5 | int(fields[index+2])

		if len(fields) < index+3+dataLength {
			return fmt.Errorf("invalid field data length")
		}
		base32Data := fields[index+3 : index+3+dataLength]
		index += 3 + dataLength

		switch typ {
		case fieldTypeP:
			if invoice.PaymentHash != nil || dataLength != hashBase32Len {
				continue
			}
			hash, err := bech32.ConvertBits(base32Data, 5, 8, false)
			if err != nil {
				return err
			}
			var pHash [32]byte
			copy(pHash[:], hash)
			invoice.PaymentHash = &pHash

		case fieldTypeS:
			if invoice.PaymentAddr != nil || dataLength != hashBase32Len {
				continue
			}
			secret, err := bech32.ConvertBits(base32Data, 5, 8, false)
			if err != nil {
				return err
			}
			var addr [32]byte
			copy(addr[:], secret)
			invoice.PaymentAddr = &addr

		case fieldTypeD:
			if invoice.Description != nil {
				continue
			}
			base256Data, err := bech32.ConvertBits(base32Data, 5, 8, false)
			if err != nil {
				return err
			}
			desc := string(base256Data)
			invoice.Description = &desc

		case fieldTypeN:
			if invoice.Destination != nil || dataLength != pubKeyBase32Len {
				continue
			}
			base256Data, err := bech32.ConvertBits(base32Data, 5, 8, false)
			if err != nil {
				return err
			}
			pubkey, err := btcec.ParsePubKey(base256Data)
			if err != nil {
				return err
			}
			invoice.Destination = pubkey

		case fieldTypeH:
			if invoice.DescriptionHash != nil || dataLength != hashBase32Len {
				continue
			}
			hash, err := bech32.ConvertBits(base32Data, 5, 8, false)
			if err != nil {
				return err
			}
			var dHash [32]byte
			copy(dHash[:], hash)
			invoice.DescriptionHash = &dHash

		case fieldTypeX:
			if invoice.expiry != nil {
				continue
			}
			exp, err := base32ToUint64(base32Data)
			if err != nil {
				return err
			}
			dur := time.Duration(exp) * time.Second
			invoice.expiry = &dur

		case fieldTypeC:
			if invoice.minFinalCLTVExpiry != nil {
				continue
			}
			expiry, err := base32ToUint64(base32Data)
			if err != nil {
				return err
			}
			invoice.minFinalCLTVExpiry = &expiry

		case fieldType9:
			if invoice.Features != nil {
				continue
			}
			base256Data, err := bech32.ConvertBits(base32Data, 5, 8, false)
			if err != nil {
				return err
			}
			raw := lnwire.DecodeBase256(base256Data)
			invoice.Features = lnwire.NewFeatureVector(raw, lnwire.Features)

		case fieldTypeM:
			if invoice.Metadata != nil {
				continue
			}
			base256Data, err := bech32.ConvertBits(base32Data, 5, 8, false)
			if err != nil {
				return err
			}
			invoice.Metadata = base256Data

		case fieldTypeF:
			if invoice.FallbackAddr != nil || len(base32Data) == 0 {
				continue
			}
			addr, err := decodeFallbackAddr(base32Data, net)
			if err != nil {
				// Unknown witness version or malformed address:
				// skip rather than fail the whole invoice.
				continue
			}
			invoice.FallbackAddr = addr

		case fieldTypeR:
			if invoice.RoutingInfo != nil {
				continue
			}
			base256Data, err := bech32.ConvertBits(base32Data, 5, 8, false)
			if err != nil {
				return err
			}
			for len(base256Data) >= 51 {
				info := ExtraRoutingInfo{}
				info.PubKey, err = btcec.ParsePubKey(base256Data[:33])
				if err != nil {
					return err
				}
				info.ShortChanID = binary.BigEndian.Uint64(base256Data[33:41])
				info.FeeBaseMsat = binary.BigEndian.Uint32(base256Data[41:45])
				info.FeeProportionalMillionths = binary.BigEndian.Uint32(base256Data[45:49])
				info.CltvExpDelta = binary.BigEndian.Uint16(base256Data[49:51])
				invoice.RoutingInfo = append(invoice.RoutingInfo, info)
				base256Data = base256Data[51:]
			}

		default:
			// Unknown field type: ignore per BOLT-11.
		}
	}

	return nil
}

func decodeFallbackAddr(base32Data []byte, net *chaincfg.Params) (btcutil.Address, error) {
	version := base32Data[0]

	switch version {
	case 0:
		witness, err := bech32.ConvertBits(base32Data[1:], 5, 8, false)
		if err != nil {
			return nil, err
		}
		switch len(witness) {
		case 20:
			return btcutil.NewAddressWitnessPubKeyHash(witness, net)
		case 32:
			return btcutil.NewAddressWitnessScriptHash(witness, net)
		default:
			return nil, fmt.Errorf("unknown witness program "+
				"length: %d", len(witness))
		}
	case 17:
		pkHash, err := bech32.ConvertBits(base32Data[1:], 5, 8, false)
		if err != nil {
			return nil, err
		}
		return btcutil.NewAddressPubKeyHash(pkHash, net)
	case 18:
		scriptHash, err := bech32.ConvertBits(base32Data[1:], 5, 8, false)
		if err != nil {
			return nil, err
		}
		return btcutil.NewAddressScriptHashFromHash(scriptHash, net)
	default:
		return nil, fmt.Errorf("unknown witness version %d", version)
	}
}

// writeTaggedFields writes the non-nil tagged fields of the Invoice to the
// base32 buffer, in the canonical order lnd invoices use.
func writeTaggedFields(bufferBase32 *bytes.Buffer, invoice *Invoice) error {
	if invoice.PaymentHash != nil {
		base32, err := bech32.ConvertBits(invoice.PaymentHash[:], 8, 5, true)
		if err != nil {
			return err
		}
		if len(base32) != hashBase32Len {
			return fmt.Errorf("invalid payment hash length")
		}
		if err := writeTaggedField(bufferBase32, fieldTypeP, base32); err != nil {
			return err
		}
	}

	if invoice.Description != nil {
		base32, err := bech32.ConvertBits([]byte(*invoice.Description), 8, 5, true)
		if err != nil {
			return err
		}
		if err := writeTaggedField(bufferBase32, fieldTypeD, base32); err != nil {
			return err
		}
	}

	if invoice.DescriptionHash != nil {
		descBase32, err := bech32.ConvertBits(invoice.DescriptionHash[:], 8, 5, true)
		if err != nil {
			return err
		}
		if len(descBase32) != hashBase32Len {
			return fmt.Errorf("invalid description hash length")
		}
		if err := writeTaggedField(bufferBase32, fieldTypeH, descBase32); err != nil {
			return err
		}
	}

	if invoice.minFinalCLTVExpiry != nil {
		finalDelta := uint64ToBase32(*invoice.minFinalCLTVExpiry)
		if err := writeTaggedField(bufferBase32, fieldTypeC, finalDelta); err != nil {
			return err
		}
	}

	if invoice.expiry != nil {
		seconds := invoice.expiry.Seconds()
		expiry := uint64ToBase32(uint64(seconds))
		if err := writeTaggedField(bufferBase32, fieldTypeX, expiry); err != nil {
			return err
		}
	}

	if invoice.FallbackAddr != nil {
		var version byte
		switch addr := invoice.FallbackAddr.(type) {
		case *btcutil.AddressPubKeyHash:
			version = 17
		case *btcutil.AddressScriptHash:
			version = 18
		case *btcutil.AddressWitnessPubKeyHash:
			version = addr.WitnessVersion()
		case *btcutil.AddressWitnessScriptHash:
			version = addr.WitnessVersion()
		default:
			return fmt.Errorf("unknown fallback address type")
		}
		base32Addr, err := bech32.ConvertBits(
			invoice.FallbackAddr.ScriptAddress(), 8, 5, true,
		)
		if err != nil {
			return err
		}
		if err := writeTaggedField(
			bufferBase32, fieldTypeF, append([]byte{version}, base32Addr...),
		); err != nil {
			return err
		}
	}

	if len(invoice.RoutingInfo) > 0 {
		routingDataBase256 := make([]byte, 0, 51*len(invoice.RoutingInfo))
		for _, r := range invoice.RoutingInfo {
			base256 := make([]byte, 51)
			copy(base256[:33], r.PubKey.SerializeCompressed())
			binary.BigEndian.PutUint64(base256[33:41], r.ShortChanID)
			binary.BigEndian.PutUint32(base256[41:45], r.FeeBaseMsat)
			binary.BigEndian.PutUint32(base256[45:49], r.FeeProportionalMillionths)
			binary.BigEndian.PutUint16(base256[49:51], r.CltvExpDelta)
			routingDataBase256 = append(routingDataBase256, base256...)
		}
		routingDataBase32, err := bech32.ConvertBits(routingDataBase256, 8, 5, true)
		if err != nil {
			return err
		}
		if err := writeTaggedField(bufferBase32, fieldTypeR, routingDataBase32); err != nil {
			return err
		}
	}

	if invoice.Features != nil && invoice.Features.SerializeSize() > 0 {
		base256 := invoice.Features.EncodeBase256()
		base32, err := bech32.ConvertBits(base256, 8, 5, true)
		if err != nil {
			return err
		}
		if err := writeTaggedField(bufferBase32, fieldType9, base32); err != nil {
			return err
		}
	}

	if invoice.Metadata != nil {
		base32, err := bech32.ConvertBits(invoice.Metadata, 8, 5, true)
		if err != nil {
			return err
		}
		if err := writeTaggedField(bufferBase32, fieldTypeM, base32); err != nil {
			return err
		}
	}

	if invoice.PaymentAddr != nil {
		base32, err := bech32.ConvertBits(invoice.PaymentAddr[:], 8, 5, true)
		if err != nil {
			return err
		}
		if len(base32) != hashBase32Len {
			return fmt.Errorf("invalid payment addr length")
		}
		if err := writeTaggedField(bufferBase32, fieldTypeS, base32); err != nil {
			return err
		}
	}

	if invoice.Destination != nil {
		pubKeyBase32, err := bech32.ConvertBits(
			invoice.Destination.SerializeCompressed(), 8, 5, true,
		)
		if err != nil {
			return err
		}
		if len(pubKeyBase32) != pubKeyBase32Len {
			return fmt.Errorf("invalid pubkey length")
		}
		if err := writeTaggedField(bufferBase32, fieldTypeN, pubKeyBase32); err != nil {
			return err
		}
	}

	return nil
}

// writeTaggedField takes the type of a tagged data field and its base32
// encoded data, and writes the type, 10-bit length, and data to the buffer.
func writeTaggedField(bufferBase32 *bytes.Buffer, dataType byte, data []byte) error {
	lenBase32 := uint64ToBase32(uint64(len(data)))
	for len(lenBase32) < 2 {
		lenBase32 = append([]byte{0}, lenBase32...)
	}
	if len(lenBase32) != 2 {
		return fmt.Errorf("data length too big to fit within 10 bits: %d",
			len(data))
	}

	if err := bufferBase32.WriteByte(dataType); err != nil {
		return err
	}
	if _, err := bufferBase32.Write(lenBase32); err != nil {
		return err
	}
	_, err := bufferBase32.Write(data)
	return err
}
