package relayer

import (
	"encoding/json"
	"fmt"

	"github.com/tinylib/msgp/msgp"
)

// EmailAuthInput is the witness bundle handed to the email auth circuit.
// Field order is part of the wire contract; downstream provers consume the
// JSON in exactly this shape.
type EmailAuthInput struct {
	// PaddedHeader is the SHA-256 padded canonical header, one decimal
	// byte value per entry.
	PaddedHeader []string `json:"padded_header"`

	// PublicKey is the RSA modulus in little-endian decimal limbs.
	PublicKey []string `json:"public_key"`

	// Signature is the RSA signature in little-endian decimal limbs.
	Signature []string `json:"signature"`

	// PaddedHeaderLen is the header length after SHA-256 message
	// padding.
	PaddedHeaderLen int `json:"padded_header_len"`

	// AccountCode is the caller-supplied code, "0x" + 64 hex digits.
	AccountCode string `json:"account_code"`

	// FromAddrIdx is the offset of the From address in the canonical
	// header.
	FromAddrIdx int `json:"from_addr_idx"`

	// SubjectIdx is the offset of the subject field in the canonical
	// header.
	SubjectIdx int `json:"subject_idx"`

	// DomainIdx is the offset of the From address domain.
	DomainIdx int `json:"domain_idx"`

	// TimestampIdx is the offset of the signature timestamp, relative
	// to SubjectIdx. Zero when absent.
	TimestampIdx int `json:"timestamp_idx"`

	// AddressIdx is the offset of an Ethereum-style address in the
	// subject, relative to SubjectIdx. Zero when absent.
	AddressIdx int `json:"address_idx"`

	// PubkeyIdx is the offset of a hex public key in the subject,
	// relative to SubjectIdx. Zero when absent.
	PubkeyIdx int `json:"pubkey_idx"`

	// ValidatorIdx is the offset of a validator operator address in
	// the subject, relative to SubjectIdx. Zero when absent.
	ValidatorIdx int `json:"validator_idx"`
}

// ToJSON renders the input as compact JSON with stable field order.
func (in *EmailAuthInput) ToJSON() (string, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("relayer: encoding input: %w", err)
	}
	return string(data), nil
}

// msgpack field count must match the appends in ToMessagePack.
const inputFieldCount = 12

// ToMessagePack serializes the input to MessagePack, for consumers that
// want a compact binary form instead of JSON.
func (in *EmailAuthInput) ToMessagePack() ([]byte, error) {
	o := msgp.AppendMapHeader(nil, inputFieldCount)

	o = msgp.AppendString(o, "padded_header")
	o = appendStringSlice(o, in.PaddedHeader)
	o = msgp.AppendString(o, "public_key")
	o = appendStringSlice(o, in.PublicKey)
	o = msgp.AppendString(o, "signature")
	o = appendStringSlice(o, in.Signature)
	o = msgp.AppendString(o, "padded_header_len")
	o = msgp.AppendInt(o, in.PaddedHeaderLen)
	o = msgp.AppendString(o, "account_code")
	o = msgp.AppendString(o, in.AccountCode)
	o = msgp.AppendString(o, "from_addr_idx")
	o = msgp.AppendInt(o, in.FromAddrIdx)
	o = msgp.AppendString(o, "subject_idx")
	o = msgp.AppendInt(o, in.SubjectIdx)
	o = msgp.AppendString(o, "domain_idx")
	o = msgp.AppendInt(o, in.DomainIdx)
	o = msgp.AppendString(o, "timestamp_idx")
	o = msgp.AppendInt(o, in.TimestampIdx)
	o = msgp.AppendString(o, "address_idx")
	o = msgp.AppendInt(o, in.AddressIdx)
	o = msgp.AppendString(o, "pubkey_idx")
	o = msgp.AppendInt(o, in.PubkeyIdx)
	o = msgp.AppendString(o, "validator_idx")
	o = msgp.AppendInt(o, in.ValidatorIdx)

	return o, nil
}

// FromMessagePack deserializes an EmailAuthInput from MessagePack bytes.
func FromMessagePack(data []byte) (*EmailAuthInput, error) {
	sz, rest, err := msgp.ReadMapHeaderBytes(data)
	if err != nil {
		return nil, fmt.Errorf("relayer: decoding input: %w", err)
	}

	in := &EmailAuthInput{}
	for i := uint32(0); i < sz; i++ {
		var key []byte
		key, rest, err = msgp.ReadMapKeyZC(rest)
		if err != nil {
			return nil, fmt.Errorf("relayer: decoding input: %w", err)
		}

		switch string(key) {
		case "padded_header":
			in.PaddedHeader, rest, err = readStringSlice(rest)
		case "public_key":
			in.PublicKey, rest, err = readStringSlice(rest)
		case "signature":
			in.Signature, rest, err = readStringSlice(rest)
		case "padded_header_len":
			in.PaddedHeaderLen, rest, err = msgp.ReadIntBytes(rest)
		case "account_code":
			in.AccountCode, rest, err = msgp.ReadStringBytes(rest)
		case "from_addr_idx":
			in.FromAddrIdx, rest, err = msgp.ReadIntBytes(rest)
		case "subject_idx":
			in.SubjectIdx, rest, err = msgp.ReadIntBytes(rest)
		case "domain_idx":
			in.DomainIdx, rest, err = msgp.ReadIntBytes(rest)
		case "timestamp_idx":
			in.TimestampIdx, rest, err = msgp.ReadIntBytes(rest)
		case "address_idx":
			in.AddressIdx, rest, err = msgp.ReadIntBytes(rest)
		case "pubkey_idx":
			in.PubkeyIdx, rest, err = msgp.ReadIntBytes(rest)
		case "validator_idx":
			in.ValidatorIdx, rest, err = msgp.ReadIntBytes(rest)
		default:
			rest, err = msgp.Skip(rest)
		}
		if err != nil {
			return nil, fmt.Errorf("relayer: decoding input field %s: %w", key, err)
		}
	}

	return in, nil
}

func appendStringSlice(o []byte, s []string) []byte {
	o = msgp.AppendArrayHeader(o, uint32(len(s)))
	for _, v := range s {
		o = msgp.AppendString(o, v)
	}
	return o
}

func readStringSlice(b []byte) ([]string, []byte, error) {
	sz, rest, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return nil, b, err
	}
	out := make([]string, sz)
	for i := range out {
		out[i], rest, err = msgp.ReadStringBytes(rest)
		if err != nil {
			return nil, b, err
		}
	}
	return out, rest, nil
}
