package nostr

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// ErrInvalidEncoding is returned by hex/bech32 decode failures.
var ErrInvalidEncoding = errors.New("nostr: invalid encoding")

// EncodeHex lower-cases and hex-encodes raw bytes.
func EncodeHex(raw []byte) string {
	return hex.EncodeToString(raw)
}

// DecodeHex decodes a lowercase, even-length hex string. Uppercase input is
// rejected rather than normalized: every id/pubkey/sig field this module
// produces is already lowercase hex, so mixed case on the wire signals a
// non-conforming relay or peer.
func DecodeHex(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, ErrInvalidEncoding
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return nil, ErrInvalidEncoding
		}
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidEncoding
	}
	return raw, nil
}

const (
	hrpPublicKey  = "npub"
	hrpPrivateKey = "nsec"
)

// EncodeNpub bech32-encodes a 32-byte x-only public key with HRP "npub".
func EncodeNpub(pubkey []byte) (string, error) {
	return encodeBech32(hrpPublicKey, pubkey)
}

// DecodeNpub decodes an "npub1..." string back to its 32-byte public key.
func DecodeNpub(npub string) ([]byte, error) {
	return decodeBech32(hrpPublicKey, npub)
}

// EncodeNsec bech32-encodes a 32-byte private key with HRP "nsec".
func EncodeNsec(priv []byte) (string, error) {
	return encodeBech32(hrpPrivateKey, priv)
}

// DecodeNsec decodes an "nsec1..." string back to its 32-byte private key.
func DecodeNsec(nsec string) ([]byte, error) {
	return decodeBech32(hrpPrivateKey, nsec)
}

func encodeBech32(hrp string, raw []byte) (string, error) {
	if len(raw) != 32 {
		return "", ErrInvalidEncoding
	}
	words, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", ErrInvalidEncoding
	}
	encoded, err := bech32.Encode(hrp, words)
	if err != nil {
		return "", ErrInvalidEncoding
	}
	return encoded, nil
}

func decodeBech32(wantHRP, s string) ([]byte, error) {
	hrp, words, err := bech32.Decode(s)
	if err != nil {
		return nil, ErrInvalidEncoding
	}
	if !strings.EqualFold(hrp, wantHRP) {
		return nil, ErrInvalidEncoding
	}
	raw, err := bech32.ConvertBits(words, 5, 8, false)
	if err != nil {
		return nil, ErrInvalidEncoding
	}
	if len(raw) != 32 {
		return nil, ErrInvalidEncoding
	}
	return raw, nil
}
