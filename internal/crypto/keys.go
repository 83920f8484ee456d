// Package crypto implements the secp256k1/Schnorr/HKDF/XChaCha20 primitives
// the rest of this module builds on: key generation, BIP-340 signing,
// x-only ECDH, HKDF-SHA256 extract/expand, and the XChaCha20 family of
// stream and AEAD ciphers. Nothing here is Nostr-specific; the NIP-44 and
// NIP-17/59 semantics live in internal/nip44 and internal/giftwrap.
package crypto

import (
	"crypto/rand"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

var (
	ErrInvalidKey   = errors.New("crypto: invalid private key")
	ErrInvalidPoint = errors.New("crypto: invalid curve point")
)

// GeneratePrivateKey returns a uniformly random 32-byte scalar in [1, n-1].
func GeneratePrivateKey() ([]byte, error) {
	for {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, err
		}
		if validatePrivateKey(buf) == nil {
			return buf, nil
		}
	}
}

// DerivePublicKey returns the 32-byte x-only public key for priv.
func DerivePublicKey(priv []byte) ([]byte, error) {
	if err := validatePrivateKey(priv); err != nil {
		return nil, err
	}
	privKey := secp256k1FromBytes(priv)
	return schnorr.SerializePubKey(privKey.PubKey()), nil
}

// SchnorrSign produces a 64-byte BIP-340 signature of a 32-byte message hash.
func SchnorrSign(priv, msgHash32 []byte) ([]byte, error) {
	if err := validatePrivateKey(priv); err != nil {
		return nil, err
	}
	if len(msgHash32) != 32 {
		return nil, errors.New("crypto: message hash must be 32 bytes")
	}
	privKey := secp256k1FromBytes(priv)
	sig, err := schnorr.Sign(privKey, msgHash32)
	if err != nil {
		return nil, err
	}
	return sig.Serialize(), nil
}

// SchnorrVerify reports whether sig64 is a valid BIP-340 signature of
// msgHash32 under the x-only public key pub32.
func SchnorrVerify(pub32, msgHash32, sig64 []byte) bool {
	if len(pub32) != 32 || len(msgHash32) != 32 || len(sig64) != 64 {
		return false
	}
	pubKey, err := schnorr.ParsePubKey(pub32)
	if err != nil {
		return false
	}
	sig, err := schnorr.ParseSignature(sig64)
	if err != nil {
		return false
	}
	return sig.Verify(msgHash32, pubKey)
}

// validatePrivateKey rejects the zero key and any value >= curve order n.
func validatePrivateKey(priv []byte) error {
	if len(priv) != 32 {
		return ErrInvalidKey
	}
	var scalar secp256k1.ModNScalar
	overflow := scalar.SetByteSlice(priv)
	if overflow || scalar.IsZero() {
		return ErrInvalidKey
	}
	return nil
}

func secp256k1FromBytes(priv []byte) *secp256k1.PrivateKey {
	return secp256k1.PrivKeyFromBytes(priv)
}
