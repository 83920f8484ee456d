package crypto

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// ECDHSharedX computes the shared secp256k1 point priv * peerPub and returns
// the 32-byte X coordinate (unhashed). peerXOnly32 is
// interpreted as an x-only public key using the BIP-340 even-Y convention
// (the same convention every NIP-44 conversation key is derived under), so
// the derivation is symmetric: ECDHSharedX(a.priv, b.pub) == ECDHSharedX(b.priv, a.pub).
// A peerXOnly32 that doesn't correspond to a point on the curve returns
// ErrInvalidPoint.
func ECDHSharedX(priv, peerXOnly32 []byte) ([]byte, error) {
	if err := validatePrivateKey(priv); err != nil {
		return nil, err
	}
	if len(peerXOnly32) != 32 {
		return nil, ErrInvalidPoint
	}

	peerPub, err := schnorr.ParsePubKey(peerXOnly32)
	if err != nil {
		return nil, ErrInvalidPoint
	}

	var peerPoint secp256k1.JacobianPoint
	peerPub.AsJacobian(&peerPoint)

	privKey := secp256k1FromBytes(priv)
	var shared secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(&privKey.Key, &peerPoint, &shared)
	if shared.Z.IsZero() {
		// The point at infinity — priv is the negation of the discrete log
		// of peerPub, an astronomically unlikely but well-defined failure.
		return nil, ErrInvalidPoint
	}
	shared.ToAffine()

	x := shared.X.Bytes()
	out := make([]byte, 32)
	copy(out, x[:])
	return out, nil
}
