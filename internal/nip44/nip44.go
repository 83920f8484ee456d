// Package nip44 implements the NIP-44 v2 encryption scheme used to seal
// rumors and gift wraps: conversation-key derivation, per-message key
// derivation, padded framing, and base64 transport. All
// failure modes collapse into a single opaque error so a network observer
// or malicious peer learns nothing from which step rejected a payload.
package nip44

import (
	"crypto/rand"
	"encoding/base64"
	"errors"

	"nostrcore/internal/crypto"
)

// DecryptionFailed is returned for every decrypt failure — bad base64,
// wrong version byte, out-of-range length, MAC mismatch, or padding
// corruption — without distinguishing which, since the specific reason is
// never safe to reveal to the caller.
var DecryptionFailed = errors.New("nip44: decryption failed")

// ErrMessageTooLong is returned by Encrypt when plaintext is empty or
// exceeds the 65535-byte NIP-44 limit. It is safe to surface distinctly because it is
// caller-input validation, not a property of an adversarial ciphertext.
var ErrMessageTooLong = errors.New("nip44: message too long")

const (
	version         = 0x02
	nonceSize       = 32
	macSize         = 32
	minPayloadSize  = 100
	maxPayloadSize  = 65603
	maxPlaintextLen = 65535
)

// ConversationKey derives the 32-byte symmetric key shared by selfPriv and
// peerPub (32-byte x-only pubkey). It is symmetric: ConversationKey(a, B)
// == ConversationKey(b, A).
func ConversationKey(selfPriv, peerPub []byte) ([]byte, error) {
	sharedX, err := crypto.ECDHSharedX(selfPriv, peerPub)
	if err != nil {
		return nil, err
	}
	return crypto.HKDFExtractSHA256([]byte("nip44-v2"), sharedX), nil
}

type messageKeys struct {
	chachaKey   []byte
	chachaNonce []byte
	hmacKey     []byte
}

func deriveMessageKeys(convKey, nonce32 []byte) (messageKeys, error) {
	expanded, err := crypto.HKDFExpandSHA256(convKey, nonce32, 76)
	if err != nil {
		return messageKeys{}, err
	}
	return messageKeys{
		chachaKey:   expanded[0:32],
		chachaNonce: expanded[32:44],
		hmacKey:     expanded[44:76],
	}, nil
}

// Encrypt seals plaintext under convKey, returning the base64-encoded
// NIP-44 v2 payload. A fresh random nonce is generated per call, so
// encrypting the same plaintext twice yields different ciphertexts (spec
// invariant 3).
func Encrypt(convKey, plaintext []byte) (string, error) {
	if len(plaintext) == 0 || len(plaintext) > maxPlaintextLen {
		return "", ErrMessageTooLong
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	keys, err := deriveMessageKeys(convKey, nonce)
	if err != nil {
		return "", err
	}

	// ChaCha20 (12-byte IETF nonce), not XChaCha20: HKDF-expand only yields
	// 12 bytes for chacha_nonce, and per-message freshness already comes
	// from the 32-byte outer nonce feeding that derivation.
	padded := padPlaintext(plaintext)
	ciphertext, err := crypto.ChaCha20XORKeyStream(keys.chachaKey, keys.chachaNonce, padded)
	if err != nil {
		return "", err
	}

	mac := computeMAC(keys.hmacKey, nonce, ciphertext)

	payload := make([]byte, 0, 1+nonceSize+len(ciphertext)+macSize)
	payload = append(payload, version)
	payload = append(payload, nonce...)
	payload = append(payload, ciphertext...)
	payload = append(payload, mac...)

	if len(payload) < minPayloadSize || len(payload) > maxPayloadSize {
		return "", ErrMessageTooLong
	}

	return base64.StdEncoding.EncodeToString(payload), nil
}

// Decrypt opens a base64-encoded NIP-44 v2 payload under convKey. After the
// encoding, length and version checks, the MAC is checked in constant time
// before the ciphertext is decrypted or its padding inspected; any
// rejection at any stage returns DecryptionFailed.
func Decrypt(convKey []byte, payloadB64 string) ([]byte, error) {
	payload, err := base64.StdEncoding.DecodeString(payloadB64)
	if err != nil {
		return nil, DecryptionFailed
	}
	if len(payload) < minPayloadSize || len(payload) > maxPayloadSize {
		return nil, DecryptionFailed
	}
	if payload[0] != version {
		return nil, DecryptionFailed
	}

	nonce := payload[1 : 1+nonceSize]
	mac := payload[len(payload)-macSize:]
	ciphertext := payload[1+nonceSize : len(payload)-macSize]

	keys, err := deriveMessageKeys(convKey, nonce)
	if err != nil {
		return nil, DecryptionFailed
	}

	expectedMAC := computeMAC(keys.hmacKey, nonce, ciphertext)
	if !crypto.ConstantTimeEqual(mac, expectedMAC) {
		return nil, DecryptionFailed
	}

	padded, err := crypto.ChaCha20XORKeyStream(keys.chachaKey, keys.chachaNonce, ciphertext)
	if err != nil {
		return nil, DecryptionFailed
	}

	plaintext, err := unpadPlaintext(padded)
	if err != nil {
		return nil, DecryptionFailed
	}
	return plaintext, nil
}

func computeMAC(hmacKey, nonce, ciphertext []byte) []byte {
	aad := make([]byte, 0, len(nonce)+len(ciphertext))
	aad = append(aad, nonce...)
	aad = append(aad, ciphertext...)
	return crypto.HMACSHA256(hmacKey, aad)
}
