package crypto

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/chacha20poly1305"
)

// XChaCha20XORKeyStream encrypts or decrypts (the operation is symmetric)
// plaintext/ciphertext with the unauthenticated XChaCha20 stream cipher
// under a 32-byte key and 24-byte nonce. NIP-44 frames carry their own
// HMAC-SHA256 tag (internal/nip44), so this is the raw stream primitive
// without Poly1305.
func XChaCha20XORKeyStream(key32, nonce24, data []byte) ([]byte, error) {
	if len(key32) != chacha20.KeySize {
		return nil, errors.New("crypto: xchacha20 key must be 32 bytes")
	}
	if len(nonce24) != chacha20.NonceSizeX {
		return nil, errors.New("crypto: xchacha20 nonce must be 24 bytes")
	}
	stream, err := chacha20.NewUnauthenticatedCipher(key32, nonce24)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	stream.XORKeyStream(out, data)
	return out, nil
}

// ChaCha20XORKeyStream encrypts or decrypts data with the unauthenticated,
// standard (non-extended) ChaCha20 stream cipher under a 32-byte key and
// 12-byte nonce. NIP-44 v2 derives exactly a 12-byte chacha_nonce per
// message (internal/nip44), so this is the IETF-nonce variant rather than
// the 24-byte XChaCha20 used for at-rest encryption.
func ChaCha20XORKeyStream(key32, nonce12, data []byte) ([]byte, error) {
	if len(key32) != chacha20.KeySize {
		return nil, errors.New("crypto: chacha20 key must be 32 bytes")
	}
	if len(nonce12) != chacha20.NonceSize {
		return nil, errors.New("crypto: chacha20 nonce must be 12 bytes")
	}
	stream, err := chacha20.NewUnauthenticatedCipher(key32, nonce12)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	stream.XORKeyStream(out, data)
	return out, nil
}

// XChaCha20Poly1305Encrypt seals plaintext under key32 using the
// caller-supplied 24-byte nonce24 and authenticates additionalData.
func XChaCha20Poly1305Encrypt(key32, nonce24, plaintext, additionalData []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key32)
	if err != nil {
		return nil, err
	}
	if len(nonce24) != aead.NonceSize() {
		return nil, errors.New("crypto: xchacha20-poly1305 nonce size mismatch")
	}
	return aead.Seal(nil, nonce24, plaintext, additionalData), nil
}

// XChaCha20Poly1305Decrypt opens a ciphertext produced by
// XChaCha20Poly1305Encrypt, verifying the Poly1305 tag in constant time.
func XChaCha20Poly1305Decrypt(key32, nonce24, ciphertext, additionalData []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key32)
	if err != nil {
		return nil, err
	}
	if len(nonce24) != aead.NonceSize() {
		return nil, errors.New("crypto: xchacha20-poly1305 nonce size mismatch")
	}
	return aead.Open(nil, nonce24, ciphertext, additionalData)
}

// ConstantTimeEqual reports whether a and b hold the same bytes, in time
// independent of where they first differ — used for MAC verification so a
// timing side channel never leaks which byte of a forged tag was wrong.
func ConstantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
