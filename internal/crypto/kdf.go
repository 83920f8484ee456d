package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

const sha256Size = sha256.Size

// Sha256 hashes data with SHA-256.
func Sha256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// HMACSHA256 computes HMAC-SHA256(key, data), used by NIP-44 framing to
// authenticate nonce||ciphertext under the per-message hmac_key.
func HMACSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// HKDFExtractSHA256 implements the RFC 5869 extract step: PRK = HMAC-SHA256(salt, ikm).
// NIP-44's conversation key is this bare extract output, derived once with a
// fixed salt; per-message keys are then expanded from it separately with
// HKDFExpandSHA256, so the module calls hkdf.Extract directly rather than
// going through the combined Reader.
func HKDFExtractSHA256(salt, ikm []byte) []byte {
	return hkdf.Extract(sha256.New, ikm, salt)
}

// HKDFExpandSHA256 implements the RFC 5869 expand step, producing length
// bytes of output keying material from a pseudorandom key prk and an info
// string.
func HKDFExpandSHA256(prk, info []byte, length int) ([]byte, error) {
	if length < 0 || length > 255*sha256Size {
		return nil, errors.New("crypto: invalid hkdf expand length")
	}
	out := make([]byte, length)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, prk, info), out); err != nil {
		return nil, err
	}
	return out, nil
}
