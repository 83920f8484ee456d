package nip44

import "encoding/binary"

// calcPaddedLen returns the padded frame length NIP-44 v2 uses for a
// plaintext of unpaddedLen bytes: 32 for lengths up to 32, otherwise
// unpaddedLen rounded up to a multiple of a chunk size, where the chunk is
// 32 bytes while the next power of two of unpaddedLen is at most 256 and
// one eighth of that power of two beyond it (e.g. 65 -> 96, 257 -> 320).
// This keeps ciphertext lengths from precisely revealing plaintext length
// while bounding total padding.
func calcPaddedLen(unpaddedLen int) int {
	if unpaddedLen <= 32 {
		return 32
	}
	nextPower := 1
	for nextPower < unpaddedLen {
		nextPower <<= 1
	}
	chunk := 32
	if nextPower > 256 {
		chunk = nextPower / 8
	}
	return chunk * ((unpaddedLen-1)/chunk + 1)
}

// padPlaintext prepends a 2-byte big-endian length prefix to plaintext and
// zero-pads the result out to calcPaddedLen(len(plaintext)).
func padPlaintext(plaintext []byte) []byte {
	paddedLen := calcPaddedLen(len(plaintext))
	out := make([]byte, 2+paddedLen)
	binary.BigEndian.PutUint16(out[:2], uint16(len(plaintext)))
	copy(out[2:], plaintext)
	return out
}

// unpadPlaintext reverses padPlaintext, validating that the declared length
// prefix is consistent with the frame it was embedded in.
func unpadPlaintext(padded []byte) ([]byte, error) {
	if len(padded) < 2 {
		return nil, DecryptionFailed
	}
	unpaddedLen := int(binary.BigEndian.Uint16(padded[:2]))
	rest := padded[2:]
	if unpaddedLen == 0 || unpaddedLen > maxPlaintextLen || unpaddedLen > len(rest) {
		return nil, DecryptionFailed
	}
	if len(rest) != calcPaddedLen(unpaddedLen) {
		return nil, DecryptionFailed
	}
	for _, b := range rest[unpaddedLen:] {
		if b != 0 {
			return nil, DecryptionFailed
		}
	}
	return rest[:unpaddedLen], nil
}
