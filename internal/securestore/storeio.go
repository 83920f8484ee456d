package securestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// NormalizeStorageConfig trims persisted path/secret values.
func NormalizeStorageConfig(path, secret string) (string, string) {
	return strings.TrimSpace(path), strings.TrimSpace(secret)
}

// IsStorageConfigured reports whether any persistence at all is configured.
// A secret is optional: an empty secret means the state is persisted as
// plain JSON rather than inside an encrypted envelope.
func IsStorageConfigured(path, _ string) bool {
	return strings.TrimSpace(path) != ""
}

// ReadDecryptedFile reads file content at path, decrypting it first if a
// secret is configured. With no secret it is read back as plain JSON bytes.
func ReadDecryptedFile(path, secret string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(secret) == "" {
		return raw, nil
	}
	return Decrypt(secret, raw)
}

// WriteEncryptedJSON marshals v and writes it to path, encrypting the bytes
// first when a secret is configured. With no secret it writes plain JSON.
func WriteEncryptedJSON(path, secret string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	out := payload
	if strings.TrimSpace(secret) != "" {
		out, err = Encrypt(secret, payload)
		if err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}
