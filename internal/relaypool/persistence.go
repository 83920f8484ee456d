package relaypool

import (
	"encoding/json"

	"nostrcore/internal/securestore"
)

// ListsState is the persisted shape of a pool's whitelist/blacklist (spec
// section 4.6, "both lists persist").
type ListsState struct {
	Whitelist []string `json:"whitelist"`
	Blacklist []string `json:"blacklist"`
}

// SaveLists persists state to path, optionally encrypted under secret (see
// internal/securestore; an empty secret writes plain JSON).
func SaveLists(path, secret string, state ListsState) error {
	return securestore.WriteEncryptedJSON(path, secret, state)
}

// LoadLists reads a previously saved ListsState from path. A missing or
// malformed file is returned as an error; callers that want
// reset-to-empty-on-corruption semantics should treat a non-nil error as
// "start empty" (mirroring the outbox's load-on-construction tolerance).
func LoadLists(path, secret string) (ListsState, error) {
	raw, err := securestore.ReadDecryptedFile(path, secret)
	if err != nil {
		return ListsState{}, err
	}
	var state ListsState
	if err := json.Unmarshal(raw, &state); err != nil {
		return ListsState{}, err
	}
	return state, nil
}
