package nostr

import (
	"encoding/json"
	"fmt"
	"regexp"
)

var geohashPattern = regexp.MustCompile(`^[0-9b-hjkmnp-z]{1,12}$`)

// Validate checks the per-kind structural rules this module imposes on top
// of the generic id/pubkey/sig shape. It does not verify the signature;
// call Event.Verify for that.
func Validate(e Event) error {
	if len(e.PubKey) != 64 {
		return fmt.Errorf("%w: pubkey must be 64 hex chars", ErrInvalidEvent)
	}
	if _, err := DecodeHex(e.PubKey); err != nil {
		return fmt.Errorf("%w: pubkey must be lowercase hex", ErrInvalidEvent)
	}
	if e.ID != "" {
		if len(e.ID) != 64 {
			return fmt.Errorf("%w: id must be 64 hex chars", ErrInvalidEvent)
		}
		if _, err := DecodeHex(e.ID); err != nil {
			return fmt.Errorf("%w: id must be lowercase hex", ErrInvalidEvent)
		}
	}
	if e.Sig != "" {
		if len(e.Sig) != 128 {
			return fmt.Errorf("%w: sig must be 128 hex chars", ErrInvalidEvent)
		}
		if _, err := DecodeHex(e.Sig); err != nil {
			return fmt.Errorf("%w: sig must be lowercase hex", ErrInvalidEvent)
		}
	}

	switch e.Kind {
	case KindMetadata:
		var meta map[string]any
		if err := json.Unmarshal([]byte(e.Content), &meta); err != nil {
			return fmt.Errorf("%w: kind 0 content must be a json object", ErrInvalidEvent)
		}
	case KindTextNote:
		if e.Content == "" {
			return fmt.Errorf("%w: kind 1 content must not be empty", ErrInvalidEvent)
		}
	case KindLegacyDM:
		if len(e.Tags.All("p")) != 1 {
			return fmt.Errorf("%w: kind 4 requires exactly one p tag", ErrInvalidEvent)
		}
		if !containsIV(e.Content) {
			return fmt.Errorf("%w: kind 4 content must carry ?iv=", ErrInvalidEvent)
		}
	case KindChatRumor:
		if len(e.Tags.All("p")) < 1 {
			return fmt.Errorf("%w: kind 14 requires at least one p tag", ErrInvalidEvent)
		}
	case KindSeal:
		if len(e.Tags) != 0 {
			return fmt.Errorf("%w: kind 13 must carry no tags", ErrInvalidEvent)
		}
	case KindGiftWrap:
		if len(e.Tags.All("p")) != 1 {
			return fmt.Errorf("%w: kind 1059 requires exactly one p tag", ErrInvalidEvent)
		}
		if e.Content == "" {
			return fmt.Errorf("%w: kind 1059 content must not be empty", ErrInvalidEvent)
		}
	case KindEphemeralGeo:
		gs := e.Tags.All("g")
		if len(gs) < 1 {
			return fmt.Errorf("%w: kind 20000 requires at least one g tag", ErrInvalidEvent)
		}
		for _, g := range gs {
			if len(g) < 2 || !geohashPattern.MatchString(g[1]) {
				return fmt.Errorf("%w: kind 20000 g tag must be a valid geohash", ErrInvalidEvent)
			}
		}
	}
	return nil
}

func containsIV(content string) bool {
	for i := 0; i+4 <= len(content); i++ {
		if content[i] == '?' && content[i+1] == 'i' && content[i+2] == 'v' && content[i+3] == '=' {
			return true
		}
	}
	return false
}
