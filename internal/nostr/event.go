// Package nostr implements the canonical event codec: serialization,
// id/signature computation, hex/bech32 encoding, and per-kind structural
// validation. It has no notion of relays, transport, or encryption — those
// live in internal/relay, internal/relaypool, and
// internal/nip44/internal/giftwrap respectively.
package nostr

import (
	"errors"

	"nostrcore/internal/crypto"
)

// Tag is an ordered sequence of strings; inner order is significant.
type Tag []string

// Tags is an ordered sequence of Tag; outer order is significant, duplicate
// tags are permitted.
type Tags []Tag

// First returns the value at position idx of the first tag whose name
// (position 0) equals name, or "" if none matches.
func (t Tags) First(name string, idx int) string {
	for _, tag := range t {
		if len(tag) > 0 && tag[0] == name && len(tag) > idx {
			return tag[idx]
		}
	}
	return ""
}

// All returns every tag whose name (position 0) equals name.
func (t Tags) All(name string) []Tag {
	var out []Tag
	for _, tag := range t {
		if len(tag) > 0 && tag[0] == name {
			out = append(out, tag)
		}
	}
	return out
}

// Event is the canonical Nostr record. An "unsigned event" is an Event
// with ID and Sig left empty; a rumor is an Event with ID computed but Sig
// always empty.
type Event struct {
	ID        string `json:"id"`
	PubKey    string `json:"pubkey"`
	CreatedAt int64  `json:"created_at"`
	Kind      int    `json:"kind"`
	Tags      Tags   `json:"tags"`
	Content   string `json:"content"`
	Sig       string `json:"sig"`
}

// KindClass groups a kind number into the replacement/storage semantics a
// relay would apply to it.
type KindClass int

const (
	KindRegular KindClass = iota
	KindReplaceable
	KindEphemeral
	KindParamReplaceable
)

// ClassifyKind returns the KindClass a relay would assign to kind.
func ClassifyKind(kind int) KindClass {
	switch {
	case kind == 0 || kind == 3:
		return KindReplaceable
	case kind >= 1000 && kind < 10000:
		return KindRegular
	case kind >= 10000 && kind < 20000:
		return KindReplaceable
	case kind >= 20000 && kind < 30000:
		return KindEphemeral
	case kind >= 30000 && kind < 40000:
		return KindParamReplaceable
	default:
		return KindRegular
	}
}

// Well-known kinds this module constructs or consumes directly.
const (
	KindMetadata     = 0
	KindTextNote     = 1
	KindLegacyDM     = 4
	KindSeal         = 13
	KindChatRumor    = 14
	KindRelayListDMs = 10050
	KindEphemeralGeo = 20000
	KindGiftWrap     = 1059
)

// ErrInvalidEvent is returned by the validator for any structural defect;
// the reason is always attached via errors.Join-style wrapping through
// fmt.Errorf("%w: ...", ErrInvalidEvent).
var ErrInvalidEvent = errors.New("nostr: invalid event")

// Hash computes the 32-byte event id (sha256 of the canonical
// serialization) without mutating e.
func (e Event) Hash() [32]byte {
	return crypto.Sha256(Serialize(e))
}

// ComputeID sets e.ID to the lowercase-hex event id computed from the
// event's current fields. Call this before signing.
func (e *Event) ComputeID() {
	h := e.Hash()
	e.ID = EncodeHex(h[:])
}

// Sign computes the event id and a Schnorr signature under priv (32 raw
// bytes), setting both ID and Sig. The event's PubKey must already match
// priv's derived public key.
func (e *Event) Sign(priv []byte) error {
	e.ComputeID()
	idBytes, err := DecodeHex(e.ID)
	if err != nil {
		return err
	}
	sig, err := crypto.SchnorrSign(priv, idBytes)
	if err != nil {
		return err
	}
	e.Sig = EncodeHex(sig)
	return nil
}

// Verify reports whether e.Sig is a valid signature of e.ID under e.PubKey,
// and that e.ID matches the canonical hash of e's fields.
func (e Event) Verify() bool {
	idBytes, err := DecodeHex(e.ID)
	if err != nil || len(idBytes) != 32 {
		return false
	}
	computed := e.Hash()
	if EncodeHex(computed[:]) != e.ID {
		return false
	}
	pubBytes, err := DecodeHex(e.PubKey)
	if err != nil {
		return false
	}
	sigBytes, err := DecodeHex(e.Sig)
	if err != nil {
		return false
	}
	return crypto.SchnorrVerify(pubBytes, idBytes, sigBytes)
}

// ReplaceableKey returns the storage-identity key a relay would use for e:
// "kind:pubkey:d" for parameterized-replaceable kinds, "kind:pubkey" for
// other replaceable kinds, and the event id (computed if unsigned)
// otherwise.
func ReplaceableKey(e Event) string {
	class := ClassifyKind(e.Kind)
	switch class {
	case KindParamReplaceable:
		d := e.Tags.First("d", 1)
		return itoa(e.Kind) + ":" + e.PubKey + ":" + d
	case KindReplaceable:
		return itoa(e.Kind) + ":" + e.PubKey
	default:
		if e.ID != "" {
			return e.ID
		}
		h := e.Hash()
		return EncodeHex(h[:])
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
