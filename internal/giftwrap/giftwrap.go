// Package giftwrap implements the NIP-17/59 three-layer wrapper: rumor
// (unsigned content) sealed (signed, encrypted) inside a gift wrap (sent
// from a discarded ephemeral key).
package giftwrap

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"math/big"
	"sort"
	"time"

	"nostrcore/internal/crypto"
	"nostrcore/internal/nip44"
	"nostrcore/internal/nostr"
)

// ErrNoRecipients is returned by WrapMany when the recipient list is empty.
var ErrNoRecipients = errors.New("giftwrap: no recipients")

// ErrUnexpectedKind is returned by Unwrap when the event is not kind 1059,
// or internally when an unwrapped layer is not the kind it must be.
var ErrUnexpectedKind = errors.New("giftwrap: unexpected kind")

// ErrImpersonation is returned by Unwrap when the rumor's claimed author
// does not match the seal's signer.
var ErrImpersonation = errors.New("giftwrap: impersonation detected")

const pastWindowSeconds = 172800 // 2 days

// Recipient pairs a public key with an optional relay hint carried in the
// rumor's "p" tag.
type Recipient struct {
	PubKey    string
	RelayHint string
}

// SendOptions carries the rumor's optional fields.
type SendOptions struct {
	Subject string
	ReplyTo string // event id of the rumor being replied to
	ReplyRelayHint string
}

// Unwrapped is the result of successfully unwrapping a gift wrap: the
// recovered rumor plus the sender identity and conversation grouping key
// derived from it.
type Unwrapped struct {
	GiftWrap       nostr.Event
	Seal           nostr.Event
	Rumor          nostr.Event
	SenderPubKey   string
	Content        string
	Timestamp      int64
	ConversationID string
}

// randomPastTimestamp returns a unix second uniformly distributed in
// [now-172800, now], so a gift wrap's timestamp can't be correlated with
// its actual send time.
func randomPastTimestamp(now time.Time) (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(pastWindowSeconds+1))
	if err != nil {
		return 0, err
	}
	return now.Unix() - n.Int64(), nil
}

func buildRumor(senderPub string, recipients []Recipient, content string, opts SendOptions, now time.Time) nostr.Event {
	tags := make(nostr.Tags, 0, len(recipients)+2)
	for _, r := range recipients {
		tag := nostr.Tag{"p", r.PubKey}
		if r.RelayHint != "" {
			tag = append(tag, r.RelayHint)
		}
		tags = append(tags, tag)
	}
	if opts.Subject != "" {
		tags = append(tags, nostr.Tag{"subject", opts.Subject})
	}
	if opts.ReplyTo != "" {
		tag := nostr.Tag{"e", opts.ReplyTo, opts.ReplyRelayHint, "reply"}
		tags = append(tags, tag)
	}
	rumor := nostr.Event{
		PubKey:    senderPub,
		CreatedAt: now.Unix(),
		Kind:      nostr.KindChatRumor,
		Tags:      tags,
		Content:   content,
	}
	rumor.ComputeID()
	return rumor
}

func sealRumor(senderPriv []byte, senderPub string, recipientPub string, rumor nostr.Event, now time.Time) (nostr.Event, error) {
	rumorJSON, err := json.Marshal(rumor)
	if err != nil {
		return nostr.Event{}, err
	}
	convKey, err := nip44.ConversationKey(senderPriv, mustHexDecode(recipientPub))
	if err != nil {
		return nostr.Event{}, err
	}
	ciphertext, err := nip44.Encrypt(convKey, rumorJSON)
	if err != nil {
		return nostr.Event{}, err
	}
	createdAt, err := randomPastTimestamp(now)
	if err != nil {
		return nostr.Event{}, err
	}
	seal := nostr.Event{
		PubKey:    senderPub,
		CreatedAt: createdAt,
		Kind:      nostr.KindSeal,
		Tags:      nostr.Tags{},
		Content:   ciphertext,
	}
	if err := seal.Sign(senderPriv); err != nil {
		return nostr.Event{}, err
	}
	return seal, nil
}

func wrapSeal(recipientPub string, seal nostr.Event, now time.Time) (nostr.Event, error) {
	ephemeralPriv, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nostr.Event{}, err
	}
	ephemeralPub, err := crypto.DerivePublicKey(ephemeralPriv)
	if err != nil {
		return nostr.Event{}, err
	}
	sealJSON, err := json.Marshal(seal)
	if err != nil {
		return nostr.Event{}, err
	}
	convKey, err := nip44.ConversationKey(ephemeralPriv, mustHexDecode(recipientPub))
	if err != nil {
		return nostr.Event{}, err
	}
	ciphertext, err := nip44.Encrypt(convKey, sealJSON)
	if err != nil {
		return nostr.Event{}, err
	}
	createdAt, err := randomPastTimestamp(now)
	if err != nil {
		return nostr.Event{}, err
	}
	gw := nostr.Event{
		PubKey:    nostr.EncodeHex(ephemeralPub),
		CreatedAt: createdAt,
		Kind:      nostr.KindGiftWrap,
		Tags:      nostr.Tags{{"p", recipientPub}},
		Content:   ciphertext,
	}
	if err := gw.Sign(ephemeralPriv); err != nil {
		return nostr.Event{}, err
	}
	return gw, nil
}

// Wrap builds a single gift wrap addressed to recipientPub from sender's
// private key and a plaintext message.
func Wrap(senderPriv []byte, senderPub, recipientPub, content string, opts SendOptions, now time.Time) (nostr.Event, error) {
	rumor := buildRumor(senderPub, []Recipient{{PubKey: recipientPub}}, content, opts, now)
	seal, err := sealRumor(senderPriv, senderPub, recipientPub, rumor, now)
	if err != nil {
		return nostr.Event{}, err
	}
	return wrapSeal(recipientPub, seal, now)
}

// WrapMany builds one gift wrap per recipient plus a self-addressed copy
// for the sender (a group send). Every gift wrap uses a distinct ephemeral
// key and encrypts the same rumor (tagged with every recipient).
func WrapMany(senderPriv []byte, senderPub string, recipients []Recipient, content string, opts SendOptions, now time.Time) ([]nostr.Event, error) {
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}
	rumor := buildRumor(senderPub, recipients, content, opts, now)

	targets := make([]string, 0, len(recipients)+1)
	for _, r := range recipients {
		targets = append(targets, r.PubKey)
	}
	targets = append(targets, senderPub)

	wraps := make([]nostr.Event, 0, len(targets))
	for _, target := range targets {
		seal, err := sealRumor(senderPriv, senderPub, target, rumor, now)
		if err != nil {
			return nil, err
		}
		gw, err := wrapSeal(target, seal, now)
		if err != nil {
			return nil, err
		}
		wraps = append(wraps, gw)
	}
	return wraps, nil
}

// Unwrap reverses Wrap/WrapMany for a single gift wrap addressed to
// recipientPriv: decrypt the gift wrap to recover the seal, verify the
// seal's signature, decrypt the seal to recover the rumor, and check the
// rumor's claimed author against the seal's actual signer.
func Unwrap(giftWrap nostr.Event, recipientPriv []byte) (Unwrapped, error) {
	if giftWrap.Kind != nostr.KindGiftWrap {
		return Unwrapped{}, ErrUnexpectedKind
	}

	gwConvKey, err := nip44.ConversationKey(recipientPriv, mustHexDecode(giftWrap.PubKey))
	if err != nil {
		return Unwrapped{}, nip44.DecryptionFailed
	}
	sealBytes, err := nip44.Decrypt(gwConvKey, giftWrap.Content)
	if err != nil {
		return Unwrapped{}, err
	}
	var seal nostr.Event
	if err := json.Unmarshal(sealBytes, &seal); err != nil {
		return Unwrapped{}, nip44.DecryptionFailed
	}
	if seal.Kind != nostr.KindSeal {
		return Unwrapped{}, ErrUnexpectedKind
	}
	if !seal.Verify() {
		return Unwrapped{}, nostr.ErrInvalidEvent
	}

	sealConvKey, err := nip44.ConversationKey(recipientPriv, mustHexDecode(seal.PubKey))
	if err != nil {
		return Unwrapped{}, nip44.DecryptionFailed
	}
	rumorBytes, err := nip44.Decrypt(sealConvKey, seal.Content)
	if err != nil {
		return Unwrapped{}, err
	}
	var rumor nostr.Event
	if err := json.Unmarshal(rumorBytes, &rumor); err != nil {
		return Unwrapped{}, nip44.DecryptionFailed
	}

	if rumor.PubKey != seal.PubKey {
		return Unwrapped{}, ErrImpersonation
	}

	return Unwrapped{
		GiftWrap:       giftWrap,
		Seal:           seal,
		Rumor:          rumor,
		SenderPubKey:   rumor.PubKey,
		Content:        rumor.Content,
		Timestamp:      rumor.CreatedAt,
		ConversationID: conversationID(rumor),
	}, nil
}

// UnwrapResult pairs an Unwrap outcome with the source event, used by
// UnwrapMany to report per-event failures without aborting the batch.
type UnwrapResult struct {
	GiftWrap nostr.Event
	Message  *Unwrapped
	Err      error
}

// UnwrapMany attempts Unwrap on every gift wrap without aborting on
// per-event failures. It returns one result per input: the successful
// results first, sorted ascending by timestamp, then the failures in input
// order with Err set.
func UnwrapMany(giftWraps []nostr.Event, recipientPriv []byte) []UnwrapResult {
	results := make([]UnwrapResult, 0, len(giftWraps))
	for _, gw := range giftWraps {
		msg, err := Unwrap(gw, recipientPriv)
		if err != nil {
			results = append(results, UnwrapResult{GiftWrap: gw, Err: err})
			continue
		}
		m := msg
		results = append(results, UnwrapResult{GiftWrap: gw, Message: &m})
	}
	sort.SliceStable(results, func(i, j int) bool {
		mi, mj := results[i].Message, results[j].Message
		if mi == nil {
			return false
		}
		if mj == nil {
			return true
		}
		return mi.Timestamp < mj.Timestamp
	})
	return results
}

// Conversation is a grouping aggregate over a set of unwrapped messages
// sharing a conversationId.
type Conversation struct {
	ID            string
	Participants  []string
	LastMessageAt int64
	MessageCount  int
}

// GroupConversations groups successfully unwrapped messages by
// ConversationID, sorted by recency (most recent LastMessageAt first).
func GroupConversations(messages []Unwrapped) []Conversation {
	byID := make(map[string]*Conversation)
	order := make([]string, 0)
	for _, m := range messages {
		c, ok := byID[m.ConversationID]
		if !ok {
			c = &Conversation{ID: m.ConversationID, Participants: participants(m.Rumor)}
			byID[m.ConversationID] = c
			order = append(order, m.ConversationID)
		}
		c.MessageCount++
		if m.Timestamp > c.LastMessageAt {
			c.LastMessageAt = m.Timestamp
		}
	}
	out := make([]Conversation, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessageAt > out[j].LastMessageAt
	})
	return out
}

func participants(rumor nostr.Event) []string {
	set := map[string]struct{}{rumor.PubKey: {}}
	for _, tag := range rumor.Tags.All("p") {
		if len(tag) > 1 {
			set[tag[1]] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func conversationID(rumor nostr.Event) string {
	ps := participants(rumor)
	id := ""
	for i, p := range ps {
		if i > 0 {
			id += ":"
		}
		id += p
	}
	return id
}

func mustHexDecode(s string) []byte {
	b, err := nostr.DecodeHex(s)
	if err != nil {
		// A malformed hex pubkey is a structural defect the caller should
		// have rejected via nostr.Validate before it reached here; encode
		// it as a guaranteed-invalid 32-byte key so ECDH fails cleanly
		// instead of panicking.
		// All-0xFF is above the field prime, so it is never a valid x.
		var buf [32]byte
		for i := range buf {
			buf[i] = 0xFF
		}
		return buf[:]
	}
	return b
}
