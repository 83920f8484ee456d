package giftwrap

import (
	"testing"
	"time"

	"nostrcore/internal/crypto"
	"nostrcore/internal/nostr"
)

func genIdentity(t *testing.T) (priv []byte, pubHex string) {
	t.Helper()
	priv, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	pub, err := crypto.DerivePublicKey(priv)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	return priv, nostr.EncodeHex(pub)
}

// TestWrapGiftWrapStructure checks the gift wrap Wrap produces: kind 1059,
// a single p tag for the recipient, an ephemeral signing key, a created_at
// inside the past window, and a valid signature.
func TestWrapGiftWrapStructure(t *testing.T) {
	alicePriv, alicePub := genIdentity(t)
	_, bobPub := genIdentity(t)

	now := time.Unix(1700000000, 0)
	gw, err := Wrap(alicePriv, alicePub, bobPub, "hi", SendOptions{}, now)
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}

	if gw.Kind != nostr.KindGiftWrap {
		t.Fatalf("expected kind 1059, got %d", gw.Kind)
	}
	pTags := gw.Tags.All("p")
	if len(pTags) != 1 || pTags[0][1] != bobPub {
		t.Fatalf("expected exactly one p tag = bob, got %v", pTags)
	}
	if gw.PubKey == alicePub || gw.PubKey == bobPub {
		t.Fatalf("gift wrap pubkey must be ephemeral, got %s", gw.PubKey)
	}
	if gw.CreatedAt < now.Unix()-pastWindowSeconds || gw.CreatedAt > now.Unix() {
		t.Fatalf("created_at outside past window: %d", gw.CreatedAt)
	}
	if !gw.Verify() {
		t.Fatalf("gift wrap does not verify under its own (ephemeral) pubkey")
	}
}

func TestUnwrapByRecipient(t *testing.T) {
	alicePriv, alicePub := genIdentity(t)
	bobPriv, bobPub := genIdentity(t)
	charliePriv, _ := genIdentity(t)

	now := time.Now()
	gw, err := Wrap(alicePriv, alicePub, bobPub, "hi", SendOptions{}, now)
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}

	msg, err := Unwrap(gw, bobPriv)
	if err != nil {
		t.Fatalf("unwrap by bob: %v", err)
	}
	if msg.SenderPubKey != alicePub {
		t.Fatalf("expected sender %s, got %s", alicePub, msg.SenderPubKey)
	}
	if msg.Content != "hi" {
		t.Fatalf("expected content 'hi', got %q", msg.Content)
	}

	if _, err := Unwrap(gw, charliePriv); err == nil {
		t.Fatalf("expected unwrap by non-recipient to fail")
	}
}

func TestUnwrapRejectsWrongKind(t *testing.T) {
	alicePriv, alicePub := genIdentity(t)
	notAWrap := nostr.Event{PubKey: alicePub, Kind: nostr.KindTextNote}
	if err := notAWrap.Sign(alicePriv); err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := Unwrap(notAWrap, alicePriv); err != ErrUnexpectedKind {
		t.Fatalf("expected ErrUnexpectedKind, got %v", err)
	}
}

// TestImpersonationRejected checks that a rumor claiming an author other
// than the seal's actual signer is rejected.
func TestImpersonationRejected(t *testing.T) {
	_, alicePub := genIdentity(t)
	bobPriv, bobPub := genIdentity(t)
	mallory, malloryPub := genIdentity(t)

	now := time.Now()
	rumor := buildRumor(alicePub, []Recipient{{PubKey: bobPub}}, "trust me", SendOptions{}, now)
	// Mallory seals Alice's rumor under her own key, impersonating Alice.
	seal, err := sealRumor(mallory, malloryPub, bobPub, rumor, now)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	gw, err := wrapSeal(bobPub, seal, now)
	if err != nil {
		t.Fatalf("wrap seal: %v", err)
	}

	if _, err := Unwrap(gw, bobPriv); err != ErrImpersonation {
		t.Fatalf("expected ErrImpersonation, got %v", err)
	}
}

func TestWrapManyAddressesEveryRecipientAndSelf(t *testing.T) {
	alicePriv, alicePub := genIdentity(t)
	bobPriv, bobPub := genIdentity(t)
	carolPriv, carolPub := genIdentity(t)

	now := time.Now()
	wraps, err := WrapMany(alicePriv, alicePub, []Recipient{{PubKey: bobPub}, {PubKey: carolPub}}, "group hi", SendOptions{}, now)
	if err != nil {
		t.Fatalf("wrap many: %v", err)
	}
	if len(wraps) != 3 {
		t.Fatalf("expected 3 gift wraps (bob, carol, self), got %d", len(wraps))
	}

	seenSenders := map[string]bool{}
	for _, gw := range wraps {
		if seenSenders[gw.PubKey] {
			t.Fatalf("expected distinct ephemeral key per gift wrap, reused %s", gw.PubKey)
		}
		seenSenders[gw.PubKey] = true
	}

	bobMsg, carolMsg, aliceMsg := (*Unwrapped)(nil), (*Unwrapped)(nil), (*Unwrapped)(nil)
	for _, gw := range wraps {
		if m, err := Unwrap(gw, bobPriv); err == nil {
			bobMsg = &m
		}
		if m, err := Unwrap(gw, carolPriv); err == nil {
			carolMsg = &m
		}
		if m, err := Unwrap(gw, alicePriv); err == nil {
			aliceMsg = &m
		}
	}
	if bobMsg == nil || carolMsg == nil || aliceMsg == nil {
		t.Fatalf("expected bob, carol, and alice (self-sync) to each unwrap one gift wrap")
	}
	if bobMsg.Content != "group hi" || carolMsg.Content != "group hi" || aliceMsg.Content != "group hi" {
		t.Fatalf("expected identical content across all recipients")
	}
}

func TestWrapManyRejectsEmptyRecipients(t *testing.T) {
	alicePriv, alicePub := genIdentity(t)
	if _, err := WrapMany(alicePriv, alicePub, nil, "hi", SendOptions{}, time.Now()); err != ErrNoRecipients {
		t.Fatalf("expected ErrNoRecipients, got %v", err)
	}
}

// TestRandomPastTimestampDistribution checks that randomPastTimestamp is
// roughly uniform over its window: bucketed acceptance within +/-20%
// across 3 buckets over 1000 samples.
func TestRandomPastTimestampDistribution(t *testing.T) {
	now := time.Now()
	const samples = 1000
	const buckets = 3
	counts := make([]int, buckets)
	bucketWidth := int64(pastWindowSeconds) / buckets

	for i := 0; i < samples; i++ {
		ts, err := randomPastTimestamp(now)
		if err != nil {
			t.Fatalf("random timestamp: %v", err)
		}
		if ts < now.Unix()-pastWindowSeconds || ts > now.Unix() {
			t.Fatalf("timestamp outside window: %d", ts)
		}
		age := now.Unix() - ts
		bucket := age / bucketWidth
		if bucket >= buckets {
			bucket = buckets - 1
		}
		counts[bucket]++
	}

	expected := float64(samples) / float64(buckets)
	tolerance := expected * 0.2
	for b, c := range counts {
		if float64(c) < expected-tolerance || float64(c) > expected+tolerance {
			t.Errorf("bucket %d count %d outside tolerance of expected %v +/- %v", b, c, expected, tolerance)
		}
	}
}

func TestUnwrapManySortsAndSwallowsFailures(t *testing.T) {
	alicePriv, alicePub := genIdentity(t)
	bobPriv, bobPub := genIdentity(t)

	older := time.Unix(1700000000, 0)
	newer := time.Unix(1700003600, 0)

	gw1, err := Wrap(alicePriv, alicePub, bobPub, "first", SendOptions{}, older)
	if err != nil {
		t.Fatalf("wrap 1: %v", err)
	}
	gw2, err := Wrap(alicePriv, alicePub, bobPub, "second", SendOptions{}, newer)
	if err != nil {
		t.Fatalf("wrap 2: %v", err)
	}
	garbage := nostr.Event{Kind: nostr.KindTextNote, PubKey: alicePub}

	results := UnwrapMany([]nostr.Event{gw2, garbage, gw1}, bobPriv)
	ok := make([]*Unwrapped, 0)
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			continue
		}
		ok = append(ok, r.Message)
	}
	if failed != 1 {
		t.Fatalf("expected exactly 1 failure (garbage event), got %d", failed)
	}
	if len(ok) != 2 || ok[0].Timestamp > ok[1].Timestamp {
		t.Fatalf("expected 2 successes sorted ascending by timestamp")
	}
}
