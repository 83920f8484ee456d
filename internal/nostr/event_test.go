package nostr

import (
	"testing"

	"nostrcore/internal/crypto"
)

func newSignedEvent(t *testing.T, kind int, tags Tags, content string) (Event, []byte) {
	t.Helper()
	priv, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	pub, err := crypto.DerivePublicKey(priv)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	e := Event{
		PubKey:    EncodeHex(pub),
		CreatedAt: 1700000000,
		Kind:      kind,
		Tags:      tags,
		Content:   content,
	}
	if err := e.Sign(priv); err != nil {
		t.Fatalf("sign: %v", err)
	}
	return e, priv
}

func TestSignVerifyRoundtrip(t *testing.T) {
	e, _ := newSignedEvent(t, KindTextNote, Tags{}, "hello")
	if !e.Verify() {
		t.Fatalf("expected signed event to verify")
	}
}

func TestVerifyRejectsTamperedContent(t *testing.T) {
	e, _ := newSignedEvent(t, KindTextNote, Tags{}, "hello")
	e.Content = "goodbye"
	if e.Verify() {
		t.Fatalf("expected verify to fail after content tamper")
	}
}

func TestVerifyRejectsWrongSigner(t *testing.T) {
	e, _ := newSignedEvent(t, KindTextNote, Tags{}, "hello")
	otherPriv, _ := crypto.GeneratePrivateKey()
	otherPub, _ := crypto.DerivePublicKey(otherPriv)
	e.PubKey = EncodeHex(otherPub)
	if e.Verify() {
		t.Fatalf("expected verify to fail with substituted pubkey")
	}
}

func TestClassifyKind(t *testing.T) {
	cases := []struct {
		kind int
		want KindClass
	}{
		{0, KindReplaceable},
		{3, KindReplaceable},
		{1, KindRegular},
		{14, KindRegular},
		{1059, KindRegular},
		{10050, KindReplaceable},
		{19999, KindReplaceable},
		{20000, KindEphemeral},
		{29999, KindEphemeral},
		{30000, KindParamReplaceable},
		{39999, KindParamReplaceable},
	}
	for _, c := range cases {
		if got := ClassifyKind(c.kind); got != c.want {
			t.Errorf("ClassifyKind(%d) = %v, want %v", c.kind, got, c.want)
		}
	}
}

func TestReplaceableKey(t *testing.T) {
	e := Event{PubKey: "abcd", Kind: 0}
	if got, want := ReplaceableKey(e), "0:abcd"; got != want {
		t.Errorf("got %s want %s", got, want)
	}

	param := Event{PubKey: "abcd", Kind: 30001, Tags: Tags{{"d", "profile"}}}
	if got, want := ReplaceableKey(param), "30001:abcd:profile"; got != want {
		t.Errorf("got %s want %s", got, want)
	}

	regular := Event{PubKey: "abcd", Kind: 1, ID: "deadbeef"}
	if got, want := ReplaceableKey(regular), "deadbeef"; got != want {
		t.Errorf("got %s want %s", got, want)
	}
}

func TestValidateKind0RequiresJSONObject(t *testing.T) {
	e, _ := newSignedEvent(t, KindMetadata, Tags{}, `{"name":"alice"}`)
	if err := Validate(e); err != nil {
		t.Fatalf("expected valid metadata event: %v", err)
	}
	e.Content = "not json"
	if err := Validate(e); err == nil {
		t.Fatalf("expected invalid metadata content to fail")
	}
}

func TestValidateKind1RequiresContent(t *testing.T) {
	e, _ := newSignedEvent(t, KindTextNote, Tags{}, "")
	if err := Validate(e); err == nil {
		t.Fatalf("expected empty content to fail validation")
	}
}

func TestValidateKind4RequiresPTagAndIV(t *testing.T) {
	e, _ := newSignedEvent(t, KindLegacyDM, Tags{{"p", "abcd"}}, "ciphertext?iv=abc")
	if err := Validate(e); err != nil {
		t.Fatalf("expected valid kind 4 event: %v", err)
	}
	missingIV, _ := newSignedEvent(t, KindLegacyDM, Tags{{"p", "abcd"}}, "ciphertext")
	if err := Validate(missingIV); err == nil {
		t.Fatalf("expected missing ?iv= to fail")
	}
	noTag, _ := newSignedEvent(t, KindLegacyDM, Tags{}, "ciphertext?iv=abc")
	if err := Validate(noTag); err == nil {
		t.Fatalf("expected missing p tag to fail")
	}
}

func TestValidateKind13RequiresEmptyTags(t *testing.T) {
	e, _ := newSignedEvent(t, KindSeal, Tags{}, "sealed")
	if err := Validate(e); err != nil {
		t.Fatalf("expected valid seal: %v", err)
	}
	withTag, _ := newSignedEvent(t, KindSeal, Tags{{"p", "abcd"}}, "sealed")
	if err := Validate(withTag); err == nil {
		t.Fatalf("expected tagged seal to fail")
	}
}

func TestValidateKind1059RequiresSinglePTagAndContent(t *testing.T) {
	e, _ := newSignedEvent(t, KindGiftWrap, Tags{{"p", "abcd"}}, "wrapped")
	if err := Validate(e); err != nil {
		t.Fatalf("expected valid gift wrap: %v", err)
	}
	twoTags, _ := newSignedEvent(t, KindGiftWrap, Tags{{"p", "abcd"}, {"p", "efgh"}}, "wrapped")
	if err := Validate(twoTags); err == nil {
		t.Fatalf("expected two p tags to fail")
	}
}

func TestValidateKind20000Geohash(t *testing.T) {
	e, _ := newSignedEvent(t, KindEphemeralGeo, Tags{{"g", "dr5regw7"}}, "")
	if err := Validate(e); err != nil {
		t.Fatalf("expected valid geo event: %v", err)
	}
	bad, _ := newSignedEvent(t, KindEphemeralGeo, Tags{{"g", "dr5aio"}}, "")
	if err := Validate(bad); err == nil {
		t.Fatalf("expected geohash with excluded letters to fail")
	}
	none, _ := newSignedEvent(t, KindEphemeralGeo, Tags{}, "")
	if err := Validate(none); err == nil {
		t.Fatalf("expected missing g tag to fail")
	}
}

func TestFilterMatch(t *testing.T) {
	e := Event{
		ID:        "abc123",
		PubKey:    "def456",
		CreatedAt: 100,
		Kind:      1,
		Tags:      Tags{{"p", "recipient1"}},
	}
	f := Filter{
		Authors: []string{"def456"},
		Kinds:   []int{1, 14},
		Since:   50,
		Until:   200,
		Tags:    map[string][]string{"p": {"recipient1"}},
	}
	if !f.Match(e) {
		t.Fatalf("expected event to match filter")
	}
	f.Tags["p"] = []string{"someoneelse"}
	if f.Match(e) {
		t.Fatalf("expected tag mismatch to reject")
	}
}

func TestNpubNsecRoundtrip(t *testing.T) {
	priv, _ := crypto.GeneratePrivateKey()
	pub, _ := crypto.DerivePublicKey(priv)

	npub, err := EncodeNpub(pub)
	if err != nil {
		t.Fatalf("encode npub: %v", err)
	}
	decodedPub, err := DecodeNpub(npub)
	if err != nil {
		t.Fatalf("decode npub: %v", err)
	}
	if EncodeHex(decodedPub) != EncodeHex(pub) {
		t.Fatalf("npub roundtrip mismatch")
	}

	nsec, err := EncodeNsec(priv)
	if err != nil {
		t.Fatalf("encode nsec: %v", err)
	}
	decodedPriv, err := DecodeNsec(nsec)
	if err != nil {
		t.Fatalf("decode nsec: %v", err)
	}
	if EncodeHex(decodedPriv) != EncodeHex(priv) {
		t.Fatalf("nsec roundtrip mismatch")
	}

	if _, err := DecodeNpub(nsec); err == nil {
		t.Fatalf("expected nsec string to be rejected by DecodeNpub")
	}
}

func TestDecodeHexRejectsUppercase(t *testing.T) {
	if _, err := DecodeHex("ABCD"); err == nil {
		t.Fatalf("expected uppercase hex to be rejected")
	}
	if _, err := DecodeHex("abc"); err == nil {
		t.Fatalf("expected odd-length hex to be rejected")
	}
}
