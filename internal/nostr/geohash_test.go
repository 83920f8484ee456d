package nostr

import "testing"

// TestBuildGeohashTagsOrder checks the longest-prefix-first tag ordering.
func TestBuildGeohashTagsOrder(t *testing.T) {
	got := BuildGeohashTags("dr5regw7", 4)
	want := Tags{
		{"g", "dr5regw7"},
		{"g", "dr5regw"},
		{"g", "dr5reg"},
		{"g", "dr5re"},
		{"g", "dr5r"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d tags, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if len(got[i]) != 2 || got[i][0] != want[i][0] || got[i][1] != want[i][1] {
			t.Fatalf("tag %d: want %v, got %v", i, want[i], got[i])
		}
	}
}

func TestBuildGeohashTagsClampsPrecision(t *testing.T) {
	got := BuildGeohashTags("dr", 4)
	if len(got) != 1 || got[0][1] != "dr" {
		t.Fatalf("expected single tag at full precision when minPrecision exceeds length, got %v", got)
	}
}

func TestBuildGeohashTagsEmptyInput(t *testing.T) {
	if got := BuildGeohashTags("", 4); got != nil {
		t.Fatalf("expected nil tags for empty geohash, got %v", got)
	}
}
