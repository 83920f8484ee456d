package nostr

// BuildGeohashTags returns one "g" tag per prefix of geohash, from the
// full-precision geohash down to minPrecision characters, longest first.
// Producing the geohash itself from a location is out of scope here; this
// module only treats the string as an opaque base32 value and truncates it.
//
// BuildGeohashTags("dr5regw7", 4) returns
// [["g","dr5regw7"],["g","dr5regw"],["g","dr5reg"],["g","dr5re"],["g","dr5r"]].
func BuildGeohashTags(geohash string, minPrecision int) Tags {
	if geohash == "" {
		return nil
	}
	if minPrecision < 1 {
		minPrecision = 1
	}
	if minPrecision > len(geohash) {
		minPrecision = len(geohash)
	}

	tags := make(Tags, 0, len(geohash)-minPrecision+1)
	for n := len(geohash); n >= minPrecision; n-- {
		tags = append(tags, Tag{"g", geohash[:n]})
	}
	return tags
}
