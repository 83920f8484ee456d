package nostr

import "strconv"

// Serialize produces the canonical six-element JSON array used for hashing:
// [0, pubkey, created_at, kind, tags, content]. It is written by hand
// rather than through encoding/json because the canonical form forbids the
// library's default HTML-escaping of '<', '>' and '&' and must reproduce
// byte-for-byte the same output every time for the same event.
func Serialize(e Event) []byte {
	buf := make([]byte, 0, 128+len(e.Content))
	buf = append(buf, '['...)
	buf = append(buf, '0', ',')
	buf = appendJSONString(buf, e.PubKey)
	buf = append(buf, ',')
	buf = strconv.AppendInt(buf, e.CreatedAt, 10)
	buf = append(buf, ',')
	buf = strconv.AppendInt(buf, int64(e.Kind), 10)
	buf = append(buf, ',')
	buf = appendTags(buf, e.Tags)
	buf = append(buf, ',')
	buf = appendJSONString(buf, e.Content)
	buf = append(buf, ']')
	return buf
}

func appendTags(buf []byte, tags Tags) []byte {
	buf = append(buf, '[')
	for i, tag := range tags {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, '[')
		for j, v := range tag {
			if j > 0 {
				buf = append(buf, ',')
			}
			buf = appendJSONString(buf, v)
		}
		buf = append(buf, ']')
	}
	buf = append(buf, ']')
	return buf
}

// appendJSONString appends s as a JSON string literal using the escaping
// rules NIP-01 requires: '"', '\\', and the control characters \b \f \n \r
// \t are backslash-escaped, every other control character becomes \u00XX,
// and everything else — including all non-ASCII UTF-8 — passes through
// unescaped (no HTML escaping, unlike encoding/json's default encoder).
func appendJSONString(buf []byte, s string) []byte {
	buf = append(buf, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			buf = append(buf, '\\', '"')
		case '\\':
			buf = append(buf, '\\', '\\')
		case '\n':
			buf = append(buf, '\\', 'n')
		case '\r':
			buf = append(buf, '\\', 'r')
		case '\t':
			buf = append(buf, '\\', 't')
		case '\b':
			buf = append(buf, '\\', 'b')
		case '\f':
			buf = append(buf, '\\', 'f')
		default:
			if c < 0x20 {
				const hex = "0123456789abcdef"
				buf = append(buf, '\\', 'u', '0', '0', hex[c>>4], hex[c&0xf])
			} else {
				buf = append(buf, c)
			}
		}
	}
	buf = append(buf, '"')
	return buf
}
