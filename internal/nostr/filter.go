package nostr

// Filter is a relay subscription filter (NIP-01 REQ semantics): an event
// matches when every populated field constrains it and it passes, and an
// empty slice/zero field imposes no constraint.
type Filter struct {
	IDs     []string
	Authors []string
	Kinds   []int
	Since   int64
	Until   int64
	Limit   int
	Tags    map[string][]string // single-letter tag name -> accepted values
}

// Match reports whether e satisfies every populated constraint in f.
func (f Filter) Match(e Event) bool {
	if len(f.IDs) > 0 && !containsStr(f.IDs, e.ID) {
		return false
	}
	if len(f.Authors) > 0 && !containsStr(f.Authors, e.PubKey) {
		return false
	}
	if len(f.Kinds) > 0 && !containsInt(f.Kinds, e.Kind) {
		return false
	}
	if f.Since != 0 && e.CreatedAt < f.Since {
		return false
	}
	if f.Until != 0 && e.CreatedAt > f.Until {
		return false
	}
	for name, accepted := range f.Tags {
		if len(accepted) == 0 {
			continue
		}
		matched := false
		for _, tag := range e.Tags.All(name) {
			if len(tag) > 1 && containsStr(accepted, tag[1]) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func containsStr(haystack []string, needle string) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}

func containsInt(haystack []int, needle int) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}
