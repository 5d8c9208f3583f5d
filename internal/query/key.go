package query

import "strings"

// Key identifies a cache entry as ordered segments, e.g. {"tasks", "detail", "42"}.
// A key is a prefix of every key that starts with the same segments.
type Key []string

func (k Key) String() string { return strings.Join(k, "/") }

// HasPrefix reports whether k starts with every segment of prefix. The empty
// prefix matches everything.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i, seg := range prefix {
		if k[i] != seg {
			return false
		}
	}
	return true
}

// Endpoint is the metrics label for k: its first two segments.
func (k Key) Endpoint() string {
	if len(k) > 2 {
		return Key(k[:2]).String()
	}
	return k.String()
}

func (k Key) clone() Key { return append(Key(nil), k...) }
