package session

import "strings"

// Kind is the browser engine a session drives.
type Kind string

const (
	KindChrome  Kind = "chrome"
	KindFirefox Kind = "firefox"
	KindEdge    Kind = "edge"
)

// Kinds lists the supported kinds.
var Kinds = []Kind{KindChrome, KindFirefox, KindEdge}

// Valid reports whether k is one of Kinds.
func (k Kind) Valid() bool {
	for _, s := range Kinds {
		if k == s {
			return true
		}
	}
	return false
}

// ParseKind normalizes a configured browser name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", &UnsupportedKindError{Kind: s}
	}
	return k, nil
}
