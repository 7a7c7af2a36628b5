package ratelimit

import "fmt"

// ClientID is a compact identity for a client, derived from its IPv4 address
// with the octets packed most-significant first.
type ClientID uint32

// InvalidClientID is returned by ParseClientID when no identity can be
// derived. It must never be passed to a Limiter. The address 0.0.0.0 also maps
// to this value and therefore cannot be rate limited.
const InvalidClientID ClientID = 0

// String returns the dotted-quad form of the identity.
func (id ClientID) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", byte(id>>24), byte(id>>16), byte(id>>8), byte(id))
}

// ParseClientID derives a ClientID from a textual network address such as
// "192.168.1.10" or "192.168.1.10:52114". The first dotted-quad in addr is
// used: four groups of one to three digits separated by dots and delimited by
// non-word characters. If there is no such group, or any octet is above 255,
// InvalidClientID is returned.
func ParseClientID(addr string) ClientID {
	for i := 0; i < len(addr); i++ {
		if !isDigit(addr[i]) || (i > 0 && isWordChar(addr[i-1])) {
			continue
		}
		octets, ok := matchQuad(addr[i:])
		if !ok {
			continue
		}

		var id ClientID
		for _, o := range octets {
			if o > 255 {
				return InvalidClientID
			}
			id = id<<8 | ClientID(o)
		}
		return id
	}
	return InvalidClientID
}

// matchQuad matches four dot-separated digit groups at the start of s. The
// last group must be followed by a non-word character or the end of s.
func matchQuad(s string) ([4]int, bool) {
	var octets [4]int
	pos := 0
	for g := 0; g < 4; g++ {
		start := pos
		value := 0
		for pos < len(s) && isDigit(s[pos]) {
			value = value*10 + int(s[pos]-'0')
			pos++
			if pos-start > 3 {
				return octets, false
			}
		}
		if pos == start {
			return octets, false
		}
		octets[g] = value

		if g < 3 {
			if pos >= len(s) || s[pos] != '.' {
				return octets, false
			}
			pos++
			continue
		}
		if pos < len(s) && isWordChar(s[pos]) {
			return octets, false
		}
	}
	return octets, true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isWordChar(c byte) bool {
	return isDigit(c) || c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
