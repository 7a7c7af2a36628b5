package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseClientID(t *testing.T) {
	tests := []struct {
		name string
		addr string
		want ClientID
	}{
		{"loopback", "127.0.0.1", 0x7F000001},
		{"with port", "192.168.1.10:52114", 0xC0A8010A},
		{"broadcast", "255.255.255.255", 0xFFFFFFFF},
		{"malformed", "127.0.XXX.XXX", InvalidClientID},
		{"empty", "", InvalidClientID},
		{"ipv6", "[::1]:8080", InvalidClientID},
		{"ipv4 mapped ipv6", "[::ffff:10.0.0.7]:80", 0x0A000007},
		{"embedded in text", "client=10.1.2.3;", 0x0A010203},
		{"octet out of range", "10.0.0.256", InvalidClientID},
		{"first match wins", "10.0.0.1 10.0.0.2", 0x0A000001},
		{"too many digits", "1234.1.1.1", InvalidClientID},
		{"too many digits then valid", "1234.1.1.1 8.8.8.8", 0x08080808},
		{"preceded by word char", "a1.2.3.4", InvalidClientID},
		{"followed by word char", "1.2.3.4a", InvalidClientID},
		{"five groups", "1.2.3.4.5", 0x01020304},
		{"leading zeros", "010.001.000.009", 0x0A010009},
		{"zero address", "0.0.0.0", InvalidClientID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseClientID(tt.addr))
		})
	}
}

func TestClientID_String(t *testing.T) {
	assert.Equal(t, "127.0.0.1", ClientID(0x7F000001).String())
	assert.Equal(t, "0.0.0.0", InvalidClientID.String())

	id := ParseClientID("203.0.113.9:443")
	assert.Equal(t, "203.0.113.9", id.String())
	assert.Equal(t, id, ParseClientID(id.String()))
}
