package clientip

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRealClientIP(t *testing.T) {
	cases := map[string]string{
		"203.0.113.7:5555":        "203.0.113.7",
		"203.0.113.7":             "203.0.113.7",
		"[::ffff:203.0.113.7]:80": "203.0.113.7",
		"[2001:db8::1]:443":       "2001:db8::1",
		" not-an-ip ":             "not-an-ip",
	}
	for addr, want := range cases {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = addr
		assert.Equal(t, want, RealClientIP(r), addr)
	}
}
