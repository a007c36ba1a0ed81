package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JeanGrijp/sliding-rate-limiter/internal/core/domain"
)

func TestResolveIdentifier(t *testing.T) {
	cases := []struct {
		name    string
		meta    domain.RequestMetadata
		subject string
		want    string
	}{
		{"subject wins over address", domain.RequestMetadata{ForwardedFor: "1.2.3.4"}, "u1", "user:u1"},
		{"subject from another address", domain.RequestMetadata{RealIP: "5.6.7.8"}, "u1", "user:u1"},
		{"blank subject is ignored", domain.RequestMetadata{RealIP: "5.6.7.8"}, "  ", "ip:5.6.7.8"},
		{"first forwarded address", domain.RequestMetadata{ForwardedFor: "1.2.3.4, 10.0.0.1, 10.0.0.2", RealIP: "9.9.9.9"}, "", "ip:1.2.3.4"},
		{"forwarded address is trimmed", domain.RequestMetadata{ForwardedFor: "  1.2.3.4 "}, "", "ip:1.2.3.4"},
		{"empty first forwarded entry falls back to real ip", domain.RequestMetadata{ForwardedFor: " , 10.0.0.1", RealIP: "9.9.9.9"}, "", "ip:9.9.9.9"},
		{"real ip", domain.RequestMetadata{RealIP: "9.9.9.9"}, "", "ip:9.9.9.9"},
		{"nothing resolvable", domain.RequestMetadata{}, "", "ip:unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ResolveIdentifier(tc.meta, tc.subject))
		})
	}
}

func TestResolveIdentifier_DistinctAddressesGetDistinctKeys(t *testing.T) {
	a := ResolveIdentifier(domain.RequestMetadata{ForwardedFor: "1.2.3.4"}, "")
	b := ResolveIdentifier(domain.RequestMetadata{ForwardedFor: "5.6.7.8"}, "")

	assert.Equal(t, "ip:1.2.3.4", a)
	assert.Equal(t, "ip:5.6.7.8", b)
	assert.NotEqual(t, a, b)
}
