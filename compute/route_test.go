package compute_test

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-nsprov"
	"github.com/frobware/go-nsprov/compute"
)

func TestParseLocalRoute(t *testing.T) {
	r, err := compute.ParseLocalRoute("10.0.0.0/24")
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("10.0.0.0"), r.Addr)
	assert.Equal(t, 24, r.Prefix)
	assert.Equal(t, netip.MustParsePrefix("10.0.0.0/24"), r.Dst())
}

func TestParseLocalRoute_NoSeparatorIsInvalidFormat(t *testing.T) {
	_, err := compute.ParseLocalRoute("10.0.0.0")

	var invalid nsprov.ErrInvalidFormat
	require.True(t, errors.As(err, &invalid), "expected ErrInvalidFormat, got %v", err)
	assert.Equal(t, "10.0.0.0", invalid.Value)
}

func TestParseLocalRoute_Malformed(t *testing.T) {
	for _, in := range []string{"10.0.0/24", "not-an-address/24", "10.0.0.0/x", "10.0.0.0/33", "10.0.0.0/-1", "/24"} {
		_, err := compute.ParseLocalRoute(in)
		assert.Error(t, err, "ParseLocalRoute(%q)", in)
	}
}

func TestParseLocalRoute_Unmasked(t *testing.T) {
	r, err := compute.ParseLocalRoute("192.168.7.9/16")
	require.NoError(t, err)
	assert.Equal(t, netip.MustParsePrefix("192.168.0.0/16"), r.Dst())
}

func TestSelectGateway(t *testing.T) {
	gw, ok := compute.SelectGateway([]string{"fe80::1", "10.0.0.2"})
	require.True(t, ok)
	assert.Equal(t, "10.0.0.2", gw)

	gw, ok = compute.SelectGateway([]string{"10.0.0.1", "10.0.0.2"})
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1", gw, "first IPv4 candidate wins")

	_, ok = compute.SelectGateway([]string{"fe80::1", "2001:db8::1"})
	assert.False(t, ok)

	_, ok = compute.SelectGateway(nil)
	assert.False(t, ok)
}
