package compute_test

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-nsprov/compute"
)

func TestAllocateChannel(t *testing.T) {
	pool := netip.MustParsePrefix("10.254.0.0/16")

	got, err := compute.AllocateChannel(pool, 30, nil)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParsePrefix("10.254.0.0/30"), got)

	used := []netip.Prefix{
		netip.MustParsePrefix("10.254.0.0/30"),
		netip.MustParsePrefix("10.254.0.5/30"),
	}
	got, err = compute.AllocateChannel(pool, 30, used)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParsePrefix("10.254.0.8/30"), got)
}

func TestAllocateChannel_Exhausted(t *testing.T) {
	pool := netip.MustParsePrefix("10.254.0.0/29")
	used := []netip.Prefix{netip.MustParsePrefix("10.254.0.0/29")}

	_, err := compute.AllocateChannel(pool, 30, used)
	assert.Error(t, err)
}

func TestAllocateChannel_RejectsBadShapes(t *testing.T) {
	_, err := compute.AllocateChannel(netip.MustParsePrefix("10.254.0.0/24"), 16, nil)
	assert.Error(t, err, "channel larger than pool")

	_, err = compute.AllocateChannel(netip.MustParsePrefix("fd00::/64"), 126, nil)
	assert.Error(t, err, "IPv6 pool")
}

func TestChannelAddrs(t *testing.T) {
	src, ns := compute.ChannelAddrs(netip.MustParsePrefix("10.254.0.8/30"))
	assert.Equal(t, netip.MustParsePrefix("10.254.0.9/30"), src)
	assert.Equal(t, netip.MustParsePrefix("10.254.0.10/30"), ns)
}
