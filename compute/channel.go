package compute

import (
	"fmt"
	"net/netip"
)

// AllocateChannel returns the first subnet of length bits inside pool
// that does not overlap any subnet in used.
func AllocateChannel(pool netip.Prefix, bits int, used []netip.Prefix) (netip.Prefix, error) {
	pool = pool.Masked()
	if !pool.Addr().Is4() {
		return netip.Prefix{}, fmt.Errorf("channel pool %s: only IPv4 pools are supported", pool)
	}
	if bits < pool.Bits() || bits > 30 {
		return netip.Prefix{}, fmt.Errorf("channel prefix /%d does not fit pool %s", bits, pool)
	}

	step := uint32(1) << (32 - bits)
	count := uint32(1) << (bits - pool.Bits())
	base := addrToUint32(pool.Addr())

	for i := uint32(0); i < count; i++ {
		candidate := netip.PrefixFrom(uint32ToAddr(base+i*step), bits)
		if !overlapsAny(candidate, used) {
			return candidate, nil
		}
	}
	return netip.Prefix{}, fmt.Errorf("channel pool %s exhausted", pool)
}

// ChannelAddrs returns the source-side and namespace-side host
// addresses of a channel subnet: the first and second usable addresses.
func ChannelAddrs(subnet netip.Prefix) (source, ns netip.Prefix) {
	first := subnet.Masked().Addr().Next()
	return netip.PrefixFrom(first, subnet.Bits()), netip.PrefixFrom(first.Next(), subnet.Bits())
}

func overlapsAny(p netip.Prefix, used []netip.Prefix) bool {
	for _, u := range used {
		if p.Overlaps(u) {
			return true
		}
	}
	return false
}

func addrToUint32(a netip.Addr) uint32 {
	b := a.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func uint32ToAddr(n uint32) netip.Addr {
	return netip.AddrFrom4([4]byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)})
}
