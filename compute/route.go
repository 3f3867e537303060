// Package compute contains pure functions for business logic.
// Functions in this package perform no I/O - they transform data into
// values and actions.
package compute

import (
	"net/netip"
	"strconv"
	"strings"

	"github.com/frobware/go-nsprov"
)

// ParseLocalRoute parses "address/prefix". A missing separator is
// ErrInvalidFormat; a malformed address or prefix length is reported
// with the underlying parse error.
func ParseLocalRoute(s string) (nsprov.LocalRoute, error) {
	addrStr, prefixStr, ok := strings.Cut(s, "/")
	if !ok {
		return nsprov.LocalRoute{}, nsprov.ErrInvalidFormat{What: "local network", Value: s}
	}

	addr, err := netip.ParseAddr(addrStr)
	if err != nil {
		return nsprov.LocalRoute{}, nsprov.ErrInvalidFormat{What: "local network address", Value: addrStr, Err: err}
	}

	prefix, err := strconv.Atoi(prefixStr)
	if err != nil {
		return nsprov.LocalRoute{}, nsprov.ErrInvalidFormat{What: "local network prefix", Value: prefixStr, Err: err}
	}
	if prefix < 0 || prefix > addr.BitLen() {
		return nsprov.LocalRoute{}, nsprov.ErrInvalidFormat{What: "local network prefix", Value: prefixStr, Err: strconv.ErrRange}
	}

	return nsprov.LocalRoute{Addr: addr, Prefix: prefix}, nil
}

// SelectGateway returns the first candidate without a colon, i.e. the
// first IPv4 address. ok is false when there is none.
func SelectGateway(candidates []string) (gateway string, ok bool) {
	for _, c := range candidates {
		if !strings.Contains(c, ":") {
			return c, true
		}
	}
	return "", false
}
