package hostnet

import (
	"cmp"
	"context"
	"fmt"
	"net"
	"slices"

	"github.com/vishvananda/netlink"

	"github.com/frobware/go-nsprov"
)

// Snapshot returns the live interfaces, addresses and routes in the
// namespace of agent. Links are ordered by index.
func (f *Fabric) Snapshot(ctx context.Context, agent string) (nsprov.AgentState, error) {
	var state nsprov.AgentState
	err := f.inAgent(ctx, agent, func() error {
		links, err := netlink.LinkList()
		if err != nil {
			return fmt.Errorf("list links: %w", err)
		}
		names := make(map[int]string, len(links))
		for _, link := range links {
			attrs := link.Attrs()
			names[attrs.Index] = attrs.Name
			ls := nsprov.LinkState{
				Name:  attrs.Name,
				Index: attrs.Index,
				Up:    attrs.Flags&net.FlagUp != 0,
			}
			addrs, err := netlink.AddrList(link, netlink.FAMILY_ALL)
			if err != nil {
				return fmt.Errorf("list addresses of %s: %w", attrs.Name, err)
			}
			for _, a := range addrs {
				if p := prefixOf(a.IPNet); p.IsValid() {
					ls.Addrs = append(ls.Addrs, p)
				}
			}
			state.Links = append(state.Links, ls)
		}
		slices.SortFunc(state.Links, func(a, b nsprov.LinkState) int {
			return cmp.Compare(a.Index, b.Index)
		})

		routes, err := netlink.RouteList(nil, netlink.FAMILY_V4)
		if err != nil {
			return fmt.Errorf("list routes: %w", err)
		}
		for _, r := range routes {
			if isDefault(r.Dst) {
				if state.DefaultRouteIf == "" {
					state.DefaultRouteIf = names[r.LinkIndex]
				}
				continue
			}
			// Only gateway routes are configuration; connected routes
			// follow from the addresses.
			if r.Gw == nil {
				continue
			}
			state.Routes = append(state.Routes, nsprov.Route{
				Dst:     prefixOf(r.Dst),
				Gateway: addrOf(r.Gw),
				Dev:     names[r.LinkIndex],
			})
		}
		return nil
	})
	return state, err
}
