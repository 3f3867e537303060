package hostnet

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"github.com/vishvananda/netlink"
	vnetns "github.com/vishvananda/netns"
	"golang.org/x/sys/unix"

	"github.com/frobware/go-nsprov"
	"github.com/frobware/go-nsprov/netns"
)

// MoveInterface moves ifname from the namespace of agent from into the
// namespace of agent to and brings it up there.
func (f *Fabric) MoveInterface(ctx context.Context, from, to, ifname string) error {
	toNS, err := f.namespaceOf(ctx, to)
	if err != nil {
		return err
	}
	f.logger.InfoContext(ctx, "moving interface", "ifname", ifname, "from", from, "to", to)

	err = f.withHandle(toNS, func(target vnetns.NsHandle) error {
		return f.inAgent(ctx, from, func() error {
			link, err := netlink.LinkByName(ifname)
			if err != nil {
				return fmt.Errorf("find %s: %w", ifname, err)
			}
			if err := netlink.LinkSetNsFd(link, int(target)); err != nil {
				return fmt.Errorf("move %s: %w", ifname, err)
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	return netns.Run(netns.Path(toNS), func() error {
		return setUp(ifname, true)
	})
}

// AddRoute installs r in the namespace of agent.
func (f *Fabric) AddRoute(ctx context.Context, agent string, r nsprov.Route) error {
	f.logger.InfoContext(ctx, "adding route", "agent", agent, "route", r)
	return f.inAgent(ctx, agent, func() error {
		nr, err := netlinkRoute(r)
		if err != nil {
			return err
		}
		if err := netlink.RouteAdd(nr); err != nil {
			return fmt.Errorf("add route %s: %w", r, err)
		}
		return nil
	})
}

// DeleteRoute removes r from the namespace of agent. A missing route is
// not an error.
func (f *Fabric) DeleteRoute(ctx context.Context, agent string, r nsprov.Route) error {
	f.logger.InfoContext(ctx, "deleting route", "agent", agent, "route", r)
	return f.inAgent(ctx, agent, func() error {
		nr, err := netlinkRoute(r)
		if errors.As(err, new(netlink.LinkNotFoundError)) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := netlink.RouteDel(nr); err != nil && !errors.Is(err, unix.ESRCH) {
			return fmt.Errorf("delete route %s: %w", r, err)
		}
		return nil
	})
}

// SetLinkUp sets the administrative state of ifname in the namespace of
// agent.
func (f *Fabric) SetLinkUp(ctx context.Context, agent, ifname string, up bool) error {
	return f.inAgent(ctx, agent, func() error {
		return setUp(ifname, up)
	})
}

// AddAddress assigns addr to ifname in the namespace of agent.
func (f *Fabric) AddAddress(ctx context.Context, agent, ifname string, addr netip.Prefix) error {
	return f.inAgent(ctx, agent, func() error {
		link, err := netlink.LinkByName(ifname)
		if err != nil {
			return fmt.Errorf("find %s: %w", ifname, err)
		}
		if err := netlink.AddrAdd(link, &netlink.Addr{IPNet: ipNet(addr)}); err != nil && !errors.Is(err, unix.EEXIST) {
			return fmt.Errorf("add address %s to %s: %w", addr, ifname, err)
		}
		return nil
	})
}

// DeleteAddress removes addr from ifname in the namespace of agent.
func (f *Fabric) DeleteAddress(ctx context.Context, agent, ifname string, addr netip.Prefix) error {
	return f.inAgent(ctx, agent, func() error {
		link, err := netlink.LinkByName(ifname)
		if err != nil {
			return fmt.Errorf("find %s: %w", ifname, err)
		}
		if err := netlink.AddrDel(link, &netlink.Addr{IPNet: ipNet(addr)}); err != nil && !errors.Is(err, unix.EADDRNOTAVAIL) {
			return fmt.Errorf("delete address %s from %s: %w", addr, ifname, err)
		}
		return nil
	})
}

// DefaultRouteInterface returns the interface carrying the IPv4 default
// route in the namespace of agent.
func (f *Fabric) DefaultRouteInterface(ctx context.Context, agent string) (string, error) {
	var name string
	err := f.inAgent(ctx, agent, func() error {
		var err error
		name, _, err = defaultRoute()
		return err
	})
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", nsprov.ErrNotFound{What: "default route", Name: agent}
	}
	return name, nil
}

// defaultRoute returns the device and gateway of the first IPv4
// default route in the calling thread's namespace.
func defaultRoute() (string, netip.Addr, error) {
	routes, err := netlink.RouteList(nil, netlink.FAMILY_V4)
	if err != nil {
		return "", netip.Addr{}, fmt.Errorf("list routes: %w", err)
	}
	for _, r := range routes {
		if !isDefault(r.Dst) || r.LinkIndex == 0 {
			continue
		}
		link, err := netlink.LinkByIndex(r.LinkIndex)
		if err != nil {
			return "", netip.Addr{}, fmt.Errorf("find link %d: %w", r.LinkIndex, err)
		}
		return link.Attrs().Name, addrOf(r.Gw), nil
	}
	return "", netip.Addr{}, nil
}

func netlinkRoute(r nsprov.Route) (*netlink.Route, error) {
	link, err := netlink.LinkByName(r.Dev)
	if err != nil {
		return nil, err
	}
	nr := &netlink.Route{
		LinkIndex: link.Attrs().Index,
		Dst:       ipNet(r.Dst.Masked()),
	}
	if r.Gateway.IsValid() {
		nr.Gw = r.Gateway.AsSlice()
	}
	return nr, nil
}

func setUp(ifname string, up bool) error {
	link, err := netlink.LinkByName(ifname)
	if err != nil {
		return fmt.Errorf("find %s: %w", ifname, err)
	}
	if up {
		err = netlink.LinkSetUp(link)
	} else {
		err = netlink.LinkSetDown(link)
	}
	if err != nil {
		return fmt.Errorf("set %s up=%t: %w", ifname, up, err)
	}
	return nil
}

func addrUp(ifname string, addr netip.Prefix) error {
	link, err := netlink.LinkByName(ifname)
	if err != nil {
		return fmt.Errorf("find %s: %w", ifname, err)
	}
	if err := netlink.AddrAdd(link, &netlink.Addr{IPNet: ipNet(addr)}); err != nil {
		return fmt.Errorf("add address %s to %s: %w", addr, ifname, err)
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("set %s up: %w", ifname, err)
	}
	return nil
}

func loopbackUp() error {
	return setUp("lo", true)
}

func addDefaultRoute(link netlink.Link, gw netip.Addr) error {
	r := &netlink.Route{
		LinkIndex: link.Attrs().Index,
		Gw:        gw.AsSlice(),
	}
	if err := netlink.RouteAdd(r); err != nil {
		return fmt.Errorf("add default route via %s: %w", gw, err)
	}
	return nil
}

// deleteLink removes ifname from the calling thread's namespace. A
// missing link is not an error.
func deleteLink(ifname string) error {
	link, err := netlink.LinkByName(ifname)
	if errors.As(err, new(netlink.LinkNotFoundError)) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find %s: %w", ifname, err)
	}
	if err := netlink.LinkDel(link); err != nil {
		return fmt.Errorf("delete %s: %w", ifname, err)
	}
	return nil
}
