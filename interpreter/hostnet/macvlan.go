package hostnet

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"github.com/vishvananda/netlink"
	vnetns "github.com/vishvananda/netns"

	"github.com/frobware/go-nsprov"
	"github.com/frobware/go-nsprov/compute"
	"github.com/frobware/go-nsprov/interpreter"
	"github.com/frobware/go-nsprov/interpreter/store"
	"github.com/frobware/go-nsprov/netns"
)

// CreateNamespaceWithMacvlan creates the namespace and a bridge-mode
// macvlan on the source agent's control interface, moved into the
// namespace. The namespace gets ch.Addr when set, otherwise an address
// from the channel pool. When the control interface carries the source
// default route and its gateway is on the macvlan subnet, the namespace
// uses the same gateway.
func (f *Fabric) CreateNamespaceWithMacvlan(ctx context.Context, ch nsprov.MacvlanChannel) (nsprov.BridgeAddress, error) {
	srcNS, err := f.namespaceOf(ctx, ch.SourceAgent)
	if err != nil {
		return nsprov.BridgeAddress{}, err
	}

	addr, err := f.macvlanAddr(ctx, ch)
	if err != nil {
		return nsprov.BridgeAddress{}, err
	}

	record := interpreter.Channel{
		Namespace:   ch.Namespace,
		Mode:        nsprov.ConnMacvlan,
		SourceAgent: ch.SourceAgent,
		ControlIf:   ch.ControlIf.String(),
		Link:        ch.Macvlan,
		NSAddr:      addr,
	}
	if err := f.store.SaveChannel(ctx, record); err != nil {
		return nsprov.BridgeAddress{}, err
	}

	f.logger.InfoContext(ctx, "creating macvlan channel",
		"netns", ch.Namespace, "macvlan", ch.Macvlan, "ctl_if", ch.ControlIf, "addr", addr)

	if err := f.createNamespace(ctx, ch.Namespace); err != nil {
		return nsprov.BridgeAddress{}, err
	}

	var gw netip.Addr
	err = f.withHandle(ch.Namespace, func(target vnetns.NsHandle) error {
		return netns.Run(netns.Path(srcNS), func() error {
			parent, err := netlink.LinkByName(ch.ControlIf.String())
			if err != nil {
				return fmt.Errorf("find control interface %s: %w", ch.ControlIf, err)
			}
			mv := &netlink.Macvlan{
				LinkAttrs: netlink.LinkAttrs{
					Name:        ch.Macvlan,
					ParentIndex: parent.Attrs().Index,
				},
				Mode: netlink.MACVLAN_MODE_BRIDGE,
			}
			if err := netlink.LinkAdd(mv); err != nil {
				return fmt.Errorf("add macvlan %s on %s: %w", ch.Macvlan, ch.ControlIf, err)
			}
			if err := netlink.LinkSetNsFd(mv, int(target)); err != nil {
				return fmt.Errorf("move %s to %s: %w", ch.Macvlan, ch.Namespace, err)
			}
			dev, via, err := defaultRoute()
			if err != nil {
				return err
			}
			if dev == ch.ControlIf.String() && addr.Contains(via) {
				gw = via
			}
			return nil
		})
	})
	if err != nil {
		return nsprov.BridgeAddress{}, err
	}

	err = netns.Run(netns.Path(ch.Namespace), func() error {
		if err := loopbackUp(); err != nil {
			return err
		}
		if err := addrUp(ch.Macvlan, addr); err != nil {
			return err
		}
		if !gw.IsValid() {
			return nil
		}
		link, err := netlink.LinkByName(ch.Macvlan)
		if err != nil {
			return fmt.Errorf("find %s: %w", ch.Macvlan, err)
		}
		return addDefaultRoute(link, gw)
	})
	if err != nil {
		return nsprov.BridgeAddress{}, err
	}

	return nsprov.BridgeAddress{Addr: addr}, nil
}

// DestroyNamespaceWithMacvlan removes the macvlan and the namespace.
// Objects that are already gone are skipped.
func (f *Fabric) DestroyNamespaceWithMacvlan(ctx context.Context, ch nsprov.MacvlanChannel) error {
	f.logger.InfoContext(ctx, "destroying macvlan channel", "netns", ch.Namespace, "macvlan", ch.Macvlan, "ctl_if", ch.ControlIf)

	var errs []error
	if netns.Exists(ch.Namespace) {
		errs = append(errs, netns.Run(netns.Path(ch.Namespace), func() error {
			return deleteLink(ch.Macvlan)
		}))
	}
	errs = append(errs, netns.Delete(ch.Namespace))
	if err := f.store.DeleteChannel(ctx, ch.Namespace); err != nil && !errors.Is(err, store.ErrNotFound) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (f *Fabric) macvlanAddr(ctx context.Context, ch nsprov.MacvlanChannel) (netip.Prefix, error) {
	if v, ok := ch.Addr.Get(); ok {
		p, err := netip.ParsePrefix(v)
		if err != nil {
			return netip.Prefix{}, nsprov.ErrInvalidFormat{What: "macvlan address", Value: v, Err: err}
		}
		return p, nil
	}
	subnet, err := f.allocate(ctx)
	if err != nil {
		return netip.Prefix{}, err
	}
	_, ns := compute.ChannelAddrs(subnet)
	return ns, nil
}
