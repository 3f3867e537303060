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

// CreateNamespaceWithVeth creates the namespace and a veth pair. Veth1
// stays with the source agent and Veth2 moves into the namespace. Both
// ends are addressed from a channel subnet allocated out of the pool,
// the namespace routes through Veth1 and the control port arriving on
// the control interface is forwarded to the namespace.
func (f *Fabric) CreateNamespaceWithVeth(ctx context.Context, ch nsprov.VethChannel) (nsprov.BridgeAddress, error) {
	srcNS, err := f.namespaceOf(ctx, ch.SourceAgent)
	if err != nil {
		return nsprov.BridgeAddress{}, err
	}

	subnet, err := f.allocate(ctx)
	if err != nil {
		return nsprov.BridgeAddress{}, err
	}
	srcAddr, nsAddr := compute.ChannelAddrs(subnet)

	record := interpreter.Channel{
		Namespace:   ch.Namespace,
		Mode:        nsprov.ConnVeth,
		SourceAgent: ch.SourceAgent,
		ControlIf:   ch.ControlIf.String(),
		Link:        ch.Veth1,
		Peer:        ch.Veth2,
		Port:        ch.Port,
		SourceAddr:  srcAddr,
		NSAddr:      nsAddr,
	}
	// The record exists whenever any part of the channel does.
	if err := f.store.SaveChannel(ctx, record); err != nil {
		return nsprov.BridgeAddress{}, err
	}

	f.logger.InfoContext(ctx, "creating veth channel",
		"netns", ch.Namespace, "veth1", ch.Veth1, "veth2", ch.Veth2,
		"source_addr", srcAddr, "ns_addr", nsAddr, "ctl_if", ch.ControlIf)

	if err := f.createNamespace(ctx, ch.Namespace); err != nil {
		return nsprov.BridgeAddress{}, err
	}

	err = f.withHandle(ch.Namespace, func(target vnetns.NsHandle) error {
		return netns.Run(netns.Path(srcNS), func() error {
			veth := &netlink.Veth{
				LinkAttrs: netlink.LinkAttrs{Name: ch.Veth1},
				PeerName:  ch.Veth2,
			}
			if err := netlink.LinkAdd(veth); err != nil {
				return fmt.Errorf("add veth %s/%s: %w", ch.Veth1, ch.Veth2, err)
			}
			peer, err := netlink.LinkByName(ch.Veth2)
			if err != nil {
				return fmt.Errorf("find %s: %w", ch.Veth2, err)
			}
			if err := netlink.LinkSetNsFd(peer, int(target)); err != nil {
				return fmt.Errorf("move %s to %s: %w", ch.Veth2, ch.Namespace, err)
			}
			return addrUp(ch.Veth1, srcAddr)
		})
	})
	if err != nil {
		return nsprov.BridgeAddress{}, err
	}

	err = netns.Run(netns.Path(ch.Namespace), func() error {
		if err := loopbackUp(); err != nil {
			return err
		}
		if err := addrUp(ch.Veth2, nsAddr); err != nil {
			return err
		}
		link, err := netlink.LinkByName(ch.Veth2)
		if err != nil {
			return fmt.Errorf("find %s: %w", ch.Veth2, err)
		}
		return addDefaultRoute(link, srcAddr.Addr())
	})
	if err != nil {
		return nsprov.BridgeAddress{}, err
	}

	err = netns.Run(netns.Path(srcNS), func() error {
		if err := enableIPForwarding(); err != nil {
			return err
		}
		fw, err := f.newFirewall()
		if err != nil {
			return fmt.Errorf("open firewall: %w", err)
		}
		return installRules(fw, forwardRules(record))
	})
	if err != nil {
		return nsprov.BridgeAddress{}, err
	}

	return nsprov.BridgeAddress{Addr: nsAddr, Port: ch.Port}, nil
}

// DestroyNamespaceWithVeth removes the forwarding rules, the veth pair
// and the namespace. Objects that are already gone are skipped.
func (f *Fabric) DestroyNamespaceWithVeth(ctx context.Context, ch nsprov.VethChannel) error {
	record, err := f.store.GetChannel(ctx, ch.Namespace)
	switch {
	case errors.Is(err, store.ErrNotFound):
		record = interpreter.Channel{
			Namespace:   ch.Namespace,
			Mode:        nsprov.ConnVeth,
			SourceAgent: ch.SourceAgent,
			ControlIf:   ch.ControlIf.String(),
			Link:        ch.Veth1,
			Peer:        ch.Veth2,
			Port:        ch.Port,
		}
	case err != nil:
		return err
	}
	return f.destroyVeth(ctx, record)
}

func (f *Fabric) destroyVeth(ctx context.Context, record interpreter.Channel) error {
	f.logger.InfoContext(ctx, "destroying veth channel", "netns", record.Namespace, "veth1", record.Link)

	var errs []error
	srcNS, err := f.namespaceOf(ctx, record.SourceAgent)
	if err != nil {
		errs = append(errs, err)
	} else {
		err = netns.Run(netns.Path(srcNS), func() error {
			var errs []error
			if record.NSAddr.IsValid() {
				fw, err := f.newFirewall()
				if err != nil {
					errs = append(errs, fmt.Errorf("open firewall: %w", err))
				} else {
					errs = append(errs, removeRules(fw, forwardRules(record)))
				}
			}
			errs = append(errs, deleteLink(record.Link))
			return errors.Join(errs...)
		})
		errs = append(errs, err)
	}

	errs = append(errs, netns.Delete(record.Namespace))
	if err := f.store.DeleteChannel(ctx, record.Namespace); err != nil && !errors.Is(err, store.ErrNotFound) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ReleaseNamespace tears down what the fabric built for namespace once
// nothing is bound to it any more. Veth channels are destroyed with the
// namespace; macvlan channels are left to DestroyNamespaceWithMacvlan.
func (f *Fabric) ReleaseNamespace(ctx context.Context, namespace string) error {
	record, err := f.store.GetChannel(ctx, namespace)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if record.Mode != nsprov.ConnVeth {
		return nil
	}
	return f.destroyVeth(ctx, record)
}

// allocate returns a free channel subnet.
func (f *Fabric) allocate(ctx context.Context) (netip.Prefix, error) {
	channels, err := f.store.ListChannels(ctx)
	if err != nil {
		return netip.Prefix{}, err
	}
	used := make([]netip.Prefix, 0, len(channels))
	for _, c := range channels {
		if c.NSAddr.IsValid() {
			used = append(used, c.NSAddr.Masked())
		}
	}
	return compute.AllocateChannel(f.pool, f.bits, used)
}
