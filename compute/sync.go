package compute

import (
	"fmt"
	"strconv"

	"github.com/frobware/go-nsprov"
	"github.com/frobware/go-nsprov/action"
)

// DesiredInstances renders an agent's live state as volatile tree
// instances. Links and addresses keep the order of the snapshot.
func DesiredInstances(agent string, state nsprov.AgentState) []nsprov.Instance {
	out := []nsprov.Instance{
		{OID: nsprov.AgentOID(agent), Volatile: true},
	}
	if state.DefaultRouteIf != "" {
		out = append(out, nsprov.Instance{OID: nsprov.DefaultRouteIfOID(agent), Value: state.DefaultRouteIf, Volatile: true})
	}
	for _, link := range state.Links {
		out = append(out,
			nsprov.Instance{OID: nsprov.InterfaceOID(agent, link.Name), Value: strconv.Itoa(link.Index), Volatile: true},
			nsprov.Instance{OID: nsprov.InterfaceStatusOID(agent, link.Name), Value: statusValue(link.Up), Volatile: true},
		)
		for _, addr := range link.Addrs {
			out = append(out, nsprov.Instance{
				OID:      nsprov.NetAddrOID(agent, link.Name, addr.Addr().String()),
				Value:    strconv.Itoa(addr.Bits()),
				Volatile: true,
			})
		}
	}
	for _, r := range state.Routes {
		lr := nsprov.LocalRoute{Addr: r.Dst.Addr(), Prefix: r.Dst.Bits()}
		out = append(out, nsprov.Instance{
			OID:      nsprov.RouteOID(agent, lr),
			Value:    fmt.Sprintf("via %s dev %s", r.Gateway, r.Dev),
			Volatile: true,
		})
	}
	return out
}

// SyncActions computes the actions that turn the current volatile
// instances into desired. Persistent instances in current are never
// touched. Stale instances are deleted first, then every desired
// instance that is new or changed is written.
func SyncActions(current, desired []nsprov.Instance) []action.Action {
	want := make(map[string]nsprov.Instance, len(desired))
	for _, d := range desired {
		want[d.OID] = d
	}
	have := make(map[string]nsprov.Instance, len(current))
	for _, c := range current {
		have[c.OID] = c
	}

	var actions []action.Action
	for _, c := range current {
		if !c.Volatile {
			continue
		}
		if _, ok := want[c.OID]; !ok {
			actions = append(actions, action.DeleteInstance{OID: c.OID})
		}
	}
	for _, d := range desired {
		if c, ok := have[d.OID]; ok && c == d {
			continue
		}
		actions = append(actions, action.PutInstance{Instance: d})
	}
	return actions
}

// StatusUp reports whether a status instance value means "up".
func StatusUp(value string) (bool, error) {
	switch value {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, nsprov.ErrInvalidFormat{What: "interface status", Value: value}
	}
}

func statusValue(up bool) string {
	if up {
		return "1"
	}
	return "0"
}
