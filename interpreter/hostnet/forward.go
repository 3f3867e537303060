package hostnet

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/frobware/go-nsprov/interpreter"
)

// ipForwardPath is resolved against the network namespace of the
// thread that opens it.
const ipForwardPath = "/proc/sys/net/ipv4/ip_forward"

type rule struct {
	table string
	chain string
	spec  []string
}

// forwardRules returns the rules that expose the control port of a veth
// channel on its control interface and let the channel subnet reach the
// outside world.
func forwardRules(ch interpreter.Channel) []rule {
	subnet := ch.NSAddr.Masked().String()
	port := strconv.Itoa(int(ch.Port))
	return []rule{
		{"nat", "PREROUTING", []string{
			"-i", ch.ControlIf, "-p", "tcp", "--dport", port,
			"-j", "DNAT", "--to-destination", ch.NSAddr.Addr().String() + ":" + port,
		}},
		{"nat", "POSTROUTING", []string{"-s", subnet, "-j", "MASQUERADE"}},
		{"filter", "FORWARD", []string{"-s", subnet, "-j", "ACCEPT"}},
		{"filter", "FORWARD", []string{"-d", subnet, "-m", "state", "--state", "RELATED,ESTABLISHED", "-j", "ACCEPT"}},
	}
}

func installRules(fw Firewall, rules []rule) error {
	for _, r := range rules {
		if err := fw.AppendUnique(r.table, r.chain, r.spec...); err != nil {
			return fmt.Errorf("append %s/%s rule: %w", r.table, r.chain, err)
		}
	}
	return nil
}

// removeRules deletes rules in reverse order, attempting every rule.
func removeRules(fw Firewall, rules []rule) error {
	var errs []error
	for i := len(rules) - 1; i >= 0; i-- {
		r := rules[i]
		if err := fw.DeleteIfExists(r.table, r.chain, r.spec...); err != nil {
			errs = append(errs, fmt.Errorf("delete %s/%s rule: %w", r.table, r.chain, err))
		}
	}
	return errors.Join(errs...)
}

func enableIPForwarding() error {
	if err := os.WriteFile(ipForwardPath, []byte("1\n"), 0644); err != nil {
		return fmt.Errorf("enable ip forwarding: %w", err)
	}
	return nil
}
