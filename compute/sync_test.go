package compute_test

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-nsprov"
	"github.com/frobware/go-nsprov/action"
	"github.com/frobware/go-nsprov/compute"
)

func TestDesiredInstances(t *testing.T) {
	state := nsprov.AgentState{
		DefaultRouteIf: "eth0",
		Links: []nsprov.LinkState{
			{Name: "veth1", Index: 7, Up: true, Addrs: []netip.Prefix{
				netip.MustParsePrefix("fe80::1/64"),
				netip.MustParsePrefix("10.254.0.1/30"),
			}},
		},
		Routes: []nsprov.Route{{
			Dst:     netip.MustParsePrefix("10.0.0.0/24"),
			Gateway: netip.MustParseAddr("10.254.0.1"),
			Dev:     "veth2",
		}},
	}

	got := compute.DesiredInstances("Agt_A", state)

	oids := make([]string, len(got))
	for i, inst := range got {
		oids[i] = inst.OID
		assert.True(t, inst.Volatile, "%s should be volatile", inst.OID)
	}
	assert.Equal(t, []string{
		"/agent:Agt_A",
		"/agent:Agt_A/ip4_rt_default_if:",
		"/agent:Agt_A/interface:veth1",
		"/agent:Agt_A/interface:veth1/status:",
		"/agent:Agt_A/interface:veth1/net_addr:fe80::1",
		"/agent:Agt_A/interface:veth1/net_addr:10.254.0.1",
		"/agent:Agt_A/route:10.0.0.0|24",
	}, oids)
	assert.Equal(t, "eth0", got[1].Value)
	assert.Equal(t, "1", got[3].Value)
	assert.Equal(t, "30", got[5].Value)
	assert.Equal(t, "via 10.254.0.1 dev veth2", got[6].Value)
}

func TestSyncActions(t *testing.T) {
	current := []nsprov.Instance{
		{OID: "/agent:A", Volatile: true},
		{OID: "/agent:A/interface:eth1", Value: "3", Volatile: true},
		{OID: "/agent:A/interface:eth2", Value: "4", Volatile: true},
		{OID: "/agent:A/rpcprovider:", Value: "A"},
	}
	desired := []nsprov.Instance{
		{OID: "/agent:A", Volatile: true},
		{OID: "/agent:A/interface:eth1", Value: "9", Volatile: true},
		{OID: "/agent:A/interface:eth3", Value: "5", Volatile: true},
	}

	actions := compute.SyncActions(current, desired)
	require.Len(t, actions, 3)
	assert.Equal(t, action.DeleteInstance{OID: "/agent:A/interface:eth2"}, actions[0])
	assert.Equal(t, action.PutInstance{Instance: desired[1]}, actions[1])
	assert.Equal(t, action.PutInstance{Instance: desired[2]}, actions[2])
}

func TestSyncActions_NoChange(t *testing.T) {
	same := []nsprov.Instance{{OID: "/agent:A", Volatile: true}}
	assert.Empty(t, compute.SyncActions(same, same))
}

func TestStatusUp(t *testing.T) {
	up, err := compute.StatusUp("1")
	require.NoError(t, err)
	assert.True(t, up)

	up, err = compute.StatusUp("0")
	require.NoError(t, err)
	assert.False(t, up)

	_, err = compute.StatusUp("up")
	assert.Error(t, err)
}
