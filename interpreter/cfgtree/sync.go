package cfgtree

import (
	"context"
	"errors"
	"fmt"

	"github.com/frobware/go-nsprov"
	"github.com/frobware/go-nsprov/compute"
	"github.com/frobware/go-nsprov/interpreter"
	"github.com/frobware/go-nsprov/interpreter/store"
)

// Synchronize refreshes the volatile instances under oid from live
// state. The root synchronizes every registered agent and drops the
// subtrees of agents that are no longer registered; any OID inside an
// agent subtree synchronizes that whole agent.
func (t *Tree) Synchronize(ctx context.Context, oid string) error {
	if nsprov.IsRoot(oid) {
		return t.syncAll(ctx)
	}
	agent := nsprov.AgentOf(oid)
	if agent == "" {
		return nil
	}
	_, err := t.store.GetAgent(ctx, agent)
	if errors.Is(err, store.ErrNotFound) {
		t.logger.DebugContext(ctx, "dropping subtree of unregistered agent", "agent", agent)
		return t.store.DeleteSubtree(ctx, nsprov.AgentOID(agent))
	}
	if err != nil {
		return err
	}
	return t.syncAgent(ctx, agent)
}

func (t *Tree) syncAll(ctx context.Context) error {
	agents, err := t.store.ListAgents(ctx)
	if err != nil {
		return err
	}
	registered := make(map[string]bool, len(agents))
	for _, a := range agents {
		registered[a.Name] = true
		if err := t.syncAgent(ctx, a.Name); err != nil {
			return err
		}
	}

	insts, err := t.store.ListInstances(ctx, nsprov.RootOID)
	if err != nil {
		return err
	}
	stale := make(map[string]bool)
	for _, inst := range insts {
		if agent := nsprov.AgentOf(inst.OID); agent != "" && !registered[agent] {
			stale[agent] = true
		}
	}
	for agent := range stale {
		t.logger.DebugContext(ctx, "dropping subtree of unregistered agent", "agent", agent)
		if err := t.store.DeleteSubtree(ctx, nsprov.AgentOID(agent)); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) syncAgent(ctx context.Context, agent string) error {
	state, err := t.live.Snapshot(ctx, agent)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", agent, err)
	}
	desired := compute.DesiredInstances(agent, state)

	return t.store.RunInTransaction(ctx, func(tx interpreter.Store) error {
		current, err := tx.ListInstances(ctx, nsprov.AgentOID(agent))
		if err != nil {
			return err
		}
		actions := compute.SyncActions(current, desired)
		t.logger.DebugContext(ctx, "synchronizing agent", "agent", agent, "actions", len(actions))
		return interpreter.NewExecutor(interpreter.ExecutorDeps{Instances: tx}).ExecuteAll(ctx, actions)
	})
}

// syncingNetwork resynchronizes the agents a network operation touched.
type syncingNetwork struct {
	interpreter.NetworkOperations
	tree interpreter.ConfigWriter
}

// SyncingNetwork wraps ops so that the tree follows every change it
// makes: moves refresh both agents, routes refresh their agent and
// namespace changes refresh the source agent.
func SyncingNetwork(ops interpreter.NetworkOperations, tree interpreter.ConfigWriter) interpreter.NetworkOperations {
	return &syncingNetwork{NetworkOperations: ops, tree: tree}
}

func (s *syncingNetwork) sync(ctx context.Context, agents ...string) error {
	for _, agent := range agents {
		if err := s.tree.Synchronize(ctx, nsprov.AgentOID(agent)); err != nil {
			return err
		}
	}
	return nil
}

func (s *syncingNetwork) CreateNamespaceWithMacvlan(ctx context.Context, ch nsprov.MacvlanChannel) (nsprov.BridgeAddress, error) {
	addr, err := s.NetworkOperations.CreateNamespaceWithMacvlan(ctx, ch)
	if err != nil {
		return addr, err
	}
	return addr, s.sync(ctx, ch.SourceAgent)
}

func (s *syncingNetwork) DestroyNamespaceWithMacvlan(ctx context.Context, ch nsprov.MacvlanChannel) error {
	if err := s.NetworkOperations.DestroyNamespaceWithMacvlan(ctx, ch); err != nil {
		return err
	}
	return s.sync(ctx, ch.SourceAgent)
}

func (s *syncingNetwork) CreateNamespaceWithVeth(ctx context.Context, ch nsprov.VethChannel) (nsprov.BridgeAddress, error) {
	addr, err := s.NetworkOperations.CreateNamespaceWithVeth(ctx, ch)
	if err != nil {
		return addr, err
	}
	return addr, s.sync(ctx, ch.SourceAgent)
}

func (s *syncingNetwork) DestroyNamespaceWithVeth(ctx context.Context, ch nsprov.VethChannel) error {
	if err := s.NetworkOperations.DestroyNamespaceWithVeth(ctx, ch); err != nil {
		return err
	}
	return s.sync(ctx, ch.SourceAgent)
}

func (s *syncingNetwork) MoveInterface(ctx context.Context, from, to, ifname string) error {
	if err := s.NetworkOperations.MoveInterface(ctx, from, to, ifname); err != nil {
		return err
	}
	return s.sync(ctx, from, to)
}

func (s *syncingNetwork) AddRoute(ctx context.Context, agent string, r nsprov.Route) error {
	if err := s.NetworkOperations.AddRoute(ctx, agent, r); err != nil {
		return err
	}
	return s.sync(ctx, agent)
}

func (s *syncingNetwork) DeleteRoute(ctx context.Context, agent string, r nsprov.Route) error {
	if err := s.NetworkOperations.DeleteRoute(ctx, agent, r); err != nil {
		return err
	}
	return s.sync(ctx, agent)
}
