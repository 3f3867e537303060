package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// statements holds every prepared statement used by the store.
type statements struct {
	// Instances
	getInstance     *sql.Stmt
	putInstance     *sql.Stmt
	deleteInstance  *sql.Stmt
	deleteSubtree   *sql.Stmt
	listSubtree     *sql.Stmt
	listAllInstance *sql.Stmt
	deleteAll       *sql.Stmt

	// Agents and bindings
	saveAgent     *sql.Stmt
	getAgent      *sql.Stmt
	deleteAgent   *sql.Stmt
	listAgents    *sql.Stmt
	saveBinding   *sql.Stmt
	getBinding    *sql.Stmt
	deleteBinding *sql.Stmt
	countBindings *sql.Stmt

	// Channels
	saveChannel   *sql.Stmt
	getChannel    *sql.Stmt
	deleteChannel *sql.Stmt
	listChannels  *sql.Stmt

	// Runs
	saveRun       *sql.Stmt
	getRunByAgent *sql.Stmt
	deleteRun     *sql.Stmt
	listRuns      *sql.Stmt
}

// subtreeMatch selects ?1 and its descendants without LIKE, so OIDs
// containing '_' or '%' match literally.
const subtreeMatch = `(oid = ?1 OR substr(oid, 1, length(?1) + 1) = ?1 || '/')`

const agentColumns = `name, type, host, netns, addr, port, preload, pid, local, created_at`

const channelColumns = `netns, mode, source_agent, ctl_if, link, peer, port, source_addr, ns_addr`

const runColumns = `id, ns_agent, source_agent, netns, mode, ctl_if, original_names, stage, created_at, updated_at`

// prepareStatements prepares all SQL statements for reuse.
func prepareStatements(ctx context.Context, db *sql.DB) (statements, error) {
	var st statements

	queries := []struct {
		name string
		dst  **sql.Stmt
		sql  string
	}{
		{"GetInstance", &st.getInstance,
			`SELECT oid, value, volatile FROM instances WHERE oid = ?`},
		{"PutInstance", &st.putInstance,
			`INSERT INTO instances (oid, value, volatile) VALUES (?, ?, ?)
			 ON CONFLICT(oid) DO UPDATE SET value = excluded.value, volatile = excluded.volatile`},
		{"DeleteInstance", &st.deleteInstance,
			`DELETE FROM instances WHERE oid = ?`},
		{"DeleteSubtree", &st.deleteSubtree,
			`DELETE FROM instances WHERE ` + subtreeMatch},
		{"ListSubtree", &st.listSubtree,
			`SELECT oid, value, volatile FROM instances WHERE ` + subtreeMatch + ` ORDER BY seq`},
		{"ListAllInstances", &st.listAllInstance,
			`SELECT oid, value, volatile FROM instances ORDER BY seq`},
		{"DeleteAllInstances", &st.deleteAll,
			`DELETE FROM instances`},

		{"SaveAgent", &st.saveAgent,
			`INSERT INTO agents (` + agentColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(name) DO UPDATE SET
			   type = excluded.type,
			   host = excluded.host,
			   netns = excluded.netns,
			   addr = excluded.addr,
			   port = excluded.port,
			   preload = excluded.preload,
			   pid = excluded.pid,
			   local = excluded.local`},
		{"GetAgent", &st.getAgent,
			`SELECT ` + agentColumns + ` FROM agents WHERE name = ?`},
		{"DeleteAgent", &st.deleteAgent,
			`DELETE FROM agents WHERE name = ?`},
		{"ListAgents", &st.listAgents,
			`SELECT ` + agentColumns + ` FROM agents ORDER BY created_at, name`},
		{"SaveBinding", &st.saveBinding,
			`INSERT INTO bindings (agent, host, netns) VALUES (?, ?, ?)
			 ON CONFLICT(agent) DO UPDATE SET host = excluded.host, netns = excluded.netns`},
		{"GetBinding", &st.getBinding,
			`SELECT agent, host, netns FROM bindings WHERE agent = ?`},
		{"DeleteBinding", &st.deleteBinding,
			`DELETE FROM bindings WHERE agent = ?`},
		{"CountBindings", &st.countBindings,
			`SELECT COUNT(*) FROM bindings WHERE netns = ?`},

		{"SaveChannel", &st.saveChannel,
			`INSERT INTO channels (` + channelColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(netns) DO UPDATE SET
			   mode = excluded.mode,
			   source_agent = excluded.source_agent,
			   ctl_if = excluded.ctl_if,
			   link = excluded.link,
			   peer = excluded.peer,
			   port = excluded.port,
			   source_addr = excluded.source_addr,
			   ns_addr = excluded.ns_addr`},
		{"GetChannel", &st.getChannel,
			`SELECT ` + channelColumns + ` FROM channels WHERE netns = ?`},
		{"DeleteChannel", &st.deleteChannel,
			`DELETE FROM channels WHERE netns = ?`},
		{"ListChannels", &st.listChannels,
			`SELECT ` + channelColumns + ` FROM channels ORDER BY netns`},

		{"SaveRun", &st.saveRun,
			`INSERT INTO runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(ns_agent) DO UPDATE SET
			   id = excluded.id,
			   source_agent = excluded.source_agent,
			   netns = excluded.netns,
			   mode = excluded.mode,
			   ctl_if = excluded.ctl_if,
			   original_names = excluded.original_names,
			   stage = excluded.stage,
			   created_at = excluded.created_at,
			   updated_at = excluded.updated_at`},
		{"GetRunByAgent", &st.getRunByAgent,
			`SELECT ` + runColumns + ` FROM runs WHERE ns_agent = ?`},
		{"DeleteRun", &st.deleteRun,
			`DELETE FROM runs WHERE id = ?`},
		{"ListRuns", &st.listRuns,
			`SELECT ` + runColumns + ` FROM runs ORDER BY created_at`},
	}

	for _, q := range queries {
		stmt, err := db.PrepareContext(ctx, q.sql)
		if err != nil {
			st.close()
			return statements{}, fmt.Errorf("prepare %s: %w", q.name, err)
		}
		*q.dst = stmt
	}
	return st, nil
}

func (st *statements) all() []*sql.Stmt {
	return []*sql.Stmt{
		st.getInstance, st.putInstance, st.deleteInstance, st.deleteSubtree, st.listSubtree, st.listAllInstance, st.deleteAll,
		st.saveAgent, st.getAgent, st.deleteAgent, st.listAgents,
		st.saveBinding, st.getBinding, st.deleteBinding, st.countBindings,
		st.saveChannel, st.getChannel, st.deleteChannel, st.listChannels,
		st.saveRun, st.getRunByAgent, st.deleteRun, st.listRuns,
	}
}

// close closes all prepared statements. Each close error is silently
// ignored because the database is about to be closed.
func (st *statements) close() {
	for _, stmt := range st.all() {
		if stmt != nil {
			stmt.Close()
		}
	}
}

// bind returns transaction-bound handles for every master statement.
func (st *statements) bind(ctx context.Context, tx *sql.Tx) statements {
	b := func(s *sql.Stmt) *sql.Stmt { return tx.StmtContext(ctx, s) }
	return statements{
		getInstance:     b(st.getInstance),
		putInstance:     b(st.putInstance),
		deleteInstance:  b(st.deleteInstance),
		deleteSubtree:   b(st.deleteSubtree),
		listSubtree:     b(st.listSubtree),
		listAllInstance: b(st.listAllInstance),
		deleteAll:       b(st.deleteAll),
		saveAgent:       b(st.saveAgent),
		getAgent:        b(st.getAgent),
		deleteAgent:     b(st.deleteAgent),
		listAgents:      b(st.listAgents),
		saveBinding:     b(st.saveBinding),
		getBinding:      b(st.getBinding),
		deleteBinding:   b(st.deleteBinding),
		countBindings:   b(st.countBindings),
		saveChannel:     b(st.saveChannel),
		getChannel:      b(st.getChannel),
		deleteChannel:   b(st.deleteChannel),
		listChannels:    b(st.listChannels),
		saveRun:         b(st.saveRun),
		getRunByAgent:   b(st.getRunByAgent),
		deleteRun:       b(st.deleteRun),
		listRuns:        b(st.listRuns),
	}
}
