package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/frobware/go-nsprov"
	"github.com/frobware/go-nsprov/interpreter"
	"github.com/frobware/go-nsprov/interpreter/store"
)

// SaveChannel creates or replaces the bridge record of a namespace.
func (s *sqliteStore) SaveChannel(ctx context.Context, ch interpreter.Channel) error {
	start := time.Now()
	args := []any{
		ch.Namespace, string(ch.Mode), ch.SourceAgent, ch.ControlIf,
		ch.Link, ch.Peer, int(ch.Port),
		prefixString(ch.SourceAddr), prefixString(ch.NSAddr),
	}
	res, err := s.stmts.saveChannel.ExecContext(ctx, args...)
	s.logSQL("SaveChannel", start, args, affected(res), err)
	if err != nil {
		return fmt.Errorf("save channel %s: %w", ch.Namespace, err)
	}
	return nil
}

// GetChannel returns the bridge record of namespace.
func (s *sqliteStore) GetChannel(ctx context.Context, namespace string) (interpreter.Channel, error) {
	start := time.Now()
	ch, err := scanChannel(s.stmts.getChannel.QueryRowContext(ctx, namespace))
	if errors.Is(err, sql.ErrNoRows) {
		s.logSQL("GetChannel", start, []any{namespace}, 0, nil)
		return interpreter.Channel{}, fmt.Errorf("channel %s: %w", namespace, store.ErrNotFound)
	}
	if err != nil {
		s.logSQL("GetChannel", start, []any{namespace}, 0, err)
		return interpreter.Channel{}, fmt.Errorf("get channel %s: %w", namespace, err)
	}
	s.logSQL("GetChannel", start, []any{namespace}, 1, nil)
	return ch, nil
}

// DeleteChannel removes the bridge record of namespace.
func (s *sqliteStore) DeleteChannel(ctx context.Context, namespace string) error {
	start := time.Now()
	res, err := s.stmts.deleteChannel.ExecContext(ctx, namespace)
	s.logSQL("DeleteChannel", start, []any{namespace}, affected(res), err)
	if err != nil {
		return fmt.Errorf("delete channel %s: %w", namespace, err)
	}
	if affected(res) == 0 {
		return fmt.Errorf("channel %s: %w", namespace, store.ErrNotFound)
	}
	return nil
}

// ListChannels returns every bridge record ordered by namespace.
func (s *sqliteStore) ListChannels(ctx context.Context) ([]interpreter.Channel, error) {
	start := time.Now()
	rows, err := s.stmts.listChannels.QueryContext(ctx)
	if err != nil {
		s.logSQL("ListChannels", start, nil, 0, err)
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	result := make([]interpreter.Channel, 0)
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		result = append(result, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}
	s.logSQL("ListChannels", start, nil, len(result), nil)
	return result, nil
}

func scanChannel(row rowScanner) (interpreter.Channel, error) {
	var ch interpreter.Channel
	var mode, sourceAddr, nsAddr string
	var port int
	if err := row.Scan(&ch.Namespace, &mode, &ch.SourceAgent, &ch.ControlIf, &ch.Link, &ch.Peer, &port, &sourceAddr, &nsAddr); err != nil {
		return interpreter.Channel{}, err
	}
	m, ok := nsprov.ParseConnMode(mode)
	if !ok {
		return interpreter.Channel{}, fmt.Errorf("channel %s: unknown mode %q", ch.Namespace, mode)
	}
	ch.Mode = m
	ch.Port = uint16(port)

	var err error
	if ch.SourceAddr, err = parsePrefix(sourceAddr); err != nil {
		return interpreter.Channel{}, fmt.Errorf("channel %s: source_addr: %w", ch.Namespace, err)
	}
	if ch.NSAddr, err = parsePrefix(nsAddr); err != nil {
		return interpreter.Channel{}, fmt.Errorf("channel %s: ns_addr: %w", ch.Namespace, err)
	}
	return ch, nil
}

func prefixString(p netip.Prefix) string {
	if !p.IsValid() {
		return ""
	}
	return p.String()
}

func parsePrefix(s string) (netip.Prefix, error) {
	if s == "" {
		return netip.Prefix{}, nil
	}
	return netip.ParsePrefix(s)
}
