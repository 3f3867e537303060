// Package lock serialises nsprov invocations that mutate host state
// (namespaces, agents, the state database) with an exclusive flock(2)
// on a file under the runtime directory.
//
// Mutating entry points take a WriterScope. The only way to get one is
// to run under Run, so holding a scope proves the lock is held.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// WriterScope is the capability handed to code running under Run.
type WriterScope interface {
	// FD is the locked file descriptor.
	FD() int
	// Path is the lock file.
	Path() string

	held()
}

type scope struct {
	f *os.File
}

func (scope) held() {}

func (s scope) FD() int      { return int(s.f.Fd()) }
func (s scope) Path() string { return s.f.Name() }

const (
	initialRetry = 25 * time.Millisecond
	maxRetry     = 500 * time.Millisecond
)

// Run takes the writer lock at path, calls fn and releases the lock
// when fn returns. While another process holds the lock Run retries
// with backoff until ctx is done.
func Run(ctx context.Context, path string, fn func(context.Context, WriterScope) error) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_CLOEXEC, 0o600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer f.Close()

	if err := flock(ctx, f); err != nil {
		return err
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	return fn(ctx, scope{f: f})
}

func flock(ctx context.Context, f *os.File) error {
	retry := initialRetry
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		switch {
		case err == nil:
			return nil
		case !errors.Is(err, unix.EWOULDBLOCK):
			return fmt.Errorf("flock %s: %w", f.Name(), err)
		}

		t := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("waiting for writer lock %s: %w", f.Name(), ctx.Err())
		case <-t.C:
		}
		retry = min(retry*2, maxRetry)
	}
}
