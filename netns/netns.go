// Package netns provides network namespace identification, switching
// and named namespace lifecycle.
package netns

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	vnetns "github.com/vishvananda/netns"
	"golang.org/x/sys/unix"
)

// BindMountDir is where named namespaces are bind-mounted, matching
// iproute2.
const BindMountDir = "/var/run/netns"

// Path returns the bind-mount path of the named namespace. The empty
// name stands for the current namespace and yields "".
func Path(name string) string {
	if name == "" {
		return ""
	}
	return filepath.Join(BindMountDir, name)
}

// GetCurrentNsid returns the inode number of the calling thread's network
// namespace.
func GetCurrentNsid() (uint64, error) {
	var stat unix.Stat_t
	if err := unix.Stat("/proc/thread-self/ns/net", &stat); err != nil {
		return 0, fmt.Errorf("stat /proc/thread-self/ns/net: %w", err)
	}
	return stat.Ino, nil
}

// GetNsid returns the inode number of the network namespace at the given path.
// If path is empty, returns the current namespace's inode.
func GetNsid(path string) (uint64, error) {
	if path == "" {
		return GetCurrentNsid()
	}
	var stat unix.Stat_t
	if err := unix.Stat(path, &stat); err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return stat.Ino, nil
}

// Exists reports whether the named namespace is bind-mounted.
func Exists(name string) bool {
	_, err := os.Stat(Path(name))
	return err == nil
}

// Create creates and bind-mounts a named network namespace. The calling
// goroutine stays in its original namespace.
func Create(name string) error {
	if name == "" {
		return fmt.Errorf("create netns: empty name")
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	origin, err := vnetns.Get()
	if err != nil {
		return fmt.Errorf("get current netns: %w", err)
	}
	defer origin.Close()

	// NewNamed moves this thread into the new namespace.
	created, err := vnetns.NewNamed(name)
	if err != nil {
		return fmt.Errorf("create netns %s: %w", name, err)
	}
	created.Close()

	if err := vnetns.Set(origin); err != nil {
		return fmt.Errorf("restore netns after creating %s: %w", name, err)
	}
	return nil
}

// Delete unmounts and removes a named namespace. A namespace that does
// not exist is not an error.
func Delete(name string) error {
	if err := vnetns.DeleteNamed(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete netns %s: %w", name, err)
	}
	return nil
}

// Run executes fn in the network namespace specified by path.
// If path is empty, fn is executed in the current namespace (no switch).
// The original namespace is always restored after fn returns, even if fn panics.
//
// Usage:
//
//	err := netns.Run(netns.Path("testns"), func() error {
//	    // operations in target namespace
//	    return nil
//	})
func Run(path string, fn func() error) error {
	if path == "" {
		return fn()
	}

	targetNS, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open target netns %s: %w", path, err)
	}
	defer targetNS.Close()

	runtime.LockOSThread()

	originalNS, err := os.Open("/proc/thread-self/ns/net")
	if err != nil {
		runtime.UnlockOSThread()
		return fmt.Errorf("open current netns: %w", err)
	}
	defer originalNS.Close()

	if err := unix.Setns(int(targetNS.Fd()), unix.CLONE_NEWNET); err != nil {
		runtime.UnlockOSThread()
		return fmt.Errorf("setns to target netns: %w", err)
	}

	defer func() {
		// A thread that cannot be restored stays locked; the runtime
		// terminates it when the goroutine exits.
		if err := unix.Setns(int(originalNS.Fd()), unix.CLONE_NEWNET); err == nil {
			runtime.UnlockOSThread()
		}
	}()

	return fn()
}
