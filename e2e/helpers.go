//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"

	"github.com/frobware/go-nsprov/netns"
)

// nsprovBin is the CLI under test, built once by TestMain.
var nsprovBin string

const dirPrefix = "nsprov-e2e-"

// TestEnv is an isolated runtime directory, config file and set of
// named values for one test. Tests may run in parallel as long as
// they pick distinct namespace, agent and interface names.
type TestEnv struct {
	T      *testing.T
	Base   string
	Config string
	Values map[string]string
}

// NewTestEnv creates a test environment under
// /tmp/nsprov-e2e-<pid>-<testname>/. The directory is removed by
// t.Cleanup.
func NewTestEnv(t *testing.T, ns string) *TestEnv {
	t.Helper()

	base := filepath.Join(os.TempDir(), fmt.Sprintf("%s%d-%s", dirPrefix, os.Getpid(), sanitizeTestName(t.Name())))
	require.NoError(t, os.MkdirAll(base, 0o755))

	cfgPath := filepath.Join(base, "nsprov.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`[provision]
rollback = "compensate"
agent_ready_timeout = "15s"
`), 0o644))

	history := filepath.Join(base, "cfg.yaml")
	require.NoError(t, os.WriteFile(history, []byte("[]\n"), 0o644))

	env := &TestEnv{
		T:      t,
		Base:   base,
		Config: cfgPath,
		Values: map[string]string{
			"NETNS_ENABLE":      "true",
			"NETNS_AGENT":       "Agt_E2E",
			"NETNS_AGENT_TYPE":  "linux",
			"NETNS_HOST":        "localhost",
			"NETNS_NS_AGENT":    "Agt_E2E_NS",
			"NETNS_NAME":        ns,
			"NETNS_RPCPROVIDER": "local",
			"NETNS_CFG_HISTORY": history,
			"NETNS_PORT":        "23571",
		},
	}

	t.Cleanup(func() {
		// Best effort: a failed test may leave the namespace behind.
		if netns.Exists(ns) {
			_, _ = env.run(context.Background(), "down")
			_ = netns.Delete(ns)
		}
		if err := os.RemoveAll(base); err != nil {
			t.Logf("warning: failed to remove %s: %v", base, err)
		}
	})

	return env
}

func (e *TestEnv) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	argv := append([]string{"--config", e.Config, "--runtime-dir", e.Base}, args...)
	cmd := exec.CommandContext(ctx, nsprovBin, argv...)

	cmd.Env = os.Environ()
	for k, v := range e.Values {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	if spec := os.Getenv("NSPROV_E2E_LOG"); spec != "" {
		cmd.Env = append(cmd.Env, "NSPROV_LOG="+spec)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if stderr.Len() > 0 {
		e.T.Logf("nsprov %s stderr:\n%s", strings.Join(args, " "), stderr.String())
	}
	if err != nil {
		return stdout.String(), fmt.Errorf("nsprov %s: %w", strings.Join(args, " "), err)
	}
	return stdout.String(), nil
}

// Run invokes the CLI and requires it to succeed.
func (e *TestEnv) Run(args ...string) string {
	e.T.Helper()
	out, err := e.run(context.Background(), args...)
	require.NoError(e.T, err)
	return out
}

// RequireNamespace asserts whether the named network namespace exists.
func (e *TestEnv) RequireNamespace(ns string, exists bool) {
	e.T.Helper()
	require.Equal(e.T, exists, netns.Exists(ns), "namespace %s exists", ns)
}

// RequireLinkIn asserts that ifname is present in the named namespace.
func (e *TestEnv) RequireLinkIn(ns, ifname string) {
	e.T.Helper()
	err := netns.Run(netns.Path(ns), func() error {
		_, err := netlink.LinkByName(ifname)
		return err
	})
	require.NoError(e.T, err, "link %s in namespace %s", ifname, ns)
}

// RequireNoHostLink asserts that ifname is absent from the host
// namespace.
func (e *TestEnv) RequireNoHostLink(ifname string) {
	e.T.Helper()
	_, err := netlink.LinkByName(ifname)
	require.Error(e.T, err, "link %s still in host namespace", ifname)
}

// AddDummy creates a dummy link in the host namespace and removes it
// (if still present) on cleanup.
func AddDummy(t *testing.T, name string) {
	t.Helper()
	link := &netlink.Dummy{LinkAttrs: netlink.LinkAttrs{Name: name}}
	require.NoError(t, netlink.LinkAdd(link))
	require.NoError(t, netlink.LinkSetUp(link))
	t.Cleanup(func() {
		if l, err := netlink.LinkByName(name); err == nil {
			_ = netlink.LinkDel(l)
		}
	})
}

// RequireRoot fails the test if not running as root.
func RequireRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Fatal("test requires root privileges")
	}
}

func buildCLI() (string, error) {
	dir, err := os.MkdirTemp("", dirPrefix+"bin-")
	if err != nil {
		return "", err
	}
	bin := filepath.Join(dir, "nsprov")
	cmd := exec.Command("go", "build", "-o", bin, "github.com/frobware/go-nsprov/cmd/nsprov")
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("build nsprov: %w", err)
	}
	return bin, nil
}

// sanitizeTestName converts a test name to a safe directory name.
func sanitizeTestName(name string) string {
	name = strings.ReplaceAll(name, "/", "-")
	name = strings.ReplaceAll(name, " ", "_")
	if len(name) > 50 {
		name = name[:50]
	}
	return name
}

// cleanupStaleTestDirs removes directories left by runs whose process
// has gone.
func cleanupStaleTestDirs() {
	matches, err := filepath.Glob(filepath.Join(os.TempDir(), dirPrefix+"*"))
	if err != nil {
		return
	}
	for _, path := range matches {
		rest := strings.TrimPrefix(filepath.Base(path), dirPrefix)
		pidStr, _, _ := strings.Cut(rest, "-")
		pid, err := strconv.Atoi(pidStr)
		if err != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join("/proc", pidStr)); err == nil && pid != os.Getpid() {
			continue
		}
		_ = os.RemoveAll(path)
	}
}
