package netns_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-nsprov/netns"
)

func TestPath(t *testing.T) {
	assert.Equal(t, "/var/run/netns/testns", netns.Path("testns"))
	assert.Empty(t, netns.Path(""))
}

func TestRun_EmptyPathRunsInPlace(t *testing.T) {
	before, err := netns.GetCurrentNsid()
	require.NoError(t, err)

	var inside uint64
	require.NoError(t, netns.Run("", func() error {
		inside, err = netns.GetCurrentNsid()
		return err
	}))
	assert.Equal(t, before, inside)
}

func TestRun_MissingNamespace(t *testing.T) {
	called := false
	err := netns.Run(netns.Path("nsprov-does-not-exist"), func() error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}

func TestGetNsid_EmptyPathIsCurrent(t *testing.T) {
	a, err := netns.GetNsid("")
	require.NoError(t, err)
	b, err := netns.GetCurrentNsid()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestExists(t *testing.T) {
	assert.False(t, netns.Exists("nsprov-does-not-exist"))
}
