package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-nsprov/config"
)

func TestMap_DistinguishesEmptyFromAbsent(t *testing.T) {
	m := config.Map{"EMPTY": ""}

	v, ok := m.Lookup("EMPTY")
	assert.True(t, ok)
	assert.Empty(t, v)

	_, ok = m.Lookup("ABSENT")
	assert.False(t, ok)
}

func TestChain_FirstSourceWins(t *testing.T) {
	c := config.Chain{
		config.Map{"A": "first"},
		config.Map{"A": "second", "B": "fallback"},
	}

	v, ok := c.Lookup("A")
	require.True(t, ok)
	assert.Equal(t, "first", v)

	v, ok = c.Lookup("B")
	require.True(t, ok)
	assert.Equal(t, "fallback", v)

	_, ok = c.Lookup("C")
	assert.False(t, ok)
}

func TestEnv_Lookup(t *testing.T) {
	t.Setenv("NSPROV_TEST_VALUE", "")

	v, ok := config.Env{}.Lookup("NSPROV_TEST_VALUE")
	assert.True(t, ok, "empty environment variable is present")
	assert.Empty(t, v)
}

func TestReadDotEnv(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.env")
	second := filepath.Join(dir, "second.env")
	require.NoError(t, os.WriteFile(first, []byte("NETNS_AGENT=Agt_A\nNETNS_PORT=5000\n"), 0644))
	require.NoError(t, os.WriteFile(second, []byte("NETNS_PORT=6000\n"), 0644))

	m, err := config.ReadDotEnv(first, second)
	require.NoError(t, err)
	assert.Equal(t, "Agt_A", m["NETNS_AGENT"])
	assert.Equal(t, "6000", m["NETNS_PORT"], "later files override earlier ones")

	_, err = config.ReadDotEnv(filepath.Join(dir, "missing.env"))
	assert.Error(t, err)
}

func TestViperValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.yaml")
	require.NoError(t, os.WriteFile(path, []byte("NETNS_AGENT: Agt_A\nNETNS_NAME: testns\n"), 0644))
	t.Setenv("NETNS_NAME", "fromenv")

	vals, err := config.NewViperValues(path)
	require.NoError(t, err)

	v, ok := vals.Lookup("NETNS_AGENT")
	require.True(t, ok)
	assert.Equal(t, "Agt_A", v)

	v, ok = vals.Lookup("NETNS_NAME")
	require.True(t, ok)
	assert.Equal(t, "fromenv", v, "environment overrides the values file")

	_, ok = vals.Lookup("NETNS_NOT_THERE_AT_ALL")
	assert.False(t, ok)
}
