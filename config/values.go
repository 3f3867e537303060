package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Values is a source of named values. A value that is present but empty
// is reported with ok set.
type Values interface {
	Lookup(key string) (value string, ok bool)
}

// Env reads named values from the process environment.
type Env struct{}

func (Env) Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// Map is a fixed set of named values.
type Map map[string]string

func (m Map) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Chain consults each source in order and returns the first hit.
type Chain []Values

func (c Chain) Lookup(key string) (string, bool) {
	for _, v := range c {
		if s, ok := v.Lookup(key); ok {
			return s, true
		}
	}
	return "", false
}

// ReadDotEnv reads KEY=value files without touching the process
// environment. Later files override earlier ones.
func ReadDotEnv(paths ...string) (Map, error) {
	m := Map{}
	for _, p := range paths {
		vals, err := godotenv.Read(p)
		if err != nil {
			return nil, fmt.Errorf("read env file %s: %w", p, err)
		}
		for k, v := range vals {
			m[k] = v
		}
	}
	return m, nil
}

// viperValues reads named values through viper: a values file (YAML,
// TOML, JSON) with the environment taking precedence.
type viperValues struct {
	v *viper.Viper
}

// NewViperValues returns a Values backed by the values file at path.
// Environment variables override entries from the file.
func NewViperValues(path string) (Values, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read values file %s: %w", path, err)
	}
	return viperValues{v: v}, nil
}

func (vv viperValues) Lookup(key string) (string, bool) {
	if !vv.v.IsSet(key) {
		return "", false
	}
	return vv.v.GetString(key), true
}
