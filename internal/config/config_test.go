package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/PomeloX/internal/pomelox"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func newFlagSet() *flag.FlagSet {
	return flag.NewFlagSet("test", flag.ContinueOnError)
}

func TestLoad_Defaults(t *testing.T) {
	opts, err := Load(newFlagSet(), []string{"-c", filepath.Join(t.TempDir(), "missing.json")}, env(nil))
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", opts.Address)
	assert.Equal(t, pomelox.DefaultBaseURL, opts.PomeloXBaseURL)
	assert.Equal(t, 5*time.Minute, time.Duration(opts.SignedTTL))
	assert.Equal(t, 30*24*time.Hour, time.Duration(opts.ScanRetention))
	assert.Equal(t, time.Hour, time.Duration(opts.CleanInterval))
	assert.Equal(t, "info", opts.LogLevel)
	assert.Empty(t, opts.DatabaseDSN)
}

func TestLoad_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"address": ":9000",
		"database_dsn": "postgres://file",
		"jwt_secret": "from-file",
		"signed_ttl": "90s",
		"scan_retention": "168h",
		"rate_limit": 5
	}`), 0o600))

	opts, err := Load(newFlagSet(), []string{"-a", ":7000", "-redis", "cache:6379"}, env(map[string]string{
		"CONFIG":         path,
		"SERVER_ADDRESS": ":8443",
		"JWT_SECRET":     "from-env",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":8443", opts.Address)
	assert.Equal(t, "postgres://file", opts.DatabaseDSN)
	assert.Equal(t, "from-env", opts.JWTSecret)
	assert.Equal(t, "cache:6379", opts.RedisAddr)
	assert.Equal(t, 90*time.Second, time.Duration(opts.SignedTTL))
	assert.Equal(t, 7*24*time.Hour, time.Duration(opts.ScanRetention))
	assert.Equal(t, 5.0, opts.RateLimit)
}

func TestLoad_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"signed_ttl": "soon"}`), 0o600))

	_, err := Load(newFlagSet(), []string{"-config", path}, env(nil))
	assert.Error(t, err)
}

func TestDuration_Nanoseconds(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte("1000000000")))
	assert.Equal(t, time.Second, time.Duration(d))
	assert.Error(t, d.UnmarshalJSON([]byte("true")))
}
