package flags

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ruteri/fallback-storage/common"
	"github.com/ruteri/fallback-storage/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// loadWith runs a throwaway app so flags are parsed the way a command sees them.
func loadWith(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	for _, env := range []string{"FALLBACK_STORAGES", "FALLBACK_STORAGE_CONFIG"} {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}

	var cfg *config.Config
	var loadErr error
	app := &cli.App{
		Flags: append(append([]cli.Flag{}, CommonFlags...), ServerFlags...),
		Action: func(cCtx *cli.Context) error {
			cfg, loadErr = LoadConfig(cCtx)
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{"test"}, args...)))
	return cfg, loadErr
}

func writeConfig(t *testing.T, doc string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))
	return path
}

func TestLoadConfig_FlagsOnly(t *testing.T) {
	cfg, err := loadWith(t, "--backend", "memory://a", "--backend", "memory://b")
	require.NoError(t, err)

	assert.Equal(t, []string{"memory://a", "memory://b"}, cfg.Backends)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "127.0.0.1:8090", cfg.MetricsAddr)
	assert.Zero(t, cfg.MaxNegotiationRounds)
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
backends: [memory://from-file]
max_negotiation_rounds: 3
listen_addr: 0.0.0.0:9000
`)

	cfg, err := loadWith(t, "--config", path)
	require.NoError(t, err)
	assert.Equal(t, []string{"memory://from-file"}, cfg.Backends)
	assert.Equal(t, 3, cfg.MaxNegotiationRounds)
	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddr)

	cfg, err = loadWith(t, "--config", path, "--backend", "memory://from-flag", "--max-negotiation-rounds", "9", "--listen-addr", "127.0.0.1:1")
	require.NoError(t, err)
	assert.Equal(t, []string{"memory://from-flag"}, cfg.Backends)
	assert.Equal(t, 9, cfg.MaxNegotiationRounds)
	assert.Equal(t, "127.0.0.1:1", cfg.ListenAddr)
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := loadWith(t, "--backend", "ftp://nope")
	assert.Error(t, err)

	_, err = loadWith(t, "--tls-client-cert", "client.pem")
	assert.Error(t, err)

	_, err = loadWith(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpenStorage(t *testing.T) {
	logger := common.SetupLogger(&common.LoggingOpts{Output: io.Discard})

	_, err := OpenStorage(&config.Config{}, logger)
	assert.Error(t, err)

	fs, err := OpenStorage(&config.Config{Backends: []string{"memory://open-storage"}, MaxNegotiationRounds: 2}, logger)
	require.NoError(t, err)
	assert.Contains(t, fs.LocationURI(), "memory://open-storage")

	// The certificate is only loaded when a backend needs it
	fs, err = OpenStorage(&config.Config{
		Backends: []string{"remote://127.0.0.1:1"},
		TLS:      config.TLSConfig{CertFile: "missing.pem", KeyFile: "missing-key.pem"},
	}, logger)
	require.NoError(t, err)
	_, err = fs.Exists(t.Context(), "a.txt")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
