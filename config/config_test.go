package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ruteri/fallback-storage/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backends:
  - file:///var/lib/media/?base_url=https://cdn.example.com/media/
  - memory://scratch
max_negotiation_rounds: 7
listen_addr: 0.0.0.0:8080
tls:
  cert_file: client.pem
  key_file: client-key.pem
log:
  json: true
  service: media
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Len(t, cfg.Backends, 2)
	assert.Equal(t, 7, cfg.MaxNegotiationRounds)
	assert.Equal(t, "0.0.0.0:8080", cfg.ListenAddr)
	assert.Empty(t, cfg.MetricsAddr)
	assert.Equal(t, "client.pem", cfg.TLS.CertFile)
	assert.Equal(t, "client-key.pem", cfg.TLS.KeyFile)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, "media", cfg.Log.Service)

	locations, err := cfg.Locations()
	require.NoError(t, err)
	assert.True(t, locations[0].IsFile())
	assert.True(t, locations[1].IsMemory())
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]string{
		"unknown key":      "backend: [memory://a]\n",
		"bad scheme":       "backends: [ftp://host/]\n",
		"negative rounds":  "max_negotiation_rounds: -1\n",
		"malformed yaml":   "backends: [memory://a\n",
		"wrong value type": "max_negotiation_rounds: many\n",
		"cert without key": "tls:\n  cert_file: client.pem\n",
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestParse_BadSchemeIsInvalidLocation(t *testing.T) {
	_, err := Parse(strings.NewReader("backends: [ftp://host/]\n"))
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(strings.NewReader("  \n"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Backends)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
