// Package config loads the fallback storage configuration file.
//
// Example:
//
//	backends:
//	  - file:///var/lib/media/?base_url=https://cdn.example.com/media/
//	  - s3://media-archive/?region=eu-west-1
//	max_negotiation_rounds: 50
//	listen_addr: 127.0.0.1:8080
//	metrics_addr: 127.0.0.1:8090
//	tls:
//	  cert_file: /etc/media/client.pem
//	  key_file: /etc/media/client-key.pem
//	log:
//	  json: true
//	  service: media
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ruteri/fallback-storage/interfaces"
	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration. Command line flags override it.
type Config struct {
	// Backends lists storage location URIs in fallback order.
	Backends []string `yaml:"backends"`
	// MaxNegotiationRounds bounds AvailableName negotiation. Zero uses the default.
	MaxNegotiationRounds int `yaml:"max_negotiation_rounds"`

	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`

	// TLS is the client certificate presented to vault:// and remote:// backends.
	TLS TLSConfig `yaml:"tls"`

	Log LogConfig `yaml:"log"`
}

type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

type LogConfig struct {
	JSON    bool   `yaml:"json"`
	Debug   bool   `yaml:"debug"`
	Service string `yaml:"service"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML configuration. Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that can be checked without the flags.
func (c *Config) Validate() error {
	if c.MaxNegotiationRounds < 0 {
		return fmt.Errorf("invalid config: max_negotiation_rounds must not be negative")
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		return fmt.Errorf("invalid config: tls cert_file and key_file must be set together")
	}
	if _, err := interfaces.ParseStorageBackendLocations(c.Backends); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Locations parses the backend URIs.
func (c *Config) Locations() ([]interfaces.StorageBackendLocation, error) {
	return interfaces.ParseStorageBackendLocations(c.Backends)
}
