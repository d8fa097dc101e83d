package flags

import (
	"crypto/tls"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/fallback-storage/common"
	"github.com/ruteri/fallback-storage/config"
	"github.com/ruteri/fallback-storage/httpserver"
	"github.com/ruteri/fallback-storage/interfaces"
	"github.com/ruteri/fallback-storage/storage"
	"github.com/urfave/cli/v2"
)

// SetupLogger builds the process logger from the log flags and the log
// section of cfg, which may be nil. Logs go to stderr so that commands
// printing file content keep stdout clean.
func SetupLogger(cCtx *cli.Context, cfg *config.Config) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String(LogServiceFlag.Name)

	if cfg != nil {
		logJSON = logJSON || cfg.Log.JSON
		logDebug = logDebug || cfg.Log.Debug
		if !cCtx.IsSet(LogServiceFlag.Name) && cfg.Log.Service != "" {
			logService = cfg.Log.Service
		}
	}

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
		Output:  os.Stderr,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

// LoadConfig reads the config file if one was given and lets explicitly set
// flags override its values.
func LoadConfig(cCtx *cli.Context) (*config.Config, error) {
	cfg := &config.Config{}
	if path := cCtx.String(ConfigFlag.Name); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if cCtx.IsSet(BackendFlag.Name) {
		cfg.Backends = cCtx.StringSlice(BackendFlag.Name)
	}
	if cCtx.IsSet(MaxNegotiationRoundsFlag.Name) {
		cfg.MaxNegotiationRounds = cCtx.Int(MaxNegotiationRoundsFlag.Name)
	}
	if cCtx.IsSet(TLSCertFlag.Name) {
		cfg.TLS.CertFile = cCtx.String(TLSCertFlag.Name)
	}
	if cCtx.IsSet(TLSKeyFlag.Name) {
		cfg.TLS.KeyFile = cCtx.String(TLSKeyFlag.Name)
	}
	if cCtx.IsSet(ListenAddrFlag.Name) || cfg.ListenAddr == "" {
		cfg.ListenAddr = cCtx.String(ListenAddrFlag.Name)
	}
	if cCtx.IsSet(MetricsAddrFlag.Name) || cfg.MetricsAddr == "" {
		cfg.MetricsAddr = cCtx.String(MetricsAddrFlag.Name)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenStorage builds the fallback storage described by cfg.
func OpenStorage(cfg *config.Config, logger *slog.Logger, opts ...storage.Option) (*storage.FallbackStorage, error) {
	if len(cfg.Backends) == 0 {
		return nil, errors.New("no storage backends configured, use --backend or a config file")
	}

	locations, err := cfg.Locations()
	if err != nil {
		return nil, err
	}

	if cfg.MaxNegotiationRounds > 0 {
		opts = append(opts, storage.WithMaxNegotiationRounds(cfg.MaxNegotiationRounds))
	}

	var factory interfaces.StorageBackendFactory = storage.NewStorageBackendFactory(logger)
	if cfg.TLS.CertFile != "" {
		certFile, keyFile := cfg.TLS.CertFile, cfg.TLS.KeyFile
		factory = factory.WithTLSAuth(func() (tls.Certificate, error) {
			return tls.LoadX509KeyPair(certFile, keyFile)
		})
	}
	return storage.NewFallbackStorage(locations, factory, logger, opts...)
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, cfg *config.Config) *httpserver.HTTPServerConfig {
	enablePprof := cCtx.Bool(PprofFlag.Name)
	drainDuration := time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second

	return &httpserver.HTTPServerConfig{
		ListenAddr:               cfg.ListenAddr,
		MetricsAddr:              cfg.MetricsAddr,
		Log:                      logger,
		EnablePprof:              enablePprof,
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

var ConfigFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	EnvVars: []string{"FALLBACK_STORAGE_CONFIG"},
	Usage:   "YAML config file listing backends and server settings",
}

var BackendFlag = &cli.StringSliceFlag{
	Name:    "backend",
	Aliases: []string{"b"},
	EnvVars: []string{"FALLBACK_STORAGES"},
	Usage:   "backend location URI, in priority order (repeatable), e.g. file:///srv/media or s3://bucket/prefix",
}

var MaxNegotiationRoundsFlag = &cli.IntFlag{
	Name:  "max-negotiation-rounds",
	Value: storage.DefaultMaxNegotiationRounds,
	Usage: "rounds to spend agreeing on an available name before giving up",
}

var TLSCertFlag = &cli.StringFlag{
	Name:  "tls-client-cert",
	Usage: "PEM client certificate presented to vault:// and remote:// backends",
}
var TLSKeyFlag = &cli.StringFlag{
	Name:  "tls-client-key",
	Usage: "PEM private key for --tls-client-cert",
}

var ListenAddrFlag = &cli.StringFlag{
	Name:  "listen-addr",
	Value: "127.0.0.1:8080",
	Usage: "address to listen on for API",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: common.PackageName,
	Usage: "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "127.0.0.1:8090",
	Usage: "address to listen on for Prometheus metrics",
}

var CommonFlags = []cli.Flag{
	ConfigFlag,
	BackendFlag,
	MaxNegotiationRoundsFlag,
	TLSCertFlag,
	TLSKeyFlag,
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
}

var ServerFlags = []cli.Flag{
	ListenAddrFlag,
	MetricsAddrFlag,
	PprofFlag,
	DrainSecondsFlag,
}
