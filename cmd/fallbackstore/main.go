package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/fallback-storage/cmd/flags"
	"github.com/ruteri/fallback-storage/common"
	"github.com/ruteri/fallback-storage/httpserver"
	"github.com/ruteri/fallback-storage/metrics"
	"github.com/ruteri/fallback-storage/storage"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "fallbackstore",
		Usage:   "Read and write files across an ordered list of storage backends",
		Version: common.Version,
		Flags:   flags.CommonFlags,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the storage over HTTP",
				Flags:  flags.ServerFlags,
				Action: serve,
			},
			{
				Name:      "ls",
				Usage:     "List a directory across all backends",
				ArgsUsage: "[dir]",
				Action:    withStorage(listDir),
			},
			{
				Name:      "cat",
				Usage:     "Print a file from the first backend holding it",
				ArgsUsage: "<name>",
				Action:    withStorage(cat),
			},
			{
				Name:      "put",
				Usage:     "Store a file, reading stdin when no source is given",
				ArgsUsage: "<name> [source]",
				Action:    withStorage(put),
			},
			{
				Name:      "rm",
				Usage:     "Delete a file from the first backend",
				ArgsUsage: "<name>",
				Action:    withStorage(remove),
			},
			{
				Name:      "exists",
				Usage:     "Report whether any backend holds a file",
				ArgsUsage: "<name>",
				Action:    withStorage(exists),
			},
			{
				Name:      "stat",
				Usage:     "Show size, times and URL of a file",
				ArgsUsage: "<name>",
				Action:    withStorage(stat),
			},
			{
				Name:      "url",
				Usage:     "Print the URL a file is served at",
				ArgsUsage: "<name>",
				Action:    withStorage(fileURL),
			},
			{
				Name:      "path",
				Usage:     "Print the local filesystem path of a file",
				ArgsUsage: "<name>",
				Action:    withStorage(localPath),
			},
			{
				Name:      "valid-name",
				Usage:     "Print the normalized form of a name",
				ArgsUsage: "<name>",
				Action:    withStorage(validName),
			},
			{
				Name:      "available-name",
				Usage:     "Print a name that is free in every backend",
				ArgsUsage: "<name>",
				Action:    withStorage(availableName),
			},
		},
	}
}

func serve(cCtx *cli.Context) error {
	cfg, err := flags.LoadConfig(cCtx)
	if err != nil {
		return err
	}
	logger := flags.SetupLogger(cCtx, cfg)

	var metricsSrv *metrics.MetricsServer
	var opts []storage.Option
	if cfg.MetricsAddr != "" {
		metricsSrv, err = metrics.New(common.PackageName, cfg.MetricsAddr)
		if err != nil {
			logger.Error("Failed to create metrics server", "err", err)
			return err
		}
		opts = append(opts, storage.WithRecorder(metricsSrv.Recorder()))
	}

	fs, err := flags.OpenStorage(cfg, logger, opts...)
	if err != nil {
		logger.Error("Failed to open storage", "err", err)
		return err
	}

	server, err := httpserver.New(flags.ConfigureServer(cCtx, logger, cfg), httpserver.NewHandler(fs, logger), metricsSrv)
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}

	logger.Info("Starting server", "backends", len(cfg.Backends))
	server.RunInBackground()

	// Wait for termination signal
	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	logger.Info("Server is running, press Ctrl+C to stop")
	<-exit
	logger.Info("Shutdown signal received")

	server.Shutdown()
	logger.Info("Server shutdown complete")

	return nil
}
