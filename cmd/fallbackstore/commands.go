package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ruteri/fallback-storage/api"
	"github.com/ruteri/fallback-storage/cmd/flags"
	"github.com/ruteri/fallback-storage/storage"
	"github.com/urfave/cli/v2"
)

type storageAction func(cCtx *cli.Context, fs *storage.FallbackStorage, logger *slog.Logger) error

func withStorage(action storageAction) cli.ActionFunc {
	return func(cCtx *cli.Context) error {
		cfg, err := flags.LoadConfig(cCtx)
		if err != nil {
			return err
		}
		logger := flags.SetupLogger(cCtx, cfg)

		fs, err := flags.OpenStorage(cfg, logger)
		if err != nil {
			return err
		}
		return action(cCtx, fs, logger)
	}
}

func nameArg(cCtx *cli.Context) (string, error) {
	name := cCtx.Args().First()
	if name == "" {
		return "", fmt.Errorf("%s: missing file name", cCtx.Command.Name)
	}
	return name, nil
}

func listDir(cCtx *cli.Context, fs *storage.FallbackStorage, _ *slog.Logger) error {
	dirs, files, err := fs.ListDir(cCtx.Context, cCtx.Args().First())
	if err != nil {
		return err
	}
	for _, d := range dirs {
		fmt.Fprintf(cCtx.App.Writer, "%s/\n", d)
	}
	for _, f := range files {
		fmt.Fprintln(cCtx.App.Writer, f)
	}
	return nil
}

func cat(cCtx *cli.Context, fs *storage.FallbackStorage, _ *slog.Logger) error {
	name, err := nameArg(cCtx)
	if err != nil {
		return err
	}
	rc, err := fs.Open(cCtx.Context, name)
	if err != nil {
		return err
	}
	defer rc.Close()

	_, err = io.Copy(cCtx.App.Writer, rc)
	return err
}

func put(cCtx *cli.Context, fs *storage.FallbackStorage, logger *slog.Logger) error {
	name, err := nameArg(cCtx)
	if err != nil {
		return err
	}

	var src io.Reader = cCtx.App.Reader
	if path := cCtx.Args().Get(1); path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		src = f
	}

	stored, err := fs.Save(cCtx.Context, name, src)
	if err != nil {
		return err
	}
	logger.Debug("Stored file", slog.String("requested", name), slog.String("name", stored))
	fmt.Fprintln(cCtx.App.Writer, stored)
	return nil
}

func remove(cCtx *cli.Context, fs *storage.FallbackStorage, _ *slog.Logger) error {
	name, err := nameArg(cCtx)
	if err != nil {
		return err
	}
	return fs.Delete(cCtx.Context, name)
}

func exists(cCtx *cli.Context, fs *storage.FallbackStorage, _ *slog.Logger) error {
	name, err := nameArg(cCtx)
	if err != nil {
		return err
	}
	ok, err := fs.Exists(cCtx.Context, name)
	if err != nil {
		return err
	}
	fmt.Fprintln(cCtx.App.Writer, ok)
	return nil
}

func stat(cCtx *cli.Context, fs *storage.FallbackStorage, _ *slog.Logger) error {
	name, err := nameArg(cCtx)
	if err != nil {
		return err
	}
	ctx := cCtx.Context

	size, err := fs.Size(ctx, name)
	if err != nil {
		return err
	}
	info := api.FileInfo{Name: name, Size: size}
	if t, err := fs.AccessedTime(ctx, name); err == nil {
		info.AccessedTime = &t
	}
	if t, err := fs.CreatedTime(ctx, name); err == nil {
		info.CreatedTime = &t
	}
	if t, err := fs.ModifiedTime(ctx, name); err == nil {
		info.ModifiedTime = &t
	}
	if u, err := fs.URL(ctx, name); err == nil {
		info.URL = u
	}

	enc := json.NewEncoder(cCtx.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}

func fileURL(cCtx *cli.Context, fs *storage.FallbackStorage, _ *slog.Logger) error {
	name, err := nameArg(cCtx)
	if err != nil {
		return err
	}
	u, err := fs.URL(cCtx.Context, name)
	if err != nil {
		return err
	}
	fmt.Fprintln(cCtx.App.Writer, u)
	return nil
}

func localPath(cCtx *cli.Context, fs *storage.FallbackStorage, _ *slog.Logger) error {
	name, err := nameArg(cCtx)
	if err != nil {
		return err
	}
	p, err := fs.Path(name)
	if err != nil {
		return err
	}
	fmt.Fprintln(cCtx.App.Writer, p)
	return nil
}

func validName(cCtx *cli.Context, fs *storage.FallbackStorage, _ *slog.Logger) error {
	name, err := nameArg(cCtx)
	if err != nil {
		return err
	}
	valid, err := fs.ValidName(name)
	if err != nil {
		return err
	}
	fmt.Fprintln(cCtx.App.Writer, valid)
	return nil
}

func availableName(cCtx *cli.Context, fs *storage.FallbackStorage, _ *slog.Logger) error {
	name, err := nameArg(cCtx)
	if err != nil {
		return err
	}
	available, err := fs.AvailableName(cCtx.Context, name)
	if err != nil {
		return err
	}
	fmt.Fprintln(cCtx.App.Writer, available)
	return nil
}
