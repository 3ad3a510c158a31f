package main

import (
	"context"
	"io"
	"path/filepath"

	"go.uber.org/zap"
)

type exporter struct {
	log *zap.SugaredLogger

	// connect overrides the driver lookup.
	connect Connector

	// dry prints the script to stdout instead of writing cfg.Output.
	dry    bool
	stdout io.Writer
}

// run exports cfg's database users and returns the absolute path of the
// written script ("" on a dry run). The source is closed on every path
// once connected.
func (e exporter) run(ctx context.Context, cfg Config) (path string, err error) {
	defer timer("export").done()

	connect := e.connect
	if connect == nil {
		var ok bool
		connect, ok = connectors[cfg.Driver]
		if !ok {
			return "", configError(nil, "Unknown driver %#v", cfg.Driver)
		}
	}

	e.log.Info("Connecting to the database...")
	e.log.Debugw("connection", "driver", cfg.Driver, "server", cfg.Server, "port", cfg.Port, "database", cfg.Database, "user", cfg.User)
	src, err := connect(ctx, cfg)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			e.log.Warnw("Closing database connection failed", "error", cerr)
		}
	}()

	e.log.Info("Fetching users and permissions...")
	rows, err := src.Rows(ctx)
	if err != nil {
		return "", err
	}
	for _, r := range rows {
		e.log.Debug(r.String())
	}

	e.log.Info("Generating SQL script...")
	lines := scriptLines(rows)
	e.log.Debugw("script generated", "rows", len(rows), "lines", len(lines))

	if e.dry {
		if err := writeLines(e.stdout, lines); err != nil {
			return "", writeError(err, "Write script to stdout")
		}
		return "", nil
	}

	path, err = filepath.Abs(cfg.Output)
	if err != nil {
		return "", writeError(err, "Resolve output path %#v", cfg.Output)
	}

	e.log.Infof("Writing to file: %s", cfg.Output)
	if err := writeFile(path, lines); err != nil {
		return "", err
	}
	return path, nil
}
