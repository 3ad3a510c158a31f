package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
)

type mainOptions struct {
	config  string
	env     string
	dry     bool
	debug   bool
	timing  bool
	example bool
	flags   Config
}

func main() {
	opts := &mainOptions{}
	cmd := newRootCmd(opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		printErr(os.Stderr, err, opts.debug)
		os.Exit(exitCode(err))
	}
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dbusers",
		Short: "Export database users and their permissions as an SQL script",
		Long: `Reads the database principals (SQL users, Windows users and Windows groups)
of the source database together with their object permissions, and writes a
script of CREATE USER and GRANT/DENY statements that recreates them.

Connection settings come from, in increasing priority: a YAML file (--config),
the environment (` + envPrefix + `SERVER, ` + envPrefix + `DATABASE, ` + envPrefix + `USER,
` + envPrefix + `PASSWORD, ...) including a .env file, and flags.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return mainRun(cmd.Context(), cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.config, "config", "c", "", "YAML configuration file")
	f.StringVar(&opts.env, "env", defaultEnv, "dotenv file with "+envPrefix+"* variables")
	f.BoolVarP(&opts.dry, "dry", "n", false, "Dry run (print the script, write no file)")
	f.BoolVarP(&opts.debug, "debug", "d", false, "Also print debug output")
	f.BoolVarP(&opts.timing, "timing", "t", false, "Print how long each step took")
	f.BoolVar(&opts.example, "example", false, "Print an example configuration file and exit")

	f.StringVar(&opts.flags.Driver, "driver", "", "Source database driver ("+strings.Join(driverNames(), ", ")+")")
	f.StringVarP(&opts.flags.Server, "server", "s", "", "Database server address")
	f.IntVar(&opts.flags.Port, "port", 0, "Database server port")
	f.StringVar(&opts.flags.Database, "database", "", "Database to export")
	f.StringVarP(&opts.flags.User, "user", "u", "", "Database user")
	f.StringVar(&opts.flags.Encrypt, "encrypt", "", "Connection encryption (disable, false, true, strict)")
	f.StringVarP(&opts.flags.Output, "output", "o", "", "Output file (default "+defaultOutput+")")

	return cmd
}

func mainRun(ctx context.Context, cmd *cobra.Command, opts *mainOptions) error {
	stdout := cmd.OutOrStdout()

	if opts.example {
		example(stdout)
		return nil
	}

	timing = opts.timing

	log, err := newLogger(opts.debug)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	cfg, err := loadConfig(configOptions{
		File:            opts.config,
		EnvFile:         opts.env,
		EnvFileExplicit: cmd.Flags().Changed("env"),
		Flags:           opts.flags,
	})
	if err != nil {
		return err
	}
	if err := cfg.validate(); err != nil {
		return err
	}
	if err := promptPassword(&cfg, os.Stdin, cmd.ErrOrStderr()); err != nil {
		return err
	}

	e := exporter{
		log:    log,
		dry:    opts.dry,
		stdout: stdout,
	}
	path, err := e.run(ctx, cfg)
	if err != nil {
		return err
	}

	report(stdout, path)
	return nil
}

func report(w io.Writer, path string) {
	if path == "" {
		return
	}
	fmt.Fprintf(w, "SQL script has been exported to %s\n", path)
}
