package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"doordashboard/internal/amqp"
	"doordashboard/internal/cli"
	"doordashboard/internal/config"
	"doordashboard/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is what every subcommand loads before running.
type env struct {
	envFile  string
	dataFile string

	cfg    *config.Config
	logger *log.Logger
}

func newRootCmd() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:           "dashctl",
		Short:         "Operate a doordashboard session store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.load()
		},
	}
	root.PersistentFlags().StringVar(&e.envFile, "env-file", ".env", "dotenv file to load if present")
	root.PersistentFlags().StringVar(&e.dataFile, "data-file", "", "session store path (overrides DATA_FILE)")

	root.AddCommand(newSetupCmd(e))
	root.AddCommand(newAddCmd(e))
	root.AddCommand(newDeleteCmd(e))
	root.AddCommand(newRepairCmd(e))
	root.AddCommand(newExportCmd(e))
	root.AddCommand(newPrecomputeCmd(e))
	return root
}

func (e *env) load() error {
	if e.envFile != "" {
		if err := godotenv.Load(e.envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", e.envFile, err)
		}
	}
	e.cfg = config.Load()
	if e.dataFile != "" {
		e.cfg.DataFile = e.dataFile
	}
	e.logger = cli.SetupLogger(e.cfg).WithComponent(log.ComponentCLI)

	for _, p := range []string{e.cfg.DataFile, e.cfg.CacheFile, e.cfg.SQLiteDBPath} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("create directory for %s: %w", p, err)
		}
	}
	return nil
}

// core wires the data path. Mutating commands publish events when a broker
// is configured so a running worker picks the change up; a broker that
// cannot be reached only costs the event.
func (e *env) core(publish bool) (*cli.Core, func()) {
	var client *amqp.Client
	if publish {
		c, err := cli.ConnectAMQP(e.cfg, e.logger)
		if err != nil {
			e.logger.Warn("AMQP unavailable, change will not be announced", log.FieldError, err)
		} else {
			client = c
		}
	}
	closer := func() {}
	if client != nil {
		closer = func() { _ = client.Close() }
	}
	return cli.NewCore(e.cfg, e.logger, client), closer
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
