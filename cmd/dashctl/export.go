package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"doordashboard/internal/aggregate"
	"doordashboard/internal/cli"
	"doordashboard/internal/export"
	"doordashboard/internal/worker"
)

func newExportCmd(e *env) *cobra.Command {
	var view, format, outPath string
	var cached bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write derived views as JSON, CSV or YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}

			var views aggregate.Views
			if cached {
				cf, err := worker.ReadCacheFile(e.cfg.CacheFile)
				if err != nil {
					return fmt.Errorf("%w (run dashctl precompute or the worker first)", err)
				}
				views = cf.Aggregations
			} else {
				c, closeCore := e.core(false)
				defer closeCore()
				views, _, err = c.Dashboard.Views(commandContext(cmd))
				if err != nil {
					return err
				}
			}

			var w io.Writer = cmd.OutOrStdout()
			if outPath != "" {
				file, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer file.Close()
				w = file
			}
			return export.Write(w, views, view, f)
		},
	}
	cmd.Flags().StringVar(&view, "view", export.ViewAll, "view to export: "+strings.Join(export.Views, "|"))
	cmd.Flags().StringVar(&format, "format", string(export.FormatJSON), "output format: json|csv|yaml")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write to a file instead of stdout")
	cmd.Flags().BoolVar(&cached, "cached", false, "read the precomputed cache file instead of the store")
	return cmd
}

func newPrecomputeCmd(e *env) *cobra.Command {
	var sheets bool

	cmd := &cobra.Command{
		Use:   "precompute",
		Short: "Recompute every view once and write the cache file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)
			c, closeCore := e.core(false)
			defer closeCore()

			p := worker.NewPrecomputer(c.Dashboard, c.Snapshots, e.cfg.CacheFile, nil, e.logger)
			if sheets {
				exporter, err := cli.WeeklyExporter(ctx, e.cfg, e.logger)
				if err != nil {
					return err
				}
				p = worker.NewPrecomputer(c.Dashboard, c.Snapshots, e.cfg.CacheFile, exporter, e.logger)
			}
			if err := p.Run(ctx, worker.TriggerManual); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", e.cfg.CacheFile)
			return nil
		},
	}
	cmd.Flags().BoolVar(&sheets, "sheets", false, "also export the weekly rollup to Google Sheets when configured")
	return cmd
}
