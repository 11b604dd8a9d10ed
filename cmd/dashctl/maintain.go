package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"doordashboard/internal/services"
)

func newDeleteCmd(e *env) *cobra.Command {
	var byID bool

	cmd := &cobra.Command{
		Use:   "delete <index|id>",
		Short: "Delete a session by position or, with --id, by its id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeCore := e.core(true)
			defer closeCore()
			ctx := commandContext(cmd)

			if byID {
				if err := c.Sessions.DeleteByID(ctx, args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted session %s\n", args[0])
				return nil
			}
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return errors.New("index must be an integer (use --id to delete by id)")
			}
			if err := c.Sessions.Delete(ctx, index); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted session at index %d\n", index)
			return nil
		},
	}
	cmd.Flags().BoolVar(&byID, "id", false, "treat the argument as a session id")
	return cmd
}

func newRepairCmd(e *env) *cobra.Command {
	var noBackup, dryRun bool

	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Rewrite stored sessions into canonical form",
		Long: "Flips reversed DD-MM-YYYY dates, stores numeric fields as numbers,\n" +
			"classifies merchants and recounts deliveries. The store is backed up\n" +
			"first unless --no-backup is given.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, closeCore := e.core(!dryRun)
			defer closeCore()

			report, err := c.Repair.Run(commandContext(cmd), services.RepairOptions{
				Backup: !noBackup,
				DryRun: dryRun,
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "skip the backup copy")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without writing")
	return cmd
}
