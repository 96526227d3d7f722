package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"attune/internal/api"
	"attune/internal/deps"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Check availability of required external binaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := deps.CheckBinaries(deps.DefaultRequirements(cfg))

			if jsonOutput {
				return writeJSON(cmd, api.FromDependencyStatuses(statuses))
			}

			rows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				detail := status.Command
				if !status.Available {
					detail = status.Detail
				}
				rows = append(rows, []string{
					status.Name,
					yesNo(status.Available),
					status.Description,
					detail,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Binary", "Found", "Purpose", "Detail"},
				rows,
			))

			if missing := deps.MissingRequired(statuses); len(missing) > 0 {
				return fmt.Errorf("missing required binaries: %v", missing)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}
