package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"attune/internal/api"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "convert <youtube-url>",
		Short: "Convert a YouTube track to 432 Hz and wait for the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := strings.TrimSpace(args[0])
			return ctx.withClient(cmd.Context(), func(client *api.Client) error {
				fmt.Fprintln(cmd.OutOrStdout(), "Converting... this can take a few minutes for long tracks.")
				resp, err := client.Convert(cmd.Context(), url)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "Conversion complete.")
				fmt.Fprintf(out, "  File ID:  %s\n", resp.FileID)
				fmt.Fprintf(out, "  Listen:   %s\n", resp.AudioURL)
				fmt.Fprintf(out, "  Download: %s\n", resp.DownloadURL)
				fmt.Fprintf(out, "  Share:    %s\n", resp.ShareURL)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}
