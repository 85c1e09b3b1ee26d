package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <url>...",
		Short: "Download the given video links and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := appInstance.Download(cmd.Context(), args); err != nil {
				return fmt.Errorf("download: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved to %s\n", appInstance.OutputDir())
			return nil
		},
	}
}
