package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/clipdl/internal/intake"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that ffmpeg and a clipboard backend are available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "output dir: %s\n", appInstance.OutputDir())

			clip := "available"
			if !intake.ClipboardSupported() {
				clip = "unavailable"
			}
			fmt.Fprintf(out, "clipboard:  %s\n", clip)

			st, err := appInstance.CheckDependencies(cmd.Context())
			if err != nil {
				fmt.Fprintf(out, "ffmpeg:     missing (%v)\n", err)
				return err
			}
			fmt.Fprintf(out, "ffmpeg:     %s (%s)\n", st.Path, st.Version)
			return nil
		},
	}
}
