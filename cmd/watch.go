package cmd

import (
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the clipboard and download every copied video link",
		Long: `Polls the clipboard and queues each newly copied video link. Runs
until interrupted; an in-flight download is stopped and its partial file
removed on exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return appInstance.Watch(cmd.Context())
		},
	}
}
