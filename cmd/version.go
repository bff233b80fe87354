package cmd

import (
	"fmt"

	"github.com/TiltedBl0ck/Tilt-bot-sub000/tiltbot"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of the application",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf(
			"version=%s commit=%s built: %s",
			tiltbot.Version,
			tiltbot.CommitSHA,
			tiltbot.BuildTime,
		)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
