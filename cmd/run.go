package cmd

import (
	"log"

	"github.com/TiltedBl0ck/Tilt-bot-sub000/tiltbot"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [flags]",
	Short: "Starts the Tilt-bot Discord bot and (optionally) the admin API",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		bot, err := tiltbot.New(cfg)
		if err != nil {
			log.Fatalf("error creating tiltbot: %s", err.Error())
		}

		if err = bot.Run(ctx); err != nil {
			log.Fatalf("error running tiltbot: %s", err.Error())
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
