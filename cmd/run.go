package cmd

import (
	"log"

	"github.com/N8WM/cs-bot-v2/csbot"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [flags]",
	Short: "Starts the bot and (optionally) the status API",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		bot, err := csbot.New(ctx, cfg)
		if err != nil {
			log.Fatalf("error creating bot: %s", err.Error())
		}

		if err = bot.Run(ctx); err != nil {
			log.Fatalf("error running bot: %s", err.Error())
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
