package cmd

import (
	"log"

	"github.com/N8WM/cs-bot-v2/csbot"
	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Registers the bot's slash commands with Discord",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		bot, err := csbot.New(ctx, cfg)
		if err != nil {
			log.Fatalf("error creating bot: %s", err.Error())
		}

		commands, err := bot.RegisterSlashCommands()
		if err != nil {
			log.Fatalf("error registering commands: %s", err.Error())
		}
		for _, c := range commands {
			log.Printf("registered command: /%s", c.Name)
		}
	},
}

func init() {
	rootCmd.AddCommand(registerCmd)
}
