package cmd

import (
	"fmt"

	"github.com/N8WM/cs-bot-v2/csbot"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of the application",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf(
			"version=%s commit=%s built: %s",
			csbot.Version,
			csbot.CommitSHA,
			csbot.BuildTime,
		)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
