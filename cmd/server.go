package cmd

import (
	"vasilala/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the gateway daemon",
	Long:  `Start the HTTP gateway daemon serving documents, uploads, identity, and live notifications.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
