/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/myopinion/apiserver/config"
	"github.com/myopinion/apiserver/internal/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the forum backend server",
	Long: `Starts the forum backend server. Usage:

	apiserver server
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadConfig()
		log := logrus.New()

		srv, err := server.New(cmd.Context(), cfg, log)
		if err != nil {
			log.WithError(err).Fatal("failed to start server")
		}
		if err := srv.Start(); err != nil {
			log.WithError(err).Fatal("server error")
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
