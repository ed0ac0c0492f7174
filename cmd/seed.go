/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/myopinion/apiserver/config"
	"github.com/myopinion/apiserver/internal/db"
	"github.com/myopinion/apiserver/internal/seed"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// seedCmd represents the seed command.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the demo dataset",
	Long:  `Loads the default categories and demo accounts. Skipped when the database already has categories.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log := logrus.New()

		dbConn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		return seed.Run(cmd.Context(), dbConn, log)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
