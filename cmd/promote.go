/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"strings"

	"github.com/myopinion/apiserver/config"
	"github.com/myopinion/apiserver/internal/db"
	"github.com/myopinion/apiserver/internal/services"
	"github.com/myopinion/apiserver/internal/store"
	"github.com/myopinion/apiserver/internal/token"
	"github.com/spf13/cobra"
)

// promoteCmd represents the promote command. It is the bootstrap path to
// the first admin; after that, admins can promote through the API.
var promoteCmd = &cobra.Command{
	Use:   "promote <email>",
	Short: "Promote a user to admin by email",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		dbConn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		// The token authority is unused here but the service requires one.
		tokens := token.NewAuthority([]byte(cfg.JWT.Secret))
		auth := services.NewAuthService(store.NewUserRepository(dbConn), tokens)
		return auth.Promote(cmd.Context(), strings.TrimSpace(args[0]))
	},
}

func init() {
	rootCmd.AddCommand(promoteCmd)
}
