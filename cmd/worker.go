/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"

	"github.com/myopinion/apiserver/config"
	"github.com/myopinion/apiserver/internal/mq"
	"github.com/myopinion/apiserver/internal/storage"
	"github.com/myopinion/apiserver/internal/worker"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// workerCmd represents the worker command.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Runs the attachment cleanup worker",
	Long: `Consumes cleanup events published when users or posts are deleted and
removes the attachment objects left behind in object storage.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log := logrus.New()
		ctx := cmd.Context()

		broker, err := mq.FromConfig(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("MQ_BACKEND is required for the worker")
		}
		defer broker.Close()

		objectStore, err := storage.FromConfig(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		if objectStore == nil {
			return errors.New("STORAGE_BACKEND is required for the worker")
		}

		if err := worker.New(broker, objectStore, log).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
