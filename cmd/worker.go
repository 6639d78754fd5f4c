/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/netsync/apiserver/config"
	"github.com/netsync/apiserver/internal/mq"
	"github.com/netsync/apiserver/internal/notify"
	"github.com/spf13/cobra"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Delivers verification emails published by the API",
	Long: `Consumes verification messages from the broker channel the API
publishes to when NOTIFY_DRIVER=broker, and delivers each one with the
sender named by NOTIFY_RELAY_DRIVER (smtp, bucket or log).

	netsync worker
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log := mustLoad()
		if cfg.MQ.Driver == config.MQDriverMemory {
			return errors.New("the memory broker is relayed inside the server process; no worker is needed")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sender, closeSender, err := notify.NewSenderFromConfig(ctx, cfg, cfg.Notify.RelayDriver, os.Stdout, log)
		if err != nil {
			return fmt.Errorf("relay sender: %w", err)
		}
		defer closeSender()

		broker, err := mq.NewFromConfig(ctx, cfg)
		if err != nil {
			return err
		}
		defer broker.Close()

		log.Info("relaying verification emails", "channel", cfg.MQ.Channel, "broker", cfg.MQ.Driver, "sender", cfg.Notify.RelayDriver)
		err = broker.Subscribe(ctx, cfg.MQ.Channel, notify.Relay(sender, log.With("component", "relay")))
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("subscribe %s: %w", cfg.MQ.Channel, err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
