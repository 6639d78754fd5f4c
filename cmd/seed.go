/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"

	"github.com/netsync/apiserver/config"
	"github.com/netsync/apiserver/internal/server"
	"github.com/netsync/apiserver/internal/services"
	"github.com/spf13/cobra"
)

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Creates verified demo accounts",
	Long: `Creates one verified account per role for local testing. The
organizer, staff and attendee accounts belong to tenant_001. Accounts whose
email already exists are left alone.

	netsync seed
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log := mustLoad()
		if cfg.Env == "prod" {
			return errors.New("refusing to seed demo accounts with ENV=prod")
		}
		// Seeding sends no mail.
		cfg.Notify.Driver = config.NotifyDriverLog

		c, err := server.NewComponents(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer c.Close()

		report, err := c.Identity.Seed(cmd.Context(), services.DemoAccounts)
		if err != nil {
			return err
		}
		log.Info("seeded demo accounts", "created", report.Created, "skipped", report.Skipped)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
