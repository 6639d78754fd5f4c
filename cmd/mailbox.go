/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/netsync/apiserver/internal/notify"
	"github.com/netsync/apiserver/internal/storage"
	"github.com/spf13/cobra"
)

var mailboxPurge bool

// mailboxCmd represents the mailbox command
var mailboxCmd = &cobra.Command{
	Use:   "mailbox <email>",
	Short: "Prints the latest captured verification email",
	Long: `Reads the mailbox bucket written when NOTIFY_DRIVER=bucket and prints
the most recent message sent to the given address. With --purge the
recipient's messages are deleted instead.

	netsync mailbox org@x.com
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _ := mustLoad()
		ctx := cmd.Context()

		store, err := storage.NewFromConfig(ctx, cfg)
		if err != nil {
			return err
		}

		prefix := notify.MailboxPrefix(cfg.Storage.Prefix, args[0])
		keys, err := store.List(ctx, prefix)
		if err != nil {
			return fmt.Errorf("list %s: %w", prefix, err)
		}
		if len(keys) == 0 {
			return fmt.Errorf("no messages for %s", args[0])
		}

		if mailboxPurge {
			for _, key := range keys {
				if err := store.Delete(ctx, key); err != nil {
					return fmt.Errorf("delete %s: %w", key, err)
				}
			}
			fmt.Fprintf(os.Stdout, "deleted %d messages\n", len(keys))
			return nil
		}

		rc, err := store.Get(ctx, keys[len(keys)-1])
		if err != nil {
			return err
		}
		defer rc.Close()
		_, err = io.Copy(os.Stdout, rc)
		return err
	},
}

func init() {
	rootCmd.AddCommand(mailboxCmd)

	mailboxCmd.Flags().BoolVar(&mailboxPurge, "purge", false, "Delete the recipient's messages")
}
