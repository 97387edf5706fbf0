package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/formlink/formlink/internal/auth"
	"github.com/formlink/formlink/internal/config"
)

func newTokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a webhook bearer token for a form trigger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			token, err := auth.NewWebhookTokenService(cfg.Webhook).Issue(subject, ttl)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "token subject, usually the form ID")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime; 0 issues a token without expiry")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}
