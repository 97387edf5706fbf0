package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/formlink/formlink/internal/config"
	"github.com/formlink/formlink/internal/email"
	"github.com/formlink/formlink/internal/logger"
	"github.com/formlink/formlink/internal/model"
	"github.com/formlink/formlink/internal/service"
)

func newSendCmd() *cobra.Command {
	var address, name, formID string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one results link email without going through the webhook",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			log := logger.New(cfg.Log.Level, "text")

			sender, err := email.NewSender(cmd.Context(), cfg.Email, log)
			if err != nil {
				return fmt.Errorf("failed to initialize email sender: %w", err)
			}

			// No delivery log or dedupe store: a manual send always goes out.
			svc := service.NewResultsLinkService(sender, nil, nil, cfg, log)

			d, err := svc.Process(cmd.Context(), manualSubmission(cfg.Dashboard, formID, address, name))
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s via %s\n%s\n", d.Status, d.Recipient, d.Provider, d.ResultsURL)
			return nil
		},
	}

	cmd.Flags().StringVar(&address, "email", "", "respondent email address")
	cmd.Flags().StringVar(&name, "name", "", "respondent name used in the greeting")
	cmd.Flags().StringVar(&formID, "form", "cli", "form ID recorded with the submission")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

// manualSubmission shapes CLI input like a webhook submission so it flows
// through the same field extraction.
func manualSubmission(dash config.DashboardConfig, formID, address, name string) *model.Submission {
	fields := map[string][]string{dash.EmailField: {address}}
	if name != "" && dash.NameField != "" {
		fields[dash.NameField] = []string{name}
	}

	return &model.Submission{
		ID:         uuid.NewString(),
		FormID:     formID,
		Fields:     fields,
		ReceivedAt: time.Now().UTC(),
	}
}
