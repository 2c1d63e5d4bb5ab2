package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxcal/internal/scheduling"
	"github.com/teemow/inboxcal/internal/server"
)

func newDetectCmd() *cobra.Command {
	var (
		subject string
		body    string
		emailID string
	)

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Check an email for scheduling intent",
		Long: `Run the scheduling intent detector on a subject and body, or on a
Gmail message fetched by id. Prints the verdict as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if emailID != "" && (subject != "" || body != "") {
				return fmt.Errorf("--email-id cannot be combined with --subject or --body")
			}
			if emailID == "" && subject == "" && body == "" {
				return fmt.Errorf("either --email-id or --subject/--body is required")
			}
			if emailID == "" {
				return writeDetection(cmd.OutOrStdout(), "", scheduling.NewDetector().Detect(subject, body))
			}
			return runDetectEmail(cmd, emailID)
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Email subject")
	cmd.Flags().StringVar(&body, "body", "", "Email body")
	cmd.Flags().StringVar(&emailID, "email-id", "", "Gmail message id to fetch and analyze")

	return cmd
}

func runDetectEmail(cmd *cobra.Command, emailID string) error {
	ctx := context.Background()

	cfg, err := loadConfig(ctx, cmd)
	if err != nil {
		return err
	}
	sc, err := server.NewServerContext(ctx, server.Options{Config: cfg, Logger: newLogger(cfg)})
	if err != nil {
		return err
	}
	defer func() { _ = sc.Shutdown() }()

	email, result, err := sc.Orchestrator().DetectEmail(ctx, emailID)
	if err != nil {
		return err
	}
	return writeDetection(cmd.OutOrStdout(), email.Subject, result)
}

func writeDetection(w io.Writer, subject string, result scheduling.Result) error {
	out := struct {
		Subject string `json:"subject,omitempty"`
		scheduling.Result
	}{Subject: subject, Result: result}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
