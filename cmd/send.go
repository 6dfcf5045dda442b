package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hh-outreach/internal/ai"
	"github.com/spigell/hh-outreach/internal/outreach"
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show exactly what would be sent",
	Run: func(cmd *cobra.Command, _ []string) {
		draft, err := draftFromFlags(cmd)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		printPayload(outreach.Preview(draft))
	},
}

var sendCmd = &cobra.Command{
	Use:   "send [id|email]",
	Short: "Send an email to a contact, or to every outreach-ready contact with --batch",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		send(cmd, args)
	},
}

var followUpCmd = &cobra.Command{
	Use:   "follow-up [id|email]",
	Short: "Send a follow-up into the existing conversation, or to every contact due for one with --due",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		due, _ := cmd.Flags().GetBool("due")
		switch {
		case due && len(args) > 0:
			fmt.Fprintln(os.Stderr, "either a contact or --due is allowed")
			os.Exit(1)
		case due:
			followUpDue(cmd)
		case len(args) == 1:
			followUp(cmd, args[0])
		default:
			fmt.Fprintln(os.Stderr, "a contact or --due is required")
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(previewCmd, sendCmd, followUpCmd)

	for _, c := range []*cobra.Command{previewCmd, sendCmd, followUpCmd} {
		c.Flags().StringP("subject", "s", "", "email subject")
		c.Flags().StringP("body", "b", "", "email body")
		c.Flags().StringP("body-file", "f", "", "read the email body from a file")
		c.Flags().Bool("html", false, "the body is html")
	}

	for _, c := range []*cobra.Command{sendCmd, followUpCmd} {
		c.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
		c.Flags().BoolP("generate", "g", false, "let the ai assistant write the email")
		c.Flags().String("tone", "", "tone of the generated email (professional, friendly, formal, casual)")
		c.Flags().String("type", "", "type of the generated email (outreach, follow_up, referral, thank_you)")
		c.Flags().String("instructions", "", "extra instructions for the ai assistant")
		c.Flags().StringSlice("roles", nil, "target roles, defaults to the profile ones")
	}

	sendCmd.Flags().Bool("batch", false, "send to every contact ready for outreach")
	followUpCmd.Flags().Bool("due", false, "follow up with every contact currently due")
}

func send(cmd *cobra.Command, args []string) {
	d := setup(context.Background())
	defer d.close()

	draft, err := draftFromFlags(cmd)
	if err != nil {
		d.logger.Fatal("reading the draft", zap.Error(err))
	}
	if err := assistFromFlags(cmd, &draft); err != nil {
		d.logger.Fatal("reading ai settings", zap.Error(err))
	}

	o := d.orchestrator()
	batch, _ := cmd.Flags().GetBool("batch")

	switch {
	case batch && len(args) > 0:
		d.logger.Fatal("either a contact or --batch is allowed")
	case batch:
		contacts, err := d.store.ListContacts(d.ctx)
		if err != nil {
			d.logger.Fatal("listing contacts", zap.Error(err))
		}
		draft.ContactIDs, err = o.BatchRecipients(d.ctx, contacts, d.filters())
		if err != nil {
			d.logger.Fatal("selecting recipients", zap.Error(err))
		}
		if len(draft.ContactIDs) == 0 {
			d.logger.Info("exiting", zap.String("reason", "no contacts ready for outreach"))
			return
		}
	case len(args) == 1:
		c, err := d.store.FindContact(d.ctx, args[0])
		if err != nil {
			d.logger.Fatal("finding a contact", zap.Error(err))
		}
		draft.ContactIDs = []string{c.ID}
	default:
		d.logger.Fatal("a contact or --batch is required")
	}

	if draft.Assist == nil {
		printPayload(outreach.Preview(draft))
	}
	if !confirm(cmd, fmt.Sprintf("Send to %d contact(s)", len(draft.ContactIDs))) {
		d.logger.Info("exiting", zap.String("reason", "got no from prompt"))
		return
	}

	var outcomes []*outreach.Outcome
	if batch {
		outcomes = o.SendBatch(d.ctx, draft)
	} else {
		out, _ := o.Send(d.ctx, draft)
		outcomes = []*outreach.Outcome{out}
	}

	if failed := report(d.logger, outcomes); failed > 0 {
		d.logger.Fatal("some emails were not sent", zap.Int("failed", failed), zap.Int("total", len(outcomes)))
	}
}

func followUp(cmd *cobra.Command, ref string) {
	d := setup(context.Background())
	defer d.close()

	draft, err := draftFromFlags(cmd)
	if err != nil {
		d.logger.Fatal("reading the draft", zap.Error(err))
	}
	if err := assistFromFlags(cmd, &draft); err != nil {
		d.logger.Fatal("reading ai settings", zap.Error(err))
	}

	c, err := d.store.FindContact(d.ctx, ref)
	if err != nil {
		d.logger.Fatal("finding a contact", zap.Error(err))
	}

	if !confirm(cmd, fmt.Sprintf("Send a follow-up to %s <%s>", c.Name, c.Email)) {
		d.logger.Info("exiting", zap.String("reason", "got no from prompt"))
		return
	}

	out, _ := d.orchestrator().FollowUp(d.ctx, c.ID, draft)
	if failed := report(d.logger, []*outreach.Outcome{out}); failed > 0 {
		d.logger.Fatal("follow-up was not sent")
	}
}

func followUpDue(cmd *cobra.Command) {
	d := setup(context.Background())
	defer d.close()

	draft, err := draftFromFlags(cmd)
	if err != nil {
		d.logger.Fatal("reading the draft", zap.Error(err))
	}
	if err := assistFromFlags(cmd, &draft); err != nil {
		d.logger.Fatal("reading ai settings", zap.Error(err))
	}

	o := d.orchestrator()
	due, err := o.FollowUpsDue(d.ctx, d.filters())
	if err != nil {
		d.logger.Fatal("finding contacts due for a follow-up", zap.Error(err))
	}
	if len(due) == 0 {
		d.logger.Info("exiting", zap.String("reason", "nobody is due for a follow-up"))
		return
	}

	if !confirm(cmd, fmt.Sprintf("Send follow-ups to %d contacts", len(due))) {
		d.logger.Info("exiting", zap.String("reason", "got no from prompt"))
		return
	}

	outcomes := make([]*outreach.Outcome, 0, len(due))
	for _, c := range due {
		out, _ := o.FollowUp(d.ctx, c.ID, draft)
		outcomes = append(outcomes, out)
	}

	if failed := report(d.logger, outcomes); failed > 0 {
		d.logger.Fatal("some follow-ups were not sent", zap.Int("failed", failed), zap.Int("total", len(outcomes)))
	}
}

// report logs every outcome and returns how many failed.
func report(logger *zap.Logger, outcomes []*outreach.Outcome) int {
	failed := 0
	for _, out := range outcomes {
		fields := []zap.Field{
			zap.String("contact_id", out.ContactID),
			zap.String("recipient", out.Recipient),
			zap.String("state", string(out.State)),
		}

		if out.Err != nil {
			failed++
			logger.Error("email not sent", append(fields,
				zap.Error(out.Err),
				zap.Bool("recoverable", outreach.IsRecoverable(out.Err)),
			)...)
			continue
		}

		if out.Warning != nil {
			logger.Warn("email sent with a warning", append(fields, zap.Error(out.Warning))...)
			continue
		}
		logger.Info("email delivered", fields...)
	}
	return failed
}

func draftFromFlags(cmd *cobra.Command) (outreach.Draft, error) {
	body := flagString(cmd, "body")
	if file := flagString(cmd, "body-file"); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return outreach.Draft{}, fmt.Errorf("reading body file: %w", err)
		}
		body = string(data)
	}

	isHTML, _ := cmd.Flags().GetBool("html")
	return outreach.Draft{
		Subject: flagString(cmd, "subject"),
		Body:    body,
		IsHTML:  isHTML,
	}, nil
}

func assistFromFlags(cmd *cobra.Command, draft *outreach.Draft) error {
	if generate, _ := cmd.Flags().GetBool("generate"); !generate {
		return nil
	}

	roles, _ := cmd.Flags().GetStringSlice("roles")
	settings, err := ai.Settings{
		Tone:               ai.Tone(flagString(cmd, "tone")),
		EmailType:          ai.EmailType(flagString(cmd, "type")),
		CustomInstructions: flagString(cmd, "instructions"),
		TargetRoles:        roles,
	}.Normalize()
	if err != nil {
		return err
	}

	draft.Assist = &settings
	return nil
}

func printPayload(p outreach.Payload) {
	kind := "text"
	if p.IsHTML {
		kind = "html"
	}
	fmt.Printf("Subject: %s\nFormat: %s\n\n%s\n", p.Subject, kind, strings.TrimRight(p.Body, "\n"))
}
