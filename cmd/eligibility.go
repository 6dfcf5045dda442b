package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hh-outreach/internal/conversation"
	"github.com/spigell/hh-outreach/internal/eligibility"
)

var eligibilityCmd = &cobra.Command{
	Use:   "eligibility",
	Short: "Show contacts ready for outreach and contacts due for a follow-up",
	Run: func(cmd *cobra.Command, _ []string) {
		d := setup(context.Background())
		defer d.close()

		contacts, err := d.store.ListContacts(d.ctx)
		if err != nil {
			d.logger.Fatal("listing contacts", zap.Error(err))
		}

		report, err := d.orchestrator().Eligibility(d.ctx, contacts, d.filters())
		if err != nil {
			d.logger.Fatal("computing eligibility", zap.Error(err))
		}

		if asJSON, _ := cmd.Flags().GetBool("output-json"); asJSON {
			pretty, _ := json.MarshalIndent(report, "", "  ")
			fmt.Println(string(pretty))
			return
		}

		printList("Ready for outreach", report.Outreach, report)
		printList("Due for a follow-up", report.FollowUp, report)
	},
}

func init() {
	rootCmd.AddCommand(eligibilityCmd)
	eligibilityCmd.Flags().Bool("output-json", false, "print the report as json")
}

func printList(title string, contacts []conversation.Contact, report *eligibility.Report) {
	fmt.Printf("%s (%d)\n", title, len(contacts))
	if len(contacts) == 0 {
		fmt.Println()
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tLAST SENT\tLAST REPLY")
	for _, c := range contacts {
		win := report.Windows[c.ID]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.Name, c.Email, formatTime(win.LastSentAt), formatTime(win.LastReplyAt))
	}
	_ = w.Flush()
	fmt.Println()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
