package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hh-outreach/internal/conversation"
	"github.com/spigell/hh-outreach/internal/format"
)

var threadCmd = &cobra.Command{
	Use:   "thread <id|email>",
	Short: "Show the reconciled conversation with a contact",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		d := setup(context.Background())
		defer d.close()

		c, err := d.store.FindContact(d.ctx, args[0])
		if err != nil {
			d.logger.Fatal("finding a contact", zap.Error(err))
		}

		thread, err := d.orchestrator().History(d.ctx, c.ID)
		if err != nil {
			d.logger.Fatal("loading the conversation", zap.Error(err))
		}

		printThread(c, thread)
	},
}

func init() {
	rootCmd.AddCommand(threadCmd)
}

func printThread(c *conversation.Contact, thread conversation.Thread) {
	fmt.Printf("%s <%s>: %s\n", c.Name, c.Email, thread.Subject)
	fmt.Printf("%d emails, %d sent, %d follow-ups, %d replies\n\n",
		thread.Stats.Total, thread.Stats.Outbound, thread.Stats.FollowUps, thread.Stats.Inbound)

	for _, rec := range thread.Visible {
		fmt.Printf("--- %s  %s  %s\n", rec.SentAt.Local().Format("2006-01-02 15:04"), rec.Direction, rec.Subject)
		fmt.Println(strings.TrimSpace(format.Readable(rec.Body)))
		fmt.Println()
	}
}
