package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hh-outreach/internal/conversation"
	"github.com/spigell/hh-outreach/internal/filtering"
)

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "Manage recruiter contacts",
}

var contactsAddCmd = &cobra.Command{
	Use:   "add <email>",
	Short: "Add a contact",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		d := setup(context.Background())
		defer d.close()

		c := &conversation.Contact{
			Email:       args[0],
			Name:        flagString(cmd, "name"),
			Company:     flagString(cmd, "company"),
			Title:       flagString(cmd, "title"),
			ProfileLink: flagString(cmd, "link"),
		}
		if err := d.store.CreateContact(d.ctx, c); err != nil {
			d.logger.Fatal("adding a contact", zap.Error(err))
		}

		d.logger.Info("contact added", zap.String("contact_id", c.ID), zap.String("email", c.Email))
	},
}

var contactsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List contacts",
	Run: func(cmd *cobra.Command, _ []string) {
		sent, _ := cmd.Flags().GetBool("sent")
		talked, _ := cmd.Flags().GetBool("with-conversation")

		d := setup(context.Background())
		defer d.close()

		var (
			contacts []conversation.Contact
			err      error
		)
		switch {
		case sent && talked:
			d.logger.Fatal("--sent and --with-conversation are mutually exclusive")
		case sent:
			contacts, err = d.store.ContactsWithSentEmail(d.ctx)
		case talked:
			contacts, err = d.store.ContactsWithConversation(d.ctx)
		default:
			contacts, err = d.store.ListContacts(d.ctx)
		}
		if err != nil {
			d.logger.Fatal("listing contacts", zap.Error(err))
		}

		printContacts(contacts)
	},
}

var contactsRemoveCmd = &cobra.Command{
	Use:   "remove <id|email>",
	Short: "Remove a contact with its history",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		d := setup(context.Background())
		defer d.close()

		c, err := d.store.FindContact(d.ctx, args[0])
		if err != nil {
			d.logger.Fatal("finding a contact", zap.Error(err))
		}

		if !confirm(cmd, fmt.Sprintf("Remove %s <%s> and all recorded emails", c.Name, c.Email)) {
			d.logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}

		if err := d.store.DeleteContact(d.ctx, c.ID); err != nil {
			d.logger.Fatal("removing a contact", zap.Error(err))
		}
		d.logger.Info("contact removed", zap.String("contact_id", c.ID))
	},
}

var contactsExcludeCmd = &cobra.Command{
	Use:   "exclude <id|email>...",
	Short: "Append contacts to the exclude file",
	Args:  cobra.MinimumNArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		d := setup(context.Background())
		defer d.close()

		path := d.config.Outreach.ExcludeFile
		if path == "" {
			d.logger.Fatal("exclude file is not configured", zap.String("hint", "set outreach.exclude-file"))
		}

		excluded, err := filtering.LoadExcluded(path)
		if err != nil {
			d.logger.Fatal("reading the exclude file", zap.Error(err))
		}

		for _, ref := range args {
			c, err := d.store.FindContact(d.ctx, ref)
			if err != nil {
				d.logger.Fatal("finding a contact", zap.String("contact", ref), zap.Error(err))
			}
			excluded.Add(*c)
		}

		if err := excluded.ToFile(path); err != nil {
			d.logger.Fatal("writing the exclude file", zap.Error(err))
		}
		d.logger.Info("appended to exclude file", zap.String("filename", path), zap.Int("entries", len(excluded.Items)))
	},
}

func init() {
	rootCmd.AddCommand(contactsCmd)
	contactsCmd.AddCommand(contactsAddCmd, contactsListCmd, contactsRemoveCmd, contactsExcludeCmd)

	contactsAddCmd.Flags().StringP("name", "n", "", "contact name")
	contactsAddCmd.Flags().StringP("company", "c", "", "company the contact works at")
	contactsAddCmd.Flags().StringP("title", "t", "", "contact job title")
	contactsAddCmd.Flags().StringP("link", "l", "", "link to the contact profile")

	contactsListCmd.Flags().Bool("sent", false, "only contacts that were emailed at least once")
	contactsListCmd.Flags().Bool("with-conversation", false, "only contacts with any recorded email")

	contactsRemoveCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
}

func printContacts(contacts []conversation.Contact) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tCOMPANY\tTITLE")
	for _, c := range contacts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.Name, c.Email, c.Company, c.Title)
	}
	_ = w.Flush()
}

func flagString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}
