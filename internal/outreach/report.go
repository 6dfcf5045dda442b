package outreach

import (
	"context"
	"fmt"

	"github.com/spigell/hh-outreach/internal/conversation"
	"github.com/spigell/hh-outreach/internal/eligibility"
	"github.com/spigell/hh-outreach/internal/filtering"
)

// Histories reconciles the conversation of every contact and returns the
// records keyed by contact id. Local records are read in one query.
func (o *Orchestrator) Histories(ctx context.Context, contacts []conversation.Contact) (map[string][]conversation.EmailRecord, error) {
	ids := make([]string, 0, len(contacts))
	for _, c := range contacts {
		ids = append(ids, c.ID)
	}

	local, err := o.store.EmailsForContacts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load histories: %w", err)
	}

	histories := make(map[string][]conversation.EmailRecord, len(contacts))
	for i := range contacts {
		thread := o.reconcile(ctx, &contacts[i], local[contacts[i].ID])
		histories[contacts[i].ID] = thread.Records
	}
	return histories, nil
}

// Eligibility runs contacts through the exclusion filters and splits what is
// left into the outreach and follow-up lists.
func (o *Orchestrator) Eligibility(ctx context.Context, contacts []conversation.Contact, cfg *filtering.Config) (*eligibility.Report, error) {
	histories, err := o.Histories(ctx, contacts)
	if err != nil {
		return nil, err
	}

	now := o.now()
	left, err := o.exclude(ctx, cfg, histories, contacts)
	if err != nil {
		return nil, err
	}

	return eligibility.Build(left, histories, now), nil
}

// FollowUpsDue returns the contacts currently due for a follow-up. Only
// contacts that were ever emailed are considered, so the mailbox is not
// queried for the rest of the contact book.
func (o *Orchestrator) FollowUpsDue(ctx context.Context, cfg *filtering.Config) ([]conversation.Contact, error) {
	candidates, err := o.store.ContactsWithSentEmail(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contacts with sent emails: %w", err)
	}

	histories, err := o.Histories(ctx, candidates)
	if err != nil {
		return nil, err
	}

	left, err := o.exclude(ctx, cfg, histories, candidates)
	if err != nil {
		return nil, err
	}

	now := o.now()
	due := make([]conversation.Contact, 0, len(left))
	for _, c := range left {
		if eligibility.NeedsFollowUp(c, histories[c.ID], now) {
			due = append(due, c)
		}
	}
	return due, nil
}

// BatchRecipients returns the ids of contacts a batch outreach may go to: not
// excluded and outside the outreach window.
func (o *Orchestrator) BatchRecipients(ctx context.Context, contacts []conversation.Contact, cfg *filtering.Config) ([]string, error) {
	histories, err := o.Histories(ctx, contacts)
	if err != nil {
		return nil, err
	}

	steps := []filtering.Filter{filtering.NewExcludedCompanies(), filtering.NewExcludeFile(), filtering.NewOutreachWindow()}
	left, err := filtering.Run(ctx, cfg, filtering.Deps{Logger: o.logger, Histories: histories, Now: o.now()}, steps, filtering.NewContacts(contacts))
	if err != nil {
		return nil, fmt.Errorf("filter contacts: %w", err)
	}

	ids := make([]string, 0, left.Len())
	for _, c := range left.Items {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func (o *Orchestrator) exclude(ctx context.Context, cfg *filtering.Config, histories map[string][]conversation.EmailRecord, contacts []conversation.Contact) ([]conversation.Contact, error) {
	steps := []filtering.Filter{filtering.NewExcludedCompanies(), filtering.NewExcludeFile()}
	left, err := filtering.Run(ctx, cfg, filtering.Deps{Logger: o.logger, Histories: histories, Now: o.now()}, steps, filtering.NewContacts(contacts))
	if err != nil {
		return nil, fmt.Errorf("filter contacts: %w", err)
	}
	return left.Items, nil
}
