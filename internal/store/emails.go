package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/spigell/hh-outreach/internal/conversation"
)

// AppendEmail records a new email. Existing records are never updated.
func (s *Store) AppendEmail(ctx context.Context, rec *conversation.EmailRecord) error {
	if rec.ContactID == "" {
		return errors.New("email record needs a contact id")
	}
	if !rec.Direction.Valid() {
		return fmt.Errorf("email record has invalid direction %q", rec.Direction)
	}
	if rec.SentAt.IsZero() {
		return errors.New("email record needs a send time")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	row := recordToRow(rec)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("append email for %s: %w", rec.ContactID, err)
	}
	return nil
}

// EmailsForContact returns the local history of a contact in send order.
func (s *Store) EmailsForContact(ctx context.Context, contactID string) ([]conversation.EmailRecord, error) {
	var rows []emailRow
	if err := s.db.WithContext(ctx).
		Where("contact_id = ?", contactID).
		Order("sent_at, created_at").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load emails of %s: %w", contactID, err)
	}

	records := make([]conversation.EmailRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.toRecord())
	}
	return records, nil
}

// EmailsForContacts returns the local histories keyed by contact id.
func (s *Store) EmailsForContacts(ctx context.Context, contactIDs []string) (map[string][]conversation.EmailRecord, error) {
	histories := make(map[string][]conversation.EmailRecord, len(contactIDs))
	if len(contactIDs) == 0 {
		return histories, nil
	}

	var rows []emailRow
	if err := s.db.WithContext(ctx).
		Where("contact_id IN ?", contactIDs).
		Order("sent_at, created_at").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load emails: %w", err)
	}

	for _, r := range rows {
		histories[r.ContactID] = append(histories[r.ContactID], r.toRecord())
	}
	return histories, nil
}
