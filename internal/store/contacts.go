package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/spigell/hh-outreach/internal/conversation"
)

// CreateContact adds c, assigning an id when it has none.
func (s *Store) CreateContact(ctx context.Context, c *conversation.Contact) error {
	if strings.TrimSpace(c.Email) == "" {
		return errors.New("contact email is required")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	row := contactToRow(c)

	var existing int64
	if err := s.db.WithContext(ctx).Model(&contactRow{}).Where("email = ?", row.Email).Count(&existing).Error; err != nil {
		return fmt.Errorf("check contact %s: %w", row.Email, err)
	}
	if existing > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateContact, row.Email)
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create contact: %w", err)
	}

	c.Email = row.Email
	s.logger.Debug("contact created", zap.String("contact_id", c.ID))
	return nil
}

// GetContact returns conversation.ErrContactNotFound for unknown ids.
func (s *Store) GetContact(ctx context.Context, id string) (*conversation.Contact, error) {
	var row contactRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, conversation.ErrContactNotFound
	}
	if err != nil {
		return nil, err
	}

	c := row.toContact()
	return &c, nil
}

// FindContact looks a contact up by id or email address.
func (s *Store) FindContact(ctx context.Context, ref string) (*conversation.Contact, error) {
	ref = strings.TrimSpace(ref)

	var row contactRow
	err := s.db.WithContext(ctx).
		Where("id = ? OR email = ?", ref, conversation.NormalizeAddress(ref)).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, conversation.ErrContactNotFound
	}
	if err != nil {
		return nil, err
	}

	c := row.toContact()
	return &c, nil
}

// ListContacts returns every contact ordered by name.
func (s *Store) ListContacts(ctx context.Context) ([]conversation.Contact, error) {
	var rows []contactRow
	if err := s.db.WithContext(ctx).Order("name, email").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return toContacts(rows), nil
}

// UpdateContact overwrites the editable fields of an existing contact.
func (s *Store) UpdateContact(ctx context.Context, c *conversation.Contact) error {
	row := contactToRow(c)
	res := s.db.WithContext(ctx).Model(&contactRow{}).Where("id = ?", c.ID).Updates(map[string]any{
		"name":         row.Name,
		"email":        row.Email,
		"company":      row.Company,
		"title":        row.Title,
		"profile_link": row.ProfileLink,
	})
	if res.Error != nil {
		return fmt.Errorf("update contact %s: %w", c.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return conversation.ErrContactNotFound
	}
	return nil
}

// DeleteContact removes a contact together with its email history.
func (s *Store) DeleteContact(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&contactRow{})
		if res.Error != nil {
			return fmt.Errorf("delete contact %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return conversation.ErrContactNotFound
		}
		if err := tx.Where("contact_id = ?", id).Delete(&emailRow{}).Error; err != nil {
			return fmt.Errorf("delete history of %s: %w", id, err)
		}
		return nil
	})
}

// ContactsWithSentEmail returns contacts that got at least one outbound or
// follow-up email.
func (s *Store) ContactsWithSentEmail(ctx context.Context) ([]conversation.Contact, error) {
	return s.contactsWithEmails(ctx, []string{
		string(conversation.DirectionOutbound),
		string(conversation.DirectionFollowUp),
	})
}

// ContactsWithConversation returns contacts with any recorded email.
func (s *Store) ContactsWithConversation(ctx context.Context) ([]conversation.Contact, error) {
	return s.contactsWithEmails(ctx, nil)
}

func (s *Store) contactsWithEmails(ctx context.Context, directions []string) ([]conversation.Contact, error) {
	sub := s.db.Model(&emailRow{}).Select("contact_id")
	if len(directions) > 0 {
		sub = sub.Where("direction IN ?", directions)
	}

	var rows []contactRow
	if err := s.db.WithContext(ctx).Where("id IN (?)", sub).Order("name, email").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list contacts with emails: %w", err)
	}
	return toContacts(rows), nil
}

func toContacts(rows []contactRow) []conversation.Contact {
	contacts := make([]conversation.Contact, 0, len(rows))
	for _, r := range rows {
		contacts = append(contacts, r.toContact())
	}
	return contacts
}
