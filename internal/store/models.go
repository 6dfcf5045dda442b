package store

import (
	"time"

	"github.com/spigell/hh-outreach/internal/conversation"
	"github.com/spigell/hh-outreach/internal/profile"
)

type contactRow struct {
	ID          string `gorm:"primaryKey"`
	Name        string `gorm:"not null"`
	Email       string `gorm:"uniqueIndex;not null"`
	Company     string
	Title       string
	ProfileLink string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (contactRow) TableName() string { return "contacts" }

func (r contactRow) toContact() conversation.Contact {
	return conversation.Contact{
		ID:          r.ID,
		Name:        r.Name,
		Email:       r.Email,
		Company:     r.Company,
		Title:       r.Title,
		ProfileLink: r.ProfileLink,
	}
}

func contactToRow(c *conversation.Contact) contactRow {
	return contactRow{
		ID:          c.ID,
		Name:        c.Name,
		Email:       conversation.NormalizeAddress(c.Email),
		Company:     c.Company,
		Title:       c.Title,
		ProfileLink: c.ProfileLink,
	}
}

// emailRow is append-only.
type emailRow struct {
	ID          string `gorm:"primaryKey"`
	ContactID   string `gorm:"index;not null"`
	FromAddress string `gorm:"not null"`
	ToAddress   string
	Subject     string
	Body        string `gorm:"type:text"`
	IsHTML      bool
	Direction   string    `gorm:"index;not null"`
	SentAt      time.Time `gorm:"index;not null"`
	MessageID   string    `gorm:"index"`
	ThreadID    string
	CreatedAt   time.Time
}

func (emailRow) TableName() string { return "emails" }

func (r emailRow) toRecord() conversation.EmailRecord {
	return conversation.EmailRecord{
		ID:        r.ID,
		ContactID: r.ContactID,
		From:      r.FromAddress,
		To:        r.ToAddress,
		Subject:   r.Subject,
		Body:      r.Body,
		IsHTML:    r.IsHTML,
		Direction: conversation.Direction(r.Direction),
		SentAt:    r.SentAt.UTC(),
		MessageID: r.MessageID,
		ThreadID:  r.ThreadID,
		Source:    conversation.SourceLocal,
	}
}

func recordToRow(rec *conversation.EmailRecord) emailRow {
	return emailRow{
		ID:          rec.ID,
		ContactID:   rec.ContactID,
		FromAddress: conversation.NormalizeAddress(rec.From),
		ToAddress:   conversation.NormalizeAddress(rec.To),
		Subject:     rec.Subject,
		Body:        rec.Body,
		IsHTML:      rec.IsHTML,
		Direction:   string(rec.Direction),
		SentAt:      rec.SentAt.UTC(),
		MessageID:   rec.MessageID,
		ThreadID:    rec.ThreadID,
	}
}

// profileRow holds the single local profile.
type profileRow struct {
	ID        uint            `gorm:"primaryKey"`
	Data      profile.Profile `gorm:"serializer:json;type:text"`
	UpdatedAt time.Time
}

func (profileRow) TableName() string { return "profiles" }

const profileRowID = 1
