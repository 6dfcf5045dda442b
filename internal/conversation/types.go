package conversation

import (
	"errors"
	"strings"
	"time"
)

// Direction is the role an email plays in a conversation.
type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
	DirectionFollowUp Direction = "follow_up"
)

// Valid reports whether d is one of the known directions.
func (d Direction) Valid() bool {
	switch d {
	case DirectionOutbound, DirectionInbound, DirectionFollowUp:
		return true
	default:
		return false
	}
}

// IsOutboundFamily is true for emails the account itself sent.
func (d Direction) IsOutboundFamily() bool {
	return d == DirectionOutbound || d == DirectionFollowUp
}

// Source tells where a record came from.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// Contact is a person the account may email.
type Contact struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Company     string `json:"company,omitempty"`
	Title       string `json:"title,omitempty"`
	ProfileLink string `json:"profile_link,omitempty"`
}

// EmailRecord is one email event between the account and a contact.
// Records are never mutated once created.
type EmailRecord struct {
	ID        string    `json:"id"`
	ContactID string    `json:"contact_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	IsHTML    bool      `json:"is_html"`
	Direction Direction `json:"direction"`
	SentAt    time.Time `json:"sent_at"`
	MessageID string    `json:"message_id,omitempty"`
	ThreadID  string    `json:"thread_id,omitempty"`
	Source    Source    `json:"source"`
}

// Stats summarizes a deduplicated conversation.
type Stats struct {
	Total     int       `json:"total"`
	Outbound  int       `json:"outbound"`
	Inbound   int       `json:"inbound"`
	FollowUps int       `json:"follow_ups"`
	FirstAt   time.Time `json:"first_at"`
	LastAt    time.Time `json:"last_at"`
}

// Thread is the reconciled view of all emails with one contact.
// Records holds the full deduplicated set, Visible only the entries worth
// rendering.
type Thread struct {
	ContactID string        `json:"contact_id"`
	Subject   string        `json:"subject"`
	Records   []EmailRecord `json:"records"`
	Visible   []EmailRecord `json:"visible"`
	Stats     Stats         `json:"stats"`
	// Dropped counts input records that could not be used.
	Dropped int `json:"dropped"`
}

// ErrContactNotFound is returned for unknown contact ids.
var ErrContactNotFound = errors.New("contact not found")

// NoSubject is the anchor subject of a thread without any subject to borrow.
const NoSubject = "(no subject)"

// NormalizeAddress lowercases and trims an email address for comparisons.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// ReplySubject prefixes s with "Re:" unless it already is a reply subject.
func ReplySubject(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || s == NoSubject {
		return "Re:"
	}
	if strings.HasPrefix(strings.ToLower(s), "re:") {
		return s
	}
	return "Re: " + s
}
