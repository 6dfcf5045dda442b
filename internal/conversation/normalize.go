package conversation

import (
	"errors"
	"fmt"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
)

// KindHeader is stamped on every message the account sends so that copies
// fetched back from the mailbox keep their outbound/follow-up role.
const KindHeader = "X-Outreach-Kind"

// RemoteMessage is an email as the mail provider returns it: raw header
// values plus the decoded body. It must go through NormalizeRemote before it
// takes part in reconciliation.
type RemoteMessage struct {
	MessageID    string
	ThreadID     string
	From         string
	To           string
	Subject      string
	Date         string
	InternalDate time.Time
	Kind         string
	Body         string
	IsHTML       bool
}

var (
	errNoContact = errors.New("contact id is required")
	errNoSender  = errors.New("sender address is missing")
	errNoDate    = errors.New("message has no usable date")
)

// NormalizeRemote converts a provider message into an EmailRecord tagged as
// remote. The direction is provisional; Reconcile decides the final one
// against the authenticated account.
func NormalizeRemote(contactID string, m RemoteMessage) (EmailRecord, error) {
	if strings.TrimSpace(contactID) == "" {
		return EmailRecord{}, errNoContact
	}

	from, err := parseAddress(m.From)
	if err != nil {
		return EmailRecord{}, fmt.Errorf("from: %w", err)
	}

	to, err := parseAddress(m.To)
	if err != nil {
		// a missing recipient is tolerated, the sender decides the direction
		to = ""
	}

	sentAt := m.InternalDate
	if date := strings.TrimSpace(m.Date); date != "" {
		if parsed, perr := netmail.ParseDate(date); perr == nil {
			sentAt = parsed
		}
	}
	if sentAt.IsZero() {
		return EmailRecord{}, errNoDate
	}

	direction := DirectionInbound
	switch Direction(strings.ToLower(strings.TrimSpace(m.Kind))) {
	case DirectionFollowUp:
		direction = DirectionFollowUp
	case DirectionOutbound:
		direction = DirectionOutbound
	}

	return EmailRecord{
		ContactID: contactID,
		From:      from,
		To:        to,
		Subject:   strings.TrimSpace(m.Subject),
		Body:      m.Body,
		IsHTML:    m.IsHTML,
		Direction: direction,
		SentAt:    sentAt.UTC(),
		MessageID: strings.Trim(strings.TrimSpace(m.MessageID), "<>"),
		ThreadID:  strings.TrimSpace(m.ThreadID),
		Source:    SourceRemote,
	}, nil
}

// NormalizeRemoteAll normalizes a batch and silently drops messages that
// cannot be normalized. The number of dropped messages is returned.
func NormalizeRemoteAll(contactID string, msgs []RemoteMessage) ([]EmailRecord, int) {
	records := make([]EmailRecord, 0, len(msgs))
	dropped := 0
	for _, m := range msgs {
		rec, err := NormalizeRemote(contactID, m)
		if err != nil {
			dropped++
			continue
		}
		records = append(records, rec)
	}
	return records, dropped
}

func parseAddress(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errNoSender
	}

	addr, err := mail.ParseAddress(raw)
	if err != nil {
		// some providers hand out bare addresses with odd display names
		if strings.Contains(raw, "@") && !strings.ContainsAny(raw, " <>") {
			return NormalizeAddress(raw), nil
		}
		return "", err
	}

	return NormalizeAddress(addr.Address), nil
}
