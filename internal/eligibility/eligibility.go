// Package eligibility decides which contacts may be emailed now. Every
// function takes the current time as an argument and reads nothing else.
package eligibility

import (
	"time"

	"github.com/spigell/hh-outreach/internal/conversation"
)

const (
	// OutreachWindow is how long a fresh outbound email blocks another one.
	OutreachWindow = 7 * 24 * time.Hour
	// FollowUpDelay is how long after the last send a follow-up becomes due.
	FollowUpDelay = 24 * time.Hour
)

// Window is the derived eligibility state of one contact.
type Window struct {
	ContactID            string     `json:"contact_id"`
	AvailableForOutreach bool       `json:"available_for_outreach"`
	NeedsFollowUp        bool       `json:"needs_follow_up"`
	LastSentAt           *time.Time `json:"last_sent_at,omitempty"`
	LastReplyAt          *time.Time `json:"last_reply_at,omitempty"`
}

// WithinOutreachWindow reports whether an outbound email was sent less than
// OutreachWindow before now. Follow-ups do not count.
func WithinOutreachWindow(history []conversation.EmailRecord, now time.Time) bool {
	for _, rec := range history {
		if rec.Direction != conversation.DirectionOutbound {
			continue
		}
		if now.Sub(rec.SentAt) < OutreachWindow {
			return true
		}
	}
	return false
}

// LastSent returns the latest outbound or follow-up email time.
func LastSent(history []conversation.EmailRecord) (time.Time, bool) {
	var last time.Time
	found := false
	for _, rec := range history {
		if !rec.Direction.IsOutboundFamily() {
			continue
		}
		if !found || rec.SentAt.After(last) {
			last = rec.SentAt
			found = true
		}
	}
	return last, found
}

// FollowUpWindowElapsed reports whether at least FollowUpDelay passed since
// the latest outbound or follow-up email. It is false without any send.
func FollowUpWindowElapsed(history []conversation.EmailRecord, now time.Time) bool {
	last, ok := LastSent(history)
	if !ok {
		return false
	}
	return now.Sub(last) >= FollowUpDelay
}

// RepliedSince reports whether an inbound email arrived strictly after since.
// Any inbound email counts, it is not matched against a particular thread.
func RepliedSince(history []conversation.EmailRecord, since time.Time) bool {
	for _, rec := range history {
		if rec.Direction == conversation.DirectionInbound && rec.SentAt.After(since) {
			return true
		}
	}
	return false
}

// AvailableForOutreach is true unless the contact got an outbound email
// within the outreach window.
func AvailableForOutreach(_ conversation.Contact, history []conversation.EmailRecord, now time.Time) bool {
	return !WithinOutreachWindow(history, now)
}

// NeedsFollowUp is true when the contact was emailed, the follow-up delay has
// passed since the latest send and no reply arrived after that send.
func NeedsFollowUp(_ conversation.Contact, history []conversation.EmailRecord, now time.Time) bool {
	last, ok := LastSent(history)
	if !ok {
		return false
	}
	if !FollowUpWindowElapsed(history, now) {
		return false
	}
	return !RepliedSince(history, last)
}

// Evaluate computes the window of a single contact.
func Evaluate(contact conversation.Contact, history []conversation.EmailRecord, now time.Time) Window {
	w := Window{
		ContactID:            contact.ID,
		AvailableForOutreach: AvailableForOutreach(contact, history, now),
		NeedsFollowUp:        NeedsFollowUp(contact, history, now),
	}

	if last, ok := LastSent(history); ok {
		w.LastSentAt = &last
	}

	for _, rec := range history {
		if rec.Direction != conversation.DirectionInbound {
			continue
		}
		at := rec.SentAt
		if w.LastReplyAt == nil || at.After(*w.LastReplyAt) {
			w.LastReplyAt = &at
		}
	}

	return w
}

// Report splits contacts into the two independent lists. A contact may be in
// both, either or neither.
type Report struct {
	Outreach []conversation.Contact `json:"outreach"`
	FollowUp []conversation.Contact `json:"follow_up"`
	Windows  map[string]Window      `json:"windows"`
}

// Build evaluates every contact against its history keyed by contact id.
func Build(contacts []conversation.Contact, histories map[string][]conversation.EmailRecord, now time.Time) *Report {
	report := &Report{
		Outreach: make([]conversation.Contact, 0, len(contacts)),
		FollowUp: make([]conversation.Contact, 0),
		Windows:  make(map[string]Window, len(contacts)),
	}

	for _, c := range contacts {
		w := Evaluate(c, histories[c.ID], now)
		report.Windows[c.ID] = w
		if w.AvailableForOutreach {
			report.Outreach = append(report.Outreach, c)
		}
		if w.NeedsFollowUp {
			report.FollowUp = append(report.FollowUp, c)
		}
	}

	return report
}
