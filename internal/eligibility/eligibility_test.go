package eligibility

import (
	"testing"
	"time"

	"github.com/spigell/hh-outreach/internal/conversation"
)

var (
	now   = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	alice = conversation.Contact{ID: "c1", Name: "Alice", Email: "alice@acme.io"}
)

func rec(dir conversation.Direction, ago time.Duration) conversation.EmailRecord {
	return conversation.EmailRecord{ContactID: alice.ID, Direction: dir, SentAt: now.Add(-ago)}
}

const day = 24 * time.Hour

func TestAvailableForOutreach(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		history []conversation.EmailRecord
		expect  bool
	}{
		{name: "no history", expect: true},
		{name: "outbound six days ago", history: []conversation.EmailRecord{rec(conversation.DirectionOutbound, 6*day)}, expect: false},
		{name: "outbound just inside window", history: []conversation.EmailRecord{rec(conversation.DirectionOutbound, 7*day-time.Second)}, expect: false},
		{name: "outbound exactly seven days ago", history: []conversation.EmailRecord{rec(conversation.DirectionOutbound, 7*day)}, expect: true},
		{name: "old outbound", history: []conversation.EmailRecord{rec(conversation.DirectionOutbound, 30*day)}, expect: true},
		{name: "recent follow-up only", history: []conversation.EmailRecord{rec(conversation.DirectionFollowUp, time.Hour)}, expect: true},
		{name: "recent inbound only", history: []conversation.EmailRecord{rec(conversation.DirectionInbound, time.Hour)}, expect: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := AvailableForOutreach(alice, tt.history, now); got != tt.expect {
				t.Fatalf("expected %v, got %v", tt.expect, got)
			}
		})
	}
}

func TestNeedsFollowUp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		history []conversation.EmailRecord
		expect  bool
	}{
		{name: "no history", expect: false},
		{name: "only inbound", history: []conversation.EmailRecord{rec(conversation.DirectionInbound, 3*day)}, expect: false},
		{name: "sent an hour ago", history: []conversation.EmailRecord{rec(conversation.DirectionOutbound, time.Hour)}, expect: false},
		{name: "sent exactly a day ago", history: []conversation.EmailRecord{rec(conversation.DirectionOutbound, day)}, expect: true},
		{
			name: "reply before last send does not count",
			history: []conversation.EmailRecord{
				rec(conversation.DirectionOutbound, 5*day),
				rec(conversation.DirectionInbound, 4*day),
				rec(conversation.DirectionFollowUp, 2*day),
			},
			expect: true,
		},
		{
			name: "recent follow-up resets the delay",
			history: []conversation.EmailRecord{
				rec(conversation.DirectionOutbound, 5*day),
				rec(conversation.DirectionFollowUp, 2*time.Hour),
			},
			expect: false,
		},
		{
			name: "reply after last send",
			history: []conversation.EmailRecord{
				rec(conversation.DirectionOutbound, 2*day),
				rec(conversation.DirectionInbound, day),
			},
			expect: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NeedsFollowUp(alice, tt.history, now); got != tt.expect {
				t.Fatalf("expected %v, got %v", tt.expect, got)
			}
		})
	}
}

func TestConditionsAreIndependent(t *testing.T) {
	t.Parallel()

	history := []conversation.EmailRecord{
		rec(conversation.DirectionOutbound, 2*day),
		rec(conversation.DirectionInbound, day),
	}

	if !WithinOutreachWindow(history, now) {
		t.Fatalf("expected outbound inside outreach window")
	}
	if !FollowUpWindowElapsed(history, now) {
		t.Fatalf("expected follow-up delay to have elapsed")
	}
	last, ok := LastSent(history)
	if !ok {
		t.Fatalf("expected a last send")
	}
	if !RepliedSince(history, last) {
		t.Fatalf("expected reply after last send")
	}
	if RepliedSince(history, now) {
		t.Fatalf("no reply can be after now")
	}
}

// A contact emailed three days ago without a reply is off the outreach list
// and on the follow-up list at the same time.
func TestScenarioEmailedThreeDaysAgo(t *testing.T) {
	t.Parallel()

	history := []conversation.EmailRecord{rec(conversation.DirectionOutbound, 3*day)}

	w := Evaluate(alice, history, now)
	if w.AvailableForOutreach {
		t.Fatalf("expected contact to be excluded from outreach")
	}
	if !w.NeedsFollowUp {
		t.Fatalf("expected contact to be due for follow-up")
	}
	if w.LastSentAt == nil || !w.LastSentAt.Equal(now.Add(-3*day)) {
		t.Fatalf("unexpected last sent at %v", w.LastSentAt)
	}
}

// A contact emailed two days ago who replied yesterday needs no follow-up.
func TestScenarioRepliedAfterSend(t *testing.T) {
	t.Parallel()

	history := []conversation.EmailRecord{
		rec(conversation.DirectionOutbound, 2*day),
		rec(conversation.DirectionInbound, day),
	}

	w := Evaluate(alice, history, now)
	if w.NeedsFollowUp {
		t.Fatalf("expected no follow-up after reply")
	}
	if w.AvailableForOutreach {
		t.Fatalf("expected contact to stay inside the outreach window")
	}
	if w.LastReplyAt == nil || !w.LastReplyAt.Equal(now.Add(-day)) {
		t.Fatalf("unexpected last reply at %v", w.LastReplyAt)
	}
}

func TestBuild(t *testing.T) {
	t.Parallel()

	bob := conversation.Contact{ID: "c2", Name: "Bob"}
	carol := conversation.Contact{ID: "c3", Name: "Carol"}

	histories := map[string][]conversation.EmailRecord{
		alice.ID: {rec(conversation.DirectionOutbound, 3*day)},
		bob.ID:   {rec(conversation.DirectionOutbound, 10*day)},
	}

	report := Build([]conversation.Contact{alice, bob, carol}, histories, now)

	if len(report.Outreach) != 2 || report.Outreach[0].ID != bob.ID || report.Outreach[1].ID != carol.ID {
		t.Fatalf("unexpected outreach list %+v", report.Outreach)
	}
	if len(report.FollowUp) != 2 || report.FollowUp[0].ID != alice.ID || report.FollowUp[1].ID != bob.ID {
		t.Fatalf("unexpected follow-up list %+v", report.FollowUp)
	}
	if len(report.Windows) != 3 {
		t.Fatalf("expected a window per contact, got %d", len(report.Windows))
	}
}
