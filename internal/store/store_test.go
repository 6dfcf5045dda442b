package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/hh-outreach/internal/conversation"
	"github.com/spigell/hh-outreach/internal/profile"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "test.db")}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func addContact(t *testing.T, s *Store, name, email string) conversation.Contact {
	t.Helper()
	c := conversation.Contact{Name: name, Email: email}
	if err := s.CreateContact(context.Background(), &c); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestContactCRUD(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	anna := addContact(t, s, "Anna", " Anna@Acme.io ")
	if anna.ID == "" || anna.Email != "anna@acme.io" {
		t.Fatalf("unexpected contact: %+v", anna)
	}

	dup := conversation.Contact{Name: "Other", Email: "anna@acme.io"}
	if err := s.CreateContact(ctx, &dup); !errors.Is(err, ErrDuplicateContact) {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	got, err := s.FindContact(ctx, "ANNA@acme.io")
	if err != nil || got.ID != anna.ID {
		t.Fatalf("find by email: %+v %v", got, err)
	}

	anna.Company = "Acme"
	if err := s.UpdateContact(ctx, &anna); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetContact(ctx, anna.ID)
	if err != nil || got.Company != "Acme" {
		t.Fatalf("update not applied: %+v %v", got, err)
	}

	addContact(t, s, "Boris", "boris@acme.io")
	all, err := s.ListContacts(ctx)
	if err != nil || len(all) != 2 || all[0].Name != "Anna" {
		t.Fatalf("unexpected list: %+v %v", all, err)
	}

	if err := s.DeleteContact(ctx, anna.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetContact(ctx, anna.ID); !errors.Is(err, conversation.ErrContactNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.DeleteContact(ctx, anna.ID); !errors.Is(err, conversation.ErrContactNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestEmailHistory(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	anna := addContact(t, s, "Anna", "anna@acme.io")
	boris := addContact(t, s, "Boris", "boris@acme.io")
	addContact(t, s, "Clara", "clara@acme.io")

	t0 := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	records := []*conversation.EmailRecord{
		{ContactID: anna.ID, From: "me@example.com", To: "anna@acme.io", Subject: "Hi", Body: "Hello", Direction: conversation.DirectionOutbound, SentAt: t0.Add(time.Hour), MessageID: "m2"},
		{ContactID: anna.ID, From: "me@example.com", To: "anna@acme.io", Subject: "Hi", Body: "Hello", Direction: conversation.DirectionOutbound, SentAt: t0, MessageID: "m1"},
		{ContactID: boris.ID, From: "boris@acme.io", To: "me@example.com", Subject: "Question", Body: "?", Direction: conversation.DirectionInbound, SentAt: t0},
	}
	for _, rec := range records {
		if err := s.AppendEmail(ctx, rec); err != nil {
			t.Fatal(err)
		}
		if rec.ID == "" {
			t.Fatal("expected generated id")
		}
	}

	if err := s.AppendEmail(ctx, &conversation.EmailRecord{ContactID: anna.ID, Direction: "sideways", SentAt: t0}); err == nil {
		t.Fatal("expected invalid direction to be rejected")
	}

	history, err := s.EmailsForContact(ctx, anna.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 || history[0].MessageID != "m1" || history[1].MessageID != "m2" {
		t.Fatalf("unexpected order: %+v", history)
	}
	if history[0].Source != conversation.SourceLocal || !history[0].SentAt.Equal(t0) {
		t.Fatalf("unexpected record: %+v", history[0])
	}

	histories, err := s.EmailsForContacts(ctx, []string{anna.ID, boris.ID})
	if err != nil || len(histories[anna.ID]) != 2 || len(histories[boris.ID]) != 1 {
		t.Fatalf("unexpected histories: %v %v", histories, err)
	}

	sent, err := s.ContactsWithSentEmail(ctx)
	if err != nil || len(sent) != 1 || sent[0].ID != anna.ID {
		t.Fatalf("unexpected contacts with sent email: %+v %v", sent, err)
	}

	talked, err := s.ContactsWithConversation(ctx)
	if err != nil || len(talked) != 2 {
		t.Fatalf("unexpected contacts with conversation: %+v %v", talked, err)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	p, err := s.Profile(ctx)
	if err != nil || p.FullName != "" {
		t.Fatalf("expected empty profile, got %+v %v", p, err)
	}

	want := &profile.Profile{FullName: "Ivan", Skills: []string{"Go", "SQL"}}
	if err := s.SaveProfile(ctx, want); err != nil {
		t.Fatal(err)
	}
	want.Headline = "Engineer"
	if err := s.SaveProfile(ctx, want); err != nil {
		t.Fatal(err)
	}

	got, err := s.Profile(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.Headline != "Engineer" || len(got.Skills) != 2 {
		t.Fatalf("unexpected profile: %+v", got)
	}
}
