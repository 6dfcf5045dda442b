package smtp

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	message "github.com/emersion/go-message/mail"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/spigell/hh-outreach/internal/conversation"
	"github.com/spigell/hh-outreach/internal/outreach"
)

type recordingSender struct {
	sent []*mail.Msg
	err  error
}

func (r *recordingSender) DialAndSendWithContext(_ context.Context, messages ...*mail.Msg) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, messages...)
	return nil
}

func parse(t *testing.T, m *mail.Msg) (message.Header, string) {
	t.Helper()

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		t.Fatalf("write message: %v", err)
	}

	r, err := message.CreateReader(&buf)
	if err != nil {
		t.Fatalf("parse message: %v", err)
	}
	part, err := r.NextPart()
	if err != nil {
		t.Fatalf("read part: %v", err)
	}
	body, err := io.ReadAll(part.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return r.Header, string(body)
}

func TestSendBuildsMessage(t *testing.T) {
	rec := &recordingSender{}
	tr := &Transport{client: rec, logger: zap.NewNop()}

	receipt, err := tr.Send(context.Background(), outreach.Message{
		From:    "me@example.com",
		Name:    "Ivan Petrov",
		To:      "anna@acme.io",
		Subject: "Platform role",
		Body:    "<p>Hello</p>",
		IsHTML:  true,
		Date:    time.Date(2025, 4, 2, 9, 30, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.MessageID == "" || receipt.Subject != "Platform role" {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}

	h, body := parse(t, rec.sent[0])
	if subject, _ := h.Subject(); subject != "Platform role" {
		t.Fatalf("unexpected subject %q", subject)
	}
	if h.Get(conversation.KindHeader) != "outbound" {
		t.Fatalf("unexpected kind %q", h.Get(conversation.KindHeader))
	}
	if ct, _, _ := h.ContentType(); ct != "text/html" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if body != "<p>Hello</p>" {
		t.Fatalf("unexpected body %q", body)
	}
	if date, err := h.Date(); err != nil || !date.Equal(time.Date(2025, 4, 2, 9, 30, 0, 0, time.UTC)) {
		t.Fatalf("expected the given send time, got %v (%v)", date, err)
	}
}

func TestSendFollowUpUsesReplySubject(t *testing.T) {
	rec := &recordingSender{}
	tr := &Transport{client: rec, logger: zap.NewNop()}

	receipt, err := tr.SendFollowUp(context.Background(), outreach.Message{
		From: "me@example.com", To: "anna@acme.io", Subject: "Platform role", Body: "Any news?",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.Subject != "Re: Platform role" {
		t.Fatalf("unexpected subject %q", receipt.Subject)
	}

	h, _ := parse(t, rec.sent[0])
	if h.Get(conversation.KindHeader) != "follow_up" {
		t.Fatalf("unexpected kind %q", h.Get(conversation.KindHeader))
	}
}

func TestSendErrors(t *testing.T) {
	tr := &Transport{client: &recordingSender{err: errors.New("relay down")}, logger: zap.NewNop()}
	if _, err := tr.Send(context.Background(), outreach.Message{From: "me@example.com", To: "anna@acme.io", Body: "x"}); err == nil {
		t.Fatal("expected relay error")
	}

	tr = &Transport{client: &recordingSender{}, logger: zap.NewNop()}
	if _, err := tr.Send(context.Background(), outreach.Message{From: "me@example.com", To: "not an address", Body: "x"}); err == nil {
		t.Fatal("expected invalid recipient error")
	}

	if msgs, err := tr.GetConversation(context.Background(), "me@example.com", "anna@acme.io"); err != nil || msgs != nil {
		t.Fatalf("expected empty conversation, got %v %v", msgs, err)
	}
}

func TestNewRequiresHost(t *testing.T) {
	if _, err := New(Options{}, nil); err == nil {
		t.Fatal("expected error without host")
	}
}
