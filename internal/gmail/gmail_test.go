package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/spigell/hh-outreach/internal/conversation"
	"github.com/spigell/hh-outreach/internal/outreach"
)

var sentAt = time.Date(2025, 4, 2, 9, 30, 0, 0, time.UTC)

func b64(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func readMessage(t *testing.T, raw []byte) (mail.Header, string) {
	t.Helper()

	r, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("parse message: %v", err)
	}
	part, err := r.NextPart()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	body, err := io.ReadAll(part.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return r.Header, string(body)
}

func TestBuildMessage(t *testing.T) {
	raw, err := buildMessage(outreach.Message{
		From:    "me@example.com",
		Name:    "Иван Петров",
		To:      "anna@acme.io",
		Subject: "Вакансия SRE",
		Body:    "<p>Привет</p>",
		IsHTML:  true,
		Kind:    conversation.DirectionFollowUp,
	}, &replyTarget{messageID: "<orig@mail>", references: "<root@mail>"}, sentAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h, body := readMessage(t, raw)

	if subject, _ := h.Subject(); subject != "Вакансия SRE" {
		t.Fatalf("unexpected subject %q", subject)
	}
	from, err := h.AddressList("From")
	if err != nil || len(from) != 1 || from[0].Address != "me@example.com" || from[0].Name != "Иван Петров" {
		t.Fatalf("unexpected from: %v %v", from, err)
	}
	if got := h.Get(conversation.KindHeader); got != "follow_up" {
		t.Fatalf("unexpected kind header %q", got)
	}
	if h.Get("In-Reply-To") != "<orig@mail>" || h.Get("References") != "<root@mail> <orig@mail>" {
		t.Fatalf("unexpected threading headers: %q %q", h.Get("In-Reply-To"), h.Get("References"))
	}
	if ct, _, _ := h.ContentType(); ct != "text/html" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if body != "<p>Привет</p>" {
		t.Fatalf("unexpected body %q", body)
	}
	if date, err := h.Date(); err != nil || !date.Equal(sentAt) {
		t.Fatalf("unexpected date %v %v", date, err)
	}
}

func TestToRemote(t *testing.T) {
	msg := &gmailapi.Message{
		Id:           "g2",
		ThreadId:     "t1",
		InternalDate: sentAt.UnixMilli(),
		Payload: &gmailapi.MessagePart{
			MimeType: "multipart/alternative",
			Headers: []*gmailapi.MessagePartHeader{
				{Name: "From", Value: "Anna <anna@acme.io>"},
				{Name: "To", Value: "me@example.com"},
				{Name: "Subject", Value: "=?utf-8?B?" + base64.StdEncoding.EncodeToString([]byte("Re: Вакансия")) + "?="},
				{Name: "Date", Value: "Wed, 02 Apr 2025 12:30:00 +0300"},
			},
			Parts: []*gmailapi.MessagePart{
				{MimeType: "text/plain", Body: &gmailapi.MessagePartBody{Data: b64("plain")}},
				{MimeType: "text/html", Body: &gmailapi.MessagePartBody{Data: b64("<p>html</p>")}},
				{MimeType: "text/html", Filename: "cv.html", Body: &gmailapi.MessagePartBody{Data: b64("attachment")}},
			},
		},
	}

	remote := toRemote(msg)
	if remote.MessageID != "g2" || remote.ThreadID != "t1" || remote.From != "Anna <anna@acme.io>" {
		t.Fatalf("unexpected ids: %+v", remote)
	}
	if remote.Subject != "Re: Вакансия" {
		t.Fatalf("subject not decoded: %q", remote.Subject)
	}
	if remote.Body != "<p>html</p>" || !remote.IsHTML {
		t.Fatalf("expected html body, got %q html=%v", remote.Body, remote.IsHTML)
	}

	rec, err := conversation.NormalizeRemote("c1", remote)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if rec.Direction != conversation.DirectionInbound || !rec.SentAt.Equal(sentAt) {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

type fakeGmail struct {
	mu       sync.Mutex
	sent     []gmailapi.Message
	queries  []string
	messages map[string]*gmailapi.Message
	order    []string
}

func (f *fakeGmail) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	path := strings.TrimPrefix(r.URL.Path, "/gmail/v1/users/me/messages")

	switch {
	case r.Method == http.MethodPost && path == "/send":
		var msg gmailapi.Message
		_ = json.NewDecoder(r.Body).Decode(&msg)
		f.sent = append(f.sent, msg)
		thread := msg.ThreadId
		if thread == "" {
			thread = "new-thread"
		}
		_ = json.NewEncoder(w).Encode(gmailapi.Message{Id: "sent-1", ThreadId: thread})
	case r.Method == http.MethodGet && path == "":
		f.queries = append(f.queries, r.URL.Query().Get("q"))
		resp := gmailapi.ListMessagesResponse{}
		for _, id := range f.order {
			resp.Messages = append(resp.Messages, &gmailapi.Message{Id: id})
		}
		_ = json.NewEncoder(w).Encode(resp)
	case r.Method == http.MethodGet:
		msg, ok := f.messages[strings.TrimPrefix(path, "/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(msg)
	default:
		http.Error(w, "unexpected request", http.StatusBadRequest)
	}
}

func newTestTransport(t *testing.T, fake *fakeGmail) *Transport {
	t.Helper()

	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	tr := New(Options{}, zap.NewNop())
	tr.now = func() time.Time { return sentAt }
	tr.newService = func(ctx context.Context) (*gmailapi.Service, error) {
		return gmailapi.NewService(ctx, option.WithHTTPClient(srv.Client()), option.WithEndpoint(srv.URL+"/"))
	}
	return tr
}

func TestTransportSendAndFetch(t *testing.T) {
	fake := &fakeGmail{
		order: []string{"g2", "g1"},
		messages: map[string]*gmailapi.Message{
			"g1": {Id: "g1", ThreadId: "t1", InternalDate: sentAt.UnixMilli(), Payload: &gmailapi.MessagePart{
				MimeType: "text/plain",
				Headers: []*gmailapi.MessagePartHeader{
					{Name: "From", Value: "me@example.com"},
					{Name: "To", Value: "anna@acme.io"},
					{Name: "Subject", Value: "Platform role"},
					{Name: "Message-Id", Value: "<g1@mail>"},
					{Name: conversation.KindHeader, Value: "outbound"},
				},
				Body: &gmailapi.MessagePartBody{Data: b64("Hello")},
			}},
			"g2": {Id: "g2", ThreadId: "t1", InternalDate: sentAt.Add(time.Hour).UnixMilli(), Payload: &gmailapi.MessagePart{
				MimeType: "text/plain",
				Headers: []*gmailapi.MessagePartHeader{
					{Name: "From", Value: "anna@acme.io"},
					{Name: "To", Value: "me@example.com"},
					{Name: "Subject", Value: "Re: Platform role"},
					{Name: "Message-ID", Value: "<g2@mail>"},
				},
				Body: &gmailapi.MessagePartBody{Data: b64("Thanks")},
			}},
		},
	}
	tr := newTestTransport(t, fake)
	ctx := context.Background()

	receipt, err := tr.Send(ctx, outreach.Message{From: "me@example.com", To: "anna@acme.io", Subject: "Hi", Body: "Hello", Date: sentAt.Add(time.Minute)})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if receipt.MessageID != "sent-1" || receipt.ThreadID != "new-thread" {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}

	raw, err := base64.URLEncoding.DecodeString(fake.sent[0].Raw)
	if err != nil {
		t.Fatalf("decode raw: %v", err)
	}
	h, body := readMessage(t, raw)
	if body != "Hello" || h.Get(conversation.KindHeader) != "outbound" {
		t.Fatalf("unexpected sent message: %q kind=%q", body, h.Get(conversation.KindHeader))
	}
	if date, err := h.Date(); err != nil || !date.Equal(sentAt.Add(time.Minute)) {
		t.Fatalf("expected the given send time, got %v (%v)", date, err)
	}

	msgs, err := tr.GetConversation(ctx, "me@example.com", "anna@acme.io")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(msgs) != 2 || msgs[0].MessageID != "g2" || msgs[1].Kind != "outbound" {
		t.Fatalf("unexpected conversation: %+v", msgs)
	}
	if fake.queries[0] != "from:anna@acme.io OR to:anna@acme.io" {
		t.Fatalf("unexpected query %q", fake.queries[0])
	}
}

func TestTransportFollowUpRepliesToLatest(t *testing.T) {
	fake := &fakeGmail{
		order: []string{"g2"},
		messages: map[string]*gmailapi.Message{
			"g2": {Id: "g2", ThreadId: "t1", Payload: &gmailapi.MessagePart{
				Headers: []*gmailapi.MessagePartHeader{
					{Name: "Subject", Value: "Platform role"},
					{Name: "Message-ID", Value: "<g2@mail>"},
				},
			}},
		},
	}
	tr := newTestTransport(t, fake)

	receipt, err := tr.SendFollowUp(context.Background(), outreach.Message{
		From: "me@example.com", To: "anna@acme.io", Subject: "ignored hint", Body: "Any news?", Kind: conversation.DirectionFollowUp,
	})
	if err != nil {
		t.Fatalf("follow-up: %v", err)
	}
	if receipt.Subject != "Re: Platform role" || receipt.ThreadID != "t1" {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	if fake.sent[0].ThreadId != "t1" {
		t.Fatalf("follow-up must stay in the thread, got %q", fake.sent[0].ThreadId)
	}

	raw, _ := base64.URLEncoding.DecodeString(fake.sent[0].Raw)
	h, _ := readMessage(t, raw)
	if h.Get("In-Reply-To") != "<g2@mail>" {
		t.Fatalf("unexpected In-Reply-To %q", h.Get("In-Reply-To"))
	}
}

func TestTransportFollowUpWithoutThread(t *testing.T) {
	fake := &fakeGmail{messages: map[string]*gmailapi.Message{}}
	tr := newTestTransport(t, fake)

	receipt, err := tr.SendFollowUp(context.Background(), outreach.Message{
		From: "me@example.com", To: "anna@acme.io", Subject: "Platform role", Body: "Any news?",
	})
	if err != nil {
		t.Fatalf("follow-up: %v", err)
	}
	if receipt.Subject != "Re: Platform role" || fake.sent[0].ThreadId != "" {
		t.Fatalf("unexpected follow-up: %+v thread=%q", receipt, fake.sent[0].ThreadId)
	}
}

func TestLoadToken(t *testing.T) {
	dir := t.TempDir()

	if _, err := loadToken(""); err == nil {
		t.Fatal("expected error for missing path")
	}

	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, []byte(`{}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadToken(empty); err == nil {
		t.Fatal("expected error for token without credentials")
	}

	valid := filepath.Join(dir, "token.json")
	if err := os.WriteFile(valid, []byte(`{"access_token":"a","refresh_token":"r","token_type":"Bearer"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	token, err := loadToken(valid)
	if err != nil || token.RefreshToken != "r" {
		t.Fatalf("unexpected token: %+v %v", token, err)
	}
}
