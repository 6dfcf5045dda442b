// Package gmail delivers and fetches outreach emails through the Gmail API.
package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/spigell/hh-outreach/internal/conversation"
	"github.com/spigell/hh-outreach/internal/outreach"
)

const (
	user             = "me"
	maxConversation  = 200
	conversationPage = 100
)

// Options configure the transport. TokenFile holds an oauth2 token as JSON
// and is read again for every request.
type Options struct {
	ClientID     string
	ClientSecret string
	TokenFile    string
}

// Transport implements outreach.Transport on top of the Gmail API.
type Transport struct {
	opts       Options
	logger     *zap.Logger
	newService func(ctx context.Context) (*gmailapi.Service, error)
	now        func() time.Time
}

func New(opts Options, logger *zap.Logger) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &Transport{opts: opts, logger: logger, now: time.Now}
	t.newService = t.service
	return t
}

// service builds a Gmail client with the token currently on disk.
func (t *Transport) service(ctx context.Context) (*gmailapi.Service, error) {
	token, err := loadToken(t.opts.TokenFile)
	if err != nil {
		return nil, err
	}

	config := &oauth2.Config{
		ClientID:     t.opts.ClientID,
		ClientSecret: t.opts.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmailapi.GmailSendScope, gmailapi.GmailReadonlyScope},
	}

	client := oauth2.NewClient(ctx, config.TokenSource(ctx, token))

	srv, err := gmailapi.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}

	return srv, nil
}

func loadToken(path string) (*oauth2.Token, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("gmail token file is not configured")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gmail token: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("parse gmail token %q: %w", path, err)
	}

	if token.AccessToken == "" && token.RefreshToken == "" {
		return nil, fmt.Errorf("gmail token %q has neither access nor refresh token", path)
	}

	return &token, nil
}

func (t *Transport) dateOf(msg outreach.Message) time.Time {
	if msg.Date.IsZero() {
		return t.now()
	}
	return msg.Date
}

// Send delivers a fresh email.
func (t *Transport) Send(ctx context.Context, msg outreach.Message) (*outreach.Receipt, error) {
	srv, err := t.newService(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := buildMessage(msg, nil, t.dateOf(msg))
	if err != nil {
		return nil, err
	}

	sent, err := srv.Users.Messages.Send(user, &gmailapi.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to send message: %w", err)
	}

	t.logger.Debug("gmail message sent", zap.String("message_id", sent.Id), zap.String("thread_id", sent.ThreadId))

	return &outreach.Receipt{MessageID: sent.Id, ThreadID: sent.ThreadId, Subject: msg.Subject}, nil
}

// SendFollowUp replies to the latest message exchanged with msg.To. Without
// such a message the follow-up starts a new thread with the hinted subject.
func (t *Transport) SendFollowUp(ctx context.Context, msg outreach.Message) (*outreach.Receipt, error) {
	srv, err := t.newService(ctx)
	if err != nil {
		return nil, err
	}

	target, err := latestMessage(ctx, srv, msg.To)
	if err != nil {
		return nil, err
	}

	subject := msg.Subject
	if target != nil && target.subject != "" {
		subject = target.subject
	}
	msg.Subject = conversation.ReplySubject(subject)

	raw, err := buildMessage(msg, target, t.dateOf(msg))
	if err != nil {
		return nil, err
	}

	out := &gmailapi.Message{Raw: base64.URLEncoding.EncodeToString(raw)}
	if target != nil {
		out.ThreadId = target.threadID
	}

	sent, err := srv.Users.Messages.Send(user, out).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to send follow-up: %w", err)
	}

	return &outreach.Receipt{MessageID: sent.Id, ThreadID: sent.ThreadId, Subject: msg.Subject}, nil
}

// GetConversation fetches every message exchanged with recipient, newest
// first, up to a fixed limit. sender is the authenticated mailbox.
func (t *Transport) GetConversation(ctx context.Context, sender, recipient string) ([]conversation.RemoteMessage, error) {
	srv, err := t.newService(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0)
	call := srv.Users.Messages.List(user).Q(conversationQuery(recipient)).MaxResults(conversationPage)
	errLimit := errors.New("limit reached")
	err = call.Pages(ctx, func(page *gmailapi.ListMessagesResponse) error {
		for _, m := range page.Messages {
			ids = append(ids, m.Id)
			if len(ids) >= maxConversation {
				return errLimit
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errLimit) {
		return nil, fmt.Errorf("unable to list conversation with %s: %w", recipient, err)
	}

	messages := make([]conversation.RemoteMessage, 0, len(ids))
	for _, id := range ids {
		full, err := srv.Users.Messages.Get(user, id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("unable to get message %s: %w", id, err)
		}
		messages = append(messages, toRemote(full))
	}

	t.logger.Debug("gmail conversation fetched",
		zap.String("sender", sender),
		zap.String("recipient", recipient),
		zap.Int("messages", len(messages)),
	)

	return messages, nil
}

type replyTarget struct {
	threadID   string
	messageID  string
	references string
	subject    string
}

func latestMessage(ctx context.Context, srv *gmailapi.Service, recipient string) (*replyTarget, error) {
	list, err := srv.Users.Messages.List(user).Q(conversationQuery(recipient)).MaxResults(1).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to find conversation with %s: %w", recipient, err)
	}
	if len(list.Messages) == 0 {
		return nil, nil
	}

	m, err := srv.Users.Messages.Get(user, list.Messages[0].Id).
		Format("metadata").
		MetadataHeaders("Message-ID", "Subject", "References").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to get message %s: %w", list.Messages[0].Id, err)
	}

	var headers []*gmailapi.MessagePartHeader
	if m.Payload != nil {
		headers = m.Payload.Headers
	}

	return &replyTarget{
		threadID:   m.ThreadId,
		messageID:  getHeader(headers, "Message-ID"),
		references: getHeader(headers, "References"),
		subject:    strings.TrimSpace(getHeader(headers, "Subject")),
	}, nil
}

func conversationQuery(recipient string) string {
	return fmt.Sprintf("from:%[1]s OR to:%[1]s", recipient)
}
