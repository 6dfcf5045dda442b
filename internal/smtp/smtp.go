// Package smtp delivers outreach emails through an SMTP relay. It cannot read
// the mailbox, so conversations are built from local history only.
package smtp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/spigell/hh-outreach/internal/conversation"
	"github.com/spigell/hh-outreach/internal/outreach"
)

const defaultPort = 587

// Options configure the relay.
type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	// Implicit selects SMTPS instead of STARTTLS.
	Implicit bool
}

type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Transport implements outreach.Transport with go-mail.
type Transport struct {
	client sender
	logger *zap.Logger
}

func New(opts Options, logger *zap.Logger) (*Transport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(opts.Host) == "" {
		return nil, errors.New("smtp host is required")
	}
	if opts.Port <= 0 {
		opts.Port = defaultPort
	}

	clientOpts := []mail.Option{
		mail.WithPort(opts.Port),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
	}
	if opts.Implicit {
		clientOpts = append(clientOpts, mail.WithSSLPort(false))
	}
	if opts.Username != "" {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(opts.Username),
			mail.WithPassword(opts.Password),
		)
	}

	client, err := mail.NewClient(opts.Host, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return &Transport{client: client, logger: logger}, nil
}

func (t *Transport) Send(ctx context.Context, msg outreach.Message) (*outreach.Receipt, error) {
	return t.deliver(ctx, msg)
}

// SendFollowUp sends msg as a reply to the hinted thread subject. The relay
// knows nothing about threads, so no In-Reply-To header is set.
func (t *Transport) SendFollowUp(ctx context.Context, msg outreach.Message) (*outreach.Receipt, error) {
	msg.Subject = conversation.ReplySubject(msg.Subject)
	if msg.Kind == "" {
		msg.Kind = conversation.DirectionFollowUp
	}
	return t.deliver(ctx, msg)
}

// GetConversation returns nothing: an SMTP relay has no mailbox to read.
func (t *Transport) GetConversation(context.Context, string, string) ([]conversation.RemoteMessage, error) {
	return nil, nil
}

func (t *Transport) deliver(ctx context.Context, msg outreach.Message) (*outreach.Receipt, error) {
	m, err := buildMessage(msg)
	if err != nil {
		return nil, err
	}

	if err := t.client.DialAndSendWithContext(ctx, m); err != nil {
		return nil, fmt.Errorf("smtp send: %w", err)
	}

	receipt := &outreach.Receipt{Subject: msg.Subject}
	if ids := m.GetGenHeader(mail.HeaderMessageID); len(ids) > 0 {
		receipt.MessageID = strings.Trim(ids[0], "<>")
	}

	t.logger.Debug("smtp message sent", zap.String("message_id", receipt.MessageID))
	return receipt, nil
}

func buildMessage(msg outreach.Message) (*mail.Msg, error) {
	m := mail.NewMsg()

	if msg.Name != "" {
		if err := m.FromFormat(msg.Name, msg.From); err != nil {
			return nil, fmt.Errorf("invalid sender %q: %w", msg.From, err)
		}
	} else if err := m.From(msg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", msg.From, err)
	}

	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}

	kind := msg.Kind
	if kind == "" {
		kind = conversation.DirectionOutbound
	}

	m.Subject(msg.Subject)
	m.SetMessageID()
	if msg.Date.IsZero() {
		m.SetDate()
	} else {
		m.SetDateWithValue(msg.Date)
	}
	m.SetGenHeader(mail.Header(conversation.KindHeader), string(kind))

	contentType := mail.TypeTextPlain
	if msg.IsHTML {
		contentType = mail.TypeTextHTML
	}
	m.SetBodyString(contentType, msg.Body)

	return m, nil
}
