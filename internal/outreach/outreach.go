// Package outreach runs send attempts: it validates a draft, optionally lets
// the AI composer write it, hands it to the mail transport and records the
// result in the contact store.
package outreach

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/hh-outreach/internal/ai"
	"github.com/spigell/hh-outreach/internal/conversation"
	"github.com/spigell/hh-outreach/internal/eligibility"
	"github.com/spigell/hh-outreach/internal/format"
	"github.com/spigell/hh-outreach/internal/logger"
	"github.com/spigell/hh-outreach/internal/profile"
)

const defaultGenerationTimeout = 60 * time.Second

// Message is what the transport delivers.
type Message struct {
	From    string
	To      string
	Name    string
	Subject string
	Body    string
	IsHTML  bool
	Kind    conversation.Direction
	// Date goes into the Date header. The local record carries the same time.
	Date time.Time
}

// Receipt identifies a delivered message at the provider.
type Receipt struct {
	MessageID string
	ThreadID  string
	// Subject is the subject actually used, set by transports that derive it.
	Subject string
}

// Transport is the mail provider.
type Transport interface {
	Send(ctx context.Context, msg Message) (*Receipt, error)
	// SendFollowUp replies into the existing conversation with msg.To.
	// msg.Subject carries the thread's anchor subject as a hint.
	SendFollowUp(ctx context.Context, msg Message) (*Receipt, error)
	GetConversation(ctx context.Context, sender, recipient string) ([]conversation.RemoteMessage, error)
}

// Store is the contact store as seen by the orchestrator.
type Store interface {
	GetContact(ctx context.Context, id string) (*conversation.Contact, error)
	AppendEmail(ctx context.Context, rec *conversation.EmailRecord) error
	EmailsForContact(ctx context.Context, contactID string) ([]conversation.EmailRecord, error)
	EmailsForContacts(ctx context.Context, contactIDs []string) (map[string][]conversation.EmailRecord, error)
	ContactsWithSentEmail(ctx context.Context) ([]conversation.Contact, error)
}

// Config holds the orchestrator settings.
type Config struct {
	// Account is the authenticated mailbox address.
	Account           string
	AccountName       string
	MinimumCompletion float64
	GenerationTimeout time.Duration
}

// Draft is the user's in-progress email.
type Draft struct {
	ContactIDs []string `json:"contact_ids"`
	From       string   `json:"from,omitempty"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	IsHTML     bool     `json:"is_html"`
	// Assist asks the composer to write subject and body before sending.
	Assist *ai.Settings `json:"assist,omitempty"`
}

// Payload is the exact content previewed and transmitted.
type Payload struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	IsHTML  bool   `json:"is_html"`
}

// Outcome is the result of one attempt.
type Outcome struct {
	ContactID string                    `json:"contact_id"`
	Recipient string                    `json:"recipient,omitempty"`
	State     State                     `json:"state"`
	Record    *conversation.EmailRecord `json:"record,omitempty"`
	// Draft is the draft as it stands after the attempt, preserved on errors.
	Draft   Draft               `json:"draft"`
	Warning *PersistenceWarning `json:"-"`
	Err     error               `json:"-"`
}

// Sent reports whether the recipient got the email.
func (o *Outcome) Sent() bool {
	return o.State == StateDone
}

// Orchestrator runs send attempts.
type Orchestrator struct {
	cfg       Config
	store     Store
	transport Transport
	composer  ai.Composer
	profiles  profile.Source
	logger    *zap.Logger
	locks     *contactLocks
	now       func() time.Time
}

// New creates an Orchestrator. composer may be nil when AI assistance is
// disabled.
func New(cfg Config, store Store, transport Transport, composer ai.Composer, profiles profile.Source, log *zap.Logger) *Orchestrator {
	if cfg.MinimumCompletion <= 0 {
		cfg.MinimumCompletion = profile.MinimumCompletion
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = defaultGenerationTimeout
	}
	cfg.Account = conversation.NormalizeAddress(cfg.Account)

	return &Orchestrator{
		cfg:       cfg,
		store:     store,
		transport: transport,
		composer:  composer,
		profiles:  profiles,
		logger:    logger.WithFields(log, zap.String("account", cfg.Account)),
		locks:     newContactLocks(),
		now:       time.Now,
	}
}

// Account returns the authenticated mailbox address.
func (o *Orchestrator) Account() string {
	return o.cfg.Account
}

// Preview returns the payload Send would transmit for d.
func Preview(d Draft) Payload {
	return Payload{
		Subject: strings.Join(strings.Fields(d.Subject), " "),
		Body:    format.Render(d.Body, d.IsHTML),
		IsHTML:  d.IsHTML,
	}
}

// Send runs a compose attempt for the single contact of d. The returned
// outcome is never nil. A persistence failure does not make Send fail, it is
// reported through Outcome.Warning.
func (o *Orchestrator) Send(ctx context.Context, d Draft) (*Outcome, error) {
	out := &Outcome{Draft: d, State: StateDraft}
	if len(d.ContactIDs) != 1 {
		out.State = StateError
		out.Err = invalid("recipients", fmt.Sprintf("compose needs exactly one recipient, got %d", len(d.ContactIDs)))
		return out, out.Err
	}

	o.attempt(ctx, out, d.ContactIDs[0], conversation.DirectionOutbound)
	return out, out.Err
}

// SendBatch sends d to each contact independently and in order. One failed
// recipient never stops the others.
func (o *Orchestrator) SendBatch(ctx context.Context, d Draft) []*Outcome {
	outcomes := make([]*Outcome, 0, len(d.ContactIDs))
	for _, id := range d.ContactIDs {
		single := d
		single.ContactIDs = []string{id}

		out := &Outcome{Draft: single, State: StateDraft}
		if err := ctx.Err(); err != nil {
			out.ContactID, out.State, out.Err = id, StateError, err
			outcomes = append(outcomes, out)
			continue
		}

		o.attempt(ctx, out, id, conversation.DirectionOutbound)
		outcomes = append(outcomes, out)
	}
	return outcomes
}

// FollowUp sends a follow-up to a contact that is currently due for one.
// The subject is derived from the existing conversation.
func (o *Orchestrator) FollowUp(ctx context.Context, contactID string, d Draft) (*Outcome, error) {
	d.ContactIDs = []string{contactID}
	out := &Outcome{Draft: d, State: StateDraft}
	o.attempt(ctx, out, contactID, conversation.DirectionFollowUp)
	return out, out.Err
}

func (o *Orchestrator) attempt(ctx context.Context, out *Outcome, contactID string, kind conversation.Direction) {
	out.ContactID = contactID
	log := logger.WithFields(o.logger, append(logger.ContactFields(contactID, ""), zap.String(logger.FieldKind, string(kind)))...)
	a := newAttempt(log)
	defer func() { out.State = a.state }()

	a.to(StateValidating)

	if strings.TrimSpace(contactID) == "" {
		out.Err = a.fail(invalid("contact", "is required"))
		return
	}

	if !o.locks.tryLock(contactID) {
		out.Err = a.fail(invalid("contact", "another send to this contact is in progress"))
		return
	}
	defer o.locks.unlock(contactID)

	p, err := o.checkGate(ctx)
	if err != nil {
		out.Err = a.fail(err)
		return
	}

	if err := o.checkSender(out.Draft.From); err != nil {
		out.Err = a.fail(err)
		return
	}

	if out.Draft.Assist == nil {
		if err := checkContent(out.Draft, kind); err != nil {
			out.Err = a.fail(err)
			return
		}
	}

	contact, err := o.store.GetContact(ctx, contactID)
	if err != nil {
		if errors.Is(err, conversation.ErrContactNotFound) {
			out.Err = a.fail(invalid("contact", "unknown contact "+contactID))
			return
		}
		out.Err = a.fail(fmt.Errorf("load contact %s: %w", contactID, err))
		return
	}
	out.Recipient = contact.Email
	if strings.TrimSpace(contact.Email) == "" {
		out.Err = a.fail(invalid("recipient", "contact has no email address"))
		return
	}

	var thread conversation.Thread
	if kind == conversation.DirectionFollowUp || out.Draft.Assist != nil {
		thread, err = o.history(ctx, contact)
		if err != nil {
			out.Err = a.fail(err)
			return
		}
	}

	if kind == conversation.DirectionFollowUp {
		if !eligibility.NeedsFollowUp(*contact, thread.Records, o.now()) {
			out.Err = a.fail(invalid("contact", "contact is not due for a follow-up"))
			return
		}
	}

	if out.Draft.Assist != nil {
		a.to(StateGenerating)

		settings := *out.Draft.Assist
		if kind == conversation.DirectionFollowUp {
			settings.EmailType = ai.EmailTypeFollowUp
		}

		generated, err := o.compose(ctx, contact, p, settings, thread.Records, out.Draft)
		if err != nil {
			out.Err = a.fail(err)
			return
		}
		generated.Assist = nil
		out.Draft = generated

		if err := checkContent(out.Draft, kind); err != nil {
			out.Err = a.fail(err)
			return
		}
	}

	a.to(StateSending)

	payload := Preview(out.Draft)
	// Date headers have second precision
	sentAt := o.now().UTC().Truncate(time.Second)
	msg := Message{
		From:    o.cfg.Account,
		To:      contact.Email,
		Name:    o.cfg.AccountName,
		Subject: payload.Subject,
		Body:    payload.Body,
		IsHTML:  payload.IsHTML,
		Kind:    kind,
		Date:    sentAt,
	}

	var receipt *Receipt
	if kind == conversation.DirectionFollowUp {
		msg.Subject = thread.Subject
		receipt, err = o.transport.SendFollowUp(ctx, msg)
	} else {
		receipt, err = o.transport.Send(ctx, msg)
	}
	if err != nil {
		log.Warn("send failed", zap.Error(err))
		out.Err = a.fail(&TransportError{Recipient: contact.Email, Err: err})
		return
	}
	if receipt == nil {
		receipt = &Receipt{}
	}

	a.to(StatePersisting)

	subject := msg.Subject
	if receipt.Subject != "" {
		subject = receipt.Subject
	}

	rec := &conversation.EmailRecord{
		ID:        uuid.NewString(),
		ContactID: contact.ID,
		From:      o.cfg.Account,
		To:        conversation.NormalizeAddress(contact.Email),
		Subject:   subject,
		Body:      payload.Body,
		IsHTML:    payload.IsHTML,
		Direction: kind,
		SentAt:    sentAt,
		MessageID: receipt.MessageID,
		ThreadID:  receipt.ThreadID,
		Source:    conversation.SourceLocal,
	}
	out.Record = rec

	if err := o.store.AppendEmail(ctx, rec); err != nil {
		out.Warning = &PersistenceWarning{ContactID: contact.ID, Err: err}
		log.Warn("email sent but not recorded", zap.Error(err))
	}

	a.to(StateDone)
	log.Info("email sent",
		zap.String("recipient", contact.Email),
		zap.String("message_id", receipt.MessageID),
	)
}

// Generate asks the composer for a new subject and body for the contact. On
// failure the given draft is returned unchanged together with a
// GenerationError.
func (o *Orchestrator) Generate(ctx context.Context, contactID string, settings ai.Settings, d Draft) (Draft, error) {
	contact, err := o.store.GetContact(ctx, contactID)
	if err != nil {
		if errors.Is(err, conversation.ErrContactNotFound) {
			return d, invalid("contact", "unknown contact "+contactID)
		}
		return d, fmt.Errorf("load contact %s: %w", contactID, err)
	}

	p, err := o.loadProfile(ctx)
	if err != nil {
		return d, &GenerationError{Err: err}
	}

	var records []conversation.EmailRecord
	if settings.EmailType == ai.EmailTypeFollowUp {
		thread, err := o.history(ctx, contact)
		if err != nil {
			return d, &GenerationError{Err: err}
		}
		records = thread.Records
	}

	return o.compose(ctx, contact, p, settings, records, d)
}

func (o *Orchestrator) compose(ctx context.Context, contact *conversation.Contact, p *profile.Profile, settings ai.Settings, thread []conversation.EmailRecord, d Draft) (Draft, error) {
	if o.composer == nil {
		return d, &GenerationError{Err: errors.New("ai assistance is disabled")}
	}

	req := &ai.GenerationRequest{
		Contact:  *contact,
		Settings: settings,
		Thread:   thread,
	}
	if p != nil {
		req.Profile = *p
	}

	genCtx, cancel := context.WithTimeout(ctx, o.cfg.GenerationTimeout)
	defer cancel()

	resp, err := o.composer.Compose(genCtx, req)
	if err != nil {
		o.logger.Warn("generation failed", append(logger.ContactFields(contact.ID, ""), zap.Error(err))...)
		return d, &GenerationError{Err: err}
	}

	updated := d
	if resp.Subject != "" {
		updated.Subject = resp.Subject
	}
	updated.Body = resp.Body
	return updated, nil
}

// History rebuilds the conversation with a contact from the store and the
// mailbox.
func (o *Orchestrator) History(ctx context.Context, contactID string) (conversation.Thread, error) {
	contact, err := o.store.GetContact(ctx, contactID)
	if err != nil {
		return conversation.Thread{}, fmt.Errorf("load contact %s: %w", contactID, err)
	}
	return o.history(ctx, contact)
}

func (o *Orchestrator) history(ctx context.Context, contact *conversation.Contact) (conversation.Thread, error) {
	local, err := o.store.EmailsForContact(ctx, contact.ID)
	if err != nil {
		return conversation.Thread{}, fmt.Errorf("load history of %s: %w", contact.ID, err)
	}

	return o.reconcile(ctx, contact, local), nil
}

// reconcile merges already loaded local records with the mailbox copy.
func (o *Orchestrator) reconcile(ctx context.Context, contact *conversation.Contact, local []conversation.EmailRecord) conversation.Thread {
	var remote []conversation.EmailRecord
	dropped := 0
	if o.transport != nil && o.cfg.Account != "" && contact.Email != "" {
		msgs, err := o.transport.GetConversation(ctx, o.cfg.Account, contact.Email)
		if err != nil {
			// local history alone is still a usable thread
			o.logger.Warn("fetch remote conversation", append(logger.ContactFields(contact.ID, contact.Email), zap.Error(err))...)
		} else {
			remote, dropped = conversation.NormalizeRemoteAll(contact.ID, msgs)
		}
	}

	thread := conversation.Reconcile(contact.ID, o.cfg.Account, local, remote)
	thread.Dropped += dropped
	if thread.Dropped > 0 {
		o.logger.Debug("dropped malformed emails", zap.String("contact_id", contact.ID), zap.Int("dropped", thread.Dropped))
	}

	return thread
}

func (o *Orchestrator) loadProfile(ctx context.Context) (*profile.Profile, error) {
	if o.profiles == nil {
		return nil, errors.New("profile source is not configured")
	}
	p, err := o.profiles.Profile(ctx)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return p, nil
}

func (o *Orchestrator) checkGate(ctx context.Context) (*profile.Profile, error) {
	p, err := o.loadProfile(ctx)
	if err != nil {
		return nil, err
	}

	gate := profile.Completion(p)
	if !gate.Passed(o.cfg.MinimumCompletion) {
		return nil, invalid("profile", fmt.Sprintf("profile is %.1f%% complete, %.0f%% required (missing: %s)",
			gate.Percentage, o.cfg.MinimumCompletion, strings.Join(gate.Missing, ", ")))
	}

	return p, nil
}

func (o *Orchestrator) checkSender(from string) error {
	if o.cfg.Account == "" {
		return invalid("from", "no authenticated account is configured")
	}
	if from = conversation.NormalizeAddress(from); from != "" && from != o.cfg.Account {
		return invalid("from", "sender must be the authenticated account "+o.cfg.Account)
	}
	return nil
}

func checkContent(d Draft, kind conversation.Direction) error {
	if kind != conversation.DirectionFollowUp && strings.TrimSpace(d.Subject) == "" {
		return invalid("subject", "is required")
	}
	body := format.ToPlainText(d.Body)
	if d.IsHTML {
		body = format.FromHTML(d.Body)
	}
	if body == "" {
		return invalid("body", "is required")
	}
	return nil
}
