package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/spigell/hh-outreach/internal/conversation"
	"github.com/spigell/hh-outreach/internal/profile"
)

// Tone of a generated email.
type Tone string

const (
	ToneProfessional Tone = "professional"
	ToneFriendly     Tone = "friendly"
	ToneFormal       Tone = "formal"
	ToneCasual       Tone = "casual"
)

// EmailType is the purpose of a generated email.
type EmailType string

const (
	EmailTypeOutreach EmailType = "outreach"
	EmailTypeFollowUp EmailType = "follow_up"
	EmailTypeReferral EmailType = "referral"
	EmailTypeThankYou EmailType = "thank_you"
)

// ParseTone validates a tone name. Empty means professional.
func ParseTone(s string) (Tone, error) {
	switch t := Tone(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return ToneProfessional, nil
	case ToneProfessional, ToneFriendly, ToneFormal, ToneCasual:
		return t, nil
	default:
		return "", fmt.Errorf("unsupported tone %q (professional, friendly, formal, casual)", s)
	}
}

// ParseEmailType validates an email type name. Empty means outreach.
func ParseEmailType(s string) (EmailType, error) {
	switch e := EmailType(strings.ToLower(strings.TrimSpace(s))); e {
	case "":
		return EmailTypeOutreach, nil
	case EmailTypeOutreach, EmailTypeFollowUp, EmailTypeReferral, EmailTypeThankYou:
		return e, nil
	default:
		return "", fmt.Errorf("unsupported email type %q", s)
	}
}

// Settings are the user-selected knobs of a generation.
type Settings struct {
	Tone               Tone      `json:"tone"`
	EmailType          EmailType `json:"email_type"`
	CustomInstructions string    `json:"custom_instructions,omitempty"`
	TargetRoles        []string  `json:"target_roles,omitempty"`
}

// Normalize validates tone and email type and fills in their defaults.
func (s Settings) Normalize() (Settings, error) {
	tone, err := ParseTone(string(s.Tone))
	if err != nil {
		return s, err
	}
	emailType, err := ParseEmailType(string(s.EmailType))
	if err != nil {
		return s, err
	}
	s.Tone, s.EmailType = tone, emailType
	s.CustomInstructions = strings.TrimSpace(s.CustomInstructions)
	return s, nil
}

// GenerationRequest is everything the model sees about an email to write.
type GenerationRequest struct {
	Contact  conversation.Contact `json:"contact"`
	Profile  profile.Profile      `json:"user_profile"`
	Settings Settings             `json:"settings"`
	// Thread is the reconciled history, used for follow-ups.
	Thread []conversation.EmailRecord `json:"thread,omitempty"`
}

// GenerationResponse is a drafted email.
type GenerationResponse struct {
	Subject   string `json:"subject" mapstructure:"subject"`
	Body      string `json:"body" mapstructure:"body"`
	Reasoning string `json:"reasoning,omitempty" mapstructure:"reasoning"`
	Raw       string `json:"-" mapstructure:"-"`
}

// Composer drafts emails.
type Composer interface {
	Compose(ctx context.Context, req *GenerationRequest) (*GenerationResponse, error)
}
