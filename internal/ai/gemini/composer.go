package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/hh-outreach/internal/ai"
	"github.com/spigell/hh-outreach/internal/format"
	"github.com/spigell/hh-outreach/internal/logger"
	"github.com/spigell/hh-outreach/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

// Composer drafts emails with Gemini.
type Composer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength     = 200
	maxUserInstructionRunes = 600
	maxThreadEntries        = 6
	maxThreadEntryRunes     = 500
	templateMarker          = "[Template]"
	noneValue               = "none"
)

// NewComposer builds a Composer. model is only used to enrich log entries.
func NewComposer(generator contentGenerator, model string, maxLogLength int, log *zap.Logger) *Composer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Composer{
		generator: generator,
		logger:    logger.ForAI(log, "gemini", model),
		maxLogLen: maxLogLength,
	}
}

// Compose asks the model for a subject and body.
func (c *Composer) Compose(ctx context.Context, req *ai.GenerationRequest) (*ai.GenerationResponse, error) {
	if req == nil {
		return nil, errors.New("generation request is required")
	}
	if strings.TrimSpace(req.Contact.Email) == "" && strings.TrimSpace(req.Contact.Name) == "" {
		return nil, errors.New("contact is required")
	}

	system, message, err := buildPrompt(req)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("gemini compose request",
		zap.String("contact_id", req.Contact.ID),
		zap.String("email_type", string(req.Settings.EmailType)),
		zap.Int("prompt_length", utf8.RuneCountInString(message)),
		zap.String("prompt_preview", utils.TruncateForLog(message, c.maxLogLen)),
	)

	raw, err := c.generator.GenerateContent(ctx, system, message)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("gemini compose response",
		zap.String("contact_id", req.Contact.ID),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, c.maxLogLen)),
	)

	resp, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	if resp.Body == "" {
		return nil, errors.New("gemini response has an empty body")
	}
	if resp.Subject == "" && req.Settings.EmailType != ai.EmailTypeFollowUp {
		return nil, errors.New("gemini response has an empty subject")
	}

	resp.Raw = raw
	return resp, nil
}

func buildPrompt(req *ai.GenerationRequest) (string, string, error) {
	contactJSON, err := json.MarshalIndent(req.Contact, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("marshal contact: %w", err)
	}

	profileJSON, err := json.MarshalIndent(req.Profile, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("marshal profile: %w", err)
	}

	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = templateMarker + "\nContact:\n{{CONTACT_JSON}}\n\nCandidate:\n{{PROFILE_JSON}}\n\nJSON Response:"
	}

	system, body := "", template
	if idx := strings.Index(template, templateMarker); idx > 0 {
		system = strings.TrimSpace(template[:idx])
		body = template[idx:]
	}

	tone := req.Settings.Tone
	if tone == "" {
		tone = ai.ToneProfessional
	}
	emailType := req.Settings.EmailType
	if emailType == "" {
		emailType = ai.EmailTypeOutreach
	}

	roles := req.Settings.TargetRoles
	if len(roles) == 0 {
		roles = req.Profile.TargetRoles
	}

	replacer := strings.NewReplacer(
		"{{EMAIL_TYPE}}", string(emailType),
		"{{TONE}}", sanitizeSingleLine(string(tone)),
		"{{TARGET_ROLES}}", sanitizeList(roles),
		"{{USER_INSTRUCTIONS}}", sanitizeUserInstructions(req.Settings.CustomInstructions),
		"{{CONTACT_JSON}}", string(contactJSON),
		"{{PROFILE_JSON}}", string(profileJSON),
		"{{THREAD}}", renderThread(req),
	)

	return system, strings.TrimSpace(replacer.Replace(body)), nil
}

func renderThread(req *ai.GenerationRequest) string {
	if len(req.Thread) == 0 {
		return noneValue
	}

	entries := req.Thread
	if len(entries) > maxThreadEntries {
		entries = entries[len(entries)-maxThreadEntries:]
	}

	var b strings.Builder
	for _, rec := range entries {
		fmt.Fprintf(&b, "- %s %s (%s): %s\n",
			rec.SentAt.Format("2006-01-02"),
			rec.Direction,
			sanitizeSingleLine(rec.Subject),
			sanitizeSingleLine(truncateRunes(format.VisibleText(rec.Body, rec.IsHTML), maxThreadEntryRunes)),
		)
	}

	return strings.TrimRight(b.String(), "\n")
}

// sanitizeUserInstructions keeps free-form instructions from breaking out of
// their block: brackets that look like section headers are neutralized, the
// text is capped and every line is rendered as a list item.
func sanitizeUserInstructions(s string) string {
	s = strings.TrimSpace(neutralizeBrackets(s))
	if s == "" {
		return "  - " + noneValue
	}

	s = truncateRunes(s, maxUserInstructionRunes)

	lines := make([]string, 0)
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, "  - "+line)
	}

	return strings.Join(lines, "\n")
}

func sanitizeSingleLine(s string) string {
	s = neutralizeBrackets(s)
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return noneValue
	}
	return s
}

func sanitizeList(items []string) string {
	cleaned := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.Join(strings.Fields(neutralizeBrackets(item)), " ")
		if item != "" {
			cleaned = append(cleaned, item)
		}
	}
	if len(cleaned) == 0 {
		return noneValue
	}
	return strings.Join(cleaned, ", ")
}

func neutralizeBrackets(s string) string {
	return strings.NewReplacer("[", "(", "]", ")").Replace(s)
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func parseResponse(raw string) (*ai.GenerationResponse, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	var resp ai.GenerationResponse
	if err := mapstructure.WeakDecode(data, &resp); err != nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}

	resp.Subject = strings.Join(strings.Fields(resp.Subject), " ")
	resp.Body = format.ToPlainText(resp.Body)
	resp.Reasoning = strings.TrimSpace(resp.Reasoning)

	return &resp, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	raw = strings.TrimSpace(raw)

	// tolerate chatter around the object
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start > 0 && end > start {
		raw = raw[start : end+1]
	}

	return raw
}
