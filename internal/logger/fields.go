package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Structured log keys shared across packages.
const (
	FieldProvider  = "ai_provider"
	FieldModel     = "ai_model"
	FieldContactID = "contact_id"
	FieldRecipient = "recipient"
	FieldKind      = "kind"
)

// Strings turns alternating key/value pairs into zap fields. Pairs with a
// blank key or value are skipped, as is a trailing key without a value.
func Strings(pairs ...string) []zap.Field {
	result := make([]zap.Field, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		key := strings.TrimSpace(pairs[i])
		value := strings.TrimSpace(pairs[i+1])
		if key == "" || value == "" {
			continue
		}
		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches fields to logger. A nil logger becomes a no-op one.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// AIFields describe the provider and model behind a generated draft.
func AIFields(provider, model string) []zap.Field {
	return Strings(FieldProvider, provider, FieldModel, model)
}

// ContactFields identify the contact an operation works on.
func ContactFields(contactID, recipient string) []zap.Field {
	return Strings(FieldContactID, contactID, FieldRecipient, recipient)
}

// ForAI is WithFields(logger, AIFields(provider, model)...).
func ForAI(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, AIFields(provider, model)...)
}
