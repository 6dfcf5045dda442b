package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStrings(t *testing.T) {
	fields := Strings("  provider  ", "  Gemini  ", "ignored", "   ", "   ", "empty key", "dangling")
	if len(fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(fields))
	}
	if fields[0].Key != "provider" || fields[0].String != "Gemini" {
		t.Fatalf("unexpected field: %+v", fields[0])
	}

	if empty := Strings(); len(empty) != 0 {
		t.Fatalf("expected no fields, got %d", len(empty))
	}
}

func TestWithFieldsNilLogger(t *testing.T) {
	enriched := WithFields(nil, zap.String("baz", "qux"))
	if enriched == nil {
		t.Fatal("expected fallback logger when nil provided")
	}
	enriched.Info("does not panic")
}

func TestForAI(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)

	ForAI(zap.New(core), "gemini", "model-x").Info("drafted")

	entries := observed.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	ctx := entries[0].ContextMap()
	if ctx[FieldProvider] != "gemini" || ctx[FieldModel] != "model-x" {
		t.Fatalf("unexpected fields: %v", ctx)
	}
}

func TestContactFields(t *testing.T) {
	tests := []struct {
		name      string
		id, email string
		expect    map[string]string
	}{
		{name: "both", id: "c1", email: "hr@acme.io", expect: map[string]string{FieldContactID: "c1", FieldRecipient: "hr@acme.io"}},
		{name: "id only", id: " c1 ", expect: map[string]string{FieldContactID: "c1"}},
		{name: "none", expect: map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := ContactFields(tt.id, tt.email)
			if len(fields) != len(tt.expect) {
				t.Fatalf("expected %d fields, got %d", len(tt.expect), len(fields))
			}
			for _, f := range fields {
				if tt.expect[f.Key] != f.String {
					t.Fatalf("unexpected field %s=%q", f.Key, f.String)
				}
			}
		})
	}
}
