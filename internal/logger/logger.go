package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FieldApp names the application in every entry.
const FieldApp = "app"

// New builds the cli logger. Entries carry app and version so that logs of
// the api and of one-shot commands can be told apart.
func New(json bool, debug bool, app, version string) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	encoding := "console"

	if json {
		encoding = "json"
	}

	if debug {
		level = zapcore.DebugLevel
	}

	initial := map[string]interface{}{}
	if app != "" {
		initial[FieldApp] = app
	}
	if version != "" && json {
		initial["version"] = version
	}

	cfg := zap.Config{
		Encoding:         encoding,
		Level:            zap.NewAtomicLevelAt(level),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		InitialFields:    initial,
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey: "step",

			LevelKey:    "level",
			EncodeLevel: zapcore.LowercaseLevelEncoder,

			TimeKey:    "time",
			EncodeTime: zapcore.RFC3339TimeEncoder,

			CallerKey:    "caller",
			EncodeCaller: zapcore.ShortCallerEncoder,
		},
	}

	return cfg.Build()
}
