package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func encode(t *testing.T, enc zapcore.Encoder, fields ...zapcore.Field) string {
	t.Helper()
	buf, err := enc.EncodeEntry(zapcore.Entry{Message: "msg", Time: time.Unix(0, 0)}, fields)
	require.NoError(t, err)
	return buf.String()
}

func TestRedactingEncoder(t *testing.T) {
	base := zapcore.NewJSONEncoder(zapcore.EncoderConfig{MessageKey: "msg"})
	enc, err := NewRedactingEncoder(base, NewDefaultConfig().Redaction)
	require.NoError(t, err)

	tests := []struct {
		name     string
		field    zapcore.Field
		contains string
		absent   string
	}{
		{
			name:     "sensitive key",
			field:    zapcore.Field{Key: "api_key", Type: zapcore.StringType, String: "abc"},
			contains: `"api_key":"[REDACTED]"`,
			absent:   "abc",
		},
		{
			name:     "groq key in value",
			field:    zapcore.Field{Key: "detail", Type: zapcore.StringType, String: "used gsk_abcdefghijklmnopqrstuvwx for call"},
			contains: "[REDACTED]",
			absent:   "gsk_abcdefghijklmnopqrstuvwx",
		},
		{
			name:     "bearer header",
			field:    zapcore.Field{Key: "header", Type: zapcore.StringType, String: "Bearer sk-123"},
			contains: "[REDACTED]",
			absent:   "sk-123",
		},
		{
			name:     "plain question untouched",
			field:    zapcore.Field{Key: "question", Type: zapcore.StringType, String: "Solve 2x + 5 = 15"},
			contains: "Solve 2x + 5 = 15",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := encode(t, enc.Clone(), tt.field)
			assert.Contains(t, out, tt.contains)
			if tt.absent != "" {
				assert.NotContains(t, out, tt.absent)
			}
		})
	}
}

func TestRedactingEncoder_Disabled(t *testing.T) {
	base := zapcore.NewJSONEncoder(zapcore.EncoderConfig{MessageKey: "msg"})
	enc, err := NewRedactingEncoder(base, RedactionConfig{Enabled: false})
	require.NoError(t, err)

	out := encode(t, enc, zapcore.Field{Key: "api_key", Type: zapcore.StringType, String: "abc"})
	assert.Contains(t, out, "abc")
}

func TestRedactedString(t *testing.T) {
	f := RedactedString("groq_key", "gsk_123")
	assert.Equal(t, "[REDACTED:7]", f.String)
}
