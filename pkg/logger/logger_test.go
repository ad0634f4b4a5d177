package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizedEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ada@example.com", "a**@*******.com"},
		{"a@x.io", "a@*.io"},
		{"not-an-email", "[invalid-email]"},
		{"a@b@c", "[invalid-email]"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizedEmail(tt.in))
		})
	}
}

func TestSanitizeQueryString(t *testing.T) {
	assert.True(t, SanitizeQueryString("email=ada@x.com"))
	assert.True(t, SanitizeQueryString("OTP=123456"))
	assert.False(t, SanitizeQueryString("page=2&limit=10"))
	assert.False(t, SanitizeQueryString(""))
}

func newCapturingAuditLogger(buf *bytes.Buffer) *AuditLogger {
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(buf, nil)))
	al.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return al
}

func TestAuditLogger_LogAuthAttempt(t *testing.T) {
	var buf bytes.Buffer
	al := newCapturingAuditLogger(&buf)

	al.LogAuthAttempt(context.Background(), AuditEvent{
		EventType:     EventLogin,
		Email:         "ada@example.com",
		Success:       false,
		FailureReason: "invalid_pin",
	})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "auth", entry["audit_type"])
	assert.Equal(t, EventLogin, entry["event_type"])
	assert.Equal(t, false, entry["success"])
	assert.Equal(t, "a**@*******.com", entry["email"])
	assert.Equal(t, "invalid_pin", entry["failure_reason"])
	assert.Equal(t, "2026-01-02T03:04:05Z", entry["timestamp"])
	assert.NotContains(t, entry, "user_id")
}

func TestAuditLogger_LogAccountAction(t *testing.T) {
	var buf bytes.Buffer
	al := newCapturingAuditLogger(&buf)

	al.LogAccountAction(context.Background(), EventSubscribe, "user-1", map[string]string{"duration": "oneMonth"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "account", entry["audit_type"])
	assert.Equal(t, "user-1", entry["user_id"])
	assert.Equal(t, "oneMonth", entry["duration"])
}

func TestAuditLogger_ClientIPFromContext(t *testing.T) {
	var buf bytes.Buffer
	al := newCapturingAuditLogger(&buf)

	ctx := WithClientIP(context.Background(), "203.0.113.7")
	al.LogAuthAttempt(ctx, AuditEvent{EventType: EventVerifyPin, UserID: "u1", Success: true})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "203.0.113.7", entry["ip_address"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Empty(t, ClientIPFromContext(context.Background()))
}
