package mailer

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orbitx-go/internal/config"
)

func TestBuildMessage(t *testing.T) {
	s := NewSMTPSender(config.MailConfig{
		Host: "smtp.example.com", Port: 587,
		FromEmail: "bot@orbitx.example", FromName: "OrbitX Bot", TeamEmail: "team@orbitx.example",
	})
	require.True(t, s.Configured())

	msg, err := s.BuildMessage("New quote", "Asha wants a logo")
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "Subject: New quote")
	assert.Contains(t, raw, "To: <team@orbitx.example>")
	assert.Contains(t, raw, "Asha wants a logo")
}

func TestSendToTeam_NotConfigured(t *testing.T) {
	err := NewSMTPSender(config.MailConfig{}).SendToTeam(context.Background(), "s", "b")
	assert.Error(t, err)
}
