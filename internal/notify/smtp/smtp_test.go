package smtp

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/specops-api/internal/domain/model"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{From: "a@b.c"})
	assert.Error(t, err)
	_, err = New(Config{Host: "mail"})
	assert.Error(t, err)

	s, err := New(Config{Host: "mail", From: "specops@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "mail:587", s.addr)
	assert.Nil(t, s.auth)
}

func TestSend_BuildsMessage(t *testing.T) {
	s, err := New(Config{Host: "mail.example.com", Port: 2525, Username: "u", Password: "p", From: "specops@example.com"})
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	s.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		assert.NotNil(t, a)
		return nil
	}

	id, err := s.Send(context.Background(), model.Message{
		Recipient: "dev@example.com",
		Subject:   "HAR upload #3 processed",
		Body:      "line one\nline two",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(id, "<"))
	assert.True(t, strings.HasSuffix(id, "@mail.example.com>"))
	assert.Equal(t, "mail.example.com:2525", gotAddr)
	assert.Equal(t, "specops@example.com", gotFrom)
	assert.Equal(t, []string{"dev@example.com"}, gotTo)

	raw := string(gotMsg)
	assert.Contains(t, raw, "To: dev@example.com\r\n")
	assert.Contains(t, raw, "Subject: HAR upload #3 processed\r\n")
	assert.Contains(t, raw, "Message-ID: "+id+"\r\n")
	assert.Contains(t, raw, "\r\n\r\nline one\r\nline two")
}

func TestSend_PropagatesError(t *testing.T) {
	s, err := New(Config{Host: "mail", From: "specops@example.com"})
	require.NoError(t, err)
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("550 mailbox unavailable")
	}

	_, err = s.Send(context.Background(), model.Message{Recipient: "x@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "550 mailbox unavailable")

	_, err = s.Send(context.Background(), model.Message{})
	assert.Error(t, err)
}

func TestSend_ContextCancelled(t *testing.T) {
	s, err := New(Config{Host: "mail", From: "specops@example.com"})
	require.NoError(t, err)
	release := make(chan struct{})
	defer close(release)
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		<-release
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = s.Send(ctx, model.Message{Recipient: "x@example.com"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
