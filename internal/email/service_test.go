package email

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type recordingSender struct {
	sent []*gomail.Message
	err  error
}

func (r *recordingSender) DialAndSend(m ...*gomail.Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, m...)
	return nil
}

func TestSendCustom(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, "cases@clinic.example.com")

	require.NoError(t, svc.SendCustom(context.Background(), "lab@example.com", "New case", "body text"))
	require.Len(t, sender.sent, 1)

	m := sender.sent[0]
	assert.Equal(t, []string{"lab@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"New case"}, m.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "body text")
}

func TestSendCustomWrapsSenderError(t *testing.T) {
	svc := NewService(&recordingSender{err: errors.New("relay down")}, "x@example.com")
	err := svc.SendCustom(context.Background(), "lab@example.com", "s", "b")
	assert.ErrorContains(t, err, "relay down")
}
