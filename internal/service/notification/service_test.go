package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/lab-cases/internal/model"
	"github.com/jwalitptl/lab-cases/pkg/metrics"
)

func sentCase() *model.Case {
	notes := "Requires high translucency."
	lab := "lab-001"
	d := model.NewDate(2024, time.October, 15)
	return &model.Case{
		ID:           "pat-001",
		Name:         "Jane Smith",
		Service:      "Zirconia Crown",
		Shade:        "A2",
		Notes:        &notes,
		DeliveryDate: &d,
		LabID:        &lab,
		Status:       model.CaseStatusSent,
		CreatedBy:    "user-mineers",
		CreatedAt:    time.Date(2024, 9, 28, 10, 0, 0, 0, time.UTC),
	}
}

func TestPayloadDefaultsUnknownLab(t *testing.T) {
	p := NewPayload(sentCase(), nil)
	assert.Equal(t, UnknownLabName, p.LabName)
	assert.Equal(t, "", p.LabEmail)
	assert.Equal(t, "lab-001", p.LabID)
	require.NotNil(t, p.DeliveryDate)
	assert.Equal(t, "2024-10-15", *p.DeliveryDate)
	assert.Equal(t, "2024-09-28T10:00:00.000Z", p.CreatedAt)
}

func TestWebhookPostsPayload(t *testing.T) {
	var got Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := metrics.NewNop()
	email := "orders@aurora.example.com"
	lab := &model.Lab{ID: "lab-001", Name: "Aurora Dental Lab", Email: &email}

	require.NoError(t, NewWebhook(srv.URL, time.Second, m).CaseSent(context.Background(), sentCase(), lab))
	assert.Equal(t, "pat-001", got.PatientID)
	assert.Equal(t, "Aurora Dental Lab", got.LabName)
	assert.Equal(t, "orders@aurora.example.com", got.LabEmail)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("webhook", "ok")))
}

func TestWebhookNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	m := metrics.NewNop()
	err := NewWebhook(srv.URL, time.Second, m).CaseSent(context.Background(), sentCase(), nil)
	assert.ErrorContains(t, err, "502")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("webhook", "failed")))
}

type fakeEmail struct {
	to, subject, body string
	err               error
}

func (f *fakeEmail) SendCustom(ctx context.Context, to, subject, content string) error {
	f.to, f.subject, f.body = to, subject, content
	return f.err
}

func TestLabEmail(t *testing.T) {
	svc := &fakeEmail{}
	n := NewLabEmail(svc, nil)

	require.NoError(t, n.CaseSent(context.Background(), sentCase(), &model.Lab{ID: "lab-002", Name: "No Mail Lab"}))
	assert.Empty(t, svc.to)

	addr := "orders@aurora.example.com"
	require.NoError(t, n.CaseSent(context.Background(), sentCase(), &model.Lab{ID: "lab-001", Name: "Aurora", Email: &addr}))
	assert.Equal(t, addr, svc.to)
	assert.Equal(t, "New case: Jane Smith (Zirconia Crown)", svc.subject)
	assert.Contains(t, svc.body, "Delivery date: 2024-10-15")
}

type stubNotifier struct {
	calls int
	err   error
}

func (s *stubNotifier) CaseSent(context.Context, *model.Case, *model.Lab) error {
	s.calls++
	return s.err
}

func TestMultiCallsAllAndJoinsErrors(t *testing.T) {
	a := &stubNotifier{err: errors.New("a failed")}
	b := &stubNotifier{}
	err := Multi{a, b}.CaseSent(context.Background(), sentCase(), nil)

	assert.ErrorContains(t, err, "a failed")
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.NoError(t, Multi{b}.CaseSent(context.Background(), sentCase(), nil))
}
