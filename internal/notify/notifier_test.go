package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "leak-audit/internal/common/errors"
	"leak-audit/internal/common/logger"
	"leak-audit/internal/leak"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmail struct {
	mu    sync.Mutex
	calls int
	to    []string
	html  string
	err   error
}

func (f *fakeEmail) SendHTML(_ context.Context, to []string, _, html, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.to, f.html = to, html
	return "msg-1", f.err
}

type fakeSMS struct {
	mu     sync.Mutex
	phones []string
	texts  []string
	err    error
}

func (f *fakeSMS) SendSMS(_ context.Context, phone, msg string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.phones = append(f.phones, phone)
	f.texts = append(f.texts, msg)
	return "sms-1", nil
}

func sampleLeaks() []leak.Leak {
	return []leak.Leak{
		{ID: "leak-2", Name: "Stalled Negotiation", Severity: leak.SeverityCritical, IsSLABreach: true,
			RevenueAtRisk: 91000, HoursSinceActivity: 124, RecommendedAction: "Call the champion"},
		{ID: "leak-4", Name: "High-Value Latency", Severity: leak.SeverityCritical, IsSLABreach: false,
			RevenueAtRisk: 44800, HoursSinceActivity: 4},
		{ID: "leak-3", Name: "Missed Follow-Ups", Severity: leak.SeverityHigh, IsSLABreach: true,
			RevenueAtRisk: 30000, HoursSinceActivity: 26},
	}
}

func TestSend_DeliversBothChannels(t *testing.T) {
	email, sms := &fakeEmail{}, &fakeSMS{}
	n := NewNotifier(email, sms, nil, logger.NewTestLogger(t))

	res, err := n.Send(context.Background(), Alert{
		ID:         "run-1",
		Leaks:      sampleLeaks(),
		Recipients: Recipients{Email: []string{"ops@example.com"}, Phone: []string{"+15550001", "+15550002"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "run-1", res.NotificationID)
	assert.Equal(t, StatusSent, res.Status)
	assert.Equal(t, 2, res.SMSSent)
	assert.True(t, res.EmailSent)

	assert.Equal(t, []string{"+15550001", "+15550002"}, sms.phones)
	assert.Contains(t, sms.texts[0], "Stalled Negotiation")
	assert.Equal(t, 1, email.calls)
	assert.Contains(t, email.html, "$91,000")
	assert.Contains(t, email.html, "3 revenue leaks")
}

func TestSend_IdempotentPerID(t *testing.T) {
	email := &fakeEmail{}
	n := NewNotifier(email, nil, nil, logger.NewTestLogger(t))
	alert := Alert{ID: "run-1", Leaks: sampleLeaks(), Recipients: Recipients{Email: []string{"a@b.co"}}}

	_, err := n.Send(context.Background(), alert)
	require.NoError(t, err)
	res, err := n.Send(context.Background(), alert)
	require.NoError(t, err)

	assert.Equal(t, StatusDuplicate, res.Status)
	assert.Equal(t, 1, email.calls)
}

func TestSend_AllChannelsFailReleasesClaim(t *testing.T) {
	email := &fakeEmail{err: errors.New("throttled")}
	n := NewNotifier(email, nil, nil, logger.NewTestLogger(t))
	alert := Alert{ID: "run-1", Leaks: sampleLeaks(), Recipients: Recipients{Email: []string{"a@b.co"}}}

	_, err := n.Send(context.Background(), alert)
	stdErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeNotificationSendFailed, stdErr.Code)

	email.err = nil
	res, err := n.Send(context.Background(), alert)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, res.Status)
	assert.Equal(t, 2, email.calls)
}

func TestSend_PartialFailure(t *testing.T) {
	email, sms := &fakeEmail{}, &fakeSMS{err: errors.New("opted out")}
	n := NewNotifier(email, sms, nil, logger.NewTestLogger(t))

	res, err := n.Send(context.Background(), Alert{
		Leaks:      sampleLeaks(),
		Recipients: Recipients{Email: []string{"a@b.co"}, Phone: []string{"+15550001"}},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.True(t, res.EmailSent)
	assert.Zero(t, res.SMSSent)
	assert.NotEmpty(t, res.NotificationID)
}

func TestSend_DisabledChannels(t *testing.T) {
	n := NewNotifier(nil, nil, nil, nil)

	res, err := n.Send(context.Background(), Alert{
		Leaks:      sampleLeaks(),
		Recipients: Recipients{Email: []string{"a@b.co"}, Phone: []string{"+15550001"}},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusDisabled, res.Status)
}

func TestSend_DisabledDoesNotBlockLaterDelivery(t *testing.T) {
	dedupe := NewMemoryDeduper()
	alert := Alert{ID: "run-7", Leaks: sampleLeaks(), Recipients: Recipients{Email: []string{"a@b.co"}}}

	res, err := NewNotifier(nil, nil, dedupe, logger.NewTestLogger(t)).Send(context.Background(), alert)
	require.NoError(t, err)
	assert.Equal(t, StatusDisabled, res.Status)

	email := &fakeEmail{}
	res, err = NewNotifier(email, nil, dedupe, logger.NewTestLogger(t)).Send(context.Background(), alert)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, res.Status)
	assert.Equal(t, 1, email.calls)
}

func TestSMSText_Truncates(t *testing.T) {
	l := sampleLeaks()[0]
	l.RecommendedAction = strings.Repeat("very long action ", 20)

	msg := smsText(l)
	assert.Len(t, msg, maxSMSLength)
	assert.True(t, strings.HasSuffix(msg, "..."))
}

func TestRedisDeduper(t *testing.T) {
	mr := miniredis.RunT(t)
	d := NewRedisDeduper(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour)
	ctx := context.Background()

	ok, err := d.Claim(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.Claim(ctx, "run-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Hour, mr.TTL("leak:alert:run-1"))

	require.NoError(t, d.Release(ctx, "run-1"))
	ok, err = d.Claim(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, ok)
}
