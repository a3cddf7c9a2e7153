package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"summitpass.id/app/internal/mailer"
	"summitpass.id/app/internal/testutil"
)

type fakePublisher struct {
	mu     sync.Mutex
	topics []string
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, topic string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	return nil
}

func enqueue(t *testing.T, gdb *gorm.DB, ev Event) {
	t.Helper()
	require.NoError(t, gdb.Transaction(func(tx *gorm.DB) error {
		return NewOutbox().EnqueueTx(context.Background(), tx, ev)
	}))
}

func confirmedEvent(regID string) Event {
	return Event{
		Topic:     TopicRegistrationConfirmed,
		DedupeKey: TopicRegistrationConfirmed + ":" + regID,
		Payload: RegistrationConfirmed{
			RegistrationID:   regID,
			TripTitle:        "Rinjani Summit",
			ScheduleDate:     "2026-11-02",
			OrderID:          "OPEN-1700000000000-a1b2c3d4e5f6",
			ParticipantCount: 2,
			TotalPrice:       3_000_000,
			ContactName:      "Rani",
			ContactEmail:     "rani@example.com",
		},
	}
}

func TestEnqueueTx_DedupeKey(t *testing.T) {
	gdb := testutil.NewDB(t, &OutboxMessage{})
	enqueue(t, gdb, confirmedEvent("reg-1"))
	enqueue(t, gdb, confirmedEvent("reg-1"))
	enqueue(t, gdb, confirmedEvent("reg-2"))

	var n int64
	require.NoError(t, gdb.Model(&OutboxMessage{}).Count(&n).Error)
	assert.EqualValues(t, 2, n)

	err := gdb.Transaction(func(tx *gorm.DB) error {
		return NewOutbox().EnqueueTx(context.Background(), tx, Event{Topic: TopicPrivateTripPaid})
	})
	assert.Error(t, err)
}

func TestDispatcher_PublishesAndEmails(t *testing.T) {
	gdb := testutil.NewDB(t, &OutboxMessage{})
	enqueue(t, gdb, confirmedEvent("reg-1"))

	pub := &fakePublisher{}
	mail := &mailer.Mock{}
	d := NewDispatcher(gdb, pub, mail, "trips@summitpass.id", "SummitPass")

	sent, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{TopicRegistrationConfirmed}, pub.topics)

	emails := mail.Sent()
	require.Len(t, emails, 1)
	assert.Equal(t, []string{"rani@example.com"}, emails[0].To)
	assert.Equal(t, "trips@summitpass.id", emails[0].From)
	assert.Contains(t, emails[0].Subject, "Rinjani Summit")
	assert.Contains(t, emails[0].TextBody, "Rp3.000.000")

	var m OutboxMessage
	require.NoError(t, gdb.First(&m).Error)
	assert.Equal(t, StatusSent, m.Status)
	assert.Equal(t, 1, m.Attempts)
	assert.NotNil(t, m.SentAt)

	// nothing left to do
	sent, err = d.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Len(t, mail.Sent(), 1)
}

func TestDispatcher_FailureBacksOff(t *testing.T) {
	gdb := testutil.NewDB(t, &OutboxMessage{})
	enqueue(t, gdb, confirmedEvent("reg-1"))

	mail := &mailer.Mock{Err: errors.New("smtp: 421 try later")}
	d := NewDispatcher(gdb, &fakePublisher{}, mail, "trips@summitpass.id", "SummitPass")

	sent, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)

	var m OutboxMessage
	require.NoError(t, gdb.First(&m).Error)
	assert.Equal(t, StatusPending, m.Status)
	assert.Equal(t, 1, m.Attempts)
	require.NotNil(t, m.LastError)
	assert.Contains(t, *m.LastError, "421")
	assert.True(t, m.AvailableAt.After(time.Now().Add(20*time.Second)))

	// not due yet
	sent, err = d.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)

	require.NoError(t, gdb.Model(&OutboxMessage{}).Where("id = ?", m.ID).
		Updates(map[string]any{"available_at": time.Now().Add(-time.Second), "attempts": 7}).Error)
	_, err = d.RunOnce(context.Background())
	require.NoError(t, err)

	require.NoError(t, gdb.First(&m).Error)
	assert.Equal(t, StatusFailed, m.Status)
	assert.Equal(t, 8, m.Attempts)
}

func TestDispatcher_PublishErrorSkipsEmail(t *testing.T) {
	gdb := testutil.NewDB(t, &OutboxMessage{})
	enqueue(t, gdb, confirmedEvent("reg-1"))

	mail := &mailer.Mock{}
	d := NewDispatcher(gdb, &fakePublisher{err: errors.New("channel closed")}, mail, "a@b.c", "")
	_, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, mail.Sent())
}

func TestDispatcher_RunStopsOnCancel(t *testing.T) {
	gdb := testutil.NewDB(t, &OutboxMessage{})
	d := NewDispatcher(gdb, LogPublisher{Logger: testutil.Logger()}, nil, "", "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx, 10*time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 30*time.Second, backoff(1))
	assert.Equal(t, time.Minute, backoff(2))
	assert.Equal(t, 4*time.Minute, backoff(4))
	assert.Equal(t, time.Hour, backoff(20))
}

func TestFormatIDR(t *testing.T) {
	cases := map[int64]string{
		0:          "Rp0",
		999:        "Rp999",
		1000:       "Rp1.000",
		3_000_000:  "Rp3.000.000",
		-1_250_000: "-Rp1.250.000",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatIDR(in), in)
	}
}
