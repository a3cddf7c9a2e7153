package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"summitpass.id/app/internal/modules/registrations"
)

func gatewaySays(orderID, status, gross string) Notification {
	return Notification{
		OrderID:           orderID,
		StatusCode:        "200",
		GrossAmount:       gross,
		TransactionStatus: status,
		FraudStatus:       "accept",
		PaymentType:       "qris",
		TransactionID:     "trx-" + orderID,
	}
}

func TestGetStatus_ConvergesWithoutWebhook(t *testing.T) {
	f := newFixture(t)
	trip := f.seedTrip(t, 10, 1_500_000)
	reg, intent := f.intent(t, trip, 2)

	f.gw.statusFn = func(orderID string) (Notification, error) {
		return gatewaySays(orderID, "settlement", "3000000.00"), nil
	}

	res, err := f.status.GetStatus(context.Background(), intent.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StatusSettlement, res.Status)
	assert.False(t, res.Stale)
	require.NotNil(t, res.PaymentMethod)
	assert.Equal(t, "qris", *res.PaymentMethod)

	assert.Equal(t, registrations.StatusConfirmed, f.registration(t, reg.ID).RegistrationStatus)
	assert.EqualValues(t, 1, f.count(t, &PaymentNotification{}, "order_id = ? AND source = ?", intent.OrderID, SourceStatusQuery))

	// a webhook arriving afterwards is a no-op
	late, err := f.webhook.Handle(context.Background(), signedBody(t, intent.OrderID, "settlement", "3000000.00", nil))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, late.Outcome)
}

func TestGetStatus_TerminalSkipsGateway(t *testing.T) {
	f := newFixture(t)
	trip := f.seedTrip(t, 10, 100_000)
	_, intent := f.intent(t, trip, 1)
	_, err := f.webhook.Handle(context.Background(), signedBody(t, intent.OrderID, "settlement", "100000.00", nil))
	require.NoError(t, err)

	res, err := f.status.GetStatus(context.Background(), intent.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StatusSettlement, res.Status)
	assert.Equal(t, 0, f.gw.lookups)
}

func TestGetStatus_GatewayDownServesLocal(t *testing.T) {
	f := newFixture(t)
	trip := f.seedTrip(t, 10, 100_000)
	_, intent := f.intent(t, trip, 1)

	f.gw.statusFn = func(string) (Notification, error) {
		return Notification{}, &GatewayError{Kind: ErrGatewayUnavailable, StatusCode: 503, Message: "maintenance"}
	}
	res, err := f.status.GetStatus(context.Background(), intent.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, res.Status)
	assert.True(t, res.Stale)
	assert.Equal(t, StatusPending, f.payment(t, intent.OrderID).Status)
}

func TestGetStatus_UnknownTransactionStaysPending(t *testing.T) {
	f := newFixture(t)
	trip := f.seedTrip(t, 10, 100_000)
	_, intent := f.intent(t, trip, 1)

	res, err := f.status.GetStatus(context.Background(), intent.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, res.Status)
	assert.False(t, res.Stale)
	assert.Equal(t, 1, f.gw.lookups)

	_, err = f.status.GetStatus(context.Background(), "OPEN-1-000000000000")
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

type denyAll struct{ asked int }

func (d *denyAll) Allow(context.Context, string) bool { d.asked++; return false }

func TestGetStatus_Throttled(t *testing.T) {
	f := newFixture(t)
	th := &denyAll{}
	f.status = NewStatusService(f.db, f.gw, f.rec, th, time.Second)
	trip := f.seedTrip(t, 10, 100_000)
	_, intent := f.intent(t, trip, 1)

	res, err := f.status.GetStatus(context.Background(), intent.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, res.Status)
	assert.Equal(t, 1, th.asked)
	assert.Equal(t, 0, f.gw.lookups)
}

func TestNewRedisThrottle_NilClientPassesThrough(t *testing.T) {
	th := NewRedisThrottle(nil, time.Minute)
	assert.True(t, th.Allow(context.Background(), "OPEN-1"))
	assert.True(t, th.Allow(context.Background(), "OPEN-1"))
}

func TestExpireStale(t *testing.T) {
	f := newFixture(t)
	trip := f.seedTrip(t, 4, 100_000)

	regA, a := f.intent(t, trip, 2) // never opened checkout
	regB, b := f.intent(t, trip, 1) // paid, webhook lost
	_, c := f.intent(t, trip, 1)    // gateway unreachable

	old := time.Now().Add(-3 * time.Hour)
	require.NoError(t, f.db.Model(&Payment{}).
		Where("order_id IN ?", []string{a.OrderID, b.OrderID, c.OrderID}).
		Update("created_at", old).Error)

	f.gw.statusFn = func(orderID string) (Notification, error) {
		switch orderID {
		case b.OrderID:
			return gatewaySays(orderID, "settlement", "100000.00"), nil
		case c.OrderID:
			return Notification{}, errors.Join(ErrGatewayUnavailable, errors.New("dial tcp: i/o timeout"))
		}
		return Notification{}, ErrTransactionUnknown
	}

	rep, err := f.status.ExpireStale(context.Background(), time.Hour, 0)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Checked: 3, Settled: 1, Expired: 1, Skipped: 1}, rep)

	assert.Equal(t, StatusFailed, f.payment(t, a.OrderID).Status)
	assert.Equal(t, registrations.PaymentExpired, f.registration(t, regA.ID).PaymentStatus)
	assert.Equal(t, registrations.StatusConfirmed, f.registration(t, regB.ID).RegistrationStatus)
	assert.Equal(t, StatusPending, f.payment(t, c.OrderID).Status)
	assert.EqualValues(t, 1, f.count(t, &PaymentNotification{}, "order_id = ? AND source = ?", a.OrderID, SourceSweep))
	assert.Empty(t, f.gw.expires, "nothing to expire at the gateway for unknown or terminal orders")

	// the two seats held by A are free again
	f.register(t, trip.ID, 2)
}

func oldPayment(t *testing.T, f *fixture, orderID string) {
	t.Helper()
	require.NoError(t, f.db.Model(&Payment{}).
		Where("order_id = ?", orderID).
		Update("created_at", time.Now().Add(-3*time.Hour)).Error)
}

func TestExpireStale_PendingIsExpiredAtGatewayFirst(t *testing.T) {
	f := newFixture(t)
	trip := f.seedTrip(t, 2, 100_000)
	reg, in := f.intent(t, trip, 2)
	oldPayment(t, f, in.OrderID)

	f.gw.statusFn = func(orderID string) (Notification, error) {
		return gatewaySays(orderID, "pending", "200000.00"), nil
	}
	f.gw.expireFn = func(orderID string) (Notification, error) {
		n := gatewaySays(orderID, "expire", "200000.00")
		n.StatusCode = "407"
		return n, nil
	}

	rep, err := f.status.ExpireStale(context.Background(), time.Hour, 0)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Checked: 1, Expired: 1}, rep)
	assert.Equal(t, []string{in.OrderID}, f.gw.expires)

	p := f.payment(t, in.OrderID)
	assert.Equal(t, StatusFailed, p.Status)
	require.NotNil(t, p.GatewayStatus)
	assert.Equal(t, "expire", *p.GatewayStatus)
	assert.Equal(t, registrations.PaymentExpired, f.registration(t, reg.ID).PaymentStatus)
}

func TestExpireStale_GatewayRefusesExpiryKeepsPending(t *testing.T) {
	f := newFixture(t)
	trip := f.seedTrip(t, 2, 100_000)
	reg, in := f.intent(t, trip, 1)
	oldPayment(t, f, in.OrderID)

	f.gw.statusFn = func(orderID string) (Notification, error) {
		return gatewaySays(orderID, "pending", "100000.00"), nil
	}
	f.gw.expireFn = func(string) (Notification, error) {
		return Notification{}, &GatewayError{Kind: ErrGatewayRejected, StatusCode: 412, Message: "Merchant cannot modify the status of the transaction"}
	}

	rep, err := f.status.ExpireStale(context.Background(), time.Hour, 0)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Checked: 1, Skipped: 1}, rep)
	assert.Equal(t, StatusPending, f.payment(t, in.OrderID).Status)

	// the customer paid meanwhile; the settlement still lands
	res, err := f.webhook.Handle(context.Background(), signedBody(t, in.OrderID, "settlement", "100000.00", nil))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, StatusSettlement, f.payment(t, in.OrderID).Status)
	assert.Equal(t, registrations.StatusConfirmed, f.registration(t, reg.ID).RegistrationStatus)
}

func TestExpireStale_ExpireFindsNoTransaction(t *testing.T) {
	f := newFixture(t)
	trip := f.seedTrip(t, 2, 100_000)
	_, in := f.intent(t, trip, 1)
	oldPayment(t, f, in.OrderID)

	f.gw.statusFn = func(orderID string) (Notification, error) {
		return gatewaySays(orderID, "pending", "100000.00"), nil
	}

	rep, err := f.status.ExpireStale(context.Background(), time.Hour, 0)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Checked: 1, Expired: 1}, rep)
	assert.Equal(t, StatusFailed, f.payment(t, in.OrderID).Status)
}
