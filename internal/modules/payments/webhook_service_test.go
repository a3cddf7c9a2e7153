package payments

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"summitpass.id/app/internal/modules/catalog"
	"summitpass.id/app/internal/modules/notify"
	"summitpass.id/app/internal/modules/registrations"
)

func TestWebhook_SettlementConfirmsOnce(t *testing.T) {
	f := newFixture(t)
	trip := f.seedTrip(t, 10, 1_500_000)
	reg, intent := f.intent(t, trip, 2)

	body := signedBody(t, intent.OrderID, "settlement", "3000000.00", nil)

	first, err := f.webhook.Handle(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, first.Outcome)

	second, err := f.webhook.Handle(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, second.Outcome)

	p := f.payment(t, intent.OrderID)
	assert.Equal(t, StatusSettlement, p.Status)
	assert.NotNil(t, p.SettledAt)

	stored := f.registration(t, reg.ID)
	assert.Equal(t, registrations.StatusConfirmed, stored.RegistrationStatus)
	assert.Equal(t, registrations.PaymentPaid, stored.PaymentStatus)

	assert.EqualValues(t, 1, f.count(t, &notify.OutboxMessage{}, "topic = ?", notify.TopicRegistrationConfirmed))
	assert.EqualValues(t, 1, f.count(t, &registrations.RegistrationEvent{}, "registration_id = ? AND action = ?", reg.ID, "payment_settled"))
	assert.EqualValues(t, 2, f.count(t, &PaymentNotification{}, "order_id = ?", intent.OrderID))
	assert.EqualValues(t, 1, f.count(t, &PaymentNotification{}, "order_id = ? AND outcome = ?", intent.OrderID, OutcomeApplied))
}

func TestWebhook_ConcurrentDuplicatesApplyOnce(t *testing.T) {
	f := newFixture(t)
	trip := f.seedTrip(t, 10, 200_000)
	_, intent := f.intent(t, trip, 1)
	body := signedBody(t, intent.OrderID, "capture", "200000.00", nil)

	var wg sync.WaitGroup
	results := make([]ApplyResult, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			results[i], err = f.webhook.Handle(context.Background(), body)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	applied := 0
	for _, r := range results {
		if r.Transitioned() {
			applied++
		}
	}
	assert.Equal(t, 1, applied)
	assert.EqualValues(t, 1, f.count(t, &notify.OutboxMessage{}, "topic = ?", notify.TopicRegistrationConfirmed))
}

func TestWebhook_TerminalStatusIsAbsorbing(t *testing.T) {
	f := newFixture(t)
	trip := f.seedTrip(t, 10, 200_000)
	reg, intent := f.intent(t, trip, 1)

	_, err := f.webhook.Handle(context.Background(), signedBody(t, intent.OrderID, "settlement", "200000.00", nil))
	require.NoError(t, err)

	late, err := f.webhook.Handle(context.Background(), signedBody(t, intent.OrderID, "pending", "200000.00", nil))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, late.Outcome)

	_, err = f.webhook.Handle(context.Background(), signedBody(t, intent.OrderID, "expire", "200000.00", nil))
	require.NoError(t, err)

	p := f.payment(t, intent.OrderID)
	assert.Equal(t, StatusSettlement, p.Status)
	require.NotNil(t, p.GatewayStatus)
	assert.Equal(t, "settlement", *p.GatewayStatus, "raw status is frozen once terminal")
	assert.Equal(t, registrations.StatusConfirmed, f.registration(t, reg.ID).RegistrationStatus)
}

func TestWebhook_PendingThenExpireReleasesSeats(t *testing.T) {
	f := newFixture(t)
	trip := f.seedTrip(t, 3, 100_000)
	reg, intent := f.intent(t, trip, 3)

	res, err := f.webhook.Handle(context.Background(), signedBody(t, intent.OrderID, "pending", "300000.00", nil))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, res.Outcome)
	p := f.payment(t, intent.OrderID)
	assert.Equal(t, StatusPending, p.Status)
	assert.Equal(t, "pending", *p.GatewayStatus)
	assert.Equal(t, "bank_transfer", *p.PaymentMethod)

	_, err = f.webhook.Handle(context.Background(), signedBody(t, intent.OrderID, "expire", "300000.00", nil))
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, f.payment(t, intent.OrderID).Status)
	stored := f.registration(t, reg.ID)
	assert.Equal(t, registrations.PaymentExpired, stored.PaymentStatus)
	assert.Equal(t, registrations.StatusPending, stored.RegistrationStatus)

	// seats are free again
	f.register(t, trip.ID, 3)
	assert.EqualValues(t, 0, f.count(t, &notify.OutboxMessage{}, "1 = 1"))
}

func TestWebhook_DenyFailsRegistrationPayment(t *testing.T) {
	f := newFixture(t)
	trip := f.seedTrip(t, 3, 100_000)
	reg, intent := f.intent(t, trip, 1)

	_, err := f.webhook.Handle(context.Background(), signedBody(t, intent.OrderID, "deny", "100000.00", nil))
	require.NoError(t, err)
	assert.Equal(t, registrations.PaymentFailed, f.registration(t, reg.ID).PaymentStatus)
}

func TestWebhook_TamperedAmountWritesNothing(t *testing.T) {
	f := newFixture(t)
	trip := f.seedTrip(t, 10, 1_500_000)
	reg, intent := f.intent(t, trip, 2)

	before := f.payment(t, intent.OrderID)
	regBefore := f.registration(t, reg.ID)
	notesBefore := f.count(t, &PaymentNotification{}, "1 = 1")

	body := signedBody(t, intent.OrderID, "settlement", "3000000.00", nil)
	tampered := []byte(strings.Replace(string(body), `"gross_amount":"3000000.00"`, `"gross_amount":"1000.00"`, 1))
	require.NotEqual(t, body, tampered)

	_, err := f.webhook.Handle(context.Background(), tampered)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	assert.Equal(t, before, f.payment(t, intent.OrderID))
	assert.Equal(t, regBefore, f.registration(t, reg.ID))
	assert.Equal(t, notesBefore, f.count(t, &PaymentNotification{}, "1 = 1"))
}

func TestWebhook_Rejections(t *testing.T) {
	f := newFixture(t)
	trip := f.seedTrip(t, 10, 100_000)
	_, intent := f.intent(t, trip, 1)

	_, err := f.webhook.Handle(context.Background(), []byte(`{not json`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = f.webhook.Handle(context.Background(), []byte(`{"transaction_status":"settlement"}`))
	assert.ErrorIs(t, err, ErrMalformed)

	unknown := "OPEN-1700000000000-000000000000"
	_, err = f.webhook.Handle(context.Background(), signedBody(t, unknown, "settlement", "100000.00", nil))
	assert.ErrorIs(t, err, ErrPaymentNotFound)
	assert.EqualValues(t, 0, f.count(t, &Payment{}, "order_id = ?", unknown))

	// correctly signed but for the wrong amount
	_, err = f.webhook.Handle(context.Background(), signedBody(t, intent.OrderID, "settlement", "1.00", nil))
	assert.ErrorIs(t, err, ErrAmountMismatch)
	assert.Equal(t, StatusPending, f.payment(t, intent.OrderID).Status)
	assert.EqualValues(t, 1, f.count(t, &PaymentNotification{}, "order_id = ? AND outcome = ?", intent.OrderID, OutcomeRejected))

	// fraud challenge waits
	res, err := f.webhook.Handle(context.Background(), signedBody(t, intent.OrderID, "capture", "100000.00", map[string]string{"fraud_status": "challenge"}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, res.Outcome)
	assert.Equal(t, StatusPending, f.payment(t, intent.OrderID).Status)
}

func TestWebhook_PrivateTripPaid(t *testing.T) {
	f := newFixture(t)
	owner := uuid.NewString()
	pt := f.seedPrivateTrip(t, owner, catalog.ApprovalApproved)

	intent, err := f.svc.CreateIntent(context.Background(), CreateIntentInput{
		PrivateTripID: pt.ID, ActorUserID: &owner, Customer: Customer{FirstName: "Dewi", Email: "dewi@example.com"},
	})
	require.NoError(t, err)

	body := signedBody(t, intent.OrderID, "settlement", "3000000.00", nil)
	_, err = f.webhook.Handle(context.Background(), body)
	require.NoError(t, err)
	_, err = f.webhook.Handle(context.Background(), body)
	require.NoError(t, err)

	stored, err := f.trips.GetPrivateTrip(context.Background(), pt.ID)
	require.NoError(t, err)
	assert.Equal(t, catalog.PrivatePaid, stored.PaymentStatus)
	assert.NotNil(t, stored.PaidAt)
	assert.EqualValues(t, 1, f.count(t, &notify.OutboxMessage{}, "topic = ?", notify.TopicPrivateTripPaid))
}

type recordingArchive struct {
	mu   sync.Mutex
	keys []string
}

func (a *recordingArchive) Archive(ctx context.Context, orderID, source string, body []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := source + "/" + orderID
	a.keys = append(a.keys, key)
	return key, nil
}

func TestWebhook_ArchivesRawPayload(t *testing.T) {
	f := newFixture(t)
	arch := &recordingArchive{}
	f.rec.SetArchive(arch)
	trip := f.seedTrip(t, 10, 100_000)
	_, intent := f.intent(t, trip, 1)

	_, err := f.webhook.Handle(context.Background(), signedBody(t, intent.OrderID, "settlement", "100000.00", nil))
	require.NoError(t, err)

	assert.Equal(t, []string{"webhook/" + intent.OrderID}, arch.keys)
	assert.EqualValues(t, 1, f.count(t, &PaymentNotification{}, "order_id = ? AND archive_key = ?", intent.OrderID, "webhook/"+intent.OrderID))
}

func TestWebhook_SettlementAfterRegistrationDeleted(t *testing.T) {
	f := newFixture(t)
	trip := f.seedTrip(t, 10, 400_000)
	reg, intent := f.intent(t, trip, 1)

	admin := registrations.NewAdminService(f.db, f.trips, registrations.NewGuard())
	require.NoError(t, admin.Delete(context.Background(), reg.ID, "admin-1"))

	res, err := f.webhook.Handle(context.Background(), signedBody(t, intent.OrderID, "settlement", "400000.00", nil))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)

	p := f.payment(t, intent.OrderID)
	assert.Equal(t, StatusSettlement, p.Status, "money received is always recorded")
	require.NotNil(t, p.ErrorMessage)
	assert.Equal(t, ErrRegistrationDeleted.Error(), *p.ErrorMessage)

	assert.EqualValues(t, 1, f.count(t, &PaymentNotification{}, "order_id = ? AND outcome = ?", intent.OrderID, OutcomeApplied))
	assert.EqualValues(t, 0, f.count(t, &notify.OutboxMessage{}, "topic = ?", notify.TopicRegistrationConfirmed))

	// a redelivery is absorbed rather than retried forever
	again, err := f.webhook.Handle(context.Background(), signedBody(t, intent.OrderID, "settlement", "400000.00", nil))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, again.Outcome)
}

func TestWebhook_ExpireAfterRegistrationDeleted(t *testing.T) {
	f := newFixture(t)
	trip := f.seedTrip(t, 10, 400_000)
	reg, intent := f.intent(t, trip, 1)

	admin := registrations.NewAdminService(f.db, f.trips, registrations.NewGuard())
	require.NoError(t, admin.Delete(context.Background(), reg.ID, "admin-1"))

	res, err := f.webhook.Handle(context.Background(), signedBody(t, intent.OrderID, "expire", "400000.00", nil))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, StatusFailed, f.payment(t, intent.OrderID).Status)
}
