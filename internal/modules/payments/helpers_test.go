package payments

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"summitpass.id/app/internal/modules/catalog"
	"summitpass.id/app/internal/modules/notify"
	"summitpass.id/app/internal/modules/registrations"
	"summitpass.id/app/internal/testutil"
)

const testServerKey = "SB-Mid-server-test"

type fakeGateway struct {
	mu       sync.Mutex
	charges  []ChargeRequest
	chargeFn func(ChargeRequest) (ChargeResponse, error)
	statusFn func(orderID string) (Notification, error)
	expireFn func(orderID string) (Notification, error)
	lookups  int
	expires  []string
}

func (g *fakeGateway) CreateTransaction(ctx context.Context, req ChargeRequest) (ChargeResponse, error) {
	g.mu.Lock()
	g.charges = append(g.charges, req)
	g.mu.Unlock()
	if g.chargeFn != nil {
		return g.chargeFn(req)
	}
	return ChargeResponse{
		Token:       "tok-" + req.OrderID,
		RedirectURL: "https://app.sandbox.midtrans.com/snap/v4/redirection/tok-" + req.OrderID,
		Raw:         []byte(`{"token":"tok"}`),
	}, nil
}

func (g *fakeGateway) TransactionStatus(ctx context.Context, orderID string) (Notification, error) {
	g.mu.Lock()
	g.lookups++
	g.mu.Unlock()
	if g.statusFn != nil {
		return g.statusFn(orderID)
	}
	return Notification{}, ErrTransactionUnknown
}

func (g *fakeGateway) ExpireTransaction(ctx context.Context, orderID string) (Notification, error) {
	g.mu.Lock()
	g.expires = append(g.expires, orderID)
	g.mu.Unlock()
	if g.expireFn != nil {
		return g.expireFn(orderID)
	}
	return Notification{}, ErrTransactionUnknown
}

type fixture struct {
	db      *gorm.DB
	gw      *fakeGateway
	trips   *catalog.Repo
	regs    *registrations.Service
	svc     *Service
	rec     *Reconciler
	webhook *WebhookService
	status  *StatusService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := testutil.NewDB(t,
		&catalog.Trip{}, &catalog.PrivateTrip{},
		&registrations.Registration{}, &registrations.RegistrationEvent{}, &registrations.TripQuotaLock{},
		&Payment{}, &PaymentNotification{}, &notify.OutboxMessage{},
	)
	trips := catalog.NewRepo(gdb)
	regs := registrations.NewService(gdb, trips, registrations.NewGuard())
	gw := &fakeGateway{}
	rec := NewReconciler(gdb, regs, trips, notify.NewOutbox())
	return &fixture{
		db:      gdb,
		gw:      gw,
		trips:   trips,
		regs:    regs,
		svc:     NewService(gdb, gw, regs, trips, Options{Timeout: time.Second}),
		rec:     rec,
		webhook: NewWebhookService(rec, testServerKey),
		status:  NewStatusService(gdb, gw, rec, nil, time.Second),
	}
}

func (f *fixture) seedTrip(t *testing.T, capacity int, price int64) catalog.Trip {
	t.Helper()
	now := time.Now()
	trip := catalog.Trip{
		ID:                  uuid.NewString(),
		DestinationID:       uuid.NewString(),
		Title:               "Semeru 3D2N",
		Capacity:            capacity,
		PricePerParticipant: price,
		ScheduleDate:        now.AddDate(0, 1, 0),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	require.NoError(t, f.db.Create(&trip).Error)
	return trip
}

func (f *fixture) seedPrivateTrip(t *testing.T, owner string, approval catalog.ApprovalStatus) catalog.PrivateTrip {
	t.Helper()
	now := time.Now()
	pt := catalog.PrivateTrip{
		ID:                  uuid.NewString(),
		UserID:              owner,
		DestinationID:       uuid.NewString(),
		Title:               "Family trip to Bromo",
		ScheduleDate:        now.AddDate(0, 2, 0),
		ParticipantCount:    4,
		PricePerParticipant: 750_000,
		ApprovalStatus:      approval,
		PaymentStatus:       catalog.PrivateUnpaid,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	require.NoError(t, f.db.Create(&pt).Error)
	return pt
}

func (f *fixture) register(t *testing.T, tripID string, seats int) registrations.Registration {
	t.Helper()
	reg, err := f.regs.Create(context.Background(), registrations.CreateInput{
		TripID:           tripID,
		ParticipantCount: seats,
		Contact: registrations.Contact{
			Name:  "Rani",
			Email: uuid.NewString()[:8] + "@example.com",
			Phone: "081234567",
		},
	})
	require.NoError(t, err)
	return reg
}

// intent registers seats and opens a payment for them.
func (f *fixture) intent(t *testing.T, trip catalog.Trip, seats int) (registrations.Registration, CreateIntentResult) {
	t.Helper()
	reg := f.register(t, trip.ID, seats)
	res, err := f.svc.CreateIntent(context.Background(), CreateIntentInput{RegistrationID: reg.ID})
	require.NoError(t, err)
	return reg, res
}

// signedBody builds a webhook body the way the gateway signs it.
func signedBody(t *testing.T, orderID, txStatus, gross string, extra map[string]string) []byte {
	t.Helper()
	statusCode := "200"
	if txStatus == "pending" {
		statusCode = "201"
	}
	if txStatus == "deny" || txStatus == "expire" || txStatus == "cancel" || txStatus == "failure" {
		statusCode = "202"
	}
	m := map[string]string{
		"order_id":           orderID,
		"status_code":        statusCode,
		"gross_amount":       gross,
		"transaction_status": txStatus,
		"payment_type":       "bank_transfer",
		"transaction_id":     uuid.NewString(),
		"fraud_status":       "accept",
	}
	for k, v := range extra {
		m[k] = v
	}
	m["signature_key"] = Signature(m["order_id"], m["status_code"], m["gross_amount"], testServerKey)
	b, err := json.Marshal(m)
	require.NoError(t, err)
	return b
}

func (f *fixture) payment(t *testing.T, orderID string) Payment {
	t.Helper()
	var p Payment
	require.NoError(t, f.db.First(&p, "order_id = ?", orderID).Error)
	return p
}

func (f *fixture) registration(t *testing.T, id string) registrations.Registration {
	t.Helper()
	reg, err := registrations.NewRepo(f.db).Get(context.Background(), id)
	require.NoError(t, err)
	return reg
}

func (f *fixture) count(t *testing.T, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Where(where, args...).Count(&n).Error)
	return n
}
