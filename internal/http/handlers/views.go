package handlers

import (
	"time"

	"summitpass.id/app/internal/modules/payments"
	"summitpass.id/app/internal/modules/registrations"
)

type registrationJSON struct {
	ID                  string  `json:"id"`
	TripID              string  `json:"trip_id"`
	UserID              *string `json:"user_id,omitempty"`
	ParticipantCount    int     `json:"participant_count"`
	PricePerParticipant int64   `json:"price_per_participant"`
	TotalPrice          int64   `json:"total_price"`
	ContactName         string  `json:"contact_name"`
	ContactEmail        string  `json:"contact_email"`
	ContactPhone        string  `json:"contact_phone"`
	RegistrationStatus  string  `json:"registration_status"`
	PaymentStatus       string  `json:"payment_status"`
	OrderID             *string `json:"order_id,omitempty"`
	CreatedAt           string  `json:"created_at"`
	UpdatedAt           string  `json:"updated_at"`
}

// adminRegistrationJSON adds what only staff may see.
type adminRegistrationJSON struct {
	registrationJSON
	AdminNotes *string `json:"admin_notes,omitempty"`
}

func toRegistrationJSON(r registrations.Registration) registrationJSON {
	return registrationJSON{
		ID:                  r.ID,
		TripID:              r.TripID,
		UserID:              r.UserID,
		ParticipantCount:    r.ParticipantCount,
		PricePerParticipant: r.PricePerParticipant,
		TotalPrice:          r.TotalPrice,
		ContactName:         r.ContactName,
		ContactEmail:        r.ContactEmail,
		ContactPhone:        r.ContactPhone,
		RegistrationStatus:  string(r.RegistrationStatus),
		PaymentStatus:       string(r.PaymentStatus),
		OrderID:             r.OrderID,
		CreatedAt:           r.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:           r.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toAdminRegistrationJSON(r registrations.Registration) adminRegistrationJSON {
	return adminRegistrationJSON{registrationJSON: toRegistrationJSON(r), AdminNotes: r.AdminNotes}
}

type eventJSON struct {
	Actor       string  `json:"actor"`
	Action      string  `json:"action"`
	FromStatus  string  `json:"from_status"`
	ToStatus    string  `json:"to_status"`
	FromPayment string  `json:"from_payment_status"`
	ToPayment   string  `json:"to_payment_status"`
	Note        *string `json:"note,omitempty"`
	At          string  `json:"at"`
}

type paymentStatusJSON struct {
	OrderID       string  `json:"order_id"`
	Status        string  `json:"status"`
	Amount        int64   `json:"amount"`
	PaymentType   string  `json:"payment_type"`
	TransactionID *string `json:"transaction_id,omitempty"`
	PaymentMethod *string `json:"payment_method,omitempty"`
	Stale         bool    `json:"stale"`
}

func toPaymentStatusJSON(r payments.StatusResult) paymentStatusJSON {
	return paymentStatusJSON{
		OrderID:       r.OrderID,
		Status:        string(r.Status),
		Amount:        r.Amount,
		PaymentType:   string(r.PaymentType),
		TransactionID: r.TransactionID,
		PaymentMethod: r.PaymentMethod,
		Stale:         r.Stale,
	}
}
