package payments

import "context"

type Customer struct {
	FirstName string
	Email     string
	Phone     string
}

type Item struct {
	ID       string
	Name     string
	Price    int64
	Quantity int
}

type ChargeRequest struct {
	OrderID     string
	GrossAmount int64
	Customer    Customer
	Items       []Item
	FinishURL   string
}

type ChargeResponse struct {
	Token       string
	RedirectURL string
	Raw         []byte
}

// Notification is the gateway's view of one transaction, either pushed to the
// webhook or pulled from the status API. Fields are kept as the gateway sent
// them; the signature is computed over the raw strings.
type Notification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
	TransactionID     string `json:"transaction_id"`
	TransactionTime   string `json:"transaction_time"`

	Raw []byte `json:"-"`
}

// Gateway is the hosted payment page provider (Midtrans Snap in production).
type Gateway interface {
	CreateTransaction(ctx context.Context, req ChargeRequest) (ChargeResponse, error)
	TransactionStatus(ctx context.Context, orderID string) (Notification, error)
	// ExpireTransaction closes a pending transaction so it can no longer be
	// paid. It returns ErrTransactionUnknown when the gateway has no record.
	ExpireTransaction(ctx context.Context, orderID string) (Notification, error)
}
