package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"summitpass.id/app/internal/modules/payments"
)

type mockNotification struct {
	OrderID           string
	TransactionStatus string
	GrossAmount       string
	FraudStatus       string
	PaymentType       string
}

// statusCodeFor mirrors the status_code the gateway sends with each status.
func statusCodeFor(txStatus string) string {
	switch txStatus {
	case "pending":
		return "201"
	case "deny", "cancel", "expire", "failure":
		return "202"
	}
	return "200"
}

func buildNotification(n mockNotification, serverKey string, now time.Time) ([]byte, error) {
	if n.OrderID == "" {
		return nil, fmt.Errorf("order id is required")
	}
	if _, ok := payments.ParseGrossAmount(n.GrossAmount); !ok {
		return nil, fmt.Errorf("gross amount %q is not a number", n.GrossAmount)
	}
	code := statusCodeFor(n.TransactionStatus)
	body := map[string]string{
		"order_id":           n.OrderID,
		"status_code":        code,
		"gross_amount":       n.GrossAmount,
		"transaction_status": n.TransactionStatus,
		"transaction_id":     uuid.NewString(),
		"transaction_time":   now.Format("2006-01-02 15:04:05"),
		"payment_type":       n.PaymentType,
		"signature_key":      payments.Signature(n.OrderID, code, n.GrossAmount, serverKey),
	}
	if n.FraudStatus != "" {
		body["fraud_status"] = n.FraudStatus
	}
	return json.Marshal(body)
}

func mockWebhookCmd() *cobra.Command {
	var (
		url       string
		serverKey string
		n         mockNotification
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "mockwebhook",
		Short: "Send a correctly signed payment notification to a local server",
		Example: `  tripctl mockwebhook --order-id OPEN-1700000000000-a1b2c3d4e5f6 --gross 3000000.00
  tripctl mockwebhook --order-id PRIV-... --status expire --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if serverKey == "" {
				return fmt.Errorf("server key not provided and MIDTRANS_SERVER_KEY not set")
			}
			body, err := buildNotification(n, serverKey, time.Now())
			if err != nil {
				return err
			}
			cmd.Printf("Body: %s\n", body)
			if dryRun {
				cmd.Println("[dry run] not sending")
				return nil
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			resp, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			out, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			cmd.Printf("%s %s\n", resp.Status, bytes.TrimSpace(out))
			if resp.StatusCode >= 300 {
				return fmt.Errorf("server answered %d", resp.StatusCode)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&url, "url", "http://localhost:8080/webhooks/midtrans", "webhook URL")
	f.StringVar(&serverKey, "server-key", os.Getenv("MIDTRANS_SERVER_KEY"), "gateway server key used to sign")
	f.StringVar(&n.OrderID, "order-id", "", "order id of an existing payment")
	f.StringVar(&n.TransactionStatus, "status", "settlement", "transaction_status (settlement, capture, pending, deny, cancel, expire, failure)")
	f.StringVar(&n.GrossAmount, "gross", "0.00", "gross_amount exactly as stored, e.g. 3000000.00")
	f.StringVar(&n.FraudStatus, "fraud", "accept", "fraud_status; empty to omit")
	f.StringVar(&n.PaymentType, "payment-type", "bank_transfer", "payment_type")
	f.BoolVar(&dryRun, "dry-run", false, "print the body without sending")
	_ = cmd.MarkFlagRequired("order-id")
	return cmd
}
