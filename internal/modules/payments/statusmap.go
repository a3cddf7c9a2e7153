package payments

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"
)

// MapGatewayStatus is the single translation from the gateway's
// transaction_status/fraud_status to our payment status.
func MapGatewayStatus(transactionStatus, fraudStatus string) Status {
	switch strings.ToLower(strings.TrimSpace(transactionStatus)) {
	case "capture", "settlement":
		switch strings.ToLower(strings.TrimSpace(fraudStatus)) {
		case "", "accept":
			return StatusSettlement
		}
		// challenge: the gateway sends a final status after review
		return StatusPending
	case "deny", "expire", "cancel", "failure":
		return StatusFailed
	default:
		return StatusPending
	}
}

// Signature is hex(SHA-512(order_id + status_code + gross_amount + server_key)).
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// VerifySignature compares in constant time; case matters.
func VerifySignature(n Notification, serverKey string) bool {
	if serverKey == "" || n.SignatureKey == "" {
		return false
	}
	want := Signature(n.OrderID, n.StatusCode, n.GrossAmount, serverKey)
	return subtle.ConstantTimeCompare([]byte(want), []byte(n.SignatureKey)) == 1
}

// ParseGrossAmount reads "3000000.00" as 3000000. IDR has no minor unit, so
// any non-zero fraction is rejected.
func ParseGrossAmount(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" {
		return 0, false
	}
	if hasFrac && strings.Trim(frac, "0") != "" {
		return 0, false
	}
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// FormatGrossAmount renders an amount the way the gateway echoes it back.
func FormatGrossAmount(amount int64) string {
	return strconv.FormatInt(amount, 10) + ".00"
}
