package payments

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	prefixOpenTrip    = "OPEN"
	prefixPrivateTrip = "PRIV"
)

// NewOrderID returns <PREFIX>-<unix millis>-<12 hex chars>. The random part
// makes ids unique across processes even within the same millisecond.
func NewOrderID(t Type, now time.Time) (string, error) {
	prefix := prefixOpenTrip
	if t == TypePrivateTrip {
		prefix = prefixPrivateTrip
	}
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("order id entropy: %w", err)
	}
	return fmt.Sprintf("%s-%d-%s", prefix, now.UnixMilli(), hex.EncodeToString(b)), nil
}
