package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"
)

// PayloadArchive keeps raw gateway payloads, one object per delivery.
type PayloadArchive struct {
	store Storage
	now   func() time.Time
}

func NewPayloadArchive(store Storage) *PayloadArchive {
	return &PayloadArchive{store: store, now: time.Now}
}

// Archive stores body under notifications/<yyyy>/<mm>/<dd>/<orderID>/<nanos>-<source>.json
// and returns the object key.
func (a *PayloadArchive) Archive(ctx context.Context, orderID, source string, body []byte) (string, error) {
	if a == nil || a.store == nil {
		return "", nil
	}
	now := a.now().UTC()
	key := fmt.Sprintf("notifications/%s/%s/%d-%s.json", now.Format("2006/01/02"), orderID, now.UnixNano(), source)
	res, err := a.store.Put(ctx, bytes.NewReader(body), PutInput{Key: key, ContentType: "application/json"})
	if err != nil {
		return "", err
	}
	return res.Key, nil
}
