// Package midtrans implements payments.Gateway over the Midtrans Snap and
// Core APIs.
package midtrans

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	mt "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"

	"summitpass.id/app/internal/modules/payments"
)

type Config struct {
	ServerKey    string
	IsProduction bool
}

type Gateway struct {
	serverKey string
	snap      snap.Client
	core      coreapi.Client
}

func New(cfg Config) *Gateway {
	env := mt.Sandbox
	if cfg.IsProduction {
		env = mt.Production
	}
	g := &Gateway{serverKey: cfg.ServerKey}
	g.snap.New(cfg.ServerKey, env)
	g.core.New(cfg.ServerKey, env)
	return g
}

func (g *Gateway) CreateTransaction(ctx context.Context, req payments.ChargeRequest) (payments.ChargeResponse, error) {
	if g.serverKey == "" {
		return payments.ChargeResponse{}, &payments.GatewayError{Kind: payments.ErrGatewayUnavailable, Message: "server key not configured"}
	}

	items := make([]mt.ItemDetails, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, mt.ItemDetails{
			ID:    it.ID,
			Name:  it.Name,
			Price: it.Price,
			Qty:   int32(it.Quantity),
		})
	}
	sr := &snap.Request{
		TransactionDetails: mt.TransactionDetails{
			OrderID:  req.OrderID,
			GrossAmt: req.GrossAmount,
		},
		CustomerDetail: &mt.CustomerDetails{
			FName: req.Customer.FirstName,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		},
		Items: &items,
	}
	if req.FinishURL != "" {
		sr.Callbacks = &snap.Callbacks{Finish: req.FinishURL}
	}

	resp, err := call(ctx, func() (*snap.Response, *mt.Error) { return g.snap.CreateTransaction(sr) })
	if err != nil {
		return payments.ChargeResponse{}, err
	}
	if resp == nil || resp.Token == "" {
		return payments.ChargeResponse{}, &payments.GatewayError{Kind: payments.ErrGatewayUnavailable, Message: "empty snap response"}
	}

	raw, _ := json.Marshal(resp)
	return payments.ChargeResponse{Token: resp.Token, RedirectURL: resp.RedirectURL, Raw: raw}, nil
}

func (g *Gateway) TransactionStatus(ctx context.Context, orderID string) (payments.Notification, error) {
	if g.serverKey == "" {
		return payments.Notification{}, &payments.GatewayError{Kind: payments.ErrGatewayUnavailable, Message: "server key not configured"}
	}

	resp, err := call(ctx, func() (*coreapi.TransactionStatusResponse, *mt.Error) { return g.core.CheckTransaction(orderID) })
	if err != nil {
		var ge *payments.GatewayError
		if errors.As(err, &ge) && ge.StatusCode == http.StatusNotFound {
			return payments.Notification{}, payments.ErrTransactionUnknown
		}
		return payments.Notification{}, err
	}
	if resp == nil || resp.StatusCode == "404" {
		return payments.Notification{}, payments.ErrTransactionUnknown
	}

	raw, _ := json.Marshal(resp)
	return payments.Notification{
		OrderID:           resp.OrderID,
		StatusCode:        resp.StatusCode,
		GrossAmount:       resp.GrossAmount,
		SignatureKey:      resp.SignatureKey,
		TransactionStatus: resp.TransactionStatus,
		FraudStatus:       resp.FraudStatus,
		PaymentType:       resp.PaymentType,
		TransactionID:     resp.TransactionID,
		TransactionTime:   resp.TransactionTime,
		Raw:               raw,
	}, nil
}

// ExpireTransaction asks Core API to expire a pending transaction. Midtrans
// answers 407 with transaction_status "expire" on success.
func (g *Gateway) ExpireTransaction(ctx context.Context, orderID string) (payments.Notification, error) {
	if g.serverKey == "" {
		return payments.Notification{}, &payments.GatewayError{Kind: payments.ErrGatewayUnavailable, Message: "server key not configured"}
	}

	resp, err := call(ctx, func() (*coreapi.ExpireResponse, *mt.Error) { return g.core.ExpireTransaction(orderID) })
	if err != nil {
		var ge *payments.GatewayError
		if errors.As(err, &ge) && ge.StatusCode == http.StatusNotFound {
			return payments.Notification{}, payments.ErrTransactionUnknown
		}
		return payments.Notification{}, err
	}
	if resp == nil {
		return payments.Notification{}, &payments.GatewayError{Kind: payments.ErrGatewayUnavailable, Message: "empty expire response"}
	}

	raw, _ := json.Marshal(resp)
	return payments.Notification{
		OrderID:           resp.OrderID,
		StatusCode:        resp.StatusCode,
		GrossAmount:       resp.GrossAmount,
		TransactionStatus: resp.TransactionStatus,
		FraudStatus:       resp.FraudStatus,
		PaymentType:       resp.PaymentType,
		TransactionID:     resp.TransactionID,
		TransactionTime:   resp.TransactionTime,
		Raw:               raw,
	}, nil
}

// call runs a blocking SDK call and gives up when ctx is done. The SDK has
// no context support; an abandoned call finishes in the background.
func call[T any](ctx context.Context, fn func() (T, *mt.Error)) (T, error) {
	type result struct {
		v   T
		err *mt.Error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()

	var zero T
	select {
	case <-ctx.Done():
		return zero, &payments.GatewayError{Kind: payments.ErrGatewayUnavailable, Message: "timeout", Err: ctx.Err()}
	case r := <-ch:
		// r.err is a typed pointer; compare before converting to error
		if r.err != nil {
			return zero, classify(r.err)
		}
		return r.v, nil
	}
}

func classify(e *mt.Error) error {
	ge := &payments.GatewayError{StatusCode: e.StatusCode, Message: e.Message, Err: e.RawError}
	switch {
	case e.StatusCode == 0, e.StatusCode >= 500, e.StatusCode == http.StatusUnauthorized:
		ge.Kind = payments.ErrGatewayUnavailable
	case e.StatusCode >= 400:
		ge.Kind = payments.ErrGatewayRejected
	default:
		ge.Kind = payments.ErrGatewayUnavailable
	}
	if ge.Message == "" {
		ge.Message = fmt.Sprintf("midtrans error %d", e.StatusCode)
	}
	return ge
}
