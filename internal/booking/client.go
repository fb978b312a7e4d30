package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"openbooking/internal/pkg/config"
	"openbooking/internal/pkg/errs"
	"openbooking/internal/pkg/fault"
)

// ReserveRequest mirrors the inventory reserve contract.
type ReserveRequest struct {
	RoomID         int64  `json:"room_id"`
	CheckInDate    string `json:"check_in_date"`
	CheckOutDate   string `json:"check_out_date"`
	Quantity       int    `json:"quantity"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type ReserveResponse struct {
	ReservationID   string `json:"reservation_id"`
	TotalPriceCents int64  `json:"total_price_cents"`
	Status          string `json:"status"`
}

type ReleaseRequest struct {
	RoomID       int64  `json:"room_id"`
	CheckInDate  string `json:"check_in_date"`
	CheckOutDate string `json:"check_out_date"`
	Quantity     int    `json:"quantity"`
	BookingID    *int64 `json:"booking_id,omitempty"`
}

type ChargeRequest struct {
	UserID         int64  `json:"user_id"`
	BookingID      int64  `json:"booking_id"`
	AmountCents    int64  `json:"amount_cents"`
	Method         string `json:"payment_method"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type ChargeResponse struct {
	PaymentID     int64  `json:"payment_id"`
	Status        string `json:"status"`
	Message       string `json:"message"`
	TransactionID string `json:"transaction_id"`
}

type InventoryClient interface {
	Reserve(ctx context.Context, req ReserveRequest) (ReserveResponse, error)
	Confirm(ctx context.Context, bookingID int64) error
	Release(ctx context.Context, req ReleaseRequest) error
}

type PaymentClient interface {
	// Charge returns the gateway's decision; a decline is Status "FAILED"
	// in the response, not an error.
	Charge(ctx context.Context, req ChargeRequest) (ChargeResponse, error)
}

type httpInventoryClient struct {
	rest *restClient
}

type httpPaymentClient struct {
	rest *restClient
}

func NewInventoryClient(cfg config.BookingConfig) InventoryClient {
	return &httpInventoryClient{rest: newRestClient(cfg.InventoryURL, cfg)}
}

func NewPaymentClient(cfg config.BookingConfig) PaymentClient {
	return &httpPaymentClient{rest: newRestClient(cfg.PaymentURL, cfg)}
}

func (c *httpInventoryClient) Reserve(ctx context.Context, req ReserveRequest) (ReserveResponse, error) {
	var resp ReserveResponse
	err := c.rest.postJSON(ctx, "/api/inventory/reserve", req, &resp)
	return resp, err
}

func (c *httpInventoryClient) Confirm(ctx context.Context, bookingID int64) error {
	path := fmt.Sprintf("/api/inventory/confirm/%d", bookingID)
	return c.rest.postJSON(ctx, path, struct{}{}, nil)
}

func (c *httpInventoryClient) Release(ctx context.Context, req ReleaseRequest) error {
	return c.rest.postJSON(ctx, "/api/inventory/release", req, nil)
}

func (c *httpPaymentClient) Charge(ctx context.Context, req ChargeRequest) (ChargeResponse, error) {
	var resp ChargeResponse
	err := c.rest.postJSON(ctx, "/api/payments/process", req, &resp)
	return resp, err
}

// restClient is the shared transport: short per-request deadline, bounded
// retries with exponential backoff and jitter. Retries are safe because
// every call carries the same idempotency key end to end; only unclear
// failures are retried — a clear failure is a decision, not a glitch.
type restClient struct {
	baseURL     string
	client      *http.Client
	maxAttempts int
}

func newRestClient(baseURL string, cfg config.BookingConfig) *restClient {
	return &restClient{
		baseURL:     baseURL,
		client:      &http.Client{Timeout: cfg.RequestTimeout()},
		maxAttempts: cfg.ClientMaxAttempts,
	}
}

func (c *restClient) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errs.Wrap(err, "failed to encode request body")
	}

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fault.Unclear(ctx.Err(), "request cancelled between retries")
			case <-time.After(retryBackoff(attempt)):
			}
		}

		lastErr = c.doOnce(ctx, path, payload, out)
		if lastErr == nil || !fault.IsUnclear(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func retryBackoff(attempt int) time.Duration {
	base := 200 * time.Millisecond * time.Duration(1<<(attempt-1))
	return base + time.Duration(rand.Int63n(int64(base/2)+1))
}

func (c *restClient) doOnce(ctx context.Context, path string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errs.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// Timeouts and connection failures leave the remote's state unknown.
		return fault.Unclear(err, "request to "+path+" failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fault.Unclear(err, "failed to read response from "+path)
	}

	if err := ClassifyStatus(resp.StatusCode, raw, path); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errs.Wrapf(err, "failed to decode response from %s", path)
	}
	return nil
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ClassifyStatus maps a remote HTTP status onto the failure taxonomy:
// 2xx is success, 503/504 are unclear (the remote may have acted), and any
// other non-2xx is a clear failure carrying the remote's error code.
func ClassifyStatus(status int, body []byte, path string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout:
		return fault.Unclear(errs.Newf("%s returned %d", path, status), "remote unavailable")
	default:
		var env errorEnvelope
		if err := json.Unmarshal(body, &env); err == nil && env.Error.Code != "" {
			return fault.Business(fault.Code(env.Error.Code), env.Error.Message)
		}
		return fault.Businessf(fault.CodeBookingFailed, "%s returned %d", path, status)
	}
}
