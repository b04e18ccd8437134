package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joao-fontenele/marketplace-fulfillment/internal/domain"
	"github.com/joao-fontenele/marketplace-fulfillment/internal/messaging"
)

const (
	defaultSendAttempts = 4
	defaultSendBackoff  = 500 * time.Millisecond
)

// errEmailRejected marks a request the email service refused outright.
// Sending it again cannot succeed.
var errEmailRejected = errors.New("email rejected")

type NotificationHandler struct {
	emailServiceURL string
	httpClient      *http.Client
	logger          *slog.Logger
	attempts        int
	backoff         time.Duration
}

func NewNotificationHandler(emailServiceURL string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: emailServiceURL,
		httpClient:      client,
		logger:          logger,
		attempts:        defaultSendAttempts,
		backoff:         defaultSendBackoff,
	}
}

type email struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Handle emails the buyer about order events they care about. Events that do
// not decode, and emails the service rejects, are skipped. Other send
// failures are retried with exponential backoff; once the attempts run out
// the error is returned, the message stays uncommitted and the consumer stops,
// so it is redelivered when the worker restarts.
func (h *NotificationHandler) Handle(ctx context.Context, d messaging.Delivery) error {
	var event domain.OrderEvent
	if err := json.Unmarshal(d.Payload, &event); err != nil {
		return fmt.Errorf("decode order event %q: %w: %v", d.Key, messaging.ErrSkip, err)
	}
	if event.OrderID == "" || event.BuyerID == "" {
		return fmt.Errorf("order event %q without order or buyer: %w", d.Key, messaging.ErrSkip)
	}

	msg, ok := notification(event)
	if !ok {
		h.logger.Debug("event needs no notification", "type", event.Type, "order_id", event.OrderID)
		return nil
	}

	if err := h.sendWithRetry(ctx, msg); err != nil {
		h.logger.Error("failed to send notification", "error", err, "type", event.Type, "order_id", event.OrderID)
		if errors.Is(err, errEmailRejected) {
			return fmt.Errorf("send notification: %w: %w", messaging.ErrSkip, err)
		}
		return fmt.Errorf("send notification: %w", err)
	}

	h.logger.Info("notification sent", "type", event.Type, "order_id", event.OrderID, "buyer_id", event.BuyerID)
	return nil
}

func notification(event domain.OrderEvent) (email, bool) {
	msg := email{To: event.BuyerID + "@example.com"}

	switch event.Type {
	case domain.EventOrderCreated:
		msg.Subject = "Order placed: " + event.OrderID
		msg.Body = fmt.Sprintf("Your order %s from seller %s was placed and is waiting for the seller.", event.OrderID, event.SellerID)
	case domain.EventOrderCancelled:
		msg.Subject = "Order cancelled: " + event.OrderID
		msg.Body = fmt.Sprintf("Your order %s was cancelled. Any payment for cancelled items will be refunded.", event.OrderID)
	case domain.EventItemStatusChanged:
		switch event.ItemStatus {
		case domain.ItemStatusProcessed:
			msg.Subject = "Item accepted: " + event.OrderID
			msg.Body = fmt.Sprintf("The seller accepted item %s of order %s.", event.ItemID, event.OrderID)
		case domain.ItemStatusShipped:
			msg.Subject = "Item shipped: " + event.OrderID
			msg.Body = fmt.Sprintf("Item %s of order %s is on its way.", event.ItemID, event.OrderID)
		case domain.ItemStatusRejected:
			msg.Subject = "Item rejected: " + event.OrderID
			msg.Body = fmt.Sprintf("The seller could not fulfil item %s of order %s. It will be refunded.", event.ItemID, event.OrderID)
		default:
			return email{}, false
		}
	default:
		return email{}, false
	}

	return msg, true
}

func (h *NotificationHandler) sendWithRetry(ctx context.Context, msg email) error {
	delay := h.backoff
	var err error
	for attempt := 1; ; attempt++ {
		err = h.sendEmail(ctx, msg)
		if err == nil || errors.Is(err, errEmailRejected) || attempt >= h.attempts {
			return err
		}

		h.logger.Warn("email send failed, retrying", "error", err, "attempt", attempt, "delay", delay)
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (h *NotificationHandler) sendEmail(ctx context.Context, msg email) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return fmt.Errorf("%w: email service returned status %d", errEmailRejected, resp.StatusCode)
	default:
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
