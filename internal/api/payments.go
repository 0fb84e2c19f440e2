package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dataX-ai/fitness-pal/internal/domain"
)

const (
	maxWebhookBody    = 64 << 10
	timestampSkew     = 5 * time.Minute
	signaturePrefix   = "v1,"
	secretKeyPrefix   = "whsec_"
	notifySendTimeout = 15 * time.Second
)

// paymentEvent is the subscription gateway's webhook payload.
type paymentEvent struct {
	Type string `json:"type"`
	Data struct {
		SubscriptionID string `json:"subscription_id"`
		ProductID      string `json:"product_id"`
		Amount         int64  `json:"recurring_pre_tax_amount"` // minor units
		Currency       string `json:"currency"`
		Customer       struct {
			PhoneNumber string `json:"phone_number"`
		} `json:"customer"`
	} `json:"data"`
}

// paymentWebhook verifies and records subscription events from the payment
// gateway, flips the user's paid flag and queues the matching template
// notification.
func (h *Handler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to read body")
		return
	}

	if err := verifyWebhookSignature(h.cfg.PaymentWebhookSecret, r.Header, body, time.Now()); err != nil {
		h.logger.Printf("payment webhook: signature rejected: %v", err)
		writeError(w, http.StatusUnauthorized, "unauthorized", "signature verification failed")
		return
	}

	var event paymentEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse payload")
		return
	}

	status, ok := paymentStatus(event.Type)
	if !ok {
		// Unhandled event types are acknowledged so the gateway stops retrying.
		h.logger.Printf("payment webhook: ignoring event type %s", event.Type)
		w.WriteHeader(http.StatusOK)
		return
	}

	user, err := h.users.GetUserByPhone(r.Context(), event.Data.Customer.PhoneNumber)
	if errors.Is(err, domain.ErrUserNotFound) {
		h.logger.Printf("payment webhook: no user for %s", event.Data.Customer.PhoneNumber)
		w.WriteHeader(http.StatusOK)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "user lookup failed")
		return
	}

	record := domain.PaymentRecord{
		UserID:         user.ID,
		SubscriptionID: event.Data.SubscriptionID,
		ProductID:      event.Data.ProductID,
		Amount:         float64(event.Data.Amount) / 100,
		Currency:       event.Data.Currency,
		Status:         status,
	}
	if err := h.payments.RecordPayment(r.Context(), record); err != nil {
		h.logger.Printf("payment webhook: record payment for %s: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "server_error", "payment recording failed")
		return
	}

	h.notifyPaymentOutcome(user, status, record)
	w.WriteHeader(http.StatusOK)
}

// notifyPaymentOutcome sends the outcome message outside the webhook
// deadline; a send failure only logs, the payment is already recorded.
// Without a configured template SID the notice goes out as plain text.
func (h *Handler) notifyPaymentOutcome(user domain.User, status domain.PaymentStatus, record domain.PaymentRecord) {
	if h.notifier == nil {
		return
	}
	template := h.cfg.PaymentFailTemplate
	if status == domain.PaymentActive {
		template = h.cfg.PaymentOKTemplate
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifySendTimeout)
		defer cancel()

		var err error
		if template != "" {
			variables := map[string]string{
				"1": strconv.FormatFloat(record.Amount, 'f', 2, 64),
				"2": record.Currency,
			}
			err = h.notifier.SendTemplate(ctx, user, template, variables)
		} else {
			err = h.notifier.SendText(ctx, user, paymentNoticeText(status, record))
		}
		if err != nil {
			h.logger.Printf("payment webhook: notify %s: %v", user.ID, err)
		}
	}()
}

func paymentNoticeText(status domain.PaymentStatus, record domain.PaymentRecord) string {
	if status == domain.PaymentActive {
		return fmt.Sprintf("Payment received: %.2f %s. Your subscription is active. 🎉", record.Amount, record.Currency)
	}
	return "There was a problem with your subscription payment. Please update your payment method to keep unlimited access."
}

func paymentStatus(eventType string) (domain.PaymentStatus, bool) {
	switch eventType {
	case "subscription.active", "subscription.renewed":
		return domain.PaymentActive, true
	case "subscription.cancelled", "subscription.expired":
		return domain.PaymentCancelled, true
	case "subscription.failed", "payment.failed":
		return domain.PaymentFailed, true
	case "subscription.on_hold":
		return domain.PaymentInactive, true
	default:
		return "", false
	}
}

// verifyWebhookSignature checks the standard-webhooks HMAC headers: the
// signature covers "<id>.<timestamp>.<payload>" and the timestamp must be
// recent to stop replays.
func verifyWebhookSignature(secret string, header http.Header, payload []byte, now time.Time) error {
	if secret == "" {
		return errors.New("webhook secret not configured")
	}

	msgID := header.Get("webhook-id")
	timestamp := header.Get("webhook-timestamp")
	signatures := header.Get("webhook-signature")
	if msgID == "" || timestamp == "" || signatures == "" {
		return errors.New("missing signature headers")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return errors.New("malformed timestamp")
	}
	if diff := now.Sub(time.Unix(ts, 0)); diff > timestampSkew || diff < -timestampSkew {
		return errors.New("timestamp outside tolerance")
	}

	key := []byte(secret)
	if trimmed, ok := strings.CutPrefix(secret, secretKeyPrefix); ok {
		if decoded, err := base64.StdEncoding.DecodeString(trimmed); err == nil {
			key = decoded
		}
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msgID + "." + timestamp + "."))
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	for _, candidate := range strings.Fields(signatures) {
		if value, ok := strings.CutPrefix(candidate, signaturePrefix); ok {
			if hmac.Equal([]byte(value), []byte(expected)) {
				return nil
			}
		}
	}
	return errors.New("no matching signature")
}
