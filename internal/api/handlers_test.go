package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataX-ai/fitness-pal/internal/auth"
	"github.com/dataX-ai/fitness-pal/internal/dashboard"
	"github.com/dataX-ai/fitness-pal/internal/domain"
	"github.com/dataX-ai/fitness-pal/internal/onboarding"
	"github.com/dataX-ai/fitness-pal/internal/persistence/postgres"
)

type stubConversation struct {
	replies []onboarding.Reply
	gotBody string
	gotUser domain.User
}

func (s *stubConversation) Handle(_ context.Context, user domain.User, body string) ([]onboarding.Reply, error) {
	s.gotUser = user
	s.gotBody = body
	return s.replies, nil
}

type stubUsers struct {
	user    domain.User
	created bool
	missing bool
}

func (s *stubUsers) GetOrCreateUser(_ context.Context, phone string) (domain.User, bool, error) {
	u := s.user
	u.PhoneNumber = phone
	return u, s.created, nil
}

func (s *stubUsers) GetUserByPhone(_ context.Context, _ string) (domain.User, error) {
	if s.missing {
		return domain.User{}, domain.ErrUserNotFound
	}
	return s.user, nil
}

type stubPayments struct {
	recorded []domain.PaymentRecord
}

func (s *stubPayments) RecordPayment(_ context.Context, payment domain.PaymentRecord) error {
	s.recorded = append(s.recorded, payment)
	return nil
}

type stubDashboards struct {
	overview dashboard.Overview
	err      error
}

func (s *stubDashboards) Overview(_ context.Context, _ string) (dashboard.Overview, error) {
	return s.overview, s.err
}

type stubNotifier struct {
	sent chan string
}

func (s *stubNotifier) SendText(_ context.Context, _ domain.User, body string) error {
	s.sent <- "text:" + body
	return nil
}

func (s *stubNotifier) SendTemplate(_ context.Context, _ domain.User, contentSID string, _ map[string]string) error {
	s.sent <- "template:" + contentSID
	return nil
}

const testWebhookSecret = "payment-test-secret"

func newTestHandler(conv *stubConversation, users *stubUsers, payments *stubPayments, dashboards *stubDashboards) *Handler {
	return NewHandler(conv, users, payments, nil, dashboards, Config{
		PaymentWebhookSecret: testWebhookSecret,
	})
}

func TestChatWebhookRendersTwiML(t *testing.T) {
	conv := &stubConversation{replies: []onboarding.Reply{{Body: "Welcome!"}, {Body: "What's your name?"}}}
	users := &stubUsers{user: domain.User{ID: "user-1"}, created: true}
	h := newTestHandler(conv, users, &stubPayments{}, &stubDashboards{})

	form := url.Values{"From": {"whatsapp:+15550001"}, "Body": {"hi"}}
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.chatWebhook(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<Message>Welcome!</Message>")
	assert.Contains(t, rec.Body.String(), "<Message>What&#39;s your name?</Message>")
	assert.Equal(t, "hi", conv.gotBody)
	assert.Equal(t, "whatsapp:+15550001", conv.gotUser.PhoneNumber)
}

func TestChatWebhookIgnoresMediaAttachments(t *testing.T) {
	conv := &stubConversation{replies: []onboarding.Reply{{Body: "Logged it."}}}
	users := &stubUsers{user: domain.User{ID: "user-1"}}
	h := newTestHandler(conv, users, &stubPayments{}, &stubDashboards{})

	form := url.Values{
		"From":       {"whatsapp:+15550001"},
		"Body":       {"bench 3x8 60kg"},
		"MessageSid": {"SM123"},
		"NumMedia":   {"2"},
	}
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.chatWebhook(rec, req)

	// Attachments never block the message; only the text body is handled.
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bench 3x8 60kg", conv.gotBody)
	assert.Contains(t, rec.Body.String(), "<Message>Logged it.</Message>")
}

func TestChatWebhookRequiresFrom(t *testing.T) {
	h := newTestHandler(&stubConversation{}, &stubUsers{}, &stubPayments{}, &stubDashboards{})

	form := url.Values{"Body": {"hi"}}
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.chatWebhook(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatWebhookRejectsGet(t *testing.T) {
	h := newTestHandler(&stubConversation{}, &stubUsers{}, &stubPayments{}, &stubDashboards{})

	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	rec := httptest.NewRecorder()
	h.chatWebhook(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestDashboardReturnsOverview(t *testing.T) {
	score := 72
	dashboards := &stubDashboards{overview: dashboard.Overview{
		Details: domain.DashboardDetails{
			UserID: "user-1", FitnessScore: score, HasFitnessScore: true,
			CurrentWeight: 78, GoalWeight: 74.5, AllTimeDuration: 700,
		},
		Streak: domain.WeekStreak{TotalSessions: 4, StreakDays: 3},
		Rating: "Good fitness routine!",
	}}
	h := newTestHandler(&stubConversation{}, &stubUsers{}, &stubPayments{}, dashboards)

	req := httptest.NewRequest(http.MethodGet, "/v1/dashboard", nil)
	req = req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{Subject: "user-1"}))
	rec := httptest.NewRecorder()
	h.getDashboard(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"fitness_score":72`)
	assert.Contains(t, body, `"goal_weight":74.5`)
	assert.Contains(t, body, `"streak_days":3`)
}

func TestDashboardHidesScoreWithoutHistory(t *testing.T) {
	dashboards := &stubDashboards{overview: dashboard.Overview{
		Details: domain.DashboardDetails{UserID: "user-1"},
		Rating:  "Insufficient data",
	}}
	h := newTestHandler(&stubConversation{}, &stubUsers{}, &stubPayments{}, dashboards)

	req := httptest.NewRequest(http.MethodGet, "/v1/dashboard", nil)
	req = req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{Subject: "user-1"}))
	rec := httptest.NewRecorder()
	h.getDashboard(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"fitness_score":null`)
}

func TestDashboardNotFound(t *testing.T) {
	h := newTestHandler(&stubConversation{}, &stubUsers{}, &stubPayments{}, &stubDashboards{err: postgres.ErrDashboardNotFound})

	req := httptest.NewRequest(http.MethodGet, "/v1/dashboard", nil)
	req = req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{Subject: "user-1"}))
	rec := httptest.NewRecorder()
	h.getDashboard(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDashboardRequiresClaims(t *testing.T) {
	h := newTestHandler(&stubConversation{}, &stubUsers{}, &stubPayments{}, &stubDashboards{})

	req := httptest.NewRequest(http.MethodGet, "/v1/dashboard", nil)
	rec := httptest.NewRecorder()
	h.getDashboard(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func signedPaymentRequest(t *testing.T, payload string) *http.Request {
	t.Helper()
	msgID := "msg_123"
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write([]byte(msgID + "." + timestamp + "." + payload))
	signature := "v1," + base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(payload))
	req.Header.Set("webhook-id", msgID)
	req.Header.Set("webhook-timestamp", timestamp)
	req.Header.Set("webhook-signature", signature)
	return req
}

func paymentPayload(eventType string) string {
	return fmt.Sprintf(`{
        "type": %q,
        "data": {
            "subscription_id": "sub_1",
            "product_id": "pdt_1",
            "recurring_pre_tax_amount": 999,
            "currency": "USD",
            "customer": {"phone_number": "whatsapp:+15550001"}
        }
    }`, eventType)
}

func TestPaymentWebhookRecordsActiveSubscription(t *testing.T) {
	payments := &stubPayments{}
	users := &stubUsers{user: domain.User{ID: "user-1", PhoneNumber: "whatsapp:+15550001"}}
	h := newTestHandler(&stubConversation{}, users, payments, &stubDashboards{})

	rec := httptest.NewRecorder()
	h.paymentWebhook(rec, signedPaymentRequest(t, paymentPayload("subscription.active")))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, payments.recorded, 1)
	p := payments.recorded[0]
	assert.Equal(t, "user-1", p.UserID)
	assert.Equal(t, "sub_1", p.SubscriptionID)
	assert.Equal(t, domain.PaymentActive, p.Status)
	assert.InDelta(t, 9.99, p.Amount, 0.001)
}

func TestPaymentWebhookNotifiesWithTemplate(t *testing.T) {
	notifier := &stubNotifier{sent: make(chan string, 1)}
	users := &stubUsers{user: domain.User{ID: "user-1", PhoneNumber: "whatsapp:+15550001"}}
	h := NewHandler(&stubConversation{}, users, &stubPayments{}, notifier, &stubDashboards{}, Config{
		PaymentWebhookSecret: testWebhookSecret,
		PaymentOKTemplate:    "HX123",
	})

	rec := httptest.NewRecorder()
	h.paymentWebhook(rec, signedPaymentRequest(t, paymentPayload("subscription.active")))

	require.Equal(t, http.StatusOK, rec.Code)
	select {
	case got := <-notifier.sent:
		assert.Equal(t, "template:HX123", got)
	case <-time.After(time.Second):
		t.Fatal("notification never sent")
	}
}

func TestPaymentWebhookFallsBackToTextNotice(t *testing.T) {
	notifier := &stubNotifier{sent: make(chan string, 1)}
	users := &stubUsers{user: domain.User{ID: "user-1", PhoneNumber: "whatsapp:+15550001"}}
	h := NewHandler(&stubConversation{}, users, &stubPayments{}, notifier, &stubDashboards{}, Config{
		PaymentWebhookSecret: testWebhookSecret,
	})

	rec := httptest.NewRecorder()
	h.paymentWebhook(rec, signedPaymentRequest(t, paymentPayload("payment.failed")))

	require.Equal(t, http.StatusOK, rec.Code)
	select {
	case got := <-notifier.sent:
		assert.Contains(t, got, "text:")
		assert.Contains(t, got, "payment method")
	case <-time.After(time.Second):
		t.Fatal("notification never sent")
	}
}

func TestPaymentWebhookRejectsBadSignature(t *testing.T) {
	payments := &stubPayments{}
	h := newTestHandler(&stubConversation{}, &stubUsers{}, payments, &stubDashboards{})

	req := signedPaymentRequest(t, paymentPayload("subscription.active"))
	req.Header.Set("webhook-signature", "v1,Zm9yZ2VkCg==")
	rec := httptest.NewRecorder()
	h.paymentWebhook(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, payments.recorded)
}

func TestPaymentWebhookIgnoresUnknownEventType(t *testing.T) {
	payments := &stubPayments{}
	h := newTestHandler(&stubConversation{}, &stubUsers{}, payments, &stubDashboards{})

	rec := httptest.NewRecorder()
	h.paymentWebhook(rec, signedPaymentRequest(t, paymentPayload("customer.updated")))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, payments.recorded)
}

func TestPaymentWebhookAcksUnknownUser(t *testing.T) {
	payments := &stubPayments{}
	h := newTestHandler(&stubConversation{}, &stubUsers{missing: true}, payments, &stubDashboards{})

	rec := httptest.NewRecorder()
	h.paymentWebhook(rec, signedPaymentRequest(t, paymentPayload("subscription.cancelled")))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, payments.recorded)
}

func TestVerifyWebhookSignatureTimestampTolerance(t *testing.T) {
	payload := []byte(`{}`)
	timestamp := strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10)

	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write([]byte("msg_1." + timestamp + "."))
	mac.Write(payload)

	header := http.Header{}
	header.Set("webhook-id", "msg_1")
	header.Set("webhook-timestamp", timestamp)
	header.Set("webhook-signature", "v1,"+base64.StdEncoding.EncodeToString(mac.Sum(nil)))

	err := verifyWebhookSignature(testWebhookSecret, header, payload, time.Now())
	assert.ErrorContains(t, err, "timestamp")
}
