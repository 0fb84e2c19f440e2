// Package api exposes the HTTP surface: the chat webhook, the payment
// webhook and the dashboard read API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/dataX-ai/fitness-pal/internal/auth"
	"github.com/dataX-ai/fitness-pal/internal/dashboard"
	"github.com/dataX-ai/fitness-pal/internal/domain"
	"github.com/dataX-ai/fitness-pal/internal/onboarding"
	"github.com/dataX-ai/fitness-pal/internal/persistence/postgres"
	"github.com/dataX-ai/fitness-pal/internal/transport/whatsapp"
)

// Conversation processes one inbound chat message.
type Conversation interface {
	Handle(ctx context.Context, user domain.User, body string) ([]onboarding.Reply, error)
}

// UserStore resolves chat users by messaging address.
type UserStore interface {
	GetOrCreateUser(ctx context.Context, phoneNumber string) (domain.User, bool, error)
	GetUserByPhone(ctx context.Context, phoneNumber string) (domain.User, error)
}

// PaymentRecorder persists gateway payment events.
type PaymentRecorder interface {
	RecordPayment(ctx context.Context, payment domain.PaymentRecord) error
}

// Notifier delivers outbound notices outside the webhook request/response
// cycle. Template sends fall back to plain text when no template is
// configured.
type Notifier interface {
	SendText(ctx context.Context, user domain.User, body string) error
	SendTemplate(ctx context.Context, user domain.User, contentSID string, variables map[string]string) error
}

// DashboardReader serves the per-user rollup.
type DashboardReader interface {
	Overview(ctx context.Context, userID string) (dashboard.Overview, error)
}

// Config carries the handler-level settings.
type Config struct {
	PaymentWebhookSecret string
	PaymentOKTemplate    string
	PaymentFailTemplate  string
}

// Handler coordinates HTTP requests with the chat machine and services.
type Handler struct {
	conversation Conversation
	users        UserStore
	payments     PaymentRecorder
	notifier     Notifier
	dashboards   DashboardReader
	cfg          Config
	logger       *log.Logger
}

// NewHandler builds a Handler.
func NewHandler(conversation Conversation, users UserStore, payments PaymentRecorder, notifier Notifier, dashboards DashboardReader, cfg Config) *Handler {
	return &Handler{
		conversation: conversation,
		users:        users,
		payments:     payments,
		notifier:     notifier,
		dashboards:   dashboards,
		cfg:          cfg,
		logger:       log.New(log.Writer(), "[api] ", log.LstdFlags|log.Lshortfile),
	}
}

// RegisterRoutes wires endpoints to the mux. The dashboard route must be
// wrapped by the auth middleware by the caller.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/webhook", h.chatWebhook)
	mux.HandleFunc("/payments/webhook", h.paymentWebhook)
	mux.HandleFunc("/healthz", healthz)
}

// RegisterDashboardRoutes wires the authenticated read API.
func (h *Handler) RegisterDashboardRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/dashboard", h.getDashboard)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// chatWebhook receives Twilio form posts for inbound WhatsApp messages and
// answers with TwiML.
func (h *Handler) chatWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse form")
		return
	}

	from := r.PostFormValue("From")
	body := r.PostFormValue("Body")
	messageSID := r.PostFormValue("MessageSid")
	numMedia := r.PostFormValue("NumMedia")
	if from == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing From")
		return
	}
	if numMedia != "" && numMedia != "0" {
		// Media is accepted but not interpreted; only the text body feeds
		// the conversation.
		h.logger.Printf("webhook: message %s from %s has %s media attachments, ignoring media", messageSID, from, numMedia)
	}

	user, created, err := h.users.GetOrCreateUser(r.Context(), from)
	if err != nil {
		h.logger.Printf("webhook: resolve user %s: %v", from, err)
		writeError(w, http.StatusInternalServerError, "server_error", "user lookup failed")
		return
	}
	if created {
		h.logger.Printf("webhook: new user %s", user.ID)
	}

	replies, err := h.conversation.Handle(r.Context(), user, body)
	if err != nil {
		h.logger.Printf("webhook: handle message for %s: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "server_error", "message handling failed")
		return
	}

	bodies := make([]string, 0, len(replies))
	for _, reply := range replies {
		bodies = append(bodies, reply.Body)
	}
	twiml, err := whatsapp.RenderTwiML(bodies)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "response rendering failed")
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(twiml)
}

// getDashboard serves the rollup for the token's subject.
func (h *Handler) getDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	overview, err := h.dashboards.Overview(r.Context(), claims.Subject)
	if errors.Is(err, postgres.ErrDashboardNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "no dashboard yet, log some workouts first")
		return
	}
	if err != nil {
		h.logger.Printf("dashboard: overview for %s: %v", claims.Subject, err)
		writeError(w, http.StatusInternalServerError, "server_error", "dashboard lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, toDashboardResponse(overview))
}

// DashboardResponse is the dashboard endpoint payload.
type DashboardResponse struct {
	FitnessScore     *int      `json:"fitness_score"`
	RatingText       string    `json:"rating_text"`
	InitialWeight    float64   `json:"initial_weight"`
	CurrentWeight    float64   `json:"current_weight"`
	GoalWeight       float64   `json:"goal_weight"`
	AllTimeDuration  float64   `json:"all_time_duration"`
	LastWeekDuration float64   `json:"last_week_duration"`
	AvgWeekDuration  float64   `json:"avg_week_duration"`
	WeekDays         [7]bool   `json:"week_days"`
	WeekSessions     int       `json:"week_sessions"`
	StreakDays       int       `json:"streak_days"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toDashboardResponse(overview dashboard.Overview) DashboardResponse {
	resp := DashboardResponse{
		RatingText:       overview.Rating,
		InitialWeight:    overview.Details.InitialWeight,
		CurrentWeight:    overview.Details.CurrentWeight,
		GoalWeight:       overview.Details.GoalWeight,
		AllTimeDuration:  overview.Details.AllTimeDuration,
		LastWeekDuration: overview.Details.LastWeekDuration,
		AvgWeekDuration:  overview.Details.AvgWeekDuration,
		WeekDays:         overview.Streak.Days,
		WeekSessions:     overview.Streak.TotalSessions,
		StreakDays:       overview.Streak.StreakDays,
		UpdatedAt:        overview.Details.UpdatedAt,
	}
	if overview.Details.HasFitnessScore {
		score := overview.Details.FitnessScore
		resp.FitnessScore = &score
	}
	return resp
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
