package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dialstack/callbridge/internal/filemaker"
	"github.com/dialstack/callbridge/internal/metrics"
	"github.com/dialstack/callbridge/internal/zoom"
)

// ServiceName is reported by the liveness endpoint.
const ServiceName = "callbridge"

// Upserter writes normalized call records to the external database.
type Upserter interface {
	Upsert(ctx context.Context, rec filemaker.CallRecord) (created bool, err error)
}

// SessionChecker reports whether an authenticated database session can be
// established. Used by the health endpoint.
type SessionChecker interface {
	EnsureValid(ctx context.Context) (string, error)
}

// Handler receives Zoom Phone webhooks and mirrors call events into FileMaker.
type Handler struct {
	secret            string
	recorder          Upserter
	session           SessionChecker
	missedCallEndTime bool
	logger            zerolog.Logger
}

// NewHandler creates a webhook handler.
func NewHandler(secret string, recorder Upserter, session SessionChecker, missedCallEndTime bool, logger zerolog.Logger) *Handler {
	return &Handler{
		secret:            secret,
		recorder:          recorder,
		session:           session,
		missedCallEndTime: missedCallEndTime,
		logger:            logger,
	}
}

// HandleWebhook processes one webhook delivery
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	m := metrics.Get()
	deliveryID := uuid.NewString()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error().Err(err).Str("delivery_id", deliveryID).Msg("failed to read webhook body")
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	env, err := zoom.ParseEnvelope(body)
	if err != nil {
		h.logger.Error().Err(err).Str("delivery_id", deliveryID).Msg("failed to decode webhook")
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	m.RecordWebhookReceived()

	// The ownership handshake happens before Zoom has a signature to send,
	// so it must be answered before verification.
	if env.Event == zoom.EventURLValidation {
		m.RecordChallengeAnswered()
		h.logger.Info().Str("delivery_id", deliveryID).Msg("answering url_validation challenge")
		writeJSON(w, http.StatusOK, zoom.AnswerChallenge(env.Payload.PlainToken, h.secret))
		return
	}

	timestamp := r.Header.Get(zoom.HeaderTimestamp)
	signature := r.Header.Get(zoom.HeaderSignature)
	if !zoom.VerifySignature(body, timestamp, signature, h.secret) {
		m.RecordSignatureFailure()
		h.logger.Warn().
			Str("delivery_id", deliveryID).
			Str("event", env.Event).
			Msg("webhook signature verification failed")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	h.dispatch(r.Context(), deliveryID, env)

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// dispatch routes a verified event. Database failures are logged but never
// turned into an error response: making Zoom redeliver on persistence
// failures would only produce retry storms.
func (h *Handler) dispatch(ctx context.Context, deliveryID string, env *zoom.Envelope) {
	m := metrics.Get()

	switch env.Event {
	case zoom.EventCallLogCreated, zoom.EventCallerLogCompleted, zoom.EventCalleeLogCompleted, zoom.EventCalleeMissed:
		call, err := env.CallObject()
		if err != nil {
			m.RecordUpsertError()
			h.logger.Error().Err(err).Str("delivery_id", deliveryID).Str("event", env.Event).Msg("failed to decode call object")
			return
		}

		rec, ok := h.normalize(env.Event, call)
		if !ok {
			return
		}

		created, err := h.recorder.Upsert(ctx, rec)
		if err != nil {
			m.RecordUpsertError()
			h.logger.Error().
				Err(err).
				Str("delivery_id", deliveryID).
				Str("event", env.Event).
				Str("call_id", rec.CallID).
				Msg("failed to mirror call record")
			return
		}

		m.RecordUpsert(created)
		h.logger.Info().
			Str("delivery_id", deliveryID).
			Str("event", env.Event).
			Str("call_id", rec.CallID).
			Bool("created", created).
			Msg("call record mirrored")

	default:
		m.RecordUnknownEvent()
		h.logger.Debug().
			Str("delivery_id", deliveryID).
			Str("event", env.Event).
			Msg("ignoring unrecognized event")
	}
}

// HandleLiveness reports that the process is up
func (h *Handler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"service":   ServiceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleHealth reports whether an authenticated FileMaker session is available
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := h.session.EnsureValid(r.Context()); err != nil {
		h.logger.Error().Err(err).Msg("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":             "unhealthy",
			"filemakerConnected": false,
			"error":              err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":             "healthy",
		"filemakerConnected": true,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
