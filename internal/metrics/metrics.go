package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Webhook metrics
	WebhooksReceivedTotal   int64
	SignatureFailuresTotal  int64
	ChallengesAnsweredTotal int64
	UnknownEventsTotal      int64

	// Upsert metrics
	RecordsCreatedTotal int64
	RecordsUpdatedTotal int64
	UpsertErrorsTotal   int64

	// Session metrics
	LoginsTotal        int64
	LoginFailuresTotal int64

	// Timing
	startTime   time.Time
	lastWebhook time.Time
}

// Global metrics instance
var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{startTime: time.Now()}
	})
	return instance
}

// RecordWebhookReceived increments the webhooks received counter
func (m *Metrics) RecordWebhookReceived() {
	m.mu.Lock()
	m.WebhooksReceivedTotal++
	m.lastWebhook = time.Now()
	m.mu.Unlock()
}

// RecordSignatureFailure increments the rejected-delivery counter
func (m *Metrics) RecordSignatureFailure() {
	m.mu.Lock()
	m.SignatureFailuresTotal++
	m.mu.Unlock()
}

// RecordChallengeAnswered increments the url_validation counter
func (m *Metrics) RecordChallengeAnswered() {
	m.mu.Lock()
	m.ChallengesAnsweredTotal++
	m.mu.Unlock()
}

// RecordUnknownEvent increments the unrecognized-event counter
func (m *Metrics) RecordUnknownEvent() {
	m.mu.Lock()
	m.UnknownEventsTotal++
	m.mu.Unlock()
}

// RecordUpsert records the outcome of a successful database write
func (m *Metrics) RecordUpsert(created bool) {
	m.mu.Lock()
	if created {
		m.RecordsCreatedTotal++
	} else {
		m.RecordsUpdatedTotal++
	}
	m.mu.Unlock()
}

// RecordUpsertError increments the failed-write counter
func (m *Metrics) RecordUpsertError() {
	m.mu.Lock()
	m.UpsertErrorsTotal++
	m.mu.Unlock()
}

// RecordLogin records a session login attempt
func (m *Metrics) RecordLogin(ok bool) {
	m.mu.Lock()
	if ok {
		m.LoginsTotal++
	} else {
		m.LoginFailuresTotal++
	}
	m.mu.Unlock()
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		// Helper to write metric
		write := func(name string, value interface{}) {
			switch v := value.(type) {
			case int64:
				w.Write([]byte(name + " " + strconv.FormatInt(v, 10) + "\n"))
			case float64:
				w.Write([]byte(name + " " + strconv.FormatFloat(v, 'f', 6, 64) + "\n"))
			}
		}

		// System metrics
		write("callbridge_uptime_seconds", time.Since(m.startTime).Seconds())

		// Webhook metrics
		write("callbridge_webhooks_received_total", m.WebhooksReceivedTotal)
		write("callbridge_signature_failures_total", m.SignatureFailuresTotal)
		write("callbridge_challenges_answered_total", m.ChallengesAnsweredTotal)
		write("callbridge_unknown_events_total", m.UnknownEventsTotal)
		if !m.lastWebhook.IsZero() {
			write("callbridge_seconds_since_last_webhook", time.Since(m.lastWebhook).Seconds())
		}

		// Upsert metrics
		write("callbridge_records_created_total", m.RecordsCreatedTotal)
		write("callbridge_records_updated_total", m.RecordsUpdatedTotal)
		write("callbridge_upsert_errors_total", m.UpsertErrorsTotal)

		// Session metrics
		write("callbridge_logins_total", m.LoginsTotal)
		write("callbridge_login_failures_total", m.LoginFailuresTotal)
	}
}
