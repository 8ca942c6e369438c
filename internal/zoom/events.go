package zoom

import (
	"encoding/json"
	"fmt"
)

// Event names delivered by Zoom Phone that this service acts on.
const (
	EventURLValidation      = "endpoint.url_validation"
	EventCallLogCreated     = "phone.call_log_created"
	EventCallerLogCompleted = "phone.caller_call_log_completed"
	EventCalleeLogCompleted = "phone.callee_call_log_completed"
	EventCalleeMissed       = "phone.callee_missed"
)

// Envelope is the outer webhook body shared by all event types.
type Envelope struct {
	Event   string  `json:"event"`
	EventTS int64   `json:"event_ts"`
	Payload Payload `json:"payload"`
}

// Payload carries either the validation handshake token or a call object.
type Payload struct {
	PlainToken string          `json:"plainToken"`
	AccountID  string          `json:"account_id"`
	Object     json.RawMessage `json:"object"`
}

// Party identifies one side of a call.
type Party struct {
	PhoneNumber string `json:"phone_number"`
	Extension   string `json:"extension_number"`
	Name        string `json:"name"`
}

// CallLog is the call object inside call-log events. Zoom is inconsistent
// about which key carries the business id and how timestamps are encoded,
// so the looser fields stay interface{} and are normalized downstream.
type CallLog struct {
	CallID    string      `json:"call_id"`
	ID        string      `json:"id"`
	Duration  int         `json:"duration"`
	Direction string      `json:"direction"`
	Caller    Party       `json:"caller"`
	Callee    Party       `json:"callee"`
	StartTime interface{} `json:"start_time"`
	EndTime   interface{} `json:"end_time"`
	DateTime  interface{} `json:"date_time"`
}

// BusinessID returns the identifier used to detect duplicate deliveries:
// call_id when present, otherwise the log entry id. May be empty.
func (c *CallLog) BusinessID() string {
	if c.CallID != "" {
		return c.CallID
	}
	return c.ID
}

// ParseEnvelope decodes a raw webhook body.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode webhook envelope: %w", err)
	}
	return &env, nil
}

// CallObject decodes the payload's call object.
func (e *Envelope) CallObject() (*CallLog, error) {
	if len(e.Payload.Object) == 0 {
		return nil, fmt.Errorf("event %s has no call object", e.Event)
	}
	var c CallLog
	if err := json.Unmarshal(e.Payload.Object, &c); err != nil {
		return nil, fmt.Errorf("failed to decode call object: %w", err)
	}
	return &c, nil
}
