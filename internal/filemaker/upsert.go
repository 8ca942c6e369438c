package filemaker

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// StatusUnhandled is the initial Status every mirrored call starts in;
// staff work the record in FileMaker from there.
const StatusUnhandled = "Unhandled"

// CallRecord is the normalized shape written to the call-log layout.
type CallRecord struct {
	CallID          string
	Duration        string // HH:MM:SS
	Direction       string
	PhoneNumber     string
	CallStartTime   string
	CallEndTime     string
	InteractionTime string
	Status          string
}

// Fields maps the record onto FileMaker layout field names.
func (r CallRecord) Fields() map[string]string {
	return map[string]string{
		"CallID":          r.CallID,
		"Duration":        r.Duration,
		"Direction":       r.Direction,
		"PhoneNumber":     r.PhoneNumber,
		"CallStartTime":   r.CallStartTime,
		"CallEndTime":     r.CallEndTime,
		"InteractionTime": r.InteractionTime,
		"Status":          r.Status,
	}
}

// recordClient is the subset of the Data API used by the upsert engine.
type recordClient interface {
	CreateRecord(ctx context.Context, token string, fields map[string]string) (*RecordRef, error)
	FindRecords(ctx context.Context, token string, query map[string]string) ([]RecordRef, error)
	EditRecord(ctx context.Context, token string, ref RecordRef, fields map[string]string) error
}

// Recorder upserts call records keyed on CallID. Repeated deliveries of the
// same call end up in one logical record via find-then-branch; two
// concurrent first deliveries can still both create, which is accepted.
type Recorder struct {
	client  recordClient
	session *Session
	logger  zerolog.Logger
}

// NewRecorder creates an upsert engine on top of an authenticated session.
func NewRecorder(client recordClient, session *Session, logger zerolog.Logger) *Recorder {
	return &Recorder{
		client:  client,
		session: session,
		logger:  logger,
	}
}

// FindByCallID returns the ref of the record whose CallID field matches, or
// nil when no record does. "No records match" is a normal miss, not an error.
func (r *Recorder) FindByCallID(ctx context.Context, callID string) (*RecordRef, error) {
	var refs []RecordRef
	err := r.session.WithAuth(ctx, func(token string) error {
		var findErr error
		refs, findErr = r.client.FindRecords(ctx, token, map[string]string{"CallID": "==" + callID})
		return findErr
	})
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup for call %s failed: %w", callID, err)
	}
	if len(refs) == 0 {
		return nil, nil
	}
	return &refs[0], nil
}

// Upsert writes rec, updating the existing record for its CallID when one
// exists and creating otherwise. An absent CallID skips the lookup and goes
// straight to create. Returns whether a record was created.
func (r *Recorder) Upsert(ctx context.Context, rec CallRecord) (bool, error) {
	var ref *RecordRef
	if rec.CallID != "" {
		found, err := r.FindByCallID(ctx, rec.CallID)
		if err != nil {
			return false, err
		}
		ref = found
	}

	if ref != nil {
		err := r.session.WithAuth(ctx, func(token string) error {
			return r.client.EditRecord(ctx, token, *ref, rec.Fields())
		})
		if err != nil {
			return false, fmt.Errorf("update for call %s failed: %w", rec.CallID, err)
		}
		r.logger.Debug().Str("call_id", rec.CallID).Str("record_id", ref.RecordID).Msg("call record updated")
		return false, nil
	}

	err := r.session.WithAuth(ctx, func(token string) error {
		_, createErr := r.client.CreateRecord(ctx, token, rec.Fields())
		return createErr
	})
	if err != nil {
		return false, fmt.Errorf("create for call %s failed: %w", rec.CallID, err)
	}
	r.logger.Debug().Str("call_id", rec.CallID).Msg("call record created")
	return true, nil
}
