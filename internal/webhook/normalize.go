package webhook

import (
	"github.com/dialstack/callbridge/internal/filemaker"
	"github.com/dialstack/callbridge/internal/format"
	"github.com/dialstack/callbridge/internal/zoom"
)

// normalize maps a recognized call event onto the record written to
// FileMaker. The second return is false for events this service ignores.
func (h *Handler) normalize(event string, call *zoom.CallLog) (filemaker.CallRecord, bool) {
	switch event {
	case zoom.EventCallLogCreated, zoom.EventCallerLogCompleted, zoom.EventCalleeLogCompleted:
		phone := call.Caller.PhoneNumber
		if phone == "" {
			phone = call.Callee.PhoneNumber
		}
		start := format.Timestamp(call.StartTime)
		if start == "" {
			start = format.Timestamp(call.DateTime)
		}
		return filemaker.CallRecord{
			CallID:          call.BusinessID(),
			Duration:        format.Duration(call.Duration),
			Direction:       call.Direction,
			PhoneNumber:     phone,
			CallStartTime:   start,
			CallEndTime:     format.Timestamp(call.EndTime),
			InteractionTime: start,
			Status:          filemaker.StatusUnhandled,
		}, true

	case zoom.EventCalleeMissed:
		rec := filemaker.CallRecord{
			CallID:          call.BusinessID(),
			Duration:        format.Duration(0),
			Direction:       "inbound",
			PhoneNumber:     call.Caller.PhoneNumber,
			CallStartTime:   format.Timestamp(call.DateTime),
			InteractionTime: format.Timestamp(call.DateTime),
			Status:          filemaker.StatusUnhandled,
		}
		// Whether a missed call gets an end time is a deployment choice.
		if h.missedCallEndTime {
			rec.CallEndTime = format.Timestamp(call.DateTime)
		}
		return rec, true

	default:
		return filemaker.CallRecord{}, false
	}
}
