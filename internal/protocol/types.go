package protocol

import "time"

// Wire types for the reservation API.

type ReservationRequest struct {
	EventID   int64  `json:"eventId"`
	Section   string `json:"section,omitempty"`
	SeatCount int    `json:"seatCount"`
	UserID    string `json:"userId"`
}

type acceptResponse struct {
	ReservationID string `json:"reservationId"`
}

type reservationState struct {
	ReservationID  string   `json:"reservationId"`
	Status         string   `json:"status"`
	AllocatedSeats []string `json:"allocatedSeats"`
}

const (
	statusPending   = "PENDING"
	statusConfirmed = "CONFIRMED"
	statusRejected  = "REJECTED"
	statusFailed    = "FAILED"
)

// OutcomeKind is the terminal classification of one attempt.
type OutcomeKind int

const (
	OutcomeConfirmed OutcomeKind = iota
	OutcomeRejected
	OutcomeTimeout
	OutcomeSubmitFailed
	// OutcomeAccepted is produced only in submit-only mode: the submission
	// was accepted and resolution was intentionally skipped.
	OutcomeAccepted

	outcomeKinds
)

// Kinds lists every outcome kind, in reporting order.
func Kinds() []OutcomeKind {
	ks := make([]OutcomeKind, 0, outcomeKinds)
	for k := OutcomeKind(0); k < outcomeKinds; k++ {
		ks = append(ks, k)
	}
	return ks
}

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeConfirmed:
		return "CONFIRMED"
	case OutcomeRejected:
		return "REJECTED"
	case OutcomeTimeout:
		return "TIMEOUT"
	case OutcomeSubmitFailed:
		return "SUBMIT_FAILED"
	case OutcomeAccepted:
		return "ACCEPTED"
	default:
		return "UNKNOWN"
	}
}

// Outcome is the single terminal result of one protocol execution.
type Outcome struct {
	Kind  OutcomeKind
	Seats []string // allocated seats, CONFIRMED only
}

// Result carries the outcome of one attempt plus its phase latencies.
// Resolve is zero when resolution was never reached (SUBMIT_FAILED, ACCEPTED).
type Result struct {
	Outcome Outcome
	Submit  time.Duration
	Resolve time.Duration
}

// EndToEnd is the combined submit + resolution latency.
func (r Result) EndToEnd() time.Duration { return r.Submit + r.Resolve }

// Resolved reports whether the attempt reached the resolution phase.
func (r Result) Resolved() bool {
	return r.Outcome.Kind != OutcomeSubmitFailed && r.Outcome.Kind != OutcomeAccepted
}
