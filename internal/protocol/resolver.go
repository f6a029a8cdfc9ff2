package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Resolver turns an accepted reservation into a terminal outcome. The two
// implementations are interchangeable strategies for the same contract: a
// single server-held long-poll, or repeated bounded short-polls. Both treat
// "still pending after the budget" and transport-level timeouts identically
// as TIMEOUT, so a slow service can never be miscounted as CONFIRMED.
type Resolver interface {
	Resolve(ctx context.Context, client *http.Client, base, reservationID string) Outcome
}

// LongPoll issues one GET with an extended wait budget, expecting the server
// to hold the connection (DeferredResult style) until the reservation
// resolves or the server's own deadline elapses. The client budget must
// exceed the server's hold time or held requests get falsely counted as
// TIMEOUT.
type LongPoll struct {
	Timeout time.Duration
}

func (l LongPoll) Resolve(ctx context.Context, client *http.Client, base, reservationID string) Outcome {
	ctx, cancel := context.WithTimeout(ctx, l.Timeout)
	defer cancel()

	state, err := fetchReservation(ctx, client, base, reservationID)
	if err != nil {
		return Outcome{Kind: OutcomeTimeout}
	}
	if out, terminal := terminalOutcome(state); terminal {
		return out
	}
	return Outcome{Kind: OutcomeTimeout}
}

// ShortPoll issues up to MaxAttempts GETs at a fixed interval. Non-terminal
// and failed polls are ignored and the loop continues; exhausting every
// attempt without a terminal state is TIMEOUT.
type ShortPoll struct {
	Interval    time.Duration
	MaxAttempts int
}

func (s ShortPoll) Resolve(ctx context.Context, client *http.Client, base, reservationID string) Outcome {
	timer := time.NewTimer(s.Interval)
	defer timer.Stop()

	for attempt := 0; attempt < s.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return Outcome{Kind: OutcomeTimeout}
		case <-timer.C:
		}
		timer.Reset(s.Interval)

		state, err := fetchReservation(ctx, client, base, reservationID)
		if err != nil {
			continue
		}
		if out, terminal := terminalOutcome(state); terminal {
			return out
		}
	}
	return Outcome{Kind: OutcomeTimeout}
}

func fetchReservation(ctx context.Context, client *http.Client, base, reservationID string) (reservationState, error) {
	var state reservationState

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/reservations/"+reservationID, nil)
	if err != nil {
		return state, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return state, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return state, fmt.Errorf("poll reservation %s: status %d", reservationID, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return state, fmt.Errorf("poll reservation %s: %w", reservationID, err)
	}
	return state, nil
}

// terminalOutcome maps a reservation state to an outcome. FAILED is a
// terminal non-confirmation from the service and counts as REJECTED.
func terminalOutcome(state reservationState) (Outcome, bool) {
	switch state.Status {
	case statusConfirmed:
		return Outcome{Kind: OutcomeConfirmed, Seats: state.AllocatedSeats}, true
	case statusRejected, statusFailed:
		return Outcome{Kind: OutcomeRejected}, true
	default:
		return Outcome{}, false
	}
}
