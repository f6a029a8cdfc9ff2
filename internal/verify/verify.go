// Package verify is the run's correctness oracle. After every attempt has
// drained it fetches the event's full ticket state and checks that no seat
// number is claimed by more than one allocated ticket. An empty finding set
// is the primary pass condition of any contention scenario; latency
// thresholds are secondary.
package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"go.uber.org/zap"
)

// TicketRecord is the service's view of one seat. Read-only here.
type TicketRecord struct {
	SeatNumber string `json:"seatNumber"`
	Status     string `json:"status"`
}

// Allocated reports whether the ticket is held by a reservation. Anything
// outside RESERVED/SOLD (AVAILABLE, CANCELLED) counts as free inventory.
func (t TicketRecord) Allocated() bool {
	return t.Status == "RESERVED" || t.Status == "SOLD"
}

// Report is the outcome of the duplicate-seat reconciliation.
type Report struct {
	TotalTickets   int      `json:"totalTickets"`
	AllocatedCount int      `json:"allocatedCount"`
	AvailableCount int      `json:"availableCount"`
	DuplicateSeats []string `json:"duplicateSeats"`
}

// Passed is true when no seat is multiply allocated.
func (r Report) Passed() bool { return len(r.DuplicateSeats) == 0 }

// SoldOut is true when no inventory is left, the expected end state of a
// saturation run.
func (r Report) SoldOut() bool { return r.TotalTickets > 0 && r.AvailableCount == 0 }

// Inspect partitions ticket records into available and allocated, groups the
// allocated ones by seat number, and reports every seat claimed more than
// once. Pure; the duplicate list comes back sorted for stable output.
func Inspect(records []TicketRecord) Report {
	rep := Report{TotalTickets: len(records), DuplicateSeats: []string{}}

	claims := make(map[string]int, len(records))
	for _, t := range records {
		if !t.Allocated() {
			rep.AvailableCount++
			continue
		}
		rep.AllocatedCount++
		claims[t.SeatNumber]++
	}
	for seat, n := range claims {
		if n > 1 {
			rep.DuplicateSeats = append(rep.DuplicateSeats, seat)
		}
	}
	sort.Strings(rep.DuplicateSeats)
	return rep
}

// Verifier fetches final ticket state over the service's HTTP contract.
type Verifier struct {
	base   string
	client *http.Client
	logger *zap.Logger
}

func NewVerifier(base string, client *http.Client, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{base: base, client: client, logger: logger}
}

// Verify runs the reconciliation for eventID. It must only be called after
// the run has fully drained; mid-run ticket state would be meaningless.
func (v *Verifier) Verify(ctx context.Context, eventID int64) (Report, error) {
	url := fmt.Sprintf("%s/api/tickets?eventId=%d", v.base, eventID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Report{}, err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return Report{}, fmt.Errorf("fetch ticket state: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return Report{}, fmt.Errorf("fetch ticket state: status %d", resp.StatusCode)
	}

	var records []TicketRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return Report{}, fmt.Errorf("decode ticket state: %w", err)
	}

	rep := Inspect(records)
	v.logger.Info("duplicate-seat verification",
		zap.Int("total", rep.TotalTickets),
		zap.Int("allocated", rep.AllocatedCount),
		zap.Int("available", rep.AvailableCount),
		zap.Strings("duplicates", rep.DuplicateSeats))
	return rep, nil
}
