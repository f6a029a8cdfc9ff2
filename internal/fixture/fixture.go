// Package fixture seeds the venue, event and ticket data a run reserves
// against. Provisioning happens exactly once per run, before any attempt is
// scheduled; a provisioning failure is fatal because no attempt is
// meaningful without a valid fixture.
package fixture

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	venueName      = "perf-venue"
	venueAddress   = "123 Performance Street"
	eventName      = "perf-event"
	eventDesc      = "load test event"
	rowsPerSection = 20
	seatsPerRow    = 20
	ticketPrice    = 2800

	// seedConcurrency bounds the parallel POST /api/tickets fan-out.
	seedConcurrency = 50
)

var ErrProvisioning = errors.New("provisioning failed")

// SectionSpec is one seating section in the event-creation payload.
type SectionSpec struct {
	Section     string `json:"section"`
	Rows        int    `json:"rows"`
	SeatsPerRow int    `json:"seatsPerRow"`
}

// Fixture identifies the seeded data every simulated client targets.
// Read-only once provisioning returns.
type Fixture struct {
	EventID     int64
	Sections    []string
	TicketCount int
}

type venueRequest struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Capacity int    `json:"capacity"`
}

type eventRequest struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	EventDate   string        `json:"eventDate"`
	VenueID     int64         `json:"venueId"`
	Sections    []SectionSpec `json:"sections,omitempty"`
}

type createdResponse struct {
	ID int64 `json:"id"`
}

type ticketRequest struct {
	EventID    int64  `json:"eventId"`
	SeatNumber string `json:"seatNumber"`
	Price      int    `json:"price"`
}

// Provisioner creates fixtures through the service's admin endpoints.
type Provisioner struct {
	base   string
	client *http.Client
	// settle is how long to wait after creation calls return, covering the
	// service's asynchronous stream/index materialization. First attempts
	// race the service's readiness without it.
	settle time.Duration
	logger *zap.Logger
}

func NewProvisioner(base string, client *http.Client, settle time.Duration, logger *zap.Logger) *Provisioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provisioner{base: base, client: client, settle: settle, logger: logger}
}

// ProvisionSections creates a venue and an event carrying numSections
// sections of rowsPerSection x seatsPerRow seats each, then waits out the
// settling delay.
func (p *Provisioner) ProvisionSections(ctx context.Context, numSections int) (Fixture, error) {
	if numSections <= 0 {
		return Fixture{}, fmt.Errorf("%w: section count %d", ErrProvisioning, numSections)
	}
	capacity := numSections * rowsPerSection * seatsPerRow

	venueID, err := p.createVenue(ctx, capacity)
	if err != nil {
		return Fixture{}, err
	}

	specs := make([]SectionSpec, numSections)
	names := make([]string, numSections)
	for i := range specs {
		name := fmt.Sprintf("S%d", i)
		specs[i] = SectionSpec{Section: name, Rows: rowsPerSection, SeatsPerRow: seatsPerRow}
		names[i] = name
	}

	eventID, err := p.createEvent(ctx, venueID, specs)
	if err != nil {
		return Fixture{}, err
	}

	p.logger.Info("fixture provisioned",
		zap.Int64("venue_id", venueID),
		zap.Int64("event_id", eventID),
		zap.Int("sections", numSections),
		zap.Int("capacity", capacity))

	p.settleDown(ctx)
	return Fixture{EventID: eventID, Sections: names, TicketCount: capacity}, nil
}

// ProvisionTickets creates a venue, a sectionless event, and a flat pool of
// count individually created tickets (seat numbers A-001..A-count), then
// waits out the settling delay.
func (p *Provisioner) ProvisionTickets(ctx context.Context, count int) (Fixture, error) {
	if count <= 0 {
		return Fixture{}, fmt.Errorf("%w: ticket count %d", ErrProvisioning, count)
	}

	venueID, err := p.createVenue(ctx, count)
	if err != nil {
		return Fixture{}, err
	}
	eventID, err := p.createEvent(ctx, venueID, nil)
	if err != nil {
		return Fixture{}, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(seedConcurrency)
	for i := 1; i <= count; i++ {
		seat := fmt.Sprintf("A-%03d", i)
		g.Go(func() error {
			return p.createTicket(gctx, eventID, seat)
		})
	}
	if err := g.Wait(); err != nil {
		return Fixture{}, err
	}

	p.logger.Info("fixture provisioned",
		zap.Int64("venue_id", venueID),
		zap.Int64("event_id", eventID),
		zap.Int("tickets", count))

	p.settleDown(ctx)
	return Fixture{EventID: eventID, TicketCount: count}, nil
}

func (p *Provisioner) createVenue(ctx context.Context, capacity int) (int64, error) {
	created, err := p.post(ctx, "/api/venues", venueRequest{
		Name:     venueName,
		Address:  venueAddress,
		Capacity: capacity,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: create venue: %v", ErrProvisioning, err)
	}
	return created.ID, nil
}

func (p *Provisioner) createEvent(ctx context.Context, venueID int64, sections []SectionSpec) (int64, error) {
	created, err := p.post(ctx, "/api/events", eventRequest{
		Name:        fmt.Sprintf("%s-%d", eventName, time.Now().UnixMilli()),
		Description: eventDesc,
		EventDate:   time.Now().AddDate(0, 0, 1).Format("2006-01-02"),
		VenueID:     venueID,
		Sections:    sections,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: create event: %v", ErrProvisioning, err)
	}
	return created.ID, nil
}

func (p *Provisioner) createTicket(ctx context.Context, eventID int64, seat string) error {
	if _, err := p.post(ctx, "/api/tickets", ticketRequest{
		EventID:    eventID,
		SeatNumber: seat,
		Price:      ticketPrice,
	}); err != nil {
		return fmt.Errorf("%w: create ticket %s: %v", ErrProvisioning, seat, err)
	}
	return nil
}

func (p *Provisioner) post(ctx context.Context, path string, payload any) (createdResponse, error) {
	var created createdResponse

	body, err := json.Marshal(payload)
	if err != nil {
		return created, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.base+path, bytes.NewReader(body))
	if err != nil {
		return created, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return created, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		io.Copy(io.Discard, resp.Body)
		return created, fmt.Errorf("status %d", resp.StatusCode)
	}
	// Some creation endpoints return an empty body; that's fine as long as
	// the caller does not need the id.
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil && err != io.EOF {
		return created, err
	}
	return created, nil
}

func (p *Provisioner) settleDown(ctx context.Context) {
	if p.settle <= 0 {
		return
	}
	p.logger.Info("waiting for service materialization", zap.Duration("settle", p.settle))
	select {
	case <-ctx.Done():
	case <-time.After(p.settle):
	}
}
