// Package protocol executes the two-phase reservation flow against the
// ticketing API: submit a reservation (expect 202 Accepted), then resolve its
// terminal state by long-poll or repeated short-poll. Every attempt yields
// exactly one Outcome; failures are classified, never retried.
package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sentinel submit failures. Both classify the attempt as SUBMIT_FAILED; the
// distinction only matters for logging.
var (
	ErrSubmitRejected  = errors.New("submission not accepted")
	ErrMalformedAccept = errors.New("accept body missing reservation id")
)

// Config describes one attempt's shape; it is read-only during a run.
type Config struct {
	Endpoints Endpoints
	EventID   int64
	// Sections to spread reservations across. Empty means "any section":
	// the request omits the section field and lets the service choose.
	Sections  []string
	SeatCount int
	// SubmitOnly fires the submission and skips resolution entirely
	// (fire-and-forget throughput runs).
	SubmitOnly bool
}

// Client runs the reservation protocol for one simulated user at a time.
// A single Client is shared by all workers; per-attempt state lives on the
// stack.
type Client struct {
	cfg      Config
	pool     *ClientPool
	resolver Resolver
	logger   *zap.Logger
}

func NewClient(cfg Config, pool *ClientPool, resolver Resolver, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, pool: pool, resolver: resolver, logger: logger}
}

// Run executes one complete attempt for the given client index and returns
// its terminal result. It never returns an error: every failure mode is a
// classified outcome so the scheduler can keep going.
func (c *Client) Run(ctx context.Context, index uint64) Result {
	httpClient := c.pool.Get()
	base := c.cfg.Endpoints.Pick(index)

	reservation := ReservationRequest{
		EventID:   c.cfg.EventID,
		SeatCount: c.cfg.SeatCount,
		UserID:    fmt.Sprintf("vu-%d-%s", index, uuid.NewString()),
	}
	if len(c.cfg.Sections) > 0 {
		reservation.Section = c.cfg.Sections[rand.Intn(len(c.cfg.Sections))]
	}

	start := time.Now()
	reservationID, err := c.submit(ctx, httpClient, base, reservation)
	submitLatency := time.Since(start)

	if err != nil {
		c.logger.Debug("submit failed",
			zap.Uint64("index", index),
			zap.String("endpoint", base),
			zap.Error(err))
		return Result{Outcome: Outcome{Kind: OutcomeSubmitFailed}, Submit: submitLatency}
	}

	if c.cfg.SubmitOnly {
		return Result{Outcome: Outcome{Kind: OutcomeAccepted}, Submit: submitLatency}
	}

	resolveStart := time.Now()
	outcome := c.resolver.Resolve(ctx, httpClient, base, reservationID)
	return Result{
		Outcome: outcome,
		Submit:  submitLatency,
		Resolve: time.Since(resolveStart),
	}
}

// submit POSTs the reservation and extracts the reservation id from the 202
// body. An accepted response with an absent or blank id is a protocol
// violation by the service and fails the attempt; it is not retried.
func (c *Client) submit(ctx context.Context, client *http.Client, base string, r ReservationRequest) (string, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal reservation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/reservations", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("%w: status %d", ErrSubmitRejected, resp.StatusCode)
	}

	var accept acceptResponse
	if err := json.NewDecoder(resp.Body).Decode(&accept); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedAccept, err)
	}
	id := strings.TrimSpace(accept.ReservationID)
	if id == "" {
		return "", ErrMalformedAccept
	}
	return id, nil
}
