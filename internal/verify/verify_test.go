package verify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspectCleanRun(t *testing.T) {
	rep := Inspect([]TicketRecord{
		{SeatNumber: "A-001", Status: "RESERVED"},
		{SeatNumber: "A-002", Status: "SOLD"},
		{SeatNumber: "A-003", Status: "AVAILABLE"},
	})

	assert.Equal(t, 3, rep.TotalTickets)
	assert.Equal(t, 2, rep.AllocatedCount)
	assert.Equal(t, 1, rep.AvailableCount)
	assert.Empty(t, rep.DuplicateSeats)
	assert.True(t, rep.Passed())
	assert.False(t, rep.SoldOut())
}

func TestInspectDetectsDuplicates(t *testing.T) {
	rep := Inspect([]TicketRecord{
		{SeatNumber: "A-001", Status: "RESERVED"},
		{SeatNumber: "A-001", Status: "SOLD"},
		{SeatNumber: "B-007", Status: "RESERVED"},
		{SeatNumber: "B-007", Status: "RESERVED"},
		{SeatNumber: "B-007", Status: "RESERVED"},
		{SeatNumber: "C-003", Status: "RESERVED"},
	})

	assert.False(t, rep.Passed())
	assert.Equal(t, []string{"A-001", "B-007"}, rep.DuplicateSeats, "sorted, each seat listed once")
	assert.Equal(t, 6, rep.AllocatedCount)
}

func TestInspectDuplicateSeatNotDuplicateWhenOneSideFree(t *testing.T) {
	// The same seat number appearing available and allocated is not a
	// collision; only two allocated claims are.
	rep := Inspect([]TicketRecord{
		{SeatNumber: "A-001", Status: "AVAILABLE"},
		{SeatNumber: "A-001", Status: "RESERVED"},
		{SeatNumber: "A-002", Status: "CANCELLED"},
	})
	assert.True(t, rep.Passed())
	assert.Equal(t, 2, rep.AvailableCount)
}

func TestInspectEmpty(t *testing.T) {
	rep := Inspect(nil)
	assert.True(t, rep.Passed())
	assert.False(t, rep.SoldOut())
	assert.NotNil(t, rep.DuplicateSeats, "stable JSON output needs [] not null")
}

func TestInspectSoldOut(t *testing.T) {
	rep := Inspect([]TicketRecord{
		{SeatNumber: "A-001", Status: "RESERVED"},
		{SeatNumber: "A-002", Status: "SOLD"},
	})
	assert.True(t, rep.SoldOut())
}

func TestVerifierFetchesAndInspects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tickets", r.URL.Path)
		require.Equal(t, "7", r.URL.Query().Get("eventId"))
		json.NewEncoder(w).Encode([]TicketRecord{
			{SeatNumber: "A-001", Status: "RESERVED"},
			{SeatNumber: "A-001", Status: "RESERVED"},
		})
	}))
	defer srv.Close()

	v := NewVerifier(srv.URL, &http.Client{Timeout: time.Second}, nil)
	rep, err := v.Verify(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"A-001"}, rep.DuplicateSeats)
}

func TestVerifierErrorPaths(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	v := NewVerifier(srv.URL, &http.Client{Timeout: time.Second}, nil)
	_, err := v.Verify(context.Background(), 1)
	assert.Error(t, err)

	v = NewVerifier("http://127.0.0.1:1", &http.Client{Timeout: time.Second}, nil)
	_, err = v.Verify(context.Background(), 1)
	assert.Error(t, err)
}
