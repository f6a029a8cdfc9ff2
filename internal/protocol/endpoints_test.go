package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEndpoints(t *testing.T) {
	eps, err := ParseEndpoints("http://a:8080, http://b:8082/ ,http://c:8083")
	require.NoError(t, err)
	assert.Equal(t, Endpoints{"http://a:8080", "http://b:8082", "http://c:8083"}, eps)

	_, err = ParseEndpoints("  , ,")
	assert.Error(t, err)

	single, err := ParseEndpoints("http://localhost:8080")
	require.NoError(t, err)
	assert.Len(t, single, 1)
}

func TestPickIsDeterministicRoundRobin(t *testing.T) {
	eps := Endpoints{"a", "b", "c"}

	for _, tc := range []struct {
		index uint64
		want  string
	}{
		{0, "a"}, {1, "b"}, {2, "c"}, {3, "a"}, {4, "b"}, {100, "b"},
	} {
		assert.Equal(t, tc.want, eps.Pick(tc.index), "index %d", tc.index)
	}

	// Same index, same answer, every time.
	for i := 0; i < 10; i++ {
		assert.Equal(t, "c", eps.Pick(5))
	}
}
