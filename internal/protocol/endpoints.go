package protocol

import (
	"fmt"
	"strings"
)

// Endpoints is a non-empty ordered list of backend base URLs. Attempts are
// spread across instances by client index, matching the round-robin the
// scaled fire-and-forget script does with __VU % ENDPOINTS.length.
type Endpoints []string

// ParseEndpoints splits a comma-separated endpoint list, trimming whitespace
// and trailing slashes.
func ParseEndpoints(s string) (Endpoints, error) {
	var eps Endpoints
	for _, part := range strings.Split(s, ",") {
		p := strings.TrimRight(strings.TrimSpace(part), "/")
		if p == "" {
			continue
		}
		eps = append(eps, p)
	}
	if len(eps) == 0 {
		return nil, fmt.Errorf("endpoint list %q contains no usable address", s)
	}
	return eps, nil
}

// Pick maps a client index to a backend instance. Deterministic and
// stateless: the same index always lands on the same instance.
func (e Endpoints) Pick(index uint64) string {
	return e[index%uint64(len(e))]
}
