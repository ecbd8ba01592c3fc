// Package probe checks that the source and catalog APIs are reachable.
package probe

import (
	"context"
	"net/http"

	"github.com/blackwell-systems/catalog-sync/internal/config"
)

// Status represents the reachability of an endpoint
type Status int

const (
	StatusUnknown Status = iota
	StatusUp
	StatusDown
)

func (s Status) String() string {
	switch s {
	case StatusUp:
		return "up"
	case StatusDown:
		return "down"
	default:
		return "unknown"
	}
}

// EndpointStatus is the result of probing one endpoint
type EndpointStatus struct {
	URL        string
	Status     Status
	StatusCode int
}

// StackStatus represents the status of both ends of the sync
type StackStatus struct {
	Source EndpointStatus
	Target EndpointStatus
}

// Endpoints probes the source search API and the catalog API
func Endpoints(ctx context.Context, client *http.Client, cfg *config.Config) *StackStatus {
	return &StackStatus{
		// An unauthenticated search still proves the API answers.
		Source: Check(ctx, client, cfg.Source.Host+"/v1/search"),
		Target: Check(ctx, client, cfg.Target.BaseURL+"/auth/access_token"),
	}
}

// Check issues a GET against url. Any response below 500 counts as up:
// the APIs answer unauthenticated or wrong-method probes with 401 or 405.
func Check(ctx context.Context, client *http.Client, url string) EndpointStatus {
	result := EndpointStatus{URL: url, Status: StatusUnknown}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return result
	}

	resp, err := client.Do(req)
	if err != nil {
		result.Status = StatusDown
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	if resp.StatusCode < 500 {
		result.Status = StatusUp
	} else {
		result.Status = StatusDown
	}

	return result
}
