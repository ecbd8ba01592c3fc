// Package konnect fetches entities from the control-plane search API.
package konnect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/go-logr/logr"

	"github.com/blackwell-systems/catalog-sync/internal/transform"
)

// ErrUnexpectedStatus is returned when the search API answers with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected status from search API")

// ErrMalformedRecord is returned for a search record that does not decode.
var ErrMalformedRecord = errors.New("malformed search record")

// maxErrorBody bounds how much of a failed response body is kept for diagnostics.
const maxErrorBody = 4096

// Client queries the search API
type Client struct {
	host   string
	token  string
	http   *http.Client
	logger logr.Logger
}

// FetchResult is the outcome of fetching one entity type. Entities is
// never nil; on failure it is empty and Err says why. Records that could
// not be decoded are left out of Entities and listed in DecodeErrs.
type FetchResult struct {
	Type       string
	Entities   []transform.RawEntity
	Err        error
	DecodeErrs []error
}

type searchResponse struct {
	Data []json.RawMessage `json:"data"`
}

// NewClient creates a client for the search API at host
func NewClient(host, token string, httpClient *http.Client, logger logr.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		host:   host,
		token:  token,
		http:   httpClient,
		logger: logger.WithName("konnect"),
	}
}

// FetchEntities returns every entity of the given type. Failures degrade
// to an empty result carrying the error; they are never fatal.
func (c *Client) FetchEntities(ctx context.Context, typ string) FetchResult {
	result := FetchResult{Type: typ, Entities: []transform.RawEntity{}}

	records, err := c.fetch(ctx, typ)
	if err != nil {
		c.logger.Error(err, "fetch failed", "type", typ)
		result.Err = fmt.Errorf("failed to fetch %s: %w", typ, err)
		return result
	}

	for i, raw := range records {
		var e transform.RawEntity
		if err := json.Unmarshal(raw, &e); err != nil {
			err = fmt.Errorf("%s record %d: %w: %v", typ, i, ErrMalformedRecord, err)
			c.logger.Error(err, "skipping record", "type", typ)
			result.DecodeErrs = append(result.DecodeErrs, err)
			continue
		}
		result.Entities = append(result.Entities, e)
	}

	c.logger.V(1).Info("fetched entities", "type", typ, "count", len(result.Entities), "malformed", len(result.DecodeErrs))
	return result
}

func (c *Client) fetch(ctx context.Context, typ string) ([]json.RawMessage, error) {
	u := fmt.Sprintf("%s/v1/search?q=%s", c.host, url.QueryEscape("type:"+typ))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call search API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, body)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	return sr.Data, nil
}
