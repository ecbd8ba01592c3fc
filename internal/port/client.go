// Package port talks to the catalog ingestion API: it exchanges client
// credentials for an access token and upserts entities into blueprints.
package port

import (
	"bytes"
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

// ErrAuthFailed is returned when the credential exchange does not succeed.
var ErrAuthFailed = errors.New("catalog authentication failed")

const maxErrorBody = 4096

// Client is a catalog API client
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	http         *http.Client
	logger       logr.Logger
}

// UpsertResult is the outcome of upserting one entity
type UpsertResult struct {
	Blueprint  string
	Identifier string
	StatusCode int
	Body       string
	Err        error
}

// OK reports whether the upsert succeeded
func (r UpsertResult) OK() bool { return r.Err == nil }

type tokenRequest struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

// NewClient creates a client for the catalog API at baseURL
func NewClient(baseURL, clientID, clientSecret string, httpClient *http.Client, logger logr.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:      baseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		http:         httpClient,
		logger:       logger.WithName("port"),
	}
}

// Authenticate exchanges the client credentials for a bearer token.
// Any outcome other than 200 with a token wraps ErrAuthFailed.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	body, err := json.Marshal(tokenRequest{ClientID: c.clientID, ClientSecret: c.clientSecret})
	if err != nil {
		return "", fmt.Errorf("failed to marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/access_token", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("%w: %d %s", ErrAuthFailed, resp.StatusCode, msg)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("%w: failed to decode token response: %v", ErrAuthFailed, err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("%w: response has no accessToken", ErrAuthFailed)
	}

	c.logger.V(1).Info("authenticated")
	return tr.AccessToken, nil
}

// Upsert sends each entity to blueprint independently, asking the catalog
// to create any related entity that does not exist yet. One result is
// returned per entity, in order; a failure never stops the batch.
func (c *Client) Upsert(ctx context.Context, blueprint string, entities []transform.TargetEntity, token string) []UpsertResult {
	results := make([]UpsertResult, 0, len(entities))
	for _, e := range entities {
		r := c.upsertOne(ctx, blueprint, e, token)
		if r.OK() {
			c.logger.V(1).Info("upserted entity", "blueprint", blueprint, "identifier", r.Identifier)
		} else {
			c.logger.Error(r.Err, "upsert failed", "blueprint", blueprint, "identifier", r.Identifier)
		}
		results = append(results, r)
	}
	return results
}

func (c *Client) upsertOne(ctx context.Context, blueprint string, e transform.TargetEntity, token string) UpsertResult {
	r := UpsertResult{Blueprint: blueprint, Identifier: e.Identifier}

	body, err := json.Marshal(e)
	if err != nil {
		r.Err = fmt.Errorf("failed to marshal entity %s: %w", e.Identifier, err)
		return r
	}

	u := fmt.Sprintf("%s/blueprints/%s/entities?upsert=true&create_missing_related_entities=true",
		c.baseURL, url.PathEscape(blueprint))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		r.Err = fmt.Errorf("failed to create upsert request: %w", err)
		return r
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		r.Err = fmt.Errorf("failed to upsert %s into %s: %w", e.Identifier, blueprint, err)
		return r
	}
	defer resp.Body.Close()

	r.StatusCode = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		r.Body = string(msg)
		r.Err = fmt.Errorf("%s error %d: %s", blueprint, resp.StatusCode, msg)
	}

	return r
}
