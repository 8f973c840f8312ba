package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/example/maintrack/internal/models"
)

// Kind classifies why a remote call failed.
type Kind string

const (
	// KindNetwork means the upstream could not be reached or did not answer.
	KindNetwork Kind = "network"
	// KindRejected means the upstream answered and refused the change.
	KindRejected Kind = "rejected"
)

// SyncError is returned for every failed upstream call.
type SyncError struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *SyncError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s (%d): %s", e.Kind, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("upstream unreachable: %v", e.Err)
	}
	return "upstream unreachable"
}

func (e *SyncError) Unwrap() error { return e.Err }

// Client talks to another board API instance that owns the data. It implements
// lifecycle.StageSyncer and lifecycle.Loader for replica deployments.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient constructs a client targeting the provided base URL. The timeout bounds
// every call so a stalled upstream still resolves into a failure.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// PersistStageChange asks the upstream to move request id to stage.
func (c *Client) PersistStageChange(ctx context.Context, id string, stage models.Stage) error {
	body, _ := json.Marshal(map[string]any{"stage": stage})
	endpoint := fmt.Sprintf("%s/api/requests/%s/stage", c.baseURL, url.PathEscape(id))
	return c.do(ctx, http.MethodPatch, endpoint, bytes.NewReader(body), nil)
}

// LoadRequests fetches the full request collection.
func (c *Client) LoadRequests(ctx context.Context) ([]models.MaintenanceRequest, error) {
	var requests []models.MaintenanceRequest
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/api/requests", nil, &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

// ListEquipment fetches equipment records.
func (c *Client) ListEquipment(ctx context.Context) ([]models.Equipment, error) {
	var equipment []models.Equipment
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/api/equipment", nil, &equipment); err != nil {
		return nil, err
	}
	return equipment, nil
}

// ListTeams fetches maintenance teams.
func (c *Client) ListTeams(ctx context.Context) ([]models.Team, error) {
	var teams []models.Team
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/api/teams", nil, &teams); err != nil {
		return nil, err
	}
	return teams, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &SyncError{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		if payload.Error == "" {
			payload.Error = resp.Status
		}
		kind := KindRejected
		if resp.StatusCode >= 500 {
			kind = KindNetwork
		}
		return &SyncError{Kind: kind, StatusCode: resp.StatusCode, Message: payload.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s response", endpoint)
	}
	return nil
}
