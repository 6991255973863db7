package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// HealthReport is the /health payload plus the wrapper status.
type HealthReport struct {
	Status string         `json:"status"`
	Detail map[string]any `json:"detail"`
}

// Health checks the orchestrator's health endpoint. The body is decoded
// whatever the status code: a degraded service answers 200 and a dead
// database 503, with the verdict in the report's Status field either way.
func (c *Client) Health() (*HealthReport, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var env struct {
		Status string         `json:"status"`
		Data   map[string]any `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}
	return &HealthReport{Status: env.Status, Detail: env.Data}, nil
}
