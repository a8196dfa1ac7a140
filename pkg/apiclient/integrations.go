package apiclient

import "time"

// Integration is one configured destination. Credentials are write-only and
// never returned by the server.
type Integration struct {
	Destination  string     `json:"destination"`
	Enabled      bool       `json:"enabled"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	SyncCount    int        `json:"sync_count"`
	FailureCount int        `json:"failure_count"`
}

// PutIntegrationRequest configures a destination.
type PutIntegrationRequest struct {
	Enabled  *bool             `json:"enabled,omitempty"`
	Settings map[string]string `json:"settings"`
	Validate bool              `json:"validate,omitempty"`
}

// ListIntegrations returns the user's configured destinations.
func (c *Client) ListIntegrations() ([]Integration, error) {
	return listResources[Integration](c, "/v1/integrations/")
}

// PutIntegration stores credentials for a destination.
func (c *Client) PutIntegration(name string, req *PutIntegrationRequest) (*Integration, error) {
	return updateResource[Integration](c, resourcePath("/v1/integrations/%s", name), req)
}

// DeleteIntegration removes a destination's credentials.
func (c *Client) DeleteIntegration(name string) error {
	return deleteResource(c, resourcePath("/v1/integrations/%s", name))
}

// ListDestinations returns the destination names the server ships.
func (c *Client) ListDestinations() ([]string, error) {
	var resp struct {
		Destinations []string `json:"destinations"`
	}
	if err := c.get("/v1/integrations/destinations", &resp); err != nil {
		return nil, err
	}
	return resp.Destinations, nil
}
