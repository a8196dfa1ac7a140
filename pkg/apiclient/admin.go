package apiclient

// Admin API methods. All of these require an access token with the admin
// role; the server responds 403 otherwise.

// TierChangeResult is returned by SetUserTier.
type TierChangeResult struct {
	Tier           string `json:"tier"`
	PagesScheduled int    `json:"pages_scheduled"`
}

// QuotaResetResult is returned by ResetUserQuota.
type QuotaResetResult struct {
	Quota          QuotaStatus `json:"quota"`
	PagesScheduled int         `json:"pages_scheduled"`
}

// SetUserTier changes a user's subscription tier. Upgrades immediately free
// quota headroom and schedule any deferred pages.
func (c *Client) SetUserTier(userID, tier string) (*TierChangeResult, error) {
	var result TierChangeResult
	err := c.put("/v1/admin/users/"+userID+"/tier", map[string]string{"tier": tier}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ResetUserQuota starts a fresh billing period for the user immediately.
func (c *Client) ResetUserQuota(userID string) (*QuotaResetResult, error) {
	var result QuotaResetResult
	if err := c.post("/v1/admin/users/"+userID+"/quota/reset", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
