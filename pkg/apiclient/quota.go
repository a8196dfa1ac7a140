package apiclient

import "time"

// QuotaStatus is the user's OCR allowance for the current billing period.
type QuotaStatus struct {
	Used         int       `json:"used"`
	Limit        int       `json:"limit"`
	Remaining    int       `json:"remaining"`
	Unlimited    bool      `json:"unlimited"`
	PeriodStart  time.Time `json:"period_start"`
	PeriodEnd    time.Time `json:"period_end"`
	Tier         string    `json:"tier"`
	PendingQuota int64     `json:"pending_quota_pages"`
}

// GetQuotaStatus returns the current user's quota status.
func (c *Client) GetQuotaStatus() (*QuotaStatus, error) {
	return getResource[QuotaStatus](c, "/v1/quota/status")
}
