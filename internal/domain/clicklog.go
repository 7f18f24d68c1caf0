package domain

import "time"

// ClickLog is an immutable, append-only record of a single resolution.
// Attribute fields are filled by the analytics extractor; Country and City
// stay empty until a geolocation backend is wired in.
type ClickLog struct {
	ID             string    `json:"id"`
	LinkID         string    `json:"link_id"`
	ClickedAt      time.Time `json:"clicked_at"`
	IPAddress      string    `json:"ip_address"`
	UserAgent      string    `json:"user_agent"`
	Country        string    `json:"country,omitempty"`
	City           string    `json:"city,omitempty"`
	Device         string    `json:"device"`
	Browser        string    `json:"browser"`
	OS             string    `json:"os"`
	Referrer       string    `json:"referrer,omitempty"`
	ReferrerType   string    `json:"referrer_type"`
	SocialPlatform string    `json:"social_platform,omitempty"`
	UTMSource      string    `json:"utm_source,omitempty"`
	UTMMedium      string    `json:"utm_medium,omitempty"`
	UTMCampaign    string    `json:"utm_campaign,omitempty"`
	UTMTerm        string    `json:"utm_term,omitempty"`
	UTMContent     string    `json:"utm_content,omitempty"`
	GClid          string    `json:"gclid,omitempty"`
	FBClid         string    `json:"fbclid,omitempty"`
	MSClkid        string    `json:"msclkid,omitempty"`
	SessionID      string    `json:"session_id,omitempty"`
	IsBot          bool      `json:"is_bot"`
}
