package domain

import "time"

// ShortLink is the persisted mapping from a short code to its destination.
// The code is unique across all links; the unique constraint in the durable
// store is the final arbiter when two writers race on the same code.
type ShortLink struct {
	ID            string     `json:"id"`
	OwnerID       *string    `json:"owner_id,omitempty"`
	OriginalURL   string     `json:"original_url"`
	Code          string     `json:"code"`
	IsActive      bool       `json:"is_active"`
	ClickCount    int64      `json:"click_count"`
	LastClickedAt *time.Time `json:"last_clicked_at,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	MaxClicks     *int64     `json:"max_clicks,omitempty"`
	PasswordHash  *string    `json:"password_hash,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Expired reports whether the link is past its expiration time.
func (l *ShortLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

// Exhausted reports whether the link has reached its click budget.
func (l *ShortLink) Exhausted() bool {
	return l.MaxClicks != nil && l.ClickCount >= *l.MaxClicks
}

// Resolvable reports whether the resolver may redirect through this link.
// Inactive, expired and exhausted links are all treated as absent.
func (l *ShortLink) Resolvable(now time.Time) bool {
	return l.IsActive && !l.Expired(now) && !l.Exhausted()
}
