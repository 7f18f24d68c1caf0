package domain

import "context"

// LinkRepository is the durable-store contract for short links.
type LinkRepository interface {
	// FindByCode returns the link for a code, ErrLinkNotFound when absent.
	FindByCode(ctx context.Context, code string) (*ShortLink, error)

	// Create persists a new link. Returns ErrCodeTaken when the unique
	// constraint on code rejects the row.
	Create(ctx context.Context, link *ShortLink) (*ShortLink, error)

	// Update overwrites the mutable fields of an existing link.
	Update(ctx context.Context, link *ShortLink) error

	// CodesInUse reports which of the given candidate codes are already
	// assigned to a link.
	CodesInUse(ctx context.Context, codes []string) (map[string]bool, error)
}

// ClickLogRepository is the durable-store contract for click logs.
type ClickLogRepository interface {
	Create(ctx context.Context, log *ClickLog) error
}
