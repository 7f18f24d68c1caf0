package postgres

import (
	"context"
	"fmt"

	"shortlink/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ClickLogRepository appends click logs to Postgres.
type ClickLogRepository struct {
	pool *pgxpool.Pool
}

var _ domain.ClickLogRepository = (*ClickLogRepository)(nil)

// NewClickLogRepository creates a ClickLogRepository on the given pool.
func NewClickLogRepository(pool *pgxpool.Pool) *ClickLogRepository {
	return &ClickLogRepository{pool: pool}
}

// Create inserts one click log row.
func (r *ClickLogRepository) Create(ctx context.Context, log *domain.ClickLog) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO click_logs (
			id, link_id, clicked_at, ip_address, user_agent,
			country, city, device, browser, os,
			referrer, referrer_type, social_platform,
			utm_source, utm_medium, utm_campaign, utm_term, utm_content,
			gclid, fbclid, msclkid, session_id, is_bot
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23
		)`,
		log.ID,
		log.LinkID,
		log.ClickedAt,
		log.IPAddress,
		log.UserAgent,
		log.Country,
		log.City,
		log.Device,
		log.Browser,
		log.OS,
		log.Referrer,
		log.ReferrerType,
		log.SocialPlatform,
		log.UTMSource,
		log.UTMMedium,
		log.UTMCampaign,
		log.UTMTerm,
		log.UTMContent,
		log.GClid,
		log.FBClid,
		log.MSClkid,
		log.SessionID,
		log.IsBot,
	)
	if err != nil {
		return fmt.Errorf("insert click log: %w", err)
	}
	return nil
}
