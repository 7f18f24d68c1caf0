// Package postgres implements the durable store repositories on pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"shortlink/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the Postgres error code for a unique-constraint hit.
const uniqueViolation = "23505"

// LinkRepository stores short links in Postgres.
type LinkRepository struct {
	pool *pgxpool.Pool
}

var _ domain.LinkRepository = (*LinkRepository)(nil)

// NewLinkRepository creates a LinkRepository on the given pool.
func NewLinkRepository(pool *pgxpool.Pool) *LinkRepository {
	return &LinkRepository{pool: pool}
}

const linkColumns = `id, owner_id, original_url, code, is_active, click_count,
	last_clicked_at, expires_at, max_clicks, password_hash, created_at`

func scanLink(row pgx.Row) (*domain.ShortLink, error) {
	var link domain.ShortLink
	err := row.Scan(
		&link.ID,
		&link.OwnerID,
		&link.OriginalURL,
		&link.Code,
		&link.IsActive,
		&link.ClickCount,
		&link.LastClickedAt,
		&link.ExpiresAt,
		&link.MaxClicks,
		&link.PasswordHash,
		&link.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// FindByCode returns the link for a code, ErrLinkNotFound when absent.
func (r *LinkRepository) FindByCode(ctx context.Context, code string) (*domain.ShortLink, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+linkColumns+` FROM short_links WHERE code = $1`, code)

	link, err := scanLink(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find link by code: %w", err)
	}
	return link, nil
}

// Create persists a new link. The unique constraint on code is the final
// arbiter against racing writers; its violation maps to ErrCodeTaken.
func (r *LinkRepository) Create(ctx context.Context, link *domain.ShortLink) (*domain.ShortLink, error) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO short_links (`+linkColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		link.ID,
		link.OwnerID,
		link.OriginalURL,
		link.Code,
		link.IsActive,
		link.ClickCount,
		link.LastClickedAt,
		link.ExpiresAt,
		link.MaxClicks,
		link.PasswordHash,
		link.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domain.ErrCodeTaken
		}
		return nil, fmt.Errorf("insert link: %w", err)
	}
	return link, nil
}

// Update overwrites the mutable fields of an existing link.
func (r *LinkRepository) Update(ctx context.Context, link *domain.ShortLink) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE short_links
		 SET original_url = $2, is_active = $3, click_count = $4,
		     last_clicked_at = $5, expires_at = $6, max_clicks = $7
		 WHERE code = $1`,
		link.Code,
		link.OriginalURL,
		link.IsActive,
		link.ClickCount,
		link.LastClickedAt,
		link.ExpiresAt,
		link.MaxClicks,
	)
	if err != nil {
		return fmt.Errorf("update link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLinkNotFound
	}
	return nil
}

// CodesInUse reports which of the candidate codes already have a row. One
// round trip regardless of batch size.
func (r *LinkRepository) CodesInUse(ctx context.Context, codes []string) (map[string]bool, error) {
	taken := make(map[string]bool, len(codes))
	if len(codes) == 0 {
		return taken, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT code FROM short_links WHERE code = ANY($1)`, codes)
	if err != nil {
		return nil, fmt.Errorf("codes in use: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan code: %w", err)
		}
		taken[code] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("codes in use: %w", err)
	}
	return taken, nil
}
