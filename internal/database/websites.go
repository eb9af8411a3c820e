package database

import (
	"context"
	"errors"

	"spx-studio/internal/models"

	"github.com/jackc/pgx/v5"
)

var ErrDomainTaken = errors.New("domain is already used by another website")

const websiteColumns = `id, user_id, name, description, html_content, css_content, js_content, is_published, domain, last_modified`

func scanWebsite(row pgx.Row) (*models.Website, error) {
	var site models.Website
	err := row.Scan(
		&site.ID, &site.UserID, &site.Name, &site.Description,
		&site.HTMLContent, &site.CSSContent, &site.JSContent,
		&site.IsPublished, &site.Domain, &site.LastModified,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &site, nil
}

func websiteError(err error) error {
	if code, _ := pgErrorCode(err); code == pgUniqueViolation {
		return ErrDomainTaken
	}
	return err
}

func (q *Queries) ListWebsitesByUser(ctx context.Context, userID int64) ([]models.Website, error) {
	query := `SELECT ` + websiteColumns + ` FROM websites WHERE user_id = $1 ORDER BY last_modified DESC`
	rows, err := q.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []models.Website
	for rows.Next() {
		site, err := scanWebsite(rows)
		if err != nil {
			return nil, err
		}
		sites = append(sites, *site)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if sites == nil {
		return []models.Website{}, nil
	}

	return sites, nil
}

func (q *Queries) GetWebsiteByID(ctx context.Context, id string) (*models.Website, error) {
	query := `SELECT ` + websiteColumns + ` FROM websites WHERE id = $1`
	return scanWebsite(q.db.QueryRow(ctx, query, id))
}

type CreateWebsiteParams struct {
	ID          string
	UserID      int64
	Name        string
	Description *string
	HTMLContent string
	CSSContent  string
	JSContent   string
	IsPublished bool
	Domain      *string
}

func (q *Queries) CreateWebsite(ctx context.Context, arg CreateWebsiteParams) (*models.Website, error) {
	query := `
		INSERT INTO websites (id, user_id, name, description, html_content, css_content, js_content, is_published, domain)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + websiteColumns
	site, err := scanWebsite(q.db.QueryRow(ctx, query,
		arg.ID, arg.UserID, arg.Name, arg.Description,
		arg.HTMLContent, arg.CSSContent, arg.JSContent, arg.IsPublished, arg.Domain,
	))
	if err != nil {
		return nil, websiteError(err)
	}
	return site, nil
}

// UpdateWebsiteParams carries a partial update; nil fields keep their value.
// An empty Domain unbinds the custom domain.
type UpdateWebsiteParams struct {
	ID          string
	UserID      int64
	Name        *string
	Description *string
	HTMLContent *string
	CSSContent  *string
	JSContent   *string
	IsPublished *bool
	Domain      *string
}

// UpdateWebsite returns nil, nil when the website does not exist or belongs
// to someone else.
func (q *Queries) UpdateWebsite(ctx context.Context, arg UpdateWebsiteParams) (*models.Website, error) {
	query := `
		UPDATE websites SET
			name = COALESCE($3, name),
			description = COALESCE($4, description),
			html_content = COALESCE($5, html_content),
			css_content = COALESCE($6, css_content),
			js_content = COALESCE($7, js_content),
			is_published = COALESCE($8, is_published),
			domain = CASE WHEN $9::TEXT IS NULL THEN domain ELSE NULLIF($9, '') END,
			last_modified = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + websiteColumns
	site, err := scanWebsite(q.db.QueryRow(ctx, query,
		arg.ID, arg.UserID, arg.Name, arg.Description,
		arg.HTMLContent, arg.CSSContent, arg.JSContent, arg.IsPublished, arg.Domain,
	))
	if err != nil {
		return nil, websiteError(err)
	}
	return site, nil
}

func (q *Queries) DeleteWebsite(ctx context.Context, id string, userID int64) (bool, error) {
	query := `DELETE FROM websites WHERE id = $1 AND user_id = $2`
	res, err := q.db.Exec(ctx, query, id, userID)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

// CountWebsiteDomains counts the user's websites bound to a custom domain,
// ignoring excludeID so a site can keep or change its own domain.
func (q *Queries) CountWebsiteDomains(ctx context.Context, userID int64, excludeID string) (int, error) {
	query := `SELECT COUNT(*) FROM websites WHERE user_id = $1 AND domain IS NOT NULL AND id <> $2`
	var count int
	err := q.db.QueryRow(ctx, query, userID, excludeID).Scan(&count)
	return count, err
}
