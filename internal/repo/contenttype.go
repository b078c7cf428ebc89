package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/crucial707/audit-search/internal/models"
)

// ErrContentTypeNotFound is returned when no content type row matches.
var ErrContentTypeNotFound = errors.New("content type not found")

// ContentTypeRepo reads the entity type table.
type ContentTypeRepo struct {
	db *sql.DB
}

// NewContentTypeRepo returns a new ContentTypeRepo.
func NewContentTypeRepo(db *sql.DB) *ContentTypeRepo {
	return &ContentTypeRepo{db: db}
}

// ListByApp returns the content types registered under appLabel.
func (r *ContentTypeRepo) ListByApp(ctx context.Context, appLabel string) ([]models.ContentType, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, app_label, model FROM content_types WHERE app_label = $1 ORDER BY model`,
		appLabel,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []models.ContentType
	for rows.Next() {
		var ct models.ContentType
		if err := rows.Scan(&ct.ID, &ct.AppLabel, &ct.Model); err != nil {
			return nil, err
		}
		types = append(types, ct)
	}
	return types, rows.Err()
}

// Get returns the content type for (appLabel, model).
func (r *ContentTypeRepo) Get(ctx context.Context, appLabel, model string) (*models.ContentType, error) {
	ct := &models.ContentType{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, app_label, model FROM content_types WHERE app_label = $1 AND model = $2`,
		appLabel, model,
	).Scan(&ct.ID, &ct.AppLabel, &ct.Model)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrContentTypeNotFound
	}
	if err != nil {
		return nil, err
	}
	return ct, nil
}
