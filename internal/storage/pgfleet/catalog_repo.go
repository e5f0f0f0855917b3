package pgfleet

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/rafiff23/Mahligai-GPS/internal/models"
)

func (s *Storage) listCatalog(ctx context.Context, query string, args ...any) ([]*models.CatalogItem, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select catalog")
	}
	defer rows.Close()

	out := []*models.CatalogItem{}
	for rows.Next() {
		var it models.CatalogItem
		if err := rows.Scan(&it.ID, &it.Name); err != nil {
			return nil, errors.Wrap(err, "scan catalog item")
		}
		out = append(out, &it)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) ListCompanies(ctx context.Context) ([]*models.CatalogItem, error) {
	return s.listCatalog(ctx, `SELECT id, name FROM companies ORDER BY id`)
}

func (s *Storage) ListContainerSizes(ctx context.Context) ([]*models.CatalogItem, error) {
	return s.listCatalog(ctx, `SELECT id, name FROM container_sizes ORDER BY id`)
}

func (s *Storage) ListTradeTypes(ctx context.Context) ([]*models.CatalogItem, error) {
	return s.listCatalog(ctx, `SELECT id, name FROM trade_types ORDER BY id`)
}

// ListStatusesForTradeType отдаёт только статусы, у которых есть цветовой
// маппинг для данного trade type (как делал исходный dropdown).
func (s *Storage) ListStatusesForTradeType(ctx context.Context, tradeTypeID int64) ([]*models.CatalogItem, error) {
	return s.listCatalog(ctx, `
SELECT ts.id, ts.name
FROM status_color_map m
JOIN trip_statuses ts ON m.status_id = ts.id
WHERE m.trade_type_id = $1
ORDER BY ts.id
`, tradeTypeID)
}

// LookupColor: nil без ошибки, когда маппинга нет.
func (s *Storage) LookupColor(ctx context.Context, tradeTypeID, statusID int64) (*int64, error) {
	var colorID int64
	err := s.db.QueryRow(ctx, `
SELECT status_color_id FROM status_color_map
WHERE trade_type_id = $1 AND status_id = $2
`, tradeTypeID, statusID).Scan(&colorID)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select status color")
	}
	return &colorID, nil
}

func (s *Storage) CompanyName(ctx context.Context, id int64) (string, error) {
	var name string
	err := s.db.QueryRow(ctx, `SELECT name FROM companies WHERE id = $1`, id).Scan(&name)
	if err == pgx.ErrNoRows {
		return "", errors.Wrapf(ErrNotFound, "company %d", id)
	}
	if err != nil {
		return "", errors.Wrap(err, "select company name")
	}
	return name, nil
}

func (s *Storage) StatusName(ctx context.Context, id int64) (string, error) {
	var name string
	err := s.db.QueryRow(ctx, `SELECT name FROM trip_statuses WHERE id = $1`, id).Scan(&name)
	if err == pgx.ErrNoRows {
		return "", errors.Wrapf(ErrNotFound, "status %d", id)
	}
	if err != nil {
		return "", errors.Wrap(err, "select status name")
	}
	return name, nil
}
