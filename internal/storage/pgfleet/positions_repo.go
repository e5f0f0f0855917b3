package pgfleet

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rafiff23/Mahligai-GPS/internal/models"
)

// InsertPosition пишет один GPS-сэмпл. Никакого dedup: каждый репорт —
// отдельная строка леджера.
func (s *Storage) InsertPosition(ctx context.Context, p models.PositionSample) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO tracking_log (driver_id, latitude, longitude, captured_at)
VALUES ($1, $2, $3, $4::timestamp)
`, p.DriverID, p.Latitude, p.Longitude, p.CapturedAt)
	return errors.Wrap(err, "insert position")
}

func (s *Storage) ListPositions(ctx context.Context, driverID int64, limit int) ([]*models.PositionSample, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.db.Query(ctx, `
SELECT id, driver_id, latitude, longitude, to_char(captured_at, 'YYYY-MM-DD HH24:MI:SS')
FROM tracking_log
WHERE driver_id = $1
ORDER BY captured_at DESC, id DESC
LIMIT $2
`, driverID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select positions")
	}
	defer rows.Close()

	var out []*models.PositionSample
	for rows.Next() {
		var p models.PositionSample
		if err := rows.Scan(&p.ID, &p.DriverID, &p.Latitude, &p.Longitude, &p.CapturedAt); err != nil {
			return nil, errors.Wrap(err, "scan position")
		}
		out = append(out, &p)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
