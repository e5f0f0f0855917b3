package pgfleet

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/rafiff23/Mahligai-GPS/internal/models"
)

// Все выборки "последнего" события сортируют по (event_date, event_time, id)
// по убыванию: id рвёт ничьи в пределах одной civil-секунды порядком вставки.
const latestOrder = `ORDER BY ds.event_date DESC, ds.event_time DESC, ds.id DESC`

// InsertStatusEvent добавляет событие в леджер. Цвет не приходит от клиента:
// он резолвится подзапросом по справочнику в момент вставки; отсутствие
// маппинга даёт NULL, а не ошибку.
func (s *Storage) InsertStatusEvent(ctx context.Context, in models.StatusCreateInput, eventDate, eventTime string) (*models.StatusEvent, error) {
	ev := models.StatusEvent{
		DriverID:         in.DriverID,
		CompanyID:        in.CompanyID,
		Location:         in.Location,
		EventDate:        eventDate,
		EventTime:        eventTime,
		ContainerSizeID:  in.ContainerSizeID,
		TradeTypeID:      in.TradeTypeID,
		StatusID:         in.StatusID,
		AwaitingDocument: in.AwaitingDocument,
		Attachments:      in.Attachments,
	}

	err := s.db.QueryRow(ctx, `
INSERT INTO driver_status (
  driver_id, company_id, location, event_date, event_time,
  container_size_id, trade_type_id, status_id, status_color_id,
  awaiting_document, photo_front, photo_back, photo_left, photo_right, document
)
VALUES (
  $1, $2, $3, $4::date, $5::time,
  $6, $7, $8,
  (SELECT status_color_id FROM status_color_map WHERE trade_type_id = $7 AND status_id = $8),
  $9, $10, $11, $12, $13, $14
)
RETURNING id, status_color_id
`,
		in.DriverID, in.CompanyID, in.Location, eventDate, eventTime,
		in.ContainerSizeID, in.TradeTypeID, in.StatusID,
		in.AwaitingDocument,
		in.Attachments.PhotoFront, in.Attachments.PhotoBack,
		in.Attachments.PhotoLeft, in.Attachments.PhotoRight,
		in.Attachments.Document,
	).Scan(&ev.ID, &ev.StatusColorID)
	if err != nil {
		return nil, errors.Wrap(err, "insert status event")
	}
	return &ev, nil
}

// CorrectStatusEvent правит ровно три поля существующей строки по id леджера.
// Цвет, trade type, date/time и вложения остаются как были при создании.
// Возвращает driver_id изменённой строки.
func (s *Storage) CorrectStatusEvent(ctx context.Context, c models.StatusCorrection) (int64, error) {
	var driverID int64
	err := s.db.QueryRow(ctx, `
UPDATE driver_status
SET
  status_id = $2,
  location = $3,
  awaiting_document = $4
WHERE id = $1
RETURNING driver_id
`, c.EventID, c.StatusID, c.Location, c.AwaitingDocument).Scan(&driverID)
	if err == pgx.ErrNoRows {
		return 0, errors.Wrapf(ErrNotFound, "status event %d", c.EventID)
	}
	if err != nil {
		return 0, errors.Wrap(err, "update status event")
	}
	return driverID, nil
}

// InsertFollowupStatus — carry-forward: новая строка копирует company,
// container size и trade type из последнего события водителя, цвет
// резолвится заново по (старый trade type, новый статус).
func (s *Storage) InsertFollowupStatus(ctx context.Context, in models.FollowupInput, eventDate, eventTime string) (*models.StatusEvent, error) {
	var ev models.StatusEvent
	err := s.db.QueryRow(ctx, `
INSERT INTO driver_status (
  driver_id, company_id, location, event_date, event_time,
  container_size_id, trade_type_id, status_id, status_color_id, awaiting_document
)
SELECT
  ds.driver_id, ds.company_id, $2, $4::date, $5::time,
  ds.container_size_id, ds.trade_type_id, $3,
  (SELECT m.status_color_id FROM status_color_map m
   WHERE m.trade_type_id = ds.trade_type_id AND m.status_id = $3),
  $6
FROM driver_status ds
WHERE ds.driver_id = $1
`+latestOrder+`
LIMIT 1
RETURNING id, driver_id, company_id, container_size_id, trade_type_id, status_color_id
`,
		in.DriverID, in.Location, in.StatusID, eventDate, eventTime, in.AwaitingDocument,
	).Scan(&ev.ID, &ev.DriverID, &ev.CompanyID, &ev.ContainerSizeID, &ev.TradeTypeID, &ev.StatusColorID)
	if err == pgx.ErrNoRows {
		// Источника для carry-forward нет: у водителя ни одного события.
		return nil, errors.Wrapf(ErrNotFound, "no prior status for driver %d", in.DriverID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "insert followup status")
	}

	ev.Location = in.Location
	ev.StatusID = in.StatusID
	ev.AwaitingDocument = in.AwaitingDocument
	ev.EventDate = eventDate
	ev.EventTime = eventTime
	return &ev, nil
}

func (s *Storage) LatestStatus(ctx context.Context, driverID int64) (models.LatestStatusView, error) {
	var v models.LatestStatusView
	var statusID int64
	var statusName string
	err := s.db.QueryRow(ctx, `
SELECT ds.status_id, ts.name
FROM driver_status ds
JOIN trip_statuses ts ON ds.status_id = ts.id
WHERE ds.driver_id = $1
`+latestOrder+`
LIMIT 1
`, driverID).Scan(&statusID, &statusName)
	if err == pgx.ErrNoRows {
		// Нет данных — не ошибка: отдаём пустой view.
		return v, nil
	}
	if err != nil {
		return v, errors.Wrap(err, "select latest status")
	}

	v.StatusID = &statusID
	v.StatusName = &statusName
	return v, nil
}

func (s *Storage) LatestStatusFull(ctx context.Context, driverID int64) (*models.FullStatusView, error) {
	var v models.FullStatusView
	err := s.db.QueryRow(ctx, `
SELECT
  ds.driver_id, ds.company_id, ds.container_size_id,
  ds.trade_type_id, ds.status_id, ds.awaiting_document, ts.name
FROM driver_status ds
JOIN trip_statuses ts ON ds.status_id = ts.id
WHERE ds.driver_id = $1
`+latestOrder+`
LIMIT 1
`, driverID).Scan(
		&v.DriverID, &v.CompanyID, &v.ContainerSizeID,
		&v.TradeTypeID, &v.StatusID, &v.AwaitingDocument, &v.StatusName,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select latest status full")
	}
	return &v, nil
}

func (s *Storage) StatusHistory(ctx context.Context, driverID int64) ([]*models.HistoryEntry, error) {
	rows, err := s.db.Query(ctx, `
SELECT ds.event_date::text, c.name, ts.name, ds.location
FROM driver_status ds
JOIN companies c ON ds.company_id = c.id
JOIN trip_statuses ts ON ds.status_id = ts.id
WHERE ds.driver_id = $1
`+latestOrder, driverID)
	if err != nil {
		return nil, errors.Wrap(err, "select status history")
	}
	defer rows.Close()

	out := []*models.HistoryEntry{}
	for rows.Next() {
		var e models.HistoryEntry
		if err := rows.Scan(&e.Date, &e.CompanyName, &e.StatusName, &e.Location); err != nil {
			return nil, errors.Wrap(err, "scan history entry")
		}
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) GetStatusEvent(ctx context.Context, id uint64) (*models.StatusEvent, error) {
	var ev models.StatusEvent
	err := s.db.QueryRow(ctx, `
SELECT
  id, driver_id, company_id, location,
  event_date::text, event_time::text,
  container_size_id, trade_type_id, status_id, status_color_id,
  awaiting_document, photo_front, photo_back, photo_left, photo_right, document
FROM driver_status
WHERE id = $1
`, id).Scan(
		&ev.ID, &ev.DriverID, &ev.CompanyID, &ev.Location,
		&ev.EventDate, &ev.EventTime,
		&ev.ContainerSizeID, &ev.TradeTypeID, &ev.StatusID, &ev.StatusColorID,
		&ev.AwaitingDocument,
		&ev.Attachments.PhotoFront, &ev.Attachments.PhotoBack,
		&ev.Attachments.PhotoLeft, &ev.Attachments.PhotoRight,
		&ev.Attachments.Document,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "status event %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select status event")
	}
	return &ev, nil
}

// ListAttachmentRefs возвращает все ссылки на вложения, на которые ссылается
// леджер. Нужен reconciler'у для поиска осиротевших блобов.
func (s *Storage) ListAttachmentRefs(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `
SELECT photo_front, photo_back, photo_left, photo_right, document
FROM driver_status
`)
	if err != nil {
		return nil, errors.Wrap(err, "select attachment refs")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		refs := make([]*string, 5)
		if err := rows.Scan(&refs[0], &refs[1], &refs[2], &refs[3], &refs[4]); err != nil {
			return nil, errors.Wrap(err, "scan attachment refs")
		}
		for _, r := range refs {
			if r != nil && *r != "" {
				out = append(out, *r)
			}
		}
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
