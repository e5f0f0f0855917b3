package pgfleet

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS tracking_log (
  id BIGSERIAL PRIMARY KEY,
  driver_id BIGINT NOT NULL,
  latitude DOUBLE PRECISION NOT NULL,
  longitude DOUBLE PRECISION NOT NULL,
  captured_at TIMESTAMP NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_tracking_log_driver ON tracking_log(driver_id, captured_at DESC)`,
		`
CREATE TABLE IF NOT EXISTS companies (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL UNIQUE
)`,
		`
CREATE TABLE IF NOT EXISTS container_sizes (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL UNIQUE
)`,
		`
CREATE TABLE IF NOT EXISTS trade_types (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL UNIQUE
)`,
		`
CREATE TABLE IF NOT EXISTS trip_statuses (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL UNIQUE
)`,
		`
CREATE TABLE IF NOT EXISTS status_colors (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL UNIQUE
)`,
		`
CREATE TABLE IF NOT EXISTS status_color_map (
  trade_type_id BIGINT NOT NULL REFERENCES trade_types(id),
  status_id BIGINT NOT NULL REFERENCES trip_statuses(id),
  status_color_id BIGINT NOT NULL REFERENCES status_colors(id),
  PRIMARY KEY (trade_type_id, status_id)
)`,
		`
CREATE TABLE IF NOT EXISTS users (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS driver_status (
  id BIGSERIAL PRIMARY KEY,
  driver_id BIGINT NOT NULL,
  company_id BIGINT NOT NULL,
  location TEXT NOT NULL,
  event_date DATE NOT NULL,
  event_time TIME NOT NULL,
  container_size_id BIGINT NOT NULL,
  trade_type_id BIGINT NOT NULL,
  status_id BIGINT NOT NULL,
  status_color_id BIGINT NULL,
  awaiting_document BOOLEAN NOT NULL DEFAULT FALSE,
  photo_front TEXT NULL,
  photo_back TEXT NULL,
  photo_left TEXT NULL,
  photo_right TEXT NULL,
  document TEXT NULL
)`,
		// Порядок "последнего" события: (date, time), хвостом id —
		// детерминированный tie-break по порядку вставки в леджер.
		`CREATE INDEX IF NOT EXISTS idx_driver_status_latest ON driver_status(driver_id, event_date DESC, event_time DESC, id DESC)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}

// seedCatalogs наполняет справочники стартовыми строками. Идемпотентно:
// повторный старт ничего не перетирает.
func (s *Storage) seedCatalogs(ctx context.Context) error {
	stmts := []string{
		`INSERT INTO companies (id, name) VALUES
  (1, 'PT Samudera Jaya'),
  (2, 'PT Nusantara Container Line'),
  (3, 'PT Bahari Trans')
ON CONFLICT (id) DO NOTHING`,
		`INSERT INTO container_sizes (id, name) VALUES
  (1, '20 ft'),
  (2, '40 ft'),
  (3, '40 ft HC')
ON CONFLICT (id) DO NOTHING`,
		`INSERT INTO trade_types (id, name) VALUES
  (1, 'Export'),
  (2, 'Import')
ON CONFLICT (id) DO NOTHING`,
		`INSERT INTO trip_statuses (id, name) VALUES
  (1, 'Heading to depot'),
  (2, 'Loading at company'),
  (3, 'Heading to port'),
  (4, 'At port gate'),
  (5, 'Trip finished')
ON CONFLICT (id) DO NOTHING`,
		`INSERT INTO status_colors (id, name) VALUES
  (1, 'green'),
  (2, 'yellow'),
  (3, 'red')
ON CONFLICT (id) DO NOTHING`,
		`INSERT INTO status_color_map (trade_type_id, status_id, status_color_id) VALUES
  (1, 1, 1), (1, 2, 2), (1, 3, 2), (1, 4, 3), (1, 5, 1),
  (2, 1, 1), (2, 2, 2), (2, 3, 2), (2, 4, 3)
ON CONFLICT (trade_type_id, status_id) DO NOTHING`,
		`SELECT setval('companies_id_seq', (SELECT MAX(id) FROM companies))`,
		`SELECT setval('container_sizes_id_seq', (SELECT MAX(id) FROM container_sizes))`,
		`SELECT setval('trade_types_id_seq', (SELECT MAX(id) FROM trade_types))`,
		`SELECT setval('trip_statuses_id_seq', (SELECT MAX(id) FROM trip_statuses))`,
		`SELECT setval('status_colors_id_seq', (SELECT MAX(id) FROM status_colors))`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "seed catalogs")
		}
	}
	return nil
}
