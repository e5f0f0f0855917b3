package pgfleet

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// CredentialsByName отдаёт id и bcrypt-хэш пароля. Plaintext здесь не живёт,
// и списочного доступа к users у хранилища нет.
func (s *Storage) CredentialsByName(ctx context.Context, name string) (int64, string, error) {
	var id int64
	var hash string
	err := s.db.QueryRow(ctx, `SELECT id, password_hash FROM users WHERE name = $1`, name).Scan(&id, &hash)
	if err == pgx.ErrNoRows {
		return 0, "", errors.Wrapf(ErrNotFound, "user %q", name)
	}
	if err != nil {
		return 0, "", errors.Wrap(err, "select user credentials")
	}
	return id, hash, nil
}

// UpsertUser создаёт или обновляет учётку водителя (хэш уже посчитан).
func (s *Storage) UpsertUser(ctx context.Context, name, passwordHash string) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
INSERT INTO users (name, password_hash)
VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET password_hash = EXCLUDED.password_hash
RETURNING id
`, name, passwordHash).Scan(&id)
	if err != nil {
		return 0, errors.Wrap(err, "upsert user")
	}
	return id, nil
}
