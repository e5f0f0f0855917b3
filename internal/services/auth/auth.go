package auth

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rafiff23/Mahligai-GPS/internal/storage/pgfleet"
	"golang.org/x/crypto/bcrypt"
)

// ErrUnauthorized — имя/пароль не подошли. Наружу уходит без деталей:
// "нет такого пользователя" и "не тот пароль" неразличимы.
var ErrUnauthorized = errors.New("unauthorized")

type CredentialStore interface {
	CredentialsByName(ctx context.Context, name string) (int64, string, error)
	UpsertUser(ctx context.Context, name, passwordHash string) (int64, error)
}

type Service struct {
	store CredentialStore
}

func New(store CredentialStore) *Service {
	return &Service{store: store}
}

// Login сверяет пароль с bcrypt-хэшем и возвращает driver_id.
func (s *Service) Login(ctx context.Context, name, password string) (int64, error) {
	if name == "" || password == "" {
		return 0, errors.Wrap(ErrUnauthorized, "empty credentials")
	}

	id, hash, err := s.store.CredentialsByName(ctx, name)
	if errors.Is(err, pgfleet.ErrNotFound) {
		return 0, errors.Wrap(ErrUnauthorized, "unknown user")
	}
	if err != nil {
		return 0, err
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return 0, errors.Wrap(ErrUnauthorized, "password mismatch")
	}
	return id, nil
}

// Register заводит (или перезаводит) учётку; пароль хэшируется здесь,
// plaintext до хранилища не доходит.
func (s *Service) Register(ctx context.Context, name, password string) (int64, error) {
	if name == "" || password == "" {
		return 0, errors.New("name and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, errors.Wrap(err, "hash password")
	}
	return s.store.UpsertUser(ctx, name, string(hash))
}
