package pgfleet

import "github.com/pkg/errors"

// ErrNotFound возвращается, когда строка по id/имени отсутствует.
// Проверять через errors.Is.
var ErrNotFound = errors.New("not found")
