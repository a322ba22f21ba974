package repositories

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a write breaks a unique constraint.
	ErrDuplicate = errors.New("duplicate")
	// ErrReferenced is returned when a delete is blocked by a protecting foreign key.
	ErrReferenced = errors.New("still referenced")
)

// translate maps GORM errors onto the package sentinels, leaving others untouched.
func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return ErrReferenced
	}
	return err
}
