package repositories

import "tiendatec/internal/models"

// UserFilter narrows a user listing. Empty fields do not filter.
type UserFilter struct {
	OnlyID string
	Role   models.Role
	Search string
}

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(user *models.User) error
	Update(user *models.User) error
	GetByEmail(email string) (*models.User, error)
	GetByID(id string) (*models.User, error)
	List(filter UserFilter, page Page) ([]models.User, int64, error)
	Count() (int64, error)
}
