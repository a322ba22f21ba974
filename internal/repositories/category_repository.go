package repositories

import "tiendatec/internal/models"

// CategoryRepository defines the interface for category data access.
type CategoryRepository interface {
	List(search string, page Page) ([]models.Category, int64, error)
	GetByID(id string) (*models.Category, error)
	GetByName(name string) (*models.Category, error)
	Create(category *models.Category) error
	Update(category *models.Category) error
	Delete(id string) error
	Count() (int64, error)
}
