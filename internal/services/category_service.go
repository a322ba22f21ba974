package services

import (
	"errors"
	"fmt"
	"strings"

	"tiendatec/internal/models"
	"tiendatec/internal/repositories"

	log "github.com/sirupsen/logrus"
)

// CategoryInput is a create or update request for a category. Nil fields were not sent.
type CategoryInput struct {
	Nombre      *string `json:"nombre" validate:"omitempty,max=100"`
	Descripcion *string `json:"descripcion"`
}

// CategoryService handles business logic related to categories.
type CategoryService struct {
	repo     repositories.CategoryRepository
	products repositories.ProductRepository
}

// NewCategoryService creates a new CategoryService.
func NewCategoryService(repo repositories.CategoryRepository, products repositories.ProductRepository) *CategoryService {
	return &CategoryService{repo: repo, products: products}
}

// List returns one page of categories ordered by name.
func (s *CategoryService) List(search string, page repositories.Page) ([]models.Category, int64, error) {
	return s.repo.List(search, page)
}

// Get retrieves a category by ID.
func (s *CategoryService) Get(id string) (*models.Category, error) {
	return s.repo.GetByID(id)
}

// Create adds a category with a unique name.
func (s *CategoryService) Create(in CategoryInput) (*models.Category, error) {
	category := &models.Category{}
	if _, err := s.apply(category, in, false); err != nil {
		return nil, err
	}
	if err := s.repo.Create(category); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fieldError("nombre", "categoria with this nombre already exists.")
		}
		return nil, err
	}
	return category, nil
}

// Update changes a category. With partial false the name is required.
func (s *CategoryService) Update(id string, in CategoryInput, partial bool) (*models.Category, error) {
	category, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	changed, err := s.apply(category, in, partial)
	if err != nil {
		return nil, err
	}
	if len(changed) == 0 {
		return category, nil
	}
	if err := s.repo.Update(category); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fieldError("nombre", "categoria with this nombre already exists.")
		}
		return nil, err
	}
	return category, nil
}

func (s *CategoryService) apply(category *models.Category, in CategoryInput, partial bool) ([]string, error) {
	verr := NewValidationError()
	if in.Nombre == nil {
		if !partial {
			verr.Add("nombre", "This field is required.")
		}
	} else if name := strings.TrimSpace(*in.Nombre); name == "" {
		verr.Add("nombre", "This field may not be blank.")
	} else {
		existing, err := s.repo.GetByName(name)
		switch {
		case err == nil && existing.ID != category.ID:
			verr.Add("nombre", "categoria with this nombre already exists.")
		case err != nil && !errors.Is(err, repositories.ErrNotFound):
			return nil, err
		}
	}
	if verr.Has() {
		return nil, verr
	}

	var changed []string
	if in.Nombre != nil && strings.TrimSpace(*in.Nombre) != category.Nombre {
		category.Nombre = strings.TrimSpace(*in.Nombre)
		changed = append(changed, "nombre")
	}
	if in.Descripcion != nil && (category.Descripcion == nil || *category.Descripcion != *in.Descripcion) {
		description := *in.Descripcion
		category.Descripcion = &description
		changed = append(changed, "descripcion")
	}
	return changed, nil
}

// Delete removes a category that no product references.
func (s *CategoryService) Delete(id string) error {
	if _, err := s.repo.GetByID(id); err != nil {
		return err
	}
	count, err := s.products.CountByCategory(id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrCategoryProtected
	}
	if err := s.repo.Delete(id); err != nil {
		if errors.Is(err, repositories.ErrReferenced) {
			// A product was added between the count and the delete.
			return ErrCategoryProtected
		}
		return fmt.Errorf("failed to delete category %s: %w", id, err)
	}
	log.WithField("category_id", id).Info("category deleted")
	return nil
}

// Count returns the number of categories.
func (s *CategoryService) Count() (int64, error) {
	return s.repo.Count()
}
