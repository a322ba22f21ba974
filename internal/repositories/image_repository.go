package repositories

import (
	"fmt"

	"tiendatec/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ImageRepository defines the interface for product image data access.
type ImageRepository interface {
	ListByProduct(productID string) ([]models.ProductImage, error)
	GetByID(productID, id string) (*models.ProductImage, error)
	Create(image *models.ProductImage) error
	Delete(id string) error
}

// GORMImageRepository is a GORM implementation of ImageRepository.
type GORMImageRepository struct {
	db *gorm.DB
}

// NewGORMImageRepository creates a new instance of GORMImageRepository.
func NewGORMImageRepository(db *gorm.DB) *GORMImageRepository {
	return &GORMImageRepository{db: db}
}

// ListByProduct returns the images of a product in display order.
func (r *GORMImageRepository) ListByProduct(productID string) ([]models.ProductImage, error) {
	images := []models.ProductImage{}
	if err := r.db.Where("producto_id = ?", productID).Order("orden").Find(&images).Error; err != nil {
		return nil, fmt.Errorf("failed to list images of product %s: %w", productID, err)
	}
	return images, nil
}

// GetByID retrieves an image that belongs to the given product.
func (r *GORMImageRepository) GetByID(productID, id string) (*models.ProductImage, error) {
	var image models.ProductImage
	if err := r.db.First(&image, "id = ? AND producto_id = ?", id, productID).Error; err != nil {
		return nil, fmt.Errorf("image with ID %s: %w", id, translate(err))
	}
	return &image, nil
}

// Create stores a new image row. A taken (product, orden) pair yields ErrDuplicate.
func (r *GORMImageRepository) Create(image *models.ProductImage) error {
	if image.ID == "" {
		image.ID = uuid.New().String()
	}
	if err := r.db.Create(image).Error; err != nil {
		return fmt.Errorf("failed to create image: %w", translate(err))
	}
	return nil
}

// Delete removes an image row.
func (r *GORMImageRepository) Delete(id string) error {
	res := r.db.Delete(&models.ProductImage{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete image: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("image with ID %s not found for deletion: %w", id, ErrNotFound)
	}
	return nil
}
