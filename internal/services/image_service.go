package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"tiendatec/internal/models"
	"tiendatec/internal/repositories"
	"tiendatec/pkg/storage"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var allowedImageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// ImageUpload is a new additional picture for a product.
type ImageUpload struct {
	ProductID   string
	Filename    string
	Body        io.Reader
	Orden       uint
	EsPrincipal bool
}

// ImageService manages the additional pictures of products.
type ImageService struct {
	repo     repositories.ImageRepository
	products repositories.ProductRepository
	store    storage.ImageStore
}

// NewImageService creates a new ImageService.
func NewImageService(repo repositories.ImageRepository, products repositories.ProductRepository, store storage.ImageStore) *ImageService {
	return &ImageService{repo: repo, products: products, store: store}
}

// ImageKey is where an uploaded file is stored.
func ImageKey(productID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("productos/adicionales/%s/%s%s", productID, uuid.New().String(), ext)
}

// List returns the images of an existing product in display order.
func (s *ImageService) List(productID string) ([]models.ProductImage, error) {
	if _, err := s.products.GetByID(productID); err != nil {
		return nil, err
	}
	return s.repo.ListByProduct(productID)
}

// Upload stores the file and records it. A primary image also becomes the
// product's main imagen.
func (s *ImageService) Upload(ctx context.Context, up ImageUpload) (*models.ProductImage, error) {
	product, err := s.products.GetByID(up.ProductID)
	if err != nil {
		return nil, err
	}

	contentType, ok := allowedImageExtensions[strings.ToLower(path.Ext(up.Filename))]
	if !ok {
		return nil, fieldError("imagen", "Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
	}
	for _, existing := range product.Imagenes {
		if existing.Orden == up.Orden {
			return nil, fieldError("orden", "The fields producto, orden must make a unique set.")
		}
	}

	key := ImageKey(product.ID, up.Filename)
	url, err := s.store.Save(ctx, key, up.Body, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	image := &models.ProductImage{
		ProductoID:  product.ID,
		Imagen:      url,
		StorageKey:  key,
		Orden:       up.Orden,
		EsPrincipal: up.EsPrincipal,
	}
	if err := s.repo.Create(image); err != nil {
		s.discard(ctx, key)
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fieldError("orden", "The fields producto, orden must make a unique set.")
		}
		return nil, err
	}

	if image.EsPrincipal && product.Imagen != url {
		product.Imagen = url
		if err := s.products.Update(product); err != nil {
			return nil, fmt.Errorf("failed to set primary image: %w", err)
		}
	}
	log.WithFields(log.Fields{"product_id": product.ID, "key": key}).Info("product image uploaded")
	return image, nil
}

// Delete removes an image row and its stored file.
func (s *ImageService) Delete(ctx context.Context, productID, imageID string) error {
	image, err := s.repo.GetByID(productID, imageID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(image.ID); err != nil {
		return err
	}
	s.discard(ctx, image.StorageKey)
	return nil
}

func (s *ImageService) discard(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		log.WithError(err).WithField("key", key).Warn("failed to delete stored image")
	}
}
