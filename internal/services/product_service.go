package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tiendatec/internal/models"
	"tiendatec/internal/repositories"
	"tiendatec/pkg/storage"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// maxPrice is the largest value a decimal(10,2) column holds.
var maxPrice = decimal.RequireFromString("99999999.99")

// ProductService handles business logic related to products.
type ProductService struct {
	repo       repositories.ProductRepository
	categories repositories.CategoryRepository
	users      repositories.UserRepository
	store      storage.ImageStore
	events     EventPublisher
	now        func() time.Time
}

// NewProductService creates a new ProductService. store and events may be nil.
func NewProductService(repo repositories.ProductRepository, categories repositories.CategoryRepository, users repositories.UserRepository, store storage.ImageStore, events EventPublisher) *ProductService {
	return &ProductService{
		repo:       repo,
		categories: categories,
		users:      users,
		store:      store,
		events:     events,
		now:        time.Now,
	}
}

// List returns one page of products matching filter.
func (s *ProductService) List(filter repositories.ProductFilter, page repositories.Page) ([]models.Product, int64, error) {
	return s.repo.List(filter, page)
}

// ListNew narrows filter to products created within the new-product window.
func (s *ProductService) ListNew(filter repositories.ProductFilter, page repositories.Page) ([]models.Product, int64, error) {
	since := s.now().Add(-models.NewProductWindow)
	filter.CreatedSince = &since
	return s.repo.List(filter, page)
}

// ListBestSellers narrows filter to best sellers, most sold first and newest
// first among ties.
func (s *ProductService) ListBestSellers(filter repositories.ProductFilter, page repositories.Page) ([]models.Product, int64, error) {
	minSold := models.BestSellerThreshold
	filter.MinSold = &minSold
	filter.Ordering = "-cantidad_vendida,-fecha_creacion"
	return s.repo.List(filter, page)
}

// ListByType narrows filter to one product type, which must be given and valid.
func (s *ProductService) ListByType(tipo string, filter repositories.ProductFilter, page repositories.Page) ([]models.Product, int64, error) {
	if tipo == "" {
		return nil, 0, fieldError("tipo", "This query parameter is required.")
	}
	if !models.ProductType(tipo).Valid() {
		return nil, 0, fieldError("tipo", fmt.Sprintf("%q is not a valid choice.", tipo))
	}
	filter.Tipo = models.ProductType(tipo)
	return s.repo.List(filter, page)
}

// ListSoldOut narrows filter to products without stock.
func (s *ProductService) ListSoldOut(filter repositories.ProductFilter, page repositories.Page) ([]models.Product, int64, error) {
	zero := 0
	filter.StockMin, filter.StockMax = &zero, &zero
	return s.repo.List(filter, page)
}

// ListLowStock narrows filter to products with some stock below the low-stock threshold.
func (s *ProductService) ListLowStock(filter repositories.ProductFilter, page repositories.Page) ([]models.Product, int64, error) {
	low, high := 1, models.LowStockThreshold-1
	filter.StockMin, filter.StockMax = &low, &high
	return s.repo.List(filter, page)
}

// Get retrieves a single product by its ID.
func (s *ProductService) Get(id string) (*models.Product, error) {
	return s.repo.GetByID(id)
}

// GetNew is Get restricted to products that are still new.
func (s *ProductService) GetNew(id string) (*models.Product, error) {
	p, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !models.IsNewAt(p.FechaCreacion, s.now()) {
		return nil, fmt.Errorf("product %s is no longer new: %w", id, repositories.ErrNotFound)
	}
	return p, nil
}

// GetBestSeller is Get restricted to best sellers.
func (s *ProductService) GetBestSeller(id string) (*models.Product, error) {
	p, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !p.IsBestSeller() {
		return nil, fmt.Errorf("product %s is not a best seller: %w", id, repositories.ErrNotFound)
	}
	return p, nil
}

// Create adds a product on behalf of caller. The creator is the caller unless
// an admin names someone else.
func (s *ProductService) Create(caller *models.User, in ProductInput) (*models.Product, error) {
	allowed := EffectiveProductWriteSet(caller.Roles, in.Requested())
	if err := s.validate(in, allowed, false); err != nil {
		return nil, err
	}

	product := &models.Product{}
	ApplyProductFields(product, in, allowed)
	if !allowed.Has("creado_por") {
		creator := caller.ID
		product.CreadoPorID = &creator
	}

	if err := s.repo.Create(product); err != nil {
		return nil, s.translateWriteError(err)
	}
	created, err := s.repo.GetByID(product.ID)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"product_id": created.ID, "by": caller.ID}).Info("product created")
	publish(s.events, EventProductCreated, created)
	return created, nil
}

// Update changes a product. With partial false every required field must be
// sent. It returns the product and the names of the fields that changed.
func (s *ProductService) Update(caller *models.User, id string, in ProductInput, partial bool) (*models.Product, []string, error) {
	product, err := s.repo.GetByID(id)
	if err != nil {
		return nil, nil, err
	}
	allowed := EffectiveProductWriteSet(caller.Roles, in.Requested())
	if err := s.validate(in, allowed, partial); err != nil {
		return nil, nil, err
	}

	changed := ApplyProductFields(product, in, allowed)
	if len(changed) == 0 {
		return product, changed, nil
	}
	if err := s.repo.Update(product); err != nil {
		return nil, nil, s.translateWriteError(err)
	}
	updated, err := s.repo.GetByID(id)
	if err != nil {
		return nil, nil, err
	}
	log.WithFields(log.Fields{"product_id": id, "fields": changed}).Info("product updated")
	publish(s.events, EventProductUpdated, updated)
	return updated, changed, nil
}

// Delete removes a product, its image rows and their stored files.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	product, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(id); err != nil {
		return err
	}
	if s.store != nil {
		for _, image := range product.Imagenes {
			if err := s.store.Delete(ctx, image.StorageKey); err != nil {
				log.WithError(err).WithField("key", image.StorageKey).Warn("failed to delete stored image")
			}
		}
	}
	log.WithField("product_id", id).Info("product deleted")
	publish(s.events, EventProductDeleted, map[string]string{"id": id})
	return nil
}

// RefreshNewFlags realigns every stored es_nuevo flag with the creation date.
func (s *ProductService) RefreshNewFlags() (int64, error) {
	return s.repo.RefreshNewFlags(s.now().Add(-models.NewProductWindow))
}

// Count returns the number of products matching filter.
func (s *ProductService) Count(filter repositories.ProductFilter) (int64, error) {
	return s.repo.Count(filter)
}

func (s *ProductService) translateWriteError(err error) error {
	if errors.Is(err, repositories.ErrReferenced) {
		return fieldError("categoria", "The selected category does not exist.")
	}
	return err
}

// validate checks the allowed fields of in. A full write (partial false)
// requires every mandatory field.
func (s *ProductService) validate(in ProductInput, allowed FieldSet, partial bool) error {
	verr := NewValidationError()
	if !partial {
		for _, name := range []string{"nombre", "descripcion", "precio", "categoria", "tipo"} {
			if !allowed.Has(name) {
				verr.Add(name, "This field is required.")
			}
		}
	}

	if allowed.Has("nombre") && strings.TrimSpace(*in.Nombre) == "" {
		verr.Add("nombre", "This field may not be blank.")
	}
	if allowed.Has("descripcion") && strings.TrimSpace(*in.Descripcion) == "" {
		verr.Add("descripcion", "This field may not be blank.")
	}
	if allowed.Has("precio") {
		switch price := *in.Precio; {
		case !price.IsPositive():
			verr.Add("precio", "Ensure this value is greater than 0.")
		case !price.Equal(price.Round(2)):
			verr.Add("precio", "Ensure that there are no more than 2 decimal places.")
		case price.GreaterThan(maxPrice):
			verr.Add("precio", "Ensure that there are no more than 10 digits in total.")
		}
	}
	if allowed.Has("stock") && *in.Stock < 0 {
		verr.Add("stock", "Ensure this value is greater than or equal to 0.")
	}
	if allowed.Has("cantidad_vendida") && *in.CantidadVendida < 0 {
		verr.Add("cantidad_vendida", "Ensure this value is greater than or equal to 0.")
	}
	if allowed.Has("tipo") && !models.ProductType(*in.Tipo).Valid() {
		verr.Add("tipo", fmt.Sprintf("%q is not a valid choice.", *in.Tipo))
	}
	if allowed.Has("categoria") {
		if _, err := s.categories.GetByID(*in.Categoria); err != nil {
			if !errors.Is(err, repositories.ErrNotFound) {
				return err
			}
			verr.Add("categoria", fmt.Sprintf("Invalid pk %q - object does not exist.", *in.Categoria))
		}
	}
	if allowed.Has("creado_por") {
		if _, err := s.users.GetByID(*in.CreadoPor); err != nil {
			if !errors.Is(err, repositories.ErrNotFound) {
				return err
			}
			verr.Add("creado_por", fmt.Sprintf("Invalid pk %q - object does not exist.", *in.CreadoPor))
		}
	}
	return verr.OrNil()
}
