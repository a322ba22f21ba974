package services_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tiendatec/internal/database"
	"tiendatec/internal/models"
	"tiendatec/internal/repositories"
	"tiendatec/internal/services"
	"tiendatec/pkg/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageService_UploadAndDelete(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	defer database.Close(db)

	mediaRoot := t.TempDir()
	store, err := storage.NewLocalStore(mediaRoot, "/media")
	require.NoError(t, err)

	products := repositories.NewGORMProductRepository(db)
	images := repositories.NewGORMImageRepository(db)
	service := services.NewImageService(images, products, store)

	category := models.Category{ID: "cat", Nombre: "Tablets"}
	require.NoError(t, db.Create(&category).Error)
	product := &models.Product{Nombre: "Tab", Descripcion: "10 pulgadas", Precio: decimal.NewFromInt(300), CategoriaID: category.ID, Tipo: models.TypeTablet}
	require.NoError(t, products.Create(product))
	ctx := context.Background()

	image, err := service.Upload(ctx, services.ImageUpload{
		ProductID: product.ID, Filename: "Frente.PNG", Body: strings.NewReader("png"), Orden: 1, EsPrincipal: true,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(image.StorageKey, "productos/adicionales/"+product.ID+"/"))
	assert.True(t, strings.HasSuffix(image.StorageKey, ".png"))
	assert.Equal(t, "/media/"+image.StorageKey, image.Imagen)
	_, err = os.Stat(filepath.Join(mediaRoot, filepath.FromSlash(image.StorageKey)))
	require.NoError(t, err)

	reloaded, err := products.GetByID(product.ID)
	require.NoError(t, err)
	assert.Equal(t, image.Imagen, reloaded.Imagen, "a primary image becomes the product image")

	_, err = service.Upload(ctx, services.ImageUpload{ProductID: product.ID, Filename: "otra.jpg", Body: strings.NewReader("jpg"), Orden: 1})
	var verr *services.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "orden")

	_, err = service.Upload(ctx, services.ImageUpload{ProductID: product.ID, Filename: "script.sh", Body: strings.NewReader("#!"), Orden: 2})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "imagen")

	_, err = service.Upload(ctx, services.ImageUpload{ProductID: "missing", Filename: "a.jpg", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	listed, err := service.List(product.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	require.NoError(t, service.Delete(ctx, product.ID, image.ID))
	_, err = os.Stat(filepath.Join(mediaRoot, filepath.FromSlash(image.StorageKey)))
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, service.Delete(ctx, product.ID, image.ID), repositories.ErrNotFound)
}

func TestStockAlerts(t *testing.T) {
	var alerts []services.StockAlert
	handler := &services.StockAlerts{Notify: func(a services.StockAlert) { alerts = append(alerts, a) }}

	require.NoError(t, handler.HandleEvent(services.EventProductUpdated, []byte(`{"id":"p1","nombre":"Mouse","precio":"10","stock":0}`)))
	require.NoError(t, handler.HandleEvent(services.EventProductCreated, []byte(`{"id":"p2","nombre":"Teclado","precio":"20","stock":3}`)))
	require.NoError(t, handler.HandleEvent(services.EventProductCreated, []byte(`{"id":"p3","nombre":"Monitor","precio":"20","stock":50}`)))
	require.NoError(t, handler.HandleEvent(services.EventProductDeleted, []byte(`{"id":"p4"}`)))

	require.Len(t, alerts, 2)
	assert.Equal(t, services.StockAlert{ProductID: "p1", Nombre: "Mouse", Stock: 0, SoldOut: true}, alerts[0])
	assert.Equal(t, "p2", alerts[1].ProductID)
	assert.False(t, alerts[1].SoldOut)

	assert.Error(t, handler.HandleEvent(services.EventProductUpdated, []byte(`not json`)))
}
