package app

import (
	"tiendatec/internal/models"
	"tiendatec/internal/repositories"
	"tiendatec/internal/services"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type demoProduct struct {
	nombre, descripcion, precio string
	tipo                        models.ProductType
	stock, vendidos             int
}

var demoCatalog = map[string][]demoProduct{
	"Portatiles": {
		{"Laptop Pro 14", "Portatil de 14 pulgadas con 16GB de RAM", "1299.99", models.TypeLaptop, 8, 14},
		{"Ultrabook Air", "Portatil ligero con SSD de 512GB", "999.00", models.TypeLaptop, 3, 2},
	},
	"Equipos de escritorio": {
		{"Torre Gamer", "Desktop con RTX y 32GB de RAM", "1899.50", models.TypeDesktop, 0, 11},
	},
	"Tablets": {
		{"Tablet 11", "Tablet de 11 pulgadas con lapiz", "549.90", models.TypeTablet, 12, 4},
	},
	"Accesorios": {
		{"Teclado mecanico", "Teclado mecanico con switches rojos", "79.99", models.TypeAccessory, 25, 40},
		{"Raton inalambrico", "Raton ergonomico bluetooth", "25.00", models.TypeAccessory, 2, 7},
		{"Memoria RAM 16GB", "Modulo DDR5 de 16GB", "64.90", models.TypeComponent, 30, 9},
	},
}

// seedDemoData fills an empty catalog with a few categories and products
// owned by admin. Failures are logged and skipped.
func seedDemoData(categories *services.CategoryService, products *services.ProductService, admin *models.User) {
	if _, total, err := categories.List("", repositories.Page{Number: 1, Size: 1}); err != nil || total > 0 {
		if err != nil {
			log.WithError(err).Error("failed to check catalog before seeding")
		}
		return
	}

	for categoryName, items := range demoCatalog {
		name := categoryName
		category, err := categories.Create(services.CategoryInput{Nombre: &name})
		if err != nil {
			log.WithError(err).Errorf("Error seeding category %s", categoryName)
			continue
		}
		for _, item := range items {
			item := item
			precio := decimal.RequireFromString(item.precio)
			tipo := string(item.tipo)
			product, err := products.Create(admin, services.ProductInput{
				Nombre:          &item.nombre,
				Descripcion:     &item.descripcion,
				Precio:          &precio,
				Categoria:       &category.ID,
				Tipo:            &tipo,
				Stock:           &item.stock,
				CantidadVendida: &item.vendidos,
			})
			if err != nil {
				log.WithError(err).Errorf("Error seeding product %s", item.nombre)
				continue
			}
			log.Printf("Seeded product: %s (ID: %s)", product.Nombre, product.ID)
		}
	}
}
