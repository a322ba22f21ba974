package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	// NewProductWindow is how long a product counts as new after creation.
	NewProductWindow = 30 * 24 * time.Hour
	// BestSellerThreshold is the units sold from which a product is a best seller.
	BestSellerThreshold = 10
	// LowStockThreshold is the exclusive upper bound of low stock.
	LowStockThreshold = 5
)

// ProductType classifies what kind of hardware a product is.
type ProductType string

const (
	TypeLaptop    ProductType = "portatil"
	TypeDesktop   ProductType = "desktop"
	TypeTablet    ProductType = "tablet"
	TypeComponent ProductType = "componente"
	TypeAccessory ProductType = "accesorio"
)

// ProductTypes lists every valid product type.
var ProductTypes = []ProductType{TypeLaptop, TypeDesktop, TypeTablet, TypeComponent, TypeAccessory}

// Valid reports whether t is one of ProductTypes.
func (t ProductType) Valid() bool {
	for _, known := range ProductTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Product represents a product in the store.
type Product struct {
	ID                 string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Nombre             string          `json:"nombre" gorm:"type:varchar(200);not null"`
	Descripcion        string          `json:"descripcion" gorm:"type:text;not null"`
	Precio             decimal.Decimal `json:"precio" gorm:"type:decimal(10,2);not null"`
	CategoriaID        string          `json:"categoria" gorm:"type:varchar(36);not null;index:idx_producto_tipo_categoria,priority:2"`
	Categoria          *Category       `json:"-" gorm:"foreignKey:CategoriaID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Tipo               ProductType     `json:"tipo" gorm:"type:varchar(20);not null;index:idx_producto_tipo_categoria,priority:1"`
	Imagen             string          `json:"imagen" gorm:"type:varchar(500)"`
	Stock              int             `json:"stock" gorm:"not null"`
	CantidadVendida    int             `json:"cantidad_vendida" gorm:"not null;index"`
	EsNuevo            bool            `json:"es_nuevo" gorm:"not null"`
	FechaCreacion      time.Time       `json:"fecha_creacion" gorm:"autoCreateTime;index"`
	FechaActualizacion time.Time       `json:"fecha_actualizacion" gorm:"autoUpdateTime"`
	CreadoPorID        *string         `json:"creado_por" gorm:"type:varchar(36);index"`
	CreadoPor          *User           `json:"-" gorm:"foreignKey:CreadoPorID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
	Imagenes           []ProductImage  `json:"imagenes_adicionales" gorm:"foreignKey:ProductoID;constraint:OnDelete:CASCADE"`
}

func (Product) TableName() string {
	return "producto"
}

// IsNewAt reports whether a product created at createdAt is still new at now.
func IsNewAt(createdAt, now time.Time) bool {
	return !createdAt.Before(now.Add(-NewProductWindow))
}

// BeforeSave recomputes EsNuevo on every create and update. A product being
// created for the first time has no creation date yet and is always new.
func (p *Product) BeforeSave(tx *gorm.DB) error {
	if p.FechaCreacion.IsZero() {
		p.EsNuevo = true
		return nil
	}
	p.EsNuevo = IsNewAt(p.FechaCreacion, tx.NowFunc())
	return nil
}

// IsBestSeller reports whether enough units have been sold.
func (p *Product) IsBestSeller() bool {
	return p.CantidadVendida >= BestSellerThreshold
}

// IsSoldOut reports whether there is no stock left.
func (p *Product) IsSoldOut() bool {
	return p.Stock == 0
}

// IsLowStock reports whether stock is positive but below LowStockThreshold.
func (p *Product) IsLowStock() bool {
	return p.Stock > 0 && p.Stock < LowStockThreshold
}

// MarshalJSON adds the derived, read-only fields to the stored ones.
func (p Product) MarshalJSON() ([]byte, error) {
	type product Product
	var categoryName string
	if p.Categoria != nil {
		categoryName = p.Categoria.Nombre
	}
	images := p.Imagenes
	if images == nil {
		images = []ProductImage{}
	}
	return json.Marshal(struct {
		product
		CategoriaNombre string         `json:"categoria_nombre"`
		EsMasVendido    bool           `json:"es_mas_vendido"`
		EstaAgotado     bool           `json:"esta_agotado"`
		StockBajo       bool           `json:"stock_bajo"`
		Imagenes        []ProductImage `json:"imagenes_adicionales"`
	}{
		product:         product(p),
		CategoriaNombre: categoryName,
		EsMasVendido:    p.IsBestSeller(),
		EstaAgotado:     p.IsSoldOut(),
		StockBajo:       p.IsLowStock(),
		Imagenes:        images,
	})
}
