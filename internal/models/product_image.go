package models

import "time"

// ProductImage is an additional picture of a product, shown in Orden order.
type ProductImage struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ProductoID  string    `json:"producto" gorm:"type:varchar(36);not null;uniqueIndex:idx_imagen_producto_orden,priority:1"`
	Imagen      string    `json:"imagen" gorm:"type:varchar(500);not null"`
	StorageKey  string    `json:"-" gorm:"type:varchar(500);not null"`
	Orden       uint      `json:"orden" gorm:"not null;uniqueIndex:idx_imagen_producto_orden,priority:2"`
	EsPrincipal bool      `json:"es_principal" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`
}

func (ProductImage) TableName() string {
	return "imagen_producto"
}
