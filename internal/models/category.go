package models

// Category groups products in the catalog.
type Category struct {
	ID          string  `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Nombre      string  `json:"nombre" gorm:"uniqueIndex;type:varchar(100);not null"`
	Descripcion *string `json:"descripcion" gorm:"type:text"`
}

func (Category) TableName() string {
	return "categoria"
}
