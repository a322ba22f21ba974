package services

import (
	"tiendatec/internal/models"
	"tiendatec/internal/repositories"
)

// DashboardStats are the headline numbers of the admin dashboard.
type DashboardStats struct {
	Usuarios   int64 `json:"usuarios"`
	Categorias int64 `json:"categorias"`
	Productos  int64 `json:"productos"`
	Agotados   int64 `json:"agotados"`
	StockBajo  int64 `json:"stock_bajo"`
	Nuevos     int64 `json:"nuevos"`
}

// Dashboard collects DashboardStats from the other services.
func Dashboard(users *UserService, categories *CategoryService, products *ProductService) (*DashboardStats, error) {
	var stats DashboardStats
	var err error
	if stats.Usuarios, err = users.Count(); err != nil {
		return nil, err
	}
	if stats.Categorias, err = categories.Count(); err != nil {
		return nil, err
	}
	if stats.Productos, err = products.Count(repositories.ProductFilter{}); err != nil {
		return nil, err
	}

	zero, low, high := 0, 1, models.LowStockThreshold-1
	if stats.Agotados, err = products.Count(repositories.ProductFilter{StockMin: &zero, StockMax: &zero}); err != nil {
		return nil, err
	}
	if stats.StockBajo, err = products.Count(repositories.ProductFilter{StockMin: &low, StockMax: &high}); err != nil {
		return nil, err
	}
	since := products.now().Add(-models.NewProductWindow)
	if stats.Nuevos, err = products.Count(repositories.ProductFilter{CreatedSince: &since}); err != nil {
		return nil, err
	}
	return &stats, nil
}
