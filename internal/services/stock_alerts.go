package services

import (
	"encoding/json"
	"fmt"

	"tiendatec/internal/models"

	log "github.com/sirupsen/logrus"
)

// StockAlert describes a product that needs restocking.
type StockAlert struct {
	ProductID string
	Nombre    string
	Stock     int
	SoldOut   bool
}

// StockAlerts consumes catalog events and reports products running out of stock.
type StockAlerts struct {
	// Notify receives every alert. It defaults to a warning log line.
	Notify func(StockAlert)
}

// NewStockAlerts returns a StockAlerts that logs its alerts.
func NewStockAlerts() *StockAlerts {
	return &StockAlerts{Notify: logStockAlert}
}

// HandleEvent inspects a catalog event. Events other than product creation
// and update are ignored.
func (a *StockAlerts) HandleEvent(event string, payload []byte) error {
	if event != EventProductCreated && event != EventProductUpdated {
		return nil
	}
	var product models.Product
	if err := json.Unmarshal(payload, &product); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", event, err)
	}
	if !product.IsSoldOut() && !product.IsLowStock() {
		return nil
	}
	a.Notify(StockAlert{
		ProductID: product.ID,
		Nombre:    product.Nombre,
		Stock:     product.Stock,
		SoldOut:   product.IsSoldOut(),
	})
	return nil
}

func logStockAlert(alert StockAlert) {
	entry := log.WithFields(log.Fields{"product_id": alert.ProductID, "nombre": alert.Nombre, "stock": alert.Stock})
	if alert.SoldOut {
		entry.Warn("product sold out")
		return
	}
	entry.Warn("product stock is low")
}
