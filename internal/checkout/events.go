package checkout

import (
	"github.com/Syntia28/nikos/internal/orders"
	pkgcheckout "github.com/Syntia28/nikos/pkg/checkout"
)

// OrderCreatedEvent is broadcast on the bus after a checkout commits.
type OrderCreatedEvent struct {
	OrderID      string                      `json:"order_id"`
	UserID       string                      `json:"user_id"`
	Items        []orders.LineRef            `json:"items"`
	Total        float64                     `json:"total"`
	DatosEntrega pkgcheckout.DeliveryDetails `json:"datosEntrega"`
}
