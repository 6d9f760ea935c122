package enums

import (
	"fmt"
	"strings"
)

// OrderStatus is the estado stored on a historial record.
type OrderStatus string

const (
	OrderStatusPendiente       OrderStatus = "pendiente"
	OrderStatusPreparando      OrderStatus = "preparando"
	OrderStatusEnCamino        OrderStatus = "en camino"
	OrderStatusListoParaRecojo OrderStatus = "listo para recojo"
	OrderStatusCompletado      OrderStatus = "completado"
	OrderStatusCancelado       OrderStatus = "cancelado"
	OrderStatusEntregado       OrderStatus = "entregado"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPendiente,
	OrderStatusPreparando,
	OrderStatusEnCamino,
	OrderStatusListoParaRecojo,
	OrderStatusCompletado,
	OrderStatusCancelado,
	OrderStatusEntregado,
}

// DeliveryFlow is the tracking sequence shown for home delivery.
var DeliveryFlow = []OrderStatus{
	OrderStatusPendiente,
	OrderStatusPreparando,
	OrderStatusEnCamino,
	OrderStatusListoParaRecojo,
	OrderStatusEntregado,
}

// PickupFlow is the tracking sequence shown for in-store pickup.
var PickupFlow = []OrderStatus{
	OrderStatusPendiente,
	OrderStatusPreparando,
	OrderStatusListoParaRecojo,
	OrderStatusEntregado,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsFinished reports whether the order left the active queue.
func (s OrderStatus) IsFinished() bool {
	switch s {
	case OrderStatusCompletado, OrderStatusEntregado, OrderStatusCancelado:
		return true
	}
	return false
}

// IsRateable reports whether an order in this state may receive a rating.
func (s OrderStatus) IsRateable() bool {
	return s == OrderStatusCompletado || s == OrderStatusEntregado
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validOrderStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
