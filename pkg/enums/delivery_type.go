package enums

import (
	"fmt"
	"strings"
)

// DeliveryType is the tipoEntrega chosen at checkout.
type DeliveryType string

const (
	DeliveryTypeDelivery DeliveryType = "delivery"
	DeliveryTypeRecojo   DeliveryType = "recojo"
)

var validDeliveryTypes = []DeliveryType{
	DeliveryTypeDelivery,
	DeliveryTypeRecojo,
}

// String implements fmt.Stringer.
func (d DeliveryType) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeliveryType.
func (d DeliveryType) IsValid() bool {
	for _, candidate := range validDeliveryTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// IsPickup reports whether a stored tipoEntrega selects the pickup flow; "pickup" is accepted as an alias.
func IsPickup(raw string) bool {
	v := strings.ToLower(strings.TrimSpace(raw))
	return v == string(DeliveryTypeRecojo) || v == "pickup"
}

// ParseDeliveryType converts raw input into a DeliveryType.
func ParseDeliveryType(value string) (DeliveryType, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validDeliveryTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery type %q", value)
}
