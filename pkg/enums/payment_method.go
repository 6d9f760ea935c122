package enums

import (
	"fmt"
	"strings"
)

// PaymentMethod is the metodoPago a customer settles with on delivery or pickup.
type PaymentMethod string

const (
	PaymentMethodEfectivo PaymentMethod = "efectivo"
	PaymentMethodYape     PaymentMethod = "yape"
	PaymentMethodPlin     PaymentMethod = "plin"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodEfectivo,
	PaymentMethodYape,
	PaymentMethodPlin,
}

// PaymentType is the tipoPago; the storefront only offers cash on delivery.
type PaymentType string

const PaymentTypeContraEntrega PaymentType = "contra-entrega"

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validPaymentMethods {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
