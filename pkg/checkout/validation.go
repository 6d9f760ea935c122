package checkout

import (
	"fmt"
	"strings"
	"time"

	"github.com/Syntia28/nikos/pkg/enums"
	pkgerrors "github.com/Syntia28/nikos/pkg/errors"
)

// PickupAddress replaces the address on pickup orders.
const PickupAddress = "Recojo en tienda"

// pickupSkew tolerates client clocks that run slightly behind the server.
const pickupSkew = time.Minute

// User-facing delivery validation messages.
const (
	MsgAddressRequired     = "La dirección es requerida para delivery"
	MsgPhoneRequired       = "El teléfono es requerido"
	MsgPickupDateRequired  = "La fecha de recojo es requerida"
	MsgPickupDateInvalid   = "La fecha de recojo no es válida"
	MsgPickupDateInPast    = "la fecha u hora debe ser actual o futura"
	MsgDeliveryTypeInvalid = "Tipo de entrega inválido"
	MsgPaymentInvalid      = "Método de pago inválido"
)

// DeliveryDetails is the datosEntrega block captured by the confirm-purchase form.
type DeliveryDetails struct {
	TipoEntrega string `json:"tipoEntrega"`
	TipoPago    string `json:"tipoPago"`
	MetodoPago  string `json:"metodoPago"`
	Direccion   string `json:"direccion"`
	Telefono    string `json:"telefono"`
	Referencia  string `json:"referencia"`
	FechaRecojo string `json:"fechaRecojo"`
}

// Document renders the details in their stored shape.
func (d DeliveryDetails) Document() map[string]any {
	return map[string]any{
		"tipoEntrega": d.TipoEntrega,
		"tipoPago":    d.TipoPago,
		"metodoPago":  d.MetodoPago,
		"direccion":   d.Direccion,
		"telefono":    d.Telefono,
		"referencia":  d.Referencia,
		"fechaRecojo": d.FechaRecojo,
	}
}

// IsPickup reports whether the order is collected in store.
func (d DeliveryDetails) IsPickup() bool {
	return enums.IsPickup(d.TipoEntrega)
}

// NormalizeDeliveryDetails validates the form and returns the details as they are persisted.
// Empty tipoEntrega defaults to delivery and empty metodoPago to efectivo.
func NormalizeDeliveryDetails(in DeliveryDetails, now time.Time) (DeliveryDetails, error) {
	out := DeliveryDetails{
		Direccion:  strings.TrimSpace(in.Direccion),
		Telefono:   strings.TrimSpace(in.Telefono),
		Referencia: strings.TrimSpace(in.Referencia),
		TipoPago:   string(enums.PaymentTypeContraEntrega),
	}

	tipo := enums.DeliveryTypeDelivery
	if raw := strings.TrimSpace(in.TipoEntrega); raw != "" {
		if enums.IsPickup(raw) {
			tipo = enums.DeliveryTypeRecojo
		} else {
			parsed, err := enums.ParseDeliveryType(raw)
			if err != nil {
				return DeliveryDetails{}, pkgerrors.New(pkgerrors.CodeValidation, MsgDeliveryTypeInvalid)
			}
			tipo = parsed
		}
	}
	out.TipoEntrega = tipo.String()

	metodo := enums.PaymentMethodEfectivo
	if raw := strings.TrimSpace(in.MetodoPago); raw != "" {
		parsed, err := enums.ParsePaymentMethod(raw)
		if err != nil {
			return DeliveryDetails{}, pkgerrors.New(pkgerrors.CodeValidation, MsgPaymentInvalid)
		}
		metodo = parsed
	}
	out.MetodoPago = metodo.String()

	if tipo == enums.DeliveryTypeDelivery && out.Direccion == "" {
		return DeliveryDetails{}, pkgerrors.New(pkgerrors.CodeValidation, MsgAddressRequired)
	}
	if out.Telefono == "" {
		return DeliveryDetails{}, pkgerrors.New(pkgerrors.CodeValidation, MsgPhoneRequired)
	}

	if tipo != enums.DeliveryTypeRecojo {
		return out, nil
	}

	raw := strings.TrimSpace(in.FechaRecojo)
	if raw == "" {
		return DeliveryDetails{}, pkgerrors.New(pkgerrors.CodeValidation, MsgPickupDateRequired)
	}
	pickup, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return DeliveryDetails{}, pkgerrors.New(pkgerrors.CodeValidation, MsgPickupDateInvalid)
	}
	if pickup.Before(now.Add(-pickupSkew)) {
		return DeliveryDetails{}, pkgerrors.New(pkgerrors.CodeValidation, MsgPickupDateInPast)
	}
	out.Direccion = PickupAddress
	out.FechaRecojo = pickup.UTC().Format(time.RFC3339)
	return out, nil
}

// StockLine is one cart line checked against the product's current stock.
type StockLine struct {
	ProductID string
	Nombre    string
	Stock     int
	Cantidad  int
}

// StockShortfallDetail is returned to callers when a line cannot be fulfilled.
type StockShortfallDetail struct {
	ProductID  string `json:"product_id"`
	Nombre     string `json:"nombre,omitempty"`
	Disponible int    `json:"disponible"`
	Solicitado int    `json:"solicitado"`
}

// CheckStock fails with STATE_CONFLICT when the requested quantity exceeds current stock.
func CheckStock(line StockLine) error {
	if line.Cantidad <= line.Stock {
		return nil
	}
	msg := fmt.Sprintf("No hay suficiente stock de %s. Stock disponible: %d", line.Nombre, line.Stock)
	return pkgerrors.New(pkgerrors.CodeStateConflict, msg).WithDetails(StockShortfallDetail{
		ProductID:  line.ProductID,
		Nombre:     line.Nombre,
		Disponible: line.Stock,
		Solicitado: line.Cantidad,
	})
}
