package orders

import (
	"strings"

	product "github.com/Syntia28/nikos/internal/products"
	"github.com/Syntia28/nikos/pkg/checkout"
	"github.com/Syntia28/nikos/pkg/enums"
	"github.com/Syntia28/nikos/pkg/types"
)

// LineRef is a stored order line: product id and quantity only.
type LineRef struct {
	IDProducto string `json:"idProducto"`
	Cantidad   int    `json:"cantidad"`
}

// Calificacion is the rating stamped once onto an order.
type Calificacion struct {
	Score   int             `json:"score"`
	Comment string          `json:"comment"`
	Fecha   types.Timestamp `json:"fecha"`
	UserID  string          `json:"userId"`
}

// Record mirrors a historial document.
type Record struct {
	ID           string                   `json:"id"`
	UserID       string                   `json:"user_id"`
	Items        []LineRef                `json:"items"`
	Total        float64                  `json:"total"`
	Fecha        types.Timestamp          `json:"fecha"`
	Estado       string                   `json:"estado"`
	DatosEntrega checkout.DeliveryDetails `json:"datosEntrega"`
	Calificacion *Calificacion            `json:"calificacion,omitempty"`
}

// Status normalizes the stored estado.
func (r Record) Status() enums.OrderStatus {
	return enums.OrderStatus(strings.ToLower(strings.TrimSpace(r.Estado)))
}

// IsRated reports whether the order already carries a calificacion.
func (r Record) IsRated() bool {
	return r.Calificacion != nil
}

// NewOrder carries the fields written once at checkout.
type NewOrder struct {
	UserID       string
	Items        []LineRef
	Total        float64
	Estado       enums.OrderStatus
	DatosEntrega checkout.DeliveryDetails
}

// Line is an order line resolved against the catalog. Missing marks a placeholder
// standing in for a product that no longer resolves.
type Line struct {
	IDProducto string          `json:"idProducto"`
	Cantidad   int             `json:"cantidad"`
	Producto   product.Product `json:"producto"`
	Missing    bool            `json:"missing"`
}

// Order is a historial record with its lines resolved.
type Order struct {
	ID           string                   `json:"id"`
	UserID       string                   `json:"user_id"`
	Items        []Line                   `json:"items"`
	Total        float64                  `json:"total"`
	Fecha        types.Timestamp          `json:"fecha"`
	Estado       string                   `json:"estado"`
	DatosEntrega checkout.DeliveryDetails `json:"datosEntrega"`
	Calificacion *Calificacion            `json:"calificacion,omitempty"`
	Finished     bool                     `json:"finished"`
	Rateable     bool                     `json:"rateable"`
}

// View selects which slice of the history is returned.
type View string

const (
	ViewAll      View = ""
	ViewActive   View = "active"
	ViewFinished View = "finished"
)

// EstadoAll disables the estado filter.
const EstadoAll = "todos"

// Filters narrow a history listing.
type Filters struct {
	View   View
	Estado string
	Window enums.HistoryWindow
}

// Summary counts a user's orders per bucket.
type Summary struct {
	Total    int            `json:"total"`
	Active   int            `json:"active"`
	Finished int            `json:"finished"`
	ByEstado map[string]int `json:"by_estado"`
}

// Step is one entry of a tracking flow.
type Step struct {
	Estado    enums.OrderStatus `json:"estado"`
	Active    bool              `json:"active"`
	Completed bool              `json:"completed"`
}

// Tracking is the progress view of one order. Index is -1 when the estado is not part of the flow.
type Tracking struct {
	OrderID string `json:"order_id"`
	Estado  string `json:"estado"`
	Pickup  bool   `json:"pickup"`
	Index   int    `json:"index"`
	Steps   []Step `json:"steps"`
}
