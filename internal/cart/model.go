package cart

import (
	"github.com/shopspring/decimal"

	product "github.com/Syntia28/nikos/internal/products"
	"github.com/Syntia28/nikos/pkg/types"
)

// Line is a stored cart entry: a product reference and a quantity, never a price snapshot.
type Line struct {
	IDProducto string `json:"idProducto"`
	Cantidad   int    `json:"cantidad"`
}

// Record mirrors a carritos document.
type Record struct {
	ID     string          `json:"id"`
	UserID string          `json:"user_id"`
	Items  []Line          `json:"items"`
	Fecha  types.Timestamp `json:"fecha"`
}

// ResolvedLine pairs a stored line with the product as read during the last resolve pass.
type ResolvedLine struct {
	Line
	Producto product.Product `json:"producto"`
}

// Cart is the user's cart with every line resolved against live product data.
type Cart struct {
	ID     string         `json:"id,omitempty"`
	UserID string         `json:"user_id"`
	Items  []ResolvedLine `json:"items"`
	Total  float64        `json:"total"`
}

// Lines strips the resolved products back to stored references.
func (c *Cart) Lines() []Line {
	out := make([]Line, 0, len(c.Items))
	for _, item := range c.Items {
		out = append(out, item.Line)
	}
	return out
}

// IsEmpty reports whether no line resolved.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

func (c *Cart) find(productID string) (int, bool) {
	for i, item := range c.Items {
		if item.IDProducto == productID {
			return i, true
		}
	}
	return -1, false
}

// Total sums precio * cantidad over resolved lines, rounded to cents.
func Total(items []ResolvedLine) float64 {
	sum := decimal.Zero
	for _, item := range items {
		line := decimal.NewFromFloat(item.Producto.Precio).Mul(decimal.NewFromInt(int64(item.Cantidad)))
		sum = sum.Add(line)
	}
	return sum.Round(2).InexactFloat64()
}

func linesDocument(lines []Line) []any {
	out := make([]any, 0, len(lines))
	for _, l := range lines {
		out = append(out, map[string]any{"idProducto": l.IDProducto, "cantidad": l.Cantidad})
	}
	return out
}
