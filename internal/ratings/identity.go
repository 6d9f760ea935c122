package ratings

import (
	"strings"

	product "github.com/Syntia28/nikos/internal/products"
)

// IdentityKind names which fields identify a rating entry.
type IdentityKind int

const (
	// IdentityCompra matches on the purchase id.
	IdentityCompra IdentityKind = iota + 1
	// IdentityUserFecha matches on user id and exact fecha.
	IdentityUserFecha
	// IdentityEmailFecha matches on user email and exact fecha.
	IdentityEmailFecha
	// IdentityComposite matches on user id or email together with comment and score.
	IdentityComposite
)

// Identity returns the strongest identity both entries can be compared on.
func Identity(a, b product.Rating) IdentityKind {
	switch {
	case a.CompraID != "" && b.CompraID != "":
		return IdentityCompra
	case a.UserID != "" && b.UserID != "" && !a.Fecha.IsZero() && !b.Fecha.IsZero():
		return IdentityUserFecha
	case a.UserEmail != "" && b.UserEmail != "" && !a.Fecha.IsZero() && !b.Fecha.IsZero():
		return IdentityEmailFecha
	}
	return IdentityComposite
}

// Same reports whether two entries describe the same submission. The first identity both
// sides carry decides; weaker identities are not consulted.
func Same(a, b product.Rating) bool {
	switch Identity(a, b) {
	case IdentityCompra:
		return a.CompraID == b.CompraID
	case IdentityUserFecha:
		return a.UserID == b.UserID && a.Fecha.Equal(b.Fecha.Time)
	case IdentityEmailFecha:
		return strings.EqualFold(a.UserEmail, b.UserEmail) && a.Fecha.Equal(b.Fecha.Time)
	}
	sameUser := (a.UserID != "" && a.UserID == b.UserID) ||
		(a.UserEmail != "" && strings.EqualFold(a.UserEmail, b.UserEmail))
	return sameUser && a.Comment == b.Comment && a.Score == b.Score
}

// Merge appends incoming unless an equivalent entry already exists.
func Merge(existing []product.Rating, incoming product.Rating) ([]product.Rating, bool) {
	for _, r := range existing {
		if Same(r, incoming) {
			return existing, false
		}
	}
	out := make([]product.Rating, 0, len(existing)+1)
	out = append(out, existing...)
	return append(out, incoming), true
}
