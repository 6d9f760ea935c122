package product

import (
	"github.com/shopspring/decimal"

	"github.com/Syntia28/nikos/pkg/docstore"
	"github.com/Syntia28/nikos/pkg/types"
)

// Product mirrors a productos document.
type Product struct {
	ID                  string          `json:"id"`
	Nombre              string          `json:"nombre"`
	Descripcion         string          `json:"descripcion"`
	Tamanio             string          `json:"tamanio"`
	Precio              float64         `json:"precio"`
	ImagenURL           string          `json:"imagenUrl"`
	Stock               int             `json:"stock"`
	CreatedAt           types.Timestamp `json:"createdAt"`
	Calificaciones      []Rating        `json:"calificaciones"`
	RatingPromedio      float64         `json:"ratingPromedio"`
	TotalCalificaciones int             `json:"totalCalificaciones"`
}

// Rating is one entry of a product's calificaciones array.
type Rating struct {
	UserID    string          `json:"userId"`
	UserEmail string          `json:"userEmail"`
	UserName  string          `json:"userName"`
	Score     int             `json:"score"`
	Comment   string          `json:"comment,omitempty"`
	Fecha     types.Timestamp `json:"fecha"`
	CompraID  string          `json:"compraId,omitempty"`
}

// Document renders the entry with a native time so every backend stores a real timestamp.
func (r Rating) Document() map[string]any {
	return map[string]any{
		"userId":    r.UserID,
		"userEmail": r.UserEmail,
		"userName":  r.UserName,
		"score":     r.Score,
		"comment":   r.Comment,
		"fecha":     r.Fecha.Time,
		"compraId":  r.CompraID,
	}
}

// legacySizeField is the accented key older catalog documents use for the size.
const legacySizeField = "tamaño"

func decodeProduct(doc docstore.Document) (*Product, error) {
	var p Product
	if err := docstore.Decode(doc, &p); err != nil {
		return nil, err
	}
	if p.Tamanio == "" {
		if legacy, ok := doc[legacySizeField].(string); ok {
			p.Tamanio = legacy
		}
	}
	if p.Calificaciones == nil {
		p.Calificaciones = []Rating{}
	}
	if len(p.Calificaciones) > 0 && p.TotalCalificaciones != len(p.Calificaciones) {
		p.RatingPromedio, p.TotalCalificaciones = Aggregate(p.Calificaciones)
	}
	return &p, nil
}

// Aggregate returns the mean score rounded to one decimal and the entry count.
func Aggregate(ratings []Rating) (float64, int) {
	if len(ratings) == 0 {
		return 0, 0
	}
	sum := decimal.Zero
	for _, r := range ratings {
		sum = sum.Add(decimal.NewFromInt(int64(r.Score)))
	}
	mean := sum.Div(decimal.NewFromInt(int64(len(ratings)))).Round(1)
	return mean.InexactFloat64(), len(ratings)
}
