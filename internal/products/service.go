package product

import (
	"context"
	"fmt"
	"strings"

	pkgerrors "github.com/Syntia28/nikos/pkg/errors"
	"github.com/Syntia28/nikos/pkg/logger"
)

// Search fields accepted by List.
const (
	SearchFieldNombre      = "nombre"
	SearchFieldDescripcion = "descripcion"
)

// Service exposes the catalog read paths and the rating append used after a purchase.
type Service interface {
	List(ctx context.Context, input ListInput) ([]Product, error)
	Get(ctx context.Context, id string) (*Product, error)
	AppendRating(ctx context.Context, productID string, rating Rating, merge MergeFunc) (*Product, error)
}

// MergeFunc folds an incoming rating into the existing entries. It reports false when the
// rating is already present, in which case nothing is written.
type MergeFunc func(existing []Rating, incoming Rating) ([]Rating, bool)

// ListInput narrows the catalog by a case-insensitive substring. An empty Field matches
// against both nombre and descripcion.
type ListInput struct {
	Query string
	Field string
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo.withLogger(logg)}, nil
}

func (s *service) List(ctx context.Context, input ListInput) ([]Product, error) {
	field := strings.ToLower(strings.TrimSpace(input.Field))
	if field != "" && field != SearchFieldNombre && field != SearchFieldDescripcion {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "campo de búsqueda inválido: %s", input.Field)
	}

	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(input.Query))
	if query == "" {
		return products, nil
	}

	filtered := make([]Product, 0, len(products))
	for _, p := range products {
		if matchesSearch(p, field, query) {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

func matchesSearch(p Product, field, query string) bool {
	switch field {
	case SearchFieldNombre:
		return strings.Contains(strings.ToLower(p.Nombre), query)
	case SearchFieldDescripcion:
		return strings.Contains(strings.ToLower(p.Descripcion), query)
	}
	return strings.Contains(strings.ToLower(p.Nombre), query) ||
		strings.Contains(strings.ToLower(p.Descripcion), query)
}

func (s *service) Get(ctx context.Context, id string) (*Product, error) {
	if strings.TrimSpace(id) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	return s.repo.FindByID(ctx, id)
}

// AppendRating is a read-modify-write on one product; concurrent appends are last-write-wins.
// A nil merge appends unconditionally.
func (s *service) AppendRating(ctx context.Context, productID string, rating Rating, merge MergeFunc) (*Product, error) {
	p, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	ratings := append(append([]Rating{}, p.Calificaciones...), rating)
	if merge != nil {
		var added bool
		ratings, added = merge(p.Calificaciones, rating)
		if !added {
			return p, nil
		}
	}
	avg, total, err := s.repo.SaveRatings(ctx, productID, ratings)
	if err != nil {
		return nil, err
	}
	p.Calificaciones = ratings
	p.RatingPromedio = avg
	p.TotalCalificaciones = total
	return p, nil
}
