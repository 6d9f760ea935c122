package orders

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	product "github.com/Syntia28/nikos/internal/products"
	"github.com/Syntia28/nikos/pkg/enums"
	pkgerrors "github.com/Syntia28/nikos/pkg/errors"
	"github.com/Syntia28/nikos/pkg/logger"
)

// Placeholder texts for lines whose product no longer resolves.
const (
	MissingProductName        = "[Producto eliminado]"
	MissingProductDescription = "Este producto ya no está disponible"
)

// Service reads a user's order history.
type Service interface {
	List(ctx context.Context, userID string, filters Filters) ([]Order, error)
	Watch(ctx context.Context, userID string, filters Filters, fn func([]Order)) (func(), error)
	Summary(ctx context.Context, userID string) (*Summary, error)
	Get(ctx context.Context, userID, orderID string) (*Order, error)
	Tracking(ctx context.Context, userID, orderID string) (*Tracking, error)
}

type productFinder interface {
	FindByID(ctx context.Context, id string) (*product.Product, error)
}

type service struct {
	repo     *Repository
	products productFinder
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(repo *Repository, products productFinder, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product finder required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo.withLogger(logg),
		products: products,
		logg:     logg,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// ParseFilters validates raw query values. Empty values disable the corresponding filter.
func ParseFilters(view, estado, window string) (Filters, error) {
	var f Filters
	switch View(strings.ToLower(strings.TrimSpace(view))) {
	case ViewAll:
	case ViewActive:
		f.View = ViewActive
	case ViewFinished:
		f.View = ViewFinished
	default:
		return Filters{}, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid view %q", view)
	}

	estado = strings.ToLower(strings.TrimSpace(estado))
	if estado != "" && estado != EstadoAll {
		status, err := enums.ParseOrderStatus(estado)
		if err != nil {
			return Filters{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid estado")
		}
		f.Estado = status.String()
	}

	w, err := enums.ParseHistoryWindow(window)
	if err != nil {
		return Filters{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid window")
	}
	f.Window = w
	return f, nil
}

// List never surfaces store read failures; they are logged and an empty history is returned.
func (s *service) List(ctx context.Context, userID string, filters Filters) ([]Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.SignInRequired()
	}
	ctx = s.logg.WithUserID(ctx, userID)

	records, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		s.logg.Error(ctx, "order history load failed", err)
		return []Order{}, nil
	}
	return s.apply(s.mapOrders(ctx, records), filters), nil
}

// Watch re-runs the full mapping pass on every change to the user's orders.
func (s *service) Watch(ctx context.Context, userID string, filters Filters, fn func([]Order)) (func(), error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.SignInRequired()
	}
	if fn == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "watch callback required")
	}
	ctx = s.logg.WithUserID(ctx, userID)

	return s.repo.WatchByUser(ctx, userID, func(records []Record, err error) {
		if err != nil {
			s.logg.Error(ctx, "order history watch failed", err)
			return
		}
		fn(s.apply(s.mapOrders(ctx, records), filters))
	})
}

func (s *service) Summary(ctx context.Context, userID string) (*Summary, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.SignInRequired()
	}
	records, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return summarize(records), nil
}

func (s *service) Get(ctx context.Context, userID, orderID string) (*Order, error) {
	rec, err := s.owned(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	order := s.mapOrder(ctx, *rec, map[string]*product.Product{})
	return &order, nil
}

func (s *service) Tracking(ctx context.Context, userID, orderID string) (*Tracking, error) {
	rec, err := s.owned(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	tracking := BuildTracking(rec.DatosEntrega.TipoEntrega, rec.Estado)
	tracking.OrderID = rec.ID
	return &tracking, nil
}

func (s *service) owned(ctx context.Context, userID, orderID string) (*Record, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.SignInRequired()
	}
	if strings.TrimSpace(orderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	rec, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if rec.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}
	return rec, nil
}

func (s *service) mapOrders(ctx context.Context, records []Record) []Order {
	SortRecords(records)
	cache := make(map[string]*product.Product)
	out := make([]Order, 0, len(records))
	for _, rec := range records {
		out = append(out, s.mapOrder(ctx, rec, cache))
	}
	return out
}

// mapOrder substitutes a placeholder for every line whose product fails to resolve.
func (s *service) mapOrder(ctx context.Context, rec Record, cache map[string]*product.Product) Order {
	lines := make([]Line, 0, len(rec.Items))
	for _, item := range rec.Items {
		p, ok := cache[item.IDProducto]
		if !ok {
			found, err := s.products.FindByID(ctx, item.IDProducto)
			if err != nil {
				if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
					s.logg.Warn(s.logg.WithProductID(ctx, item.IDProducto), "order line product read failed")
				}
				found = nil
			}
			cache[item.IDProducto] = found
			p = found
		}
		line := Line{IDProducto: item.IDProducto, Cantidad: item.Cantidad}
		if p == nil {
			line.Producto = placeholderProduct(item.IDProducto)
			line.Missing = true
		} else {
			line.Producto = *p
		}
		lines = append(lines, line)
	}

	status := rec.Status()
	return Order{
		ID:           rec.ID,
		UserID:       rec.UserID,
		Items:        lines,
		Total:        rec.Total,
		Fecha:        rec.Fecha,
		Estado:       rec.Estado,
		DatosEntrega: rec.DatosEntrega,
		Calificacion: rec.Calificacion,
		Finished:     status.IsFinished(),
		Rateable:     status.IsRateable() && !rec.IsRated(),
	}
}

func placeholderProduct(id string) product.Product {
	return product.Product{
		ID:             id,
		Nombre:         MissingProductName,
		Descripcion:    MissingProductDescription,
		Calificaciones: []product.Rating{},
	}
}

func (s *service) apply(orders []Order, filters Filters) []Order {
	now := s.now()
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		switch filters.View {
		case ViewActive:
			if o.Finished {
				continue
			}
		case ViewFinished:
			if !o.Finished {
				continue
			}
		}
		if filters.Estado != "" && !strings.EqualFold(strings.TrimSpace(o.Estado), filters.Estado) {
			continue
		}
		if !InWindow(o.Fecha.Time, filters.Window, now) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// SortRecords orders by fecha, most recent first.
func SortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Fecha.After(records[j].Fecha.Time)
	})
}

// InWindow compares whole days elapsed, floor((now - fecha) / 24h), against the window.
func InWindow(fecha time.Time, window enums.HistoryWindow, now time.Time) bool {
	limit := window.MaxDays()
	if limit < 0 {
		return true
	}
	days := int(math.Floor(now.Sub(fecha).Hours() / 24))
	if window == enums.HistoryWindowToday {
		return days == 0
	}
	return days <= limit
}

func summarize(records []Record) *Summary {
	sum := &Summary{ByEstado: make(map[string]int)}
	for _, rec := range records {
		sum.Total++
		if rec.Status().IsFinished() {
			sum.Finished++
		} else {
			sum.Active++
		}
		sum.ByEstado[string(rec.Status())]++
	}
	return sum
}
