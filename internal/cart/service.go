package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	product "github.com/Syntia28/nikos/internal/products"
	"github.com/Syntia28/nikos/pkg/docstore"
	pkgerrors "github.com/Syntia28/nikos/pkg/errors"
	"github.com/Syntia28/nikos/pkg/logger"
)

// User-facing rejection messages.
const (
	MsgLoginRequired    = "Debes iniciar sesión para agregar productos al carrito"
	MsgQuantityPositive = "La cantidad debe ser mayor a 0"
	MsgNotInCart        = "El producto no está en el carrito"
)

// Rejection reasons reported to metrics.
const (
	reasonUnauthenticated = "unauthenticated"
	reasonQuantity        = "invalid_quantity"
	reasonStock           = "insufficient_stock"
)

// Service manages the per-user cart. Every mutation persists the full item list and
// re-resolves each line against the current product document.
type Service interface {
	Load(ctx context.Context, userID string) (*Cart, error)
	Add(ctx context.Context, userID, productID string, cantidad int) (*Cart, error)
	UpdateQuantity(ctx context.Context, userID, productID string, cantidad int) (*Cart, error)
	Remove(ctx context.Context, userID, productID string) (*Cart, error)
	Clear(ctx context.Context, userID string) (*Cart, error)
}

type productFinder interface {
	FindByID(ctx context.Context, id string) (*product.Product, error)
}

type rejectionRecorder interface {
	IncCartRejection(reason string)
}

type service struct {
	repo     *Repository
	products productFinder
	logg     *logger.Logger
	metrics  rejectionRecorder
	now      func() time.Time
}

// NewService wires the cart service; metrics may be nil.
func NewService(repo *Repository, products productFinder, logg *logger.Logger, metrics rejectionRecorder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product finder required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		products: products,
		logg:     logg,
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Load never fails on store errors: they are logged and an empty cart without id is returned.
func (s *service) Load(ctx context.Context, userID string) (*Cart, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, MsgLoginRequired)
	}
	ctx = s.logg.WithUserID(ctx, userID)

	c, err := s.load(ctx, userID)
	if err != nil {
		s.logg.Error(ctx, "cart load failed", err)
		return emptyCart(userID, ""), nil
	}
	return c, nil
}

func (s *service) load(ctx context.Context, userID string) (*Cart, error) {
	rec, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec, err = s.repo.Create(ctx, userID, s.now())
		if err != nil {
			return nil, err
		}
	}
	return s.resolve(ctx, rec.ID, userID, rec.Items)
}

// resolve reads every line's product; lines whose product is gone are dropped and the
// stored cart is rewritten without them.
func (s *service) resolve(ctx context.Context, cartID, userID string, lines []Line) (*Cart, error) {
	c := emptyCart(userID, cartID)
	for _, line := range lines {
		p, err := s.products.FindByID(ctx, line.IDProducto)
		if err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				s.logg.Warn(s.logg.WithProductID(ctx, line.IDProducto), "cart line product missing; dropping line")
				continue
			}
			return nil, err
		}
		c.Items = append(c.Items, ResolvedLine{Line: line, Producto: *p})
	}
	c.Total = Total(c.Items)

	if len(c.Items) < len(lines) && cartID != "" {
		if err := s.repo.SaveItems(ctx, cartID, c.Lines(), s.now()); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (s *service) loadForWrite(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "carrito no disponible")
	}
	return c, nil
}

func (s *service) Add(ctx context.Context, userID, productID string, cantidad int) (*Cart, error) {
	if strings.TrimSpace(userID) == "" {
		s.reject(reasonUnauthenticated)
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, MsgLoginRequired)
	}
	if cantidad <= 0 {
		s.reject(reasonQuantity)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, MsgQuantityPositive)
	}
	ctx = s.logg.WithUserID(ctx, userID)

	p, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if cantidad > p.Stock {
		s.reject(reasonStock)
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "Solo hay %d unidades disponibles", p.Stock)
	}

	c, err := s.loadForWrite(ctx, userID)
	if err != nil {
		return nil, err
	}

	lines := c.Lines()
	if idx, ok := c.find(productID); ok {
		existing := lines[idx].Cantidad
		if existing+cantidad > p.Stock {
			s.reject(reasonStock)
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "Solo puedes agregar %d unidades más", p.Stock-existing)
		}
		lines[idx].Cantidad = existing + cantidad
	} else {
		lines = append(lines, Line{IDProducto: productID, Cantidad: cantidad})
	}
	return s.persist(ctx, c, lines)
}

// UpdateQuantity validates against the stock seen by the last resolve pass; cantidad <= 0 removes the line.
func (s *service) UpdateQuantity(ctx context.Context, userID, productID string, cantidad int) (*Cart, error) {
	if cantidad <= 0 {
		return s.Remove(ctx, userID, productID)
	}
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, MsgLoginRequired)
	}
	ctx = s.logg.WithUserID(ctx, userID)

	c, err := s.loadForWrite(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx, ok := c.find(productID)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, MsgNotInCart)
	}
	if stock := c.Items[idx].Producto.Stock; cantidad > stock {
		s.reject(reasonStock)
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "Solo hay %d unidades disponibles", stock)
	}

	lines := c.Lines()
	lines[idx].Cantidad = cantidad
	return s.persist(ctx, c, lines)
}

func (s *service) Remove(ctx context.Context, userID, productID string) (*Cart, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, MsgLoginRequired)
	}
	ctx = s.logg.WithUserID(ctx, userID)

	c, err := s.loadForWrite(ctx, userID)
	if err != nil {
		return nil, err
	}
	lines := make([]Line, 0, len(c.Items))
	for _, l := range c.Lines() {
		if l.IDProducto != productID {
			lines = append(lines, l)
		}
	}
	return s.persist(ctx, c, lines)
}

func (s *service) Clear(ctx context.Context, userID string) (*Cart, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, MsgLoginRequired)
	}
	ctx = s.logg.WithUserID(ctx, userID)

	rec, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return emptyCart(userID, ""), nil
	}
	if err := s.repo.SaveItems(ctx, rec.ID, []Line{}, s.now()); err != nil {
		return nil, err
	}
	return emptyCart(userID, rec.ID), nil
}

func (s *service) persist(ctx context.Context, c *Cart, lines []Line) (*Cart, error) {
	if err := s.repo.SaveItems(ctx, c.ID, lines, s.now()); err != nil {
		return nil, err
	}
	return s.resolve(ctx, c.ID, c.UserID, lines)
}

func (s *service) reject(reason string) {
	if s.metrics != nil {
		s.metrics.IncCartRejection(reason)
	}
}

func emptyCart(userID, cartID string) *Cart {
	return &Cart{ID: cartID, UserID: userID, Items: []ResolvedLine{}}
}
