package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/Syntia28/nikos/internal/cart"
	"github.com/Syntia28/nikos/internal/orders"
	product "github.com/Syntia28/nikos/internal/products"
	pkgcheckout "github.com/Syntia28/nikos/pkg/checkout"
	"github.com/Syntia28/nikos/pkg/docstore"
	"github.com/Syntia28/nikos/pkg/enums"
	pkgerrors "github.com/Syntia28/nikos/pkg/errors"
	"github.com/Syntia28/nikos/pkg/eventbus"
	"github.com/Syntia28/nikos/pkg/logger"
	"github.com/Syntia28/nikos/pkg/metrics"
)

// maxTxAttempts bounds how often an atomic checkout is replayed after the
// store aborts it for contention.
const maxTxAttempts = 3

// User-facing checkout messages.
const (
	MsgLoginRequired      = "Debe iniciar sesión para realizar la compra"
	MsgEmptyCart          = "El carrito está vacío"
	MsgProductUnavailable = "El producto no está disponible"
)

type cartLoader interface {
	Load(ctx context.Context, userID string) (*cart.Cart, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, name string, payload any)
}

type checkoutMetrics interface {
	ObserveCheckout(outcome string, duration time.Duration)
	IncStockDecrement()
}

// Service confirms the purchase of a user's cart.
type Service interface {
	Execute(ctx context.Context, userID string, details pkgcheckout.DeliveryDetails) (*orders.Record, error)
}

// ServiceParams wires the checkout service.
type ServiceParams struct {
	Store    docstore.Store
	Carts    cartLoader
	CartRepo *cart.Repository
	Products *product.Repository
	Orders   *orders.Repository
	Bus      eventEmitter
	Logger   *logger.Logger
	Metrics  checkoutMetrics
	// Atomic runs the write sequence inside a store transaction when Store supports one.
	Atomic bool
}

type service struct {
	store    docstore.Store
	carts    cartLoader
	cartRepo *cart.Repository
	products *product.Repository
	orders   *orders.Repository
	bus      eventEmitter
	logg     *logger.Logger
	metrics  checkoutMetrics
	atomic   bool
	now      func() time.Time
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("document store required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart loader required")
	}
	if params.CartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Bus == nil {
		return nil, fmt.Errorf("event bus required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		store:    params.Store,
		carts:    params.Carts,
		cartRepo: params.CartRepo,
		products: params.Products,
		orders:   params.Orders,
		bus:      params.Bus,
		logg:     params.Logger,
		metrics:  params.Metrics,
		atomic:   params.Atomic,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Execute re-checks and decrements stock line by line, writes the order and clears the cart.
// In the default mode each write is independent: a failing line leaves earlier decrements in
// place. Executing twice on the same cart state creates two orders.
func (s *service) Execute(ctx context.Context, userID string, details pkgcheckout.DeliveryDetails) (*orders.Record, error) {
	start := time.Now()
	if userID == "" {
		s.observe(metrics.OutcomeRejected, start)
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, MsgLoginRequired)
	}
	ctx = s.logg.WithUserID(ctx, userID)

	normalized, err := pkgcheckout.NormalizeDeliveryDetails(details, s.now())
	if err != nil {
		s.observe(metrics.OutcomeRejected, start)
		return nil, err
	}

	c, err := s.carts.Load(ctx, userID)
	if err != nil {
		s.observe(metrics.OutcomeFailed, start)
		return nil, err
	}
	if c.IsEmpty() {
		s.observe(metrics.OutcomeRejected, start)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, MsgEmptyCart)
	}
	if c.ID == "" {
		s.observe(metrics.OutcomeFailed, start)
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "carrito no disponible")
	}

	var order *orders.Record
	if tx, ok := s.store.(docstore.Transactional); ok && s.atomic {
		order, err = s.placeInTx(ctx, tx, c, normalized)
	} else {
		if s.atomic {
			s.logg.Warn(ctx, "document store has no transactions; checkout runs sequentially")
		}
		order, err = s.place(ctx, c, normalized, s.products, s.orders, s.cartRepo, false)
	}
	if err != nil {
		outcome := metrics.OutcomeFailed
		if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
			outcome = metrics.OutcomeStockConflict
		}
		s.observe(outcome, start)
		return nil, err
	}

	ctx = s.logg.WithOrderID(ctx, order.ID)
	s.logg.Info(ctx, "checkout completed")
	s.bus.Emit(ctx, eventbus.OrderCreated, OrderCreatedEvent{
		OrderID:      order.ID,
		UserID:       order.UserID,
		Items:        order.Items,
		Total:        order.Total,
		DatosEntrega: order.DatosEntrega,
	})
	s.observe(metrics.OutcomeSuccess, start)
	return order, nil
}

// placeInTx replays the transaction while the store reports a transient
// failure, such as a Postgres serialization error or a Firestore abort.
func (s *service) placeInTx(ctx context.Context, tx docstore.Transactional, c *cart.Cart, details pkgcheckout.DeliveryDetails) (*orders.Record, error) {
	var (
		order *orders.Record
		err   error
	)
	for attempt := 1; ; attempt++ {
		err = tx.RunInTx(ctx, func(txStore docstore.Store) error {
			var txErr error
			order, txErr = s.place(ctx, c, details, s.products.WithStore(txStore), s.orders.WithStore(txStore), s.cartRepo.WithStore(txStore), true)
			return txErr
		})
		if err == nil || attempt == maxTxAttempts || !pkgerrors.Transient(err) {
			return order, err
		}
		s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt), "checkout transaction aborted; retrying")
	}
}

// place runs the write sequence against the given repositories. strictClear makes a failed
// cart clear abort the whole unit; otherwise the order stands and the failure is logged.
func (s *service) place(
	ctx context.Context,
	c *cart.Cart,
	details pkgcheckout.DeliveryDetails,
	products *product.Repository,
	ordersRepo *orders.Repository,
	carts *cart.Repository,
	strictClear bool,
) (*orders.Record, error) {
	items := make([]orders.LineRef, 0, len(c.Items))
	for _, line := range c.Items {
		p, err := products.FindByID(ctx, line.IDProducto)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeStateConflict, MsgProductUnavailable).WithDetails(map[string]any{
					"product_id": line.IDProducto,
				})
			}
			return nil, err
		}
		if err := pkgcheckout.CheckStock(pkgcheckout.StockLine{
			ProductID: p.ID,
			Nombre:    p.Nombre,
			Stock:     p.Stock,
			Cantidad:  line.Cantidad,
		}); err != nil {
			return nil, err
		}
		if err := products.UpdateStock(ctx, p.ID, p.Stock-line.Cantidad); err != nil {
			return nil, err
		}
		if s.metrics != nil {
			s.metrics.IncStockDecrement()
		}
		items = append(items, orders.LineRef{IDProducto: line.IDProducto, Cantidad: line.Cantidad})
	}

	now := s.now()
	order, err := ordersRepo.Create(ctx, orders.NewOrder{
		UserID:       c.UserID,
		Items:        items,
		Total:        c.Total,
		Estado:       enums.OrderStatusPendiente,
		DatosEntrega: details,
	}, now)
	if err != nil {
		return nil, err
	}

	if err := carts.SaveItems(ctx, c.ID, []cart.Line{}, now); err != nil {
		if strictClear {
			return nil, err
		}
		s.logg.Error(s.logg.WithOrderID(ctx, order.ID), "cart clear after checkout failed", err)
	}
	return order, nil
}

func (s *service) observe(outcome string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveCheckout(outcome, time.Since(start))
	}
}
