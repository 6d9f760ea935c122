package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/Syntia28/nikos/internal/cart"
	"github.com/Syntia28/nikos/internal/orders"
	product "github.com/Syntia28/nikos/internal/products"
	pkgcheckout "github.com/Syntia28/nikos/pkg/checkout"
	"github.com/Syntia28/nikos/pkg/docstore"
	pkgerrors "github.com/Syntia28/nikos/pkg/errors"
	"github.com/Syntia28/nikos/pkg/eventbus"
	"github.com/Syntia28/nikos/pkg/logger"
	"github.com/Syntia28/nikos/pkg/metrics"
)

var testNow = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

var deliveryDetails = pkgcheckout.DeliveryDetails{
	TipoEntrega: "delivery",
	MetodoPago:  "plin",
	Direccion:   "Av. Arequipa 123",
	Telefono:    "987654321",
}

type outcomeRecorder struct {
	outcomes   []string
	decrements int
}

func (o *outcomeRecorder) ObserveCheckout(outcome string, _ time.Duration) {
	o.outcomes = append(o.outcomes, outcome)
}

func (o *outcomeRecorder) IncStockDecrement() { o.decrements++ }

type fixedCart struct {
	cart *cart.Cart
}

func (f fixedCart) Load(context.Context, string) (*cart.Cart, error) {
	return f.cart, nil
}

type fixture struct {
	store    *docstore.MemoryStore
	carts    cart.Service
	cartRepo *cart.Repository
	products *product.Repository
	orders   *orders.Repository
	bus      *eventbus.Bus
	metrics  *outcomeRecorder
	events   []OrderCreatedEvent
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := docstore.NewMemoryStore(nil)
	products, err := product.NewRepository(store)
	require.NoError(t, err)
	cartRepo, err := cart.NewRepository(store)
	require.NoError(t, err)
	ordersRepo, err := orders.NewRepository(store)
	require.NoError(t, err)
	carts, err := cart.NewService(cartRepo, products, logger.Nop(), nil)
	require.NoError(t, err)

	f := &fixture{
		store:    store,
		carts:    carts,
		cartRepo: cartRepo,
		products: products,
		orders:   ordersRepo,
		bus:      eventbus.New(logger.Nop()),
		metrics:  &outcomeRecorder{},
	}
	f.bus.Subscribe(eventbus.OrderCreated, func(_ context.Context, evt eventbus.Event) error {
		f.events = append(f.events, evt.Payload.(OrderCreatedEvent))
		return nil
	})
	return f
}

func (f *fixture) service(t *testing.T, loader cartLoader, atomic bool) Service {
	t.Helper()
	if loader == nil {
		loader = f.carts
	}
	svc, err := NewService(ServiceParams{
		Store:    f.store,
		Carts:    loader,
		CartRepo: f.cartRepo,
		Products: f.products,
		Orders:   f.orders,
		Bus:      f.bus,
		Logger:   logger.Nop(),
		Metrics:  f.metrics,
		Atomic:   atomic,
	})
	require.NoError(t, err)
	svc.(*service).now = func() time.Time { return testNow }
	return svc
}

func (f *fixture) seedProduct(t *testing.T, nombre string, precio float64, stock int) string {
	t.Helper()
	doc, err := f.store.Create(context.Background(), docstore.CollectionProducts, docstore.Document{
		"nombre": nombre,
		"precio": precio,
		"stock":  stock,
	})
	require.NoError(t, err)
	return doc.ID()
}

func (f *fixture) stockOf(t *testing.T, id string) int {
	t.Helper()
	p, err := f.products.FindByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) setStock(t *testing.T, id string, stock int) {
	t.Helper()
	require.NoError(t, f.products.UpdateStock(context.Background(), id, stock))
}

func (f *fixture) orderCount(t *testing.T, userID string) int {
	t.Helper()
	records, err := f.orders.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	return len(records)
}

func TestExecuteDecrementsStockWritesOrderAndClearsCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pizza := f.seedProduct(t, "Pizza Americana", 32.5, 10)
	soda := f.seedProduct(t, "Gaseosa", 7, 5)

	_, err := f.carts.Add(ctx, "u1", pizza, 2)
	require.NoError(t, err)
	_, err = f.carts.Add(ctx, "u1", soda, 1)
	require.NoError(t, err)

	order, err := f.service(t, nil, false).Execute(ctx, "u1", deliveryDetails)
	require.NoError(t, err)

	require.Equal(t, "u1", order.UserID)
	require.Equal(t, "pendiente", order.Estado)
	require.Equal(t, 72.0, order.Total)
	require.Equal(t, []orders.LineRef{{IDProducto: pizza, Cantidad: 2}, {IDProducto: soda, Cantidad: 1}}, order.Items)
	require.Equal(t, "contra-entrega", order.DatosEntrega.TipoPago)
	require.Equal(t, "plin", order.DatosEntrega.MetodoPago)
	require.True(t, order.Fecha.Equal(testNow))

	require.Equal(t, 8, f.stockOf(t, pizza))
	require.Equal(t, 4, f.stockOf(t, soda))

	rec, err := f.cartRepo.FindByUser(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, rec.Items)

	require.Len(t, f.events, 1)
	require.Equal(t, order.ID, f.events[0].OrderID)
	require.Equal(t, []string{metrics.OutcomeSuccess}, f.metrics.outcomes)
	require.Equal(t, 2, f.metrics.decrements)
}

func TestExecuteAbortsWhenStockIsShort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pizza := f.seedProduct(t, "Pizza", 30, 10)

	_, err := f.carts.Add(ctx, "u1", pizza, 5)
	require.NoError(t, err)
	f.setStock(t, pizza, 3)

	_, err = f.service(t, nil, false).Execute(ctx, "u1", deliveryDetails)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	require.Equal(t, "No hay suficiente stock de Pizza. Stock disponible: 3", typed.Message())

	require.Equal(t, 3, f.stockOf(t, pizza))
	require.Zero(t, f.orderCount(t, "u1"))
	require.Empty(t, f.events)
	require.Equal(t, []string{metrics.OutcomeStockConflict}, f.metrics.outcomes)
}

func TestExecuteKeepsEarlierDecrementsWhenALaterLineFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.seedProduct(t, "Pizza", 30, 10)
	second := f.seedProduct(t, "Calzone", 25, 10)

	_, err := f.carts.Add(ctx, "u1", first, 2)
	require.NoError(t, err)
	_, err = f.carts.Add(ctx, "u1", second, 4)
	require.NoError(t, err)
	f.setStock(t, second, 1)

	_, err = f.service(t, nil, false).Execute(ctx, "u1", deliveryDetails)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	require.Equal(t, 8, f.stockOf(t, first))
	require.Equal(t, 1, f.stockOf(t, second))
	require.Zero(t, f.orderCount(t, "u1"))

	rec, err := f.cartRepo.FindByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rec.Items, 2)
}

func TestExecuteAtomicLeavesStockUntouchedOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.seedProduct(t, "Pizza", 30, 10)
	second := f.seedProduct(t, "Calzone", 25, 10)

	_, err := f.carts.Add(ctx, "u1", first, 2)
	require.NoError(t, err)
	_, err = f.carts.Add(ctx, "u1", second, 4)
	require.NoError(t, err)
	f.setStock(t, second, 1)

	svc := f.service(t, nil, true)
	_, err = svc.Execute(ctx, "u1", deliveryDetails)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	require.Equal(t, 10, f.stockOf(t, first))
	require.Zero(t, f.orderCount(t, "u1"))

	f.setStock(t, second, 10)
	order, err := svc.Execute(ctx, "u1", deliveryDetails)
	require.NoError(t, err)
	require.Equal(t, 8, f.stockOf(t, first))
	require.Equal(t, 6, f.stockOf(t, second))
	require.Equal(t, 1, f.orderCount(t, "u1"))
	require.Len(t, f.events, 1)
	require.Equal(t, order.ID, f.events[0].OrderID)
}

// contendedStore aborts the first failures transactions the way Postgres
// reports a serialization failure.
type contendedStore struct {
	*docstore.MemoryStore
	failures int
	attempts int
}

func (s *contendedStore) RunInTx(ctx context.Context, fn func(tx docstore.Store) error) error {
	s.attempts++
	if s.failures > 0 {
		s.failures--
		return pkgerrors.Wrap(pkgerrors.CodeDependency, &pgconn.PgError{Code: "40001"}, "commit checkout")
	}
	return s.MemoryStore.RunInTx(ctx, fn)
}

func (f *fixture) contendedService(t *testing.T, store *contendedStore) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Store:    store,
		Carts:    f.carts,
		CartRepo: f.cartRepo,
		Products: f.products,
		Orders:   f.orders,
		Bus:      f.bus,
		Logger:   logger.Nop(),
		Metrics:  f.metrics,
		Atomic:   true,
	})
	require.NoError(t, err)
	svc.(*service).now = func() time.Time { return testNow }
	return svc
}

func TestExecuteAtomicRetriesSerializationFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pizza := f.seedProduct(t, "Pizza", 30, 10)
	_, err := f.carts.Add(ctx, "u1", pizza, 2)
	require.NoError(t, err)

	store := &contendedStore{MemoryStore: f.store, failures: 2}
	order, err := f.contendedService(t, store).Execute(ctx, "u1", deliveryDetails)
	require.NoError(t, err)
	require.Equal(t, 3, store.attempts)
	require.Equal(t, 8, f.stockOf(t, pizza))
	require.Equal(t, 1, f.orderCount(t, "u1"))
	require.Equal(t, order.ID, f.events[0].OrderID)
}

func TestExecuteAtomicGivesUpAfterRepeatedAborts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pizza := f.seedProduct(t, "Pizza", 30, 10)
	_, err := f.carts.Add(ctx, "u1", pizza, 2)
	require.NoError(t, err)

	store := &contendedStore{MemoryStore: f.store, failures: 10}
	_, err = f.contendedService(t, store).Execute(ctx, "u1", deliveryDetails)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	require.Equal(t, maxTxAttempts, store.attempts)
	require.Equal(t, 10, f.stockOf(t, pizza))
	require.Zero(t, f.orderCount(t, "u1"))
}

func TestExecuteAtomicDoesNotRetryStockConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pizza := f.seedProduct(t, "Pizza", 30, 10)
	_, err := f.carts.Add(ctx, "u1", pizza, 4)
	require.NoError(t, err)
	f.setStock(t, pizza, 1)

	store := &contendedStore{MemoryStore: f.store}
	_, err = f.contendedService(t, store).Execute(ctx, "u1", deliveryDetails)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	require.Equal(t, 1, store.attempts)
}

func TestExecuteTwiceOnSameCartStateCreatesTwoOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pizza := f.seedProduct(t, "Pizza", 30, 10)

	loaded, err := f.carts.Add(ctx, "u1", pizza, 2)
	require.NoError(t, err)

	svc := f.service(t, fixedCart{cart: loaded}, false)
	first, err := svc.Execute(ctx, "u1", deliveryDetails)
	require.NoError(t, err)
	second, err := svc.Execute(ctx, "u1", deliveryDetails)
	require.NoError(t, err)

	require.NotEqual(t, first.ID, second.ID)
	require.Equal(t, 6, f.stockOf(t, pizza))
	require.Equal(t, 2, f.orderCount(t, "u1"))
}

func TestExecuteAbortsWhenProductDisappears(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pizza := f.seedProduct(t, "Pizza", 30, 10)

	loaded, err := f.carts.Add(ctx, "u1", pizza, 1)
	require.NoError(t, err)
	require.NoError(t, f.store.Delete(ctx, docstore.CollectionProducts, pizza))

	_, err = f.service(t, fixedCart{cart: loaded}, false).Execute(ctx, "u1", deliveryDetails)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, MsgProductUnavailable, typed.Message())
	require.Zero(t, f.orderCount(t, "u1"))
}

func TestExecuteRejectsBeforeAnyWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pizza := f.seedProduct(t, "Pizza", 30, 10)
	svc := f.service(t, nil, false)

	_, err := svc.Execute(ctx, "", deliveryDetails)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = svc.Execute(ctx, "u1", deliveryDetails)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, MsgEmptyCart, typed.Message())

	_, err = f.carts.Add(ctx, "u1", pizza, 1)
	require.NoError(t, err)
	_, err = svc.Execute(ctx, "u1", pkgcheckout.DeliveryDetails{TipoEntrega: "delivery", Telefono: "999"})
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgcheckout.MsgAddressRequired, typed.Message())

	require.Equal(t, 10, f.stockOf(t, pizza))
	require.Zero(t, f.orderCount(t, "u1"))
	require.Equal(t, []string{metrics.OutcomeRejected, metrics.OutcomeRejected, metrics.OutcomeRejected}, f.metrics.outcomes)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}
