package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	product "github.com/Syntia28/nikos/internal/products"
	"github.com/Syntia28/nikos/pkg/checkout"
	"github.com/Syntia28/nikos/pkg/docstore"
	"github.com/Syntia28/nikos/pkg/enums"
	pkgerrors "github.com/Syntia28/nikos/pkg/errors"
	"github.com/Syntia28/nikos/pkg/logger"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc   *service
	store docstore.Store
	repo  *Repository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := docstore.NewMemoryStore(nil)
	products, err := product.NewRepository(store)
	require.NoError(t, err)
	repo, err := NewRepository(store)
	require.NoError(t, err)
	svc, err := NewService(repo, products, logger.Nop())
	require.NoError(t, err)
	impl := svc.(*service)
	impl.now = func() time.Time { return testNow }
	return fixture{svc: impl, store: store, repo: repo}
}

func (f fixture) seedOrder(t *testing.T, doc docstore.Document) string {
	t.Helper()
	created, err := f.store.Create(context.Background(), docstore.CollectionHistory, doc)
	require.NoError(t, err)
	return created.ID()
}

func (f fixture) seedProduct(t *testing.T, nombre string) string {
	t.Helper()
	created, err := f.store.Create(context.Background(), docstore.CollectionProducts, docstore.Document{
		"nombre": nombre,
		"precio": 20,
		"stock":  4,
	})
	require.NoError(t, err)
	return created.ID()
}

func TestListSortsMostRecentFirst(t *testing.T) {
	f := newFixture(t)
	for _, fecha := range []string{"2024-01-01T00:00:00Z", "2024-03-01T00:00:00Z", "2024-02-01T00:00:00Z"} {
		f.seedOrder(t, docstore.Document{"user_id": "u1", "fecha": fecha, "estado": "pendiente", "items": []any{}})
	}
	// Mixed timestamp shapes must compare on the same axis.
	f.seedOrder(t, docstore.Document{
		"user_id": "u1",
		"fecha":   map[string]any{"_seconds": time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC).Unix(), "_nanoseconds": 0},
		"estado":  "pendiente",
	})
	f.seedOrder(t, docstore.Document{"user_id": "u2", "fecha": "2024-03-10T00:00:00Z", "estado": "pendiente"})

	orders, err := f.svc.List(context.Background(), "u1", Filters{})
	require.NoError(t, err)
	require.Len(t, orders, 4)

	got := make([]string, 0, len(orders))
	for _, o := range orders {
		got = append(got, o.Fecha.Format("2006-01-02"))
	}
	require.Equal(t, []string{"2024-03-01", "2024-02-15", "2024-02-01", "2024-01-01"}, got)
}

func TestListSortsDateOnlyFechas(t *testing.T) {
	f := newFixture(t)
	for _, fecha := range []string{"2024-01-01", "2024-03-01", "2024-02-01"} {
		f.seedOrder(t, docstore.Document{"user_id": "u1", "fecha": fecha, "estado": "pendiente"})
	}

	orders, err := f.svc.List(context.Background(), "u1", Filters{})
	require.NoError(t, err)
	require.Len(t, orders, 3)

	got := make([]string, 0, len(orders))
	for _, o := range orders {
		got = append(got, o.Fecha.Format("2006-01-02"))
	}
	require.Equal(t, []string{"2024-03-01", "2024-02-01", "2024-01-01"}, got)
}

func TestListSkipsUndecodableOrders(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, docstore.Document{"user_id": "u1", "fecha": "2024-01-10T00:00:00Z", "estado": "pendiente"})
	f.seedOrder(t, docstore.Document{"user_id": "u1", "fecha": "Fri Mar 01 2024 10:00:00 GMT-0500", "estado": "pendiente"})
	f.seedOrder(t, docstore.Document{"user_id": "u1", "fecha": "pronto", "estado": "pendiente"})

	orders, err := f.svc.List(context.Background(), "u1", Filters{})
	require.NoError(t, err)
	require.Len(t, orders, 2)
	require.Equal(t, "2024-03-01", orders[0].Fecha.Format("2006-01-02"))
	require.Equal(t, "2024-01-10", orders[1].Fecha.Format("2006-01-02"))
}

// failingQueryStore fails every field query and delegates everything else.
type failingQueryStore struct {
	docstore.Store
}

func (failingQueryStore) QueryByField(context.Context, string, string, any) ([]docstore.Document, error) {
	return nil, errors.New("connection reset")
}

func TestListReturnsEmptyHistoryOnReadError(t *testing.T) {
	store := failingQueryStore{Store: docstore.NewMemoryStore(nil)}
	products, err := product.NewRepository(store)
	require.NoError(t, err)
	repo, err := NewRepository(store)
	require.NoError(t, err)
	svc, err := NewService(repo, products, logger.Nop())
	require.NoError(t, err)

	orders, err := svc.List(context.Background(), "u1", Filters{})
	require.NoError(t, err)
	require.NotNil(t, orders)
	require.Empty(t, orders)
}

func TestListSubstitutesPlaceholderForMissingProducts(t *testing.T) {
	f := newFixture(t)
	pizza := f.seedProduct(t, "Pizza")
	f.seedOrder(t, docstore.Document{
		"user_id": "u1",
		"fecha":   "2024-03-01T00:00:00Z",
		"estado":  "entregado",
		"total":   60,
		"items": []any{
			map[string]any{"idProducto": pizza, "cantidad": 2},
			map[string]any{"idProducto": "gone", "cantidad": 1},
		},
	})

	orders, err := f.svc.List(context.Background(), "u1", Filters{})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Len(t, orders[0].Items, 2)

	require.False(t, orders[0].Items[0].Missing)
	require.Equal(t, "Pizza", orders[0].Items[0].Producto.Nombre)

	missing := orders[0].Items[1]
	require.True(t, missing.Missing)
	require.Equal(t, "gone", missing.Producto.ID)
	require.Equal(t, MissingProductName, missing.Producto.Nombre)
	require.Equal(t, MissingProductDescription, missing.Producto.Descripcion)
	require.Zero(t, missing.Producto.Precio)
	require.Zero(t, missing.Producto.Stock)
	require.Equal(t, 1, missing.Cantidad)
	require.Equal(t, 60.0, orders[0].Total)
	require.True(t, orders[0].Rateable)
}

func TestListViewsAndFilters(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, docstore.Document{"user_id": "u1", "fecha": "2024-03-15T08:00:00Z", "estado": "pendiente"})
	f.seedOrder(t, docstore.Document{"user_id": "u1", "fecha": "2024-03-14T08:00:00Z", "estado": "en camino"})
	f.seedOrder(t, docstore.Document{"user_id": "u1", "fecha": "2024-03-15T09:00:00Z", "estado": "entregado"})
	f.seedOrder(t, docstore.Document{"user_id": "u1", "fecha": "2024-03-05T09:00:00Z", "estado": "cancelado"})
	f.seedOrder(t, docstore.Document{"user_id": "u1", "fecha": "2023-11-01T09:00:00Z", "estado": "completado"})

	cases := []struct {
		name    string
		filters Filters
		want    []string
	}{
		{name: "active", filters: Filters{View: ViewActive}, want: []string{"pendiente", "en camino"}},
		{name: "finished", filters: Filters{View: ViewFinished}, want: []string{"entregado", "cancelado", "completado"}},
		{name: "finished by estado", filters: Filters{View: ViewFinished, Estado: "cancelado"}, want: []string{"cancelado"}},
		{name: "finished today", filters: Filters{View: ViewFinished, Window: enums.HistoryWindowToday}, want: []string{"entregado"}},
		{name: "finished last week", filters: Filters{View: ViewFinished, Window: enums.HistoryWindowWeek}, want: []string{"entregado"}},
		{name: "finished last month", filters: Filters{View: ViewFinished, Window: enums.HistoryWindowMonth}, want: []string{"entregado", "cancelado"}},
		{name: "all", filters: Filters{}, want: []string{"entregado", "pendiente", "en camino", "cancelado", "completado"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			orders, err := f.svc.List(context.Background(), "u1", tc.filters)
			require.NoError(t, err)
			got := make([]string, 0, len(orders))
			for _, o := range orders {
				got = append(got, o.Estado)
			}
			require.Equal(t, tc.want, got)
		})
	}
}

func TestParseFilters(t *testing.T) {
	f, err := ParseFilters("finished", "todos", "")
	require.NoError(t, err)
	require.Equal(t, Filters{View: ViewFinished, Window: enums.HistoryWindowAll}, f)

	f, err = ParseFilters("", "Entregado", "7dias")
	require.NoError(t, err)
	require.Equal(t, "entregado", f.Estado)
	require.Equal(t, enums.HistoryWindowWeek, f.Window)

	for _, bad := range [][3]string{{"archived", "", ""}, {"", "perdido", ""}, {"", "", "1año"}} {
		_, err := ParseFilters(bad[0], bad[1], bad[2])
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "input %v", bad)
	}
}

func TestInWindow(t *testing.T) {
	require.True(t, InWindow(testNow.Add(-23*time.Hour), enums.HistoryWindowToday, testNow))
	require.False(t, InWindow(testNow.Add(-25*time.Hour), enums.HistoryWindowToday, testNow))
	require.True(t, InWindow(testNow.Add(-7*24*time.Hour-time.Hour), enums.HistoryWindowWeek, testNow))
	require.False(t, InWindow(testNow.Add(-8*24*time.Hour), enums.HistoryWindowWeek, testNow))
	require.True(t, InWindow(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), enums.HistoryWindowAll, testNow))
}

func TestSummary(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, docstore.Document{"user_id": "u1", "estado": "pendiente"})
	f.seedOrder(t, docstore.Document{"user_id": "u1", "estado": "pendiente"})
	f.seedOrder(t, docstore.Document{"user_id": "u1", "estado": "entregado"})

	sum, err := f.svc.Summary(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, 3, sum.Total)
	require.Equal(t, 2, sum.Active)
	require.Equal(t, 1, sum.Finished)
	require.Equal(t, map[string]int{"pendiente": 2, "entregado": 1}, sum.ByEstado)
}

func TestBuildTracking(t *testing.T) {
	pickup := BuildTracking("recojo", "listo para recojo")
	require.True(t, pickup.Pickup)
	require.Equal(t, 2, pickup.Index)
	require.Len(t, pickup.Steps, 4)
	require.True(t, pickup.Steps[0].Completed)
	require.True(t, pickup.Steps[1].Completed)
	require.True(t, pickup.Steps[2].Active)
	require.False(t, pickup.Steps[3].Completed)

	delivery := BuildTracking("delivery", "en camino")
	require.False(t, delivery.Pickup)
	require.Equal(t, 2, delivery.Index)
	require.Len(t, delivery.Steps, 5)

	require.Equal(t, 2, BuildTracking("pickup", "listo para recojo").Index)

	off := BuildTracking("recojo", "en camino")
	require.Equal(t, -1, off.Index)
	for _, step := range off.Steps {
		require.False(t, step.Active)
		require.False(t, step.Completed)
	}
}

func TestGetAndTrackingCheckOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec, err := f.repo.Create(ctx, NewOrder{
		UserID:       "u1",
		Items:        []LineRef{{IDProducto: "p1", Cantidad: 1}},
		Total:        20,
		Estado:       enums.OrderStatusListoParaRecojo,
		DatosEntrega: checkout.DeliveryDetails{TipoEntrega: "recojo", Telefono: "999"},
	}, testNow)
	require.NoError(t, err)

	tracking, err := f.svc.Tracking(ctx, "u1", rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec.ID, tracking.OrderID)
	require.Equal(t, 2, tracking.Index)

	order, err := f.svc.Get(ctx, "u1", rec.ID)
	require.NoError(t, err)
	require.True(t, order.Items[0].Missing)

	_, err = f.svc.Get(ctx, "u2", rec.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.Tracking(ctx, "u1", "nope")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestWatchRedeliversOnChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, docstore.Document{"user_id": "u1", "fecha": "2024-03-01T00:00:00Z", "estado": "pendiente"})

	var deliveries [][]Order
	stop, err := f.svc.Watch(ctx, "u1", Filters{View: ViewActive}, func(orders []Order) {
		deliveries = append(deliveries, orders)
	})
	require.NoError(t, err)
	defer stop()

	require.Len(t, deliveries, 1)
	require.Len(t, deliveries[0], 1)

	id := f.seedOrder(t, docstore.Document{"user_id": "u1", "fecha": "2024-03-02T00:00:00Z", "estado": "pendiente"})
	require.Len(t, deliveries, 2)
	require.Len(t, deliveries[1], 2)
	require.Equal(t, id, deliveries[1][0].ID)

	require.NoError(t, f.store.Update(ctx, docstore.CollectionHistory, id, docstore.Document{"estado": "entregado"}))
	require.Len(t, deliveries, 3)
	require.Len(t, deliveries[2], 1)

	stop()
	f.seedOrder(t, docstore.Document{"user_id": "u1", "estado": "pendiente"})
	require.Len(t, deliveries, 3)
}
