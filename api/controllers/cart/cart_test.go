package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/Syntia28/nikos/api/middleware"
	cartsvc "github.com/Syntia28/nikos/internal/cart"
	pkgerrors "github.com/Syntia28/nikos/pkg/errors"
)

type call struct {
	op        string
	userID    string
	productID string
	cantidad  int
}

type stubCartService struct {
	calls []call
	err   error
}

func (s *stubCartService) record(c call) (*cartsvc.Cart, error) {
	s.calls = append(s.calls, c)
	if s.err != nil {
		return nil, s.err
	}
	return &cartsvc.Cart{ID: "cart-1", UserID: c.userID, Items: []cartsvc.ResolvedLine{}, Total: 64}, nil
}

func (s *stubCartService) Load(ctx context.Context, userID string) (*cartsvc.Cart, error) {
	return s.record(call{op: "load", userID: userID})
}

func (s *stubCartService) Add(ctx context.Context, userID, productID string, cantidad int) (*cartsvc.Cart, error) {
	return s.record(call{op: "add", userID: userID, productID: productID, cantidad: cantidad})
}

func (s *stubCartService) UpdateQuantity(ctx context.Context, userID, productID string, cantidad int) (*cartsvc.Cart, error) {
	return s.record(call{op: "update", userID: userID, productID: productID, cantidad: cantidad})
}

func (s *stubCartService) Remove(ctx context.Context, userID, productID string) (*cartsvc.Cart, error) {
	return s.record(call{op: "remove", userID: userID, productID: productID})
}

func (s *stubCartService) Clear(ctx context.Context, userID string) (*cartsvc.Cart, error) {
	return s.record(call{op: "clear", userID: userID})
}

func newTestRouter(svc cartsvc.Service) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithIdentity(req.Context(), "user-1", "ana@nikos.pe", "access-1")))
		})
	})
	r.Get("/cart", CartFetch(svc, nil))
	r.Post("/cart/items", CartAddItem(svc, nil))
	r.Patch("/cart/items/{productId}", CartUpdateItem(svc, nil))
	r.Delete("/cart/items/{productId}", CartRemoveItem(svc, nil))
	r.Delete("/cart", CartClear(svc, nil))
	return r
}

func TestCartRoutesDispatch(t *testing.T) {
	cases := []struct {
		method string
		path   string
		body   string
		want   call
	}{
		{http.MethodGet, "/cart", "", call{op: "load", userID: "user-1"}},
		{http.MethodPost, "/cart/items", `{"productId":"p1","cantidad":2}`, call{op: "add", userID: "user-1", productID: "p1", cantidad: 2}},
		{http.MethodPatch, "/cart/items/p1", `{"cantidad":0}`, call{op: "update", userID: "user-1", productID: "p1"}},
		{http.MethodDelete, "/cart/items/p1", "", call{op: "remove", userID: "user-1", productID: "p1"}},
		{http.MethodDelete, "/cart", "", call{op: "clear", userID: "user-1"}},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			svc := &stubCartService{}
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			resp := httptest.NewRecorder()
			newTestRouter(svc).ServeHTTP(resp, req)

			if resp.Code != http.StatusOK {
				t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
			}
			if len(svc.calls) != 1 || svc.calls[0] != tc.want {
				t.Fatalf("unexpected calls %+v", svc.calls)
			}
			var envelope struct {
				Data cartsvc.Cart `json:"data"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if envelope.Data.Total != 64 {
				t.Fatalf("unexpected total %v", envelope.Data.Total)
			}
		})
	}
}

func TestCartAddRequiresProduct(t *testing.T) {
	svc := &stubCartService{}
	resp := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(`{"cantidad":1}`)))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if len(svc.calls) != 0 {
		t.Fatalf("service must not be called, got %+v", svc.calls)
	}
}

func TestCartAddSurfacesStockMessage(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeValidation, "Solo puedes agregar 2 unidades más")}
	resp := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(`{"productId":"p1","cantidad":5}`)))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "Solo puedes agregar 2 unidades más") {
		t.Fatalf("missing user message: %s", resp.Body.String())
	}
}
