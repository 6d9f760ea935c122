package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Syntia28/nikos/api/controllers"
	cartcontrollers "github.com/Syntia28/nikos/api/controllers/cart"
	ordercontrollers "github.com/Syntia28/nikos/api/controllers/orders"
	"github.com/Syntia28/nikos/api/middleware"
	"github.com/Syntia28/nikos/internal/auth"
	"github.com/Syntia28/nikos/internal/cart"
	checkoutsvc "github.com/Syntia28/nikos/internal/checkout"
	"github.com/Syntia28/nikos/internal/orders"
	product "github.com/Syntia28/nikos/internal/products"
	"github.com/Syntia28/nikos/internal/ratings"
	"github.com/Syntia28/nikos/internal/users"
	"github.com/Syntia28/nikos/pkg/auth/session"
	"github.com/Syntia28/nikos/pkg/config"
	"github.com/Syntia28/nikos/pkg/logger"
)

// RouterParams carries the services exposed over HTTP. Nil services answer 500 on
// their routes; nil RateLimiter disables auth throttling.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	Sessions session.AccessSessionChecker
	Limiter  middleware.RateLimiter
	Ready    map[string]controllers.Pinger
	Metrics  http.Handler
	// Shutdown is closed when the server starts draining; it ends live streams.
	Shutdown <-chan struct{}

	Auth     auth.Service
	Users    users.Service
	Products product.Service
	Cart     cart.Service
	Checkout checkoutsvc.Service
	Orders   orders.Service
	Ratings  ratings.Service
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	loginPolicy := middleware.AuthRateLimitPolicy{
		Name:       "login",
		Window:     cfg.AuthRateLimit.LoginWindow,
		IPLimit:    cfg.AuthRateLimit.LoginIPLimit,
		EmailLimit: cfg.AuthRateLimit.LoginEmailLimit,
	}
	registerPolicy := middleware.AuthRateLimitPolicy{
		Name:       "register",
		Window:     cfg.AuthRateLimit.RegisterWindow,
		IPLimit:    cfg.AuthRateLimit.RegisterIPLimit,
		EmailLimit: cfg.AuthRateLimit.RegisterEmailLimit,
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.Ready))
	})
	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", p.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(registerPolicy, p.Limiter, logg)).Post("/register", controllers.AuthRegister(p.Auth, logg))
			r.With(middleware.AuthRateLimit(loginPolicy, p.Limiter, logg)).Post("/login", controllers.AuthLogin(p.Auth, logg))
			r.Post("/logout", controllers.AuthLogout(p.Auth, cfg.JWT, logg))
			r.Post("/refresh", controllers.AuthRefresh(p.Auth, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(p.Products, logg))
			r.Get("/{productId}", controllers.ProductDetail(p.Products, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, p.Sessions, logg))

			r.Get("/me", controllers.Me(p.Users, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartcontrollers.CartFetch(p.Cart, logg))
				r.Delete("/", cartcontrollers.CartClear(p.Cart, logg))
				r.Post("/items", cartcontrollers.CartAddItem(p.Cart, logg))
				r.Patch("/items/{productId}", cartcontrollers.CartUpdateItem(p.Cart, logg))
				r.Delete("/items/{productId}", cartcontrollers.CartRemoveItem(p.Cart, logg))
			})

			r.Post("/checkout", controllers.Checkout(p.Checkout, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", ordercontrollers.List(p.Orders, logg))
				r.Get("/stream", ordercontrollers.Stream(p.Orders, p.Shutdown, logg))
				r.Get("/summary", ordercontrollers.Summary(p.Orders, logg))
				r.Get("/{orderId}", ordercontrollers.Detail(p.Orders, logg))
				r.Get("/{orderId}/tracking", ordercontrollers.Tracking(p.Orders, logg))
				r.Post("/{orderId}/rating", ordercontrollers.Rate(p.Ratings, p.Users, logg))
			})
		})
	})

	return r
}
