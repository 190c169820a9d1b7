package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterDeps carries everything the router needs; main wires the concrete
// services in.
type RouterDeps struct {
	Carts          Carts
	Orders         Orders
	Accounts       AccountDirectory
	Addresses      Addresses
	Catalog        *CatalogHandler
	Sessions       SessionStore
	SessionTTL     time.Duration
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	SecureCookies  bool
}

// AccountDirectory is the account service surface the router wires: the
// handler-facing operations plus the admin check used by middleware.
type AccountDirectory interface {
	Accounts
	adminCheck
}

// SessionStore combines the read side the middleware needs with the write
// side the account handler needs.
type SessionStore interface {
	Sessions
	SessionWriter
}

func NewRouter(deps RouterDeps) http.Handler {
	cartHandler := NewCartHandler(deps.Carts)
	orderHandler := NewOrderHandler(deps.Orders, deps.Accounts)
	accountHandler := NewAccountHandler(deps.Accounts, deps.Sessions, deps.SessionTTL, deps.SecureCookies)
	addressHandler := NewAddressHandler(deps.Addresses)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(deps.RequestTimeout))
	r.Use(middleware.Compress(5))
	if deps.MaxBodyBytes > 0 {
		r.Use(middleware.RequestSize(deps.MaxBodyBytes))
	}
	r.Use(SessionMiddleware(deps.Sessions))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", accountHandler.Register)
		r.Post("/login", accountHandler.Login)
		r.Post("/logout", accountHandler.Logout)
		r.Get("/session", accountHandler.Session)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Post("/", cartHandler.ReplaceCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Delete("/{productId}", cartHandler.RemoveItem)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", orderHandler.Create)
			r.Get("/user", orderHandler.ListMine)
			r.Get("/{orderId}", orderHandler.Get)
		})

		r.Route("/user/addresses", func(r chi.Router) {
			r.Get("/", addressHandler.List)
			r.Post("/", addressHandler.Create)
			r.Put("/{addressId}", addressHandler.Update)
			r.Delete("/{addressId}", addressHandler.Delete)
			r.Put("/{addressId}/default", addressHandler.SetDefault)
		})

		r.Get("/products", deps.Catalog.ListProducts)
		r.Get("/products/{productId}", deps.Catalog.GetProduct)
		r.Get("/categories", deps.Catalog.ListCategories)

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdmin(deps.Accounts))

			r.Put("/orders/{orderId}/status", orderHandler.UpdateStatus)

			r.Post("/products", deps.Catalog.CreateProduct)
			r.Put("/products/{productId}", deps.Catalog.UpdateProduct)
			r.Delete("/products/{productId}", deps.Catalog.DeleteProduct)

			r.Post("/categories", deps.Catalog.CreateCategory)
			r.Put("/categories/{categoryId}", deps.Catalog.UpdateCategory)
			r.Delete("/categories/{categoryId}", deps.Catalog.DeleteCategory)
		})
	})

	return r
}
