package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/delapena-bakeshop/api/internal/config"
	"github.com/delapena-bakeshop/api/internal/database"
	"github.com/delapena-bakeshop/api/internal/handler"
	mw "github.com/delapena-bakeshop/api/internal/middleware"
	"github.com/delapena-bakeshop/api/internal/service"
)

// New creates a Chi router with all application routes wired up.
// Role middleware is applied per route because most resources mix
// read access for staff with admin-only mutations. Status updates
// answer to PUT as well as PATCH for older clients.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	stockService := service.NewStockService(pool, func(db database.DBTX) service.StockStore {
		return database.New(db)
	})
	orderService := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	})

	productHandler := handler.NewProductHandler(queries, pool, func(db database.DBTX) handler.ProductStore {
		return database.New(db)
	})
	ingredientHandler := handler.NewIngredientHandler(queries)
	movementHandler := handler.NewStockMovementHandler(stockService, queries)
	orderHandler := handler.NewOrderHandler(orderService, queries, pool, func(db database.DBTX) handler.OrderStore {
		return database.New(db)
	})
	deliveryHandler := handler.NewDeliveryHandler(queries, pool, func(db database.DBTX) handler.DeliveryStore {
		return database.New(db)
	})
	paymentHandler := handler.NewPaymentHandler(queries, pool, func(db database.DBTX) handler.PaymentStore {
		return database.New(db)
	})
	returnHandler := handler.NewReturnHandler(queries)

	admin := mw.RequireRole("Admin")
	staff := mw.RequireRole("Admin", "Cashier")

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.List)
			r.Get("/{id}", productHandler.Get)
			r.With(admin).Post("/", productHandler.Create)
			r.With(admin).Put("/{id}", productHandler.Update)
			r.With(admin).Delete("/{id}", productHandler.Delete)
		})

		r.Route("/ingredients", func(r chi.Router) {
			r.Use(admin)
			r.Post("/", ingredientHandler.Create)
			r.Get("/", ingredientHandler.List)
			r.Get("/{id}", ingredientHandler.Get)
			r.Put("/{id}", ingredientHandler.Update)
			r.Delete("/{id}", ingredientHandler.Delete)
		})

		r.Route("/stock-movements", func(r chi.Router) {
			r.With(admin).Post("/", movementHandler.Record)
			r.With(staff).Get("/", movementHandler.List)
		})

		r.Route("/orders", func(r chi.Router) {
			r.With(staff).Post("/walk-in", orderHandler.CreateWalkIn)
			r.With(mw.RequireRole("Reseller")).Post("/reseller", orderHandler.CreateReseller)
			r.Get("/", orderHandler.List)
			r.Get("/{id}", orderHandler.Get)
			r.With(admin).Patch("/{id}/status", orderHandler.UpdateStatus)
			r.With(admin).Put("/{id}/status", orderHandler.UpdateStatus)
		})

		r.Route("/deliveries", func(r chi.Router) {
			r.Use(admin)
			r.Post("/", deliveryHandler.Schedule)
			r.Get("/", deliveryHandler.List)
			r.Get("/packed-orders", deliveryHandler.ListPackedOrders)
			r.Get("/{id}", deliveryHandler.Get)
			r.Patch("/{id}/status", deliveryHandler.UpdateStatus)
			r.Put("/{id}/status", deliveryHandler.UpdateStatus)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Use(staff)
			r.Post("/collect", paymentHandler.Collect)
			r.Get("/pending", paymentHandler.ListPending)
		})

		r.Route("/returns", func(r chi.Router) {
			r.Use(staff)
			r.Post("/", returnHandler.Create)
			r.Get("/", returnHandler.List)
			r.Get("/{id}", returnHandler.Get)
			r.With(admin).Delete("/{id}", returnHandler.Delete)
		})
	})

	return r
}
