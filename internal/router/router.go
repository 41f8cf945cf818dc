package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dinescan/api/internal/config"
	"github.com/dinescan/api/internal/database"
	"github.com/dinescan/api/internal/enum"
	"github.com/dinescan/api/internal/handler"
	"github.com/dinescan/api/internal/metrics"
	mw "github.com/dinescan/api/internal/middleware"
	"github.com/dinescan/api/internal/service"
	"github.com/dinescan/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// The customer surface (checkout, menu reads, registration) is public
// and gated by the tenant's IP allow-list; everything else requires a
// staff JWT scoped to the tenant.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	r.Route("/auth", authHandler.RegisterRoutes)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/tenants/{tid}/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Store factories so transactional handlers can rebind queries to a tx
	newSvcStore := func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}
	orderService := service.NewOrderService(pool, newSvcStore)
	orderHandler := handler.NewOrderHandler(
		queries,
		pool,
		func(db database.DBTX) handler.OrderStore {
			return database.New(db)
		},
		orderService,
		hub,
	)
	reportHandler := handler.NewReportHandler(
		queries,
		pool,
		func(db database.DBTX) handler.ReportStore {
			return database.New(db)
		},
		hub,
	)
	categoryHandler := handler.NewCategoryHandler(queries, hub)
	unitHandler := handler.NewUnitHandler(queries, hub)
	productHandler := handler.NewProductHandler(queries, hub)
	customerHandler := handler.NewCustomerHandler(queries, cfg.JWTSecret)
	allowlistHandler := handler.NewAllowlistHandler(queries)
	staffHandler := handler.NewStaffHandler(queries)

	r.Route("/tenants/{tid}", func(r chi.Router) {
		// Customer surface: IP-gated where it writes, open for menu reads
		r.Route("/orders", func(r chi.Router) {
			orderHandler.RegisterPublicRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(mw.Authenticate(cfg.JWTSecret))
				r.Use(mw.RequireTenant)
				r.Use(mw.RequireStaff)
				orderHandler.RegisterStaffRoutes(r)
				r.Post("/{table}/settle", reportHandler.Settle)
			})
		})

		r.Route("/customers", func(r chi.Router) {
			customerHandler.RegisterPublicRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(mw.Authenticate(cfg.JWTSecret))
				r.Use(mw.RequireTenant)
				r.Use(mw.RequireStaff)
				customerHandler.RegisterRoutes(r)
			})
		})

		r.Route("/categories", func(r chi.Router) {
			categoryHandler.RegisterPublicRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(mw.Authenticate(cfg.JWTSecret))
				r.Use(mw.RequireTenant)
				r.Use(mw.RequireStaff)
				categoryHandler.RegisterStaffRoutes(r)
			})
		})

		r.Route("/units", func(r chi.Router) {
			unitHandler.RegisterPublicRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(mw.Authenticate(cfg.JWTSecret))
				r.Use(mw.RequireTenant)
				r.Use(mw.RequireStaff)
				unitHandler.RegisterStaffRoutes(r)
			})
		})

		r.Route("/products", func(r chi.Router) {
			productHandler.RegisterPublicRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(mw.Authenticate(cfg.JWTSecret))
				r.Use(mw.RequireTenant)
				r.Use(mw.RequireStaff)
				productHandler.RegisterStaffRoutes(r)
			})
		})

		// Staff-only surfaces
		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate(cfg.JWTSecret))
			r.Use(mw.RequireTenant)
			r.Use(mw.RequireStaff)

			r.Get("/notifications/unseen", orderHandler.CountUnseen)
			r.Route("/sales", reportHandler.RegisterRoutes)
			r.Route("/allowed-ips", allowlistHandler.RegisterRoutes)

			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.StaffRoleOwner, enum.StaffRoleManager))
				r.Route("/staff", staffHandler.RegisterRoutes)
			})
		})
	})

	return r
}
