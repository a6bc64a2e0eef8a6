package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/tokoline/sales-api/internal/config"
	"github.com/tokoline/sales-api/internal/handler"
	mw "github.com/tokoline/sales-api/internal/middleware"
	"github.com/tokoline/sales-api/internal/permission"
	"github.com/tokoline/sales-api/internal/service"
	"github.com/tokoline/sales-api/internal/store"
	"github.com/tokoline/sales-api/internal/validation"
	"github.com/tokoline/sales-api/internal/ws"
	"go.uber.org/zap"
)

// New creates a Chi router with all application routes wired up.
// Route-level permission checks only admit actors who could act on their own
// records; services check ownership of the record itself.
func New(cfg *config.Config, pool service.DB, seq service.Sequencer, hub *ws.Hub, log *zap.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	queries := store.New(pool)

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret, log)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	validator := validation.New(validation.WithPolicy(validation.EditPolicy{AdminAnyStatus: cfg.AdminEditAnyStatus}))
	newOrderStore := func(db store.DBTX) service.OrderStore {
		return store.New(db)
	}
	orderService := service.NewOrderService(pool, newOrderStore, seq, validator, hub, log.Named("orders"))
	productService := service.NewProductService(queries, log.Named("products"))
	visitService := service.NewVisitService(queries, log.Named("visits"))

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		productHandler := handler.NewProductHandler(productService, log)
		r.Route("/products", func(r chi.Router) {
			r.Use(mw.RequirePermission(permission.ProductRead, permission.ProductManage))
			productHandler.RegisterRoutes(r)
		})

		visitHandler := handler.NewVisitHandler(visitService, log)
		r.Route("/visits", func(r chi.Router) {
			r.Use(mw.RequirePermission(permission.VisitRead, permission.VisitReadOwn, permission.VisitCreate))
			visitHandler.RegisterRoutes(r)
		})

		orderHandler := handler.NewOrderHandler(orderService, log)
		r.Route("/orders", func(r chi.Router) {
			r.Use(mw.RequirePermission(
				permission.OrderRead, permission.OrderReadOwn, permission.OrderCreate, permission.OrderUpdate,
				permission.OrderApprove, permission.OrderReject, permission.OrderDeliver,
			))
			orderHandler.RegisterRoutes(r)
		})
	})

	log.Debug("router initialized")
	return r
}
