package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tirtakita/api/internal/blob"
	"github.com/tirtakita/api/internal/config"
	"github.com/tirtakita/api/internal/database"
	"github.com/tirtakita/api/internal/enum"
	"github.com/tirtakita/api/internal/handler"
	mw "github.com/tirtakita/api/internal/middleware"
	"github.com/tirtakita/api/internal/service"
	"github.com/tirtakita/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Authentication, tenant scoping and capability checks are applied as
// middleware around the company subtree.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub, blobs blob.Store) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "https://app.tirtakita.com"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/companies/{cid}/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Services share the pool for transactions and *database.Queries for
	// the plain read paths.
	orderService := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	})
	deliveryService := service.NewDeliveryService(pool, func(db database.DBTX) service.DeliveryStore {
		return database.New(db)
	})
	paymentService := service.NewPaymentService(pool, func(db database.DBTX) service.PaymentStore {
		return database.New(db)
	})
	centralService := service.NewCentralService(pool, func(db database.DBTX) service.CentralStore {
		return database.New(db)
	})
	debtService := service.NewDebtService(pool, queries, func(db database.DBTX) service.DebtStore {
		return database.New(db)
	})
	reconcileService := service.NewReconcileService(pool, queries, func(db database.DBTX) service.ReconcileStore {
		return database.New(db)
	})
	expenseService := service.NewExpenseService(pool, func(db database.DBTX) service.ExpenseStore {
		return database.New(db)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Tenant administration (SUPER_ADMIN only)
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.RoleSuperAdmin))
			companyHandler := handler.NewCompanyHandler(queries)
			r.Route("/admin/companies", companyHandler.RegisterRoutes)
		})

		// Company-scoped routes
		r.Route("/companies/{cid}", func(r chi.Router) {
			r.Use(mw.RequireCompany)

			// Users
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireCapability(enum.CapManageUsers))
				userHandler := handler.NewUserHandler(queries)
				r.Route("/users", userHandler.RegisterRoutes)
			})

			// Master data
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireCapability(enum.CapManageMasterData))
				productHandler := handler.NewProductHandler(queries)
				r.Route("/products", productHandler.RegisterRoutes)
			})
			customerHandler := handler.NewCustomerHandler(queries, debtService)
			r.Route("/customers", customerHandler.RegisterRoutes)

			// Orders and delivery settlement
			orderHandler := handler.NewOrderHandler(orderService, deliveryService, queries, hub)
			r.Route("/orders", func(r chi.Router) {
				r.With(mw.RequireCapability(enum.CapSettleDelivery)).Post("/{id}/complete", orderHandler.Complete)
				r.Post("/", orderHandler.Create)
				r.Get("/", orderHandler.List)
				r.Get("/{id}", orderHandler.Get)
				r.Post("/{id}/assign", orderHandler.Assign)

				// Payments against an order
				r.Group(func(r chi.Router) {
					r.Use(mw.RequireCapability(enum.CapManagePayments))
					paymentHandler := handler.NewPaymentHandler(paymentService, queries)
					r.Route("/{id}/payments", paymentHandler.RegisterRoutes)
				})
			})

			// Central restock orders
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireCapability(enum.CapManageCentralOrders))
				centralHandler := handler.NewCentralOrderHandler(centralService, queries)
				r.Route("/central-orders", centralHandler.RegisterRoutes)
			})

			// Stock movement log
			movementHandler := handler.NewMovementHandler(queries)
			r.Route("/stock-movements", movementHandler.RegisterRoutes)

			// Stock reconciliation
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireCapability(enum.CapReconcileStock))
				reconciliationHandler := handler.NewReconciliationHandler(reconcileService, queries)
				r.Route("/reconciliations", reconciliationHandler.RegisterRoutes)
			})

			// Manual financial transactions
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireCapability(enum.CapManagePayments))
				transactionHandler := handler.NewTransactionHandler(queries)
				r.Route("/transactions", transactionHandler.RegisterRoutes)
			})

			// Expense reports
			expenseHandler := handler.NewExpenseReportHandler(expenseService, queries)
			r.Route("/expense-reports", func(r chi.Router) {
				r.Post("/", expenseHandler.Create)
				r.Get("/", expenseHandler.List)
				r.Get("/{id}", expenseHandler.Get)
				r.With(mw.RequireCapability(enum.CapApproveExpenses)).Put("/{id}/status", expenseHandler.SetStatus)
			})

			// Reports
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireCapability(enum.CapViewReports))
				reportHandler := handler.NewReportHandler(queries)
				r.Route("/reports", reportHandler.RegisterRoutes)
			})

			// Proof uploads
			uploadHandler := handler.NewUploadHandler(blobs)
			r.Route("/uploads", uploadHandler.RegisterRoutes)
		})
	})

	return r
}
