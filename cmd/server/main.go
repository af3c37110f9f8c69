package main

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"pos-backend/internal/admin"
	"pos-backend/internal/audit"
	"pos-backend/internal/auth"
	"pos-backend/internal/config"
	"pos-backend/internal/dashboard"
	"pos-backend/internal/database"
	"pos-backend/internal/daybook"
	"pos-backend/internal/expense"
	"pos-backend/internal/httperr"
	"pos-backend/internal/ledger"
	"pos-backend/internal/ledger/gormstore"
	"pos-backend/internal/models"
	"pos-backend/internal/payment"
	"pos-backend/internal/sales"
)

func main() {
	cfg := config.Load()
	config.SetLogLevel(cfg.LogLevel)
	lg := config.GetLogger()

	db, err := database.Open(cfg)
	if err != nil {
		lg.WithError(err).Fatal("could not connect to database")
	}
	if err := database.Migrate(db); err != nil {
		lg.WithError(err).Fatal("could not migrate database")
	}

	opts := []ledger.Option{
		ledger.WithLogger(lg),
		ledger.WithLocation(cfg.LedgerLocation),
	}
	if cfg.RedisAddress != "" {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		rdb, locker, err := database.ConnectRedis(ctx, cfg.RedisAddress)
		cancel()
		if err != nil {
			lg.WithError(err).Warn("redis unavailable, ledger cache and close gate disabled")
		} else {
			defer rdb.Close()
			opts = append(opts,
				ledger.WithCache(ledger.NewRedisCache(rdb, cfg.LedgerCacheTTL)),
				ledger.WithGate(ledger.NewRedisGate(locker, 30*time.Second)),
			)
		}
	}

	ledgerSvc := ledger.NewService(gormstore.New(db), opts...)
	recorder := ledger.NewRecorder(ledgerSvc, lg)
	auditWriter := audit.NewDBWriter(db)

	app := fiber.New(fiber.Config{
		ErrorHandler: httperr.Handler(lg),
	})
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register-admin", auth.RegisterAdminHandler(db))
	api.Post("/auth/login", auth.LoginHandler(cfg, db))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg.JWTSecret))
	adminOnly := auth.RequireRole(models.RoleAdmin)

	protected.Get("/auth/me", auth.MeHandler(db))

	adminRoutes := protected.Group("/admin", adminOnly)
	adminRoutes.Post("/users", auth.CreateUserHandler(db))
	adminRoutes.Get("/users", auth.ListUsersHandler(db))
	adminRoutes.Get("/monthly-report", admin.MonthlyReportHandler(ledgerSvc))

	// Payment methods
	protected.Get("/payment-methods", payment.ListPaymentMethodsHandler(db))
	protected.Get("/payment-methods/:id/classify", payment.ClassifyPaymentMethodHandler(db))
	protected.Post("/payment-methods", adminOnly, payment.CreatePaymentMethodHandler(db))
	protected.Put("/payment-methods/:id", adminOnly, payment.UpdatePaymentMethodHandler(db))

	// Sales
	sales.Register(protected.Group("/sales"), &sales.Deps{DB: db, Recorder: recorder, Audit: auditWriter, Log: lg})

	// Expenses
	expenseDeps := &expense.Deps{DB: db, Recorder: recorder, Audit: auditWriter, Log: lg}
	protected.Get("/expense-categories", expense.ListExpenseCategoriesHandler(expenseDeps))
	protected.Post("/expense-categories", adminOnly, expense.CreateExpenseCategoryHandler(expenseDeps))
	protected.Put("/expense-categories/:id", adminOnly, expense.UpdateExpenseCategoryHandler(expenseDeps))
	protected.Delete("/expense-categories/:id", adminOnly, expense.DeleteExpenseCategoryHandler(expenseDeps))
	protected.Post("/expenses", expense.CreateExpenseHandler(expenseDeps))
	protected.Get("/expenses", expense.ListExpensesHandler(expenseDeps))
	protected.Get("/expenses/summary/monthly", expense.MonthlyExpenseSummaryHandler(expenseDeps))

	// Daybook
	daybook.Register(protected.Group("/ledger"), &daybook.Deps{Ledger: ledgerSvc, Audit: auditWriter, Log: lg})

	// Dashboard
	protected.Get("/dashboard/cash-chart", dashboard.CashChartHandler(ledgerSvc))

	// Audit logs
	protected.Get("/audit-logs", adminOnly, audit.ListAuditLogsHandler(db))

	lg.WithField("port", cfg.HTTPPort).Info("server listening")
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		lg.WithError(err).Fatal("server stopped")
	}
}
