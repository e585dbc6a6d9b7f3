package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emreisik/kahveqr/handlers"
	"github.com/emreisik/kahveqr/internal/business"
	"github.com/emreisik/kahveqr/middleware"
	"github.com/emreisik/kahveqr/services"
)

var (
	dbPool            *pgxpool.Pool
	authService       *services.AuthService
	membershipService *services.MembershipService
	branchService     *services.BranchService
	scanService       *services.ScanService
	staffService      *services.StaffService
	brandService      *services.BrandService
	dashboardService  *services.DashboardService
	qrService         *services.QRService
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		log.Fatal("Failed to parse database URL:", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	dbPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatal("Failed to create connection pool:", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	log.Println("Successfully connected to database")

	authService = services.NewAuthService(dbPool)
	membershipService = services.NewMembershipService(dbPool)
	branchService = services.NewBranchService(dbPool)
	scanService = services.NewScanService(dbPool, branchService, membershipService)
	staffService = services.NewStaffService(dbPool)
	brandService = services.NewBrandService(dbPool)
	dashboardService = services.NewDashboardService(dbPool)
	qrService = services.NewQRService(dbPool)

	middleware.InitPrometheus()
}

func main() {
	defer func() {
		log.Println("Closing database connection pool...")
		dbPool.Close()
	}()

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	businessAuthHandler := handlers.NewBusinessAuthHandler(authService)
	membershipHandler := handlers.NewMembershipHandler(membershipService)
	cafeHandler := handlers.NewCafeHandler(brandService)
	qrHandler := handlers.NewQRHandler(qrService)
	scanHandler := handlers.NewScanHandler(scanService)
	staffHandler := handlers.NewStaffHandler(staffService)
	branchHandler := handlers.NewBranchHandler(branchService)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService, brandService)

	r := mux.NewRouter()

	go middleware.CleanupVisitors()

	r.Use(middleware.RateLimitMiddleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := dbPool.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "kahveqr-api"}`))
	}).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// -------------------------------------------------------------------------
	// PUBLIC ROUTES
	// -------------------------------------------------------------------------
	api.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST")
	api.HandleFunc("/auth/demo", authHandler.DemoLogin).Methods("POST")
	api.HandleFunc("/business-auth/login", businessAuthHandler.Login).Methods("POST")

	api.HandleFunc("/cafes", cafeHandler.GetBrands).Methods("GET")
	api.HandleFunc("/cafes/nearby", cafeHandler.GetNearby).Methods("GET")
	api.HandleFunc("/cafes/{id}", cafeHandler.GetBrand).Methods("GET")

	// -------------------------------------------------------------------------
	// CUSTOMER ROUTES (REQUIRE CUSTOMER TOKEN)
	// -------------------------------------------------------------------------
	customer := api.PathPrefix("").Subrouter()
	customer.Use(middleware.CustomerAuthMiddleware)

	customer.HandleFunc("/users/me", authHandler.GetMe).Methods("GET")
	customer.HandleFunc("/users/me", authHandler.UpdateMe).Methods("PATCH")

	customer.HandleFunc("/memberships", membershipHandler.GetMemberships).Methods("GET")
	customer.HandleFunc("/memberships/{brandId}", membershipHandler.GetMembership).Methods("GET")
	customer.HandleFunc("/activities", membershipHandler.GetActivities).Methods("GET")
	customer.HandleFunc("/activities/stats", membershipHandler.GetActivityStats).Methods("GET")

	customer.HandleFunc("/qr/code", qrHandler.GenerateUserCode).Methods("GET")
	customer.HandleFunc("/qr/redeem", qrHandler.GenerateRedeemCode).Methods("GET")

	// -------------------------------------------------------------------------
	// BUSINESS ROUTES (REQUIRE BUSINESS TOKEN)
	// -------------------------------------------------------------------------
	businessAuth := middleware.BusinessAuthMiddleware(authService)

	scan := api.PathPrefix("/scan").Subrouter()
	scan.Use(businessAuth)
	scan.HandleFunc("/stamp", scanHandler.Stamp).Methods("POST")
	scan.HandleFunc("/redeem", scanHandler.Redeem).Methods("POST")

	biz := api.PathPrefix("/business").Subrouter()
	biz.Use(businessAuth)

	biz.HandleFunc("/dashboard", dashboardHandler.Dashboard).Methods("GET")
	biz.HandleFunc("/customers", dashboardHandler.Customers).Methods("GET")
	biz.HandleFunc("/transactions", dashboardHandler.Transactions).Methods("GET")
	biz.HandleFunc("/statistics", dashboardHandler.Statistics).Methods("GET")
	biz.HandleFunc("/settings", dashboardHandler.GetSettings).Methods("GET")
	biz.HandleFunc("/settings", dashboardHandler.UpdateSettings).Methods("PUT")
	biz.HandleFunc("/loyalty", dashboardHandler.GetLoyalty).Methods("GET")
	biz.HandleFunc("/loyalty", dashboardHandler.UpdateLoyalty).Methods("PUT")

	managers := middleware.RequireRole(business.RoleOwner, business.RoleBranchManager)
	owners := middleware.RequireRole(business.RoleOwner)

	staff := biz.PathPrefix("/staff").Subrouter()
	staff.Handle("", managers(http.HandlerFunc(staffHandler.List))).Methods("GET")
	staff.Handle("", managers(http.HandlerFunc(staffHandler.Create))).Methods("POST")
	staff.Handle("/{id}", managers(http.HandlerFunc(staffHandler.Update))).Methods("PUT")
	staff.Handle("/{id}", managers(http.HandlerFunc(staffHandler.Delete))).Methods("DELETE")
	staff.Handle("/{id}/activate", owners(http.HandlerFunc(staffHandler.Activate))).Methods("POST")
	staff.Handle("/{id}/reset-password", managers(http.HandlerFunc(staffHandler.ResetPassword))).Methods("POST")

	branches := biz.PathPrefix("/branches").Subrouter()
	branches.Handle("", managers(http.HandlerFunc(branchHandler.List))).Methods("GET")
	branches.Handle("", owners(http.HandlerFunc(branchHandler.Create))).Methods("POST")
	branches.Handle("/{id}", managers(http.HandlerFunc(branchHandler.Update))).Methods("PUT")
	branches.Handle("/{id}", owners(http.HandlerFunc(branchHandler.Delete))).Methods("DELETE")
	branches.Handle("/{id}/stats", managers(http.HandlerFunc(branchHandler.Stats))).Methods("GET")

	// CORS configuration
	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}
	port = ":" + port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server shutdown complete")
}
