package http

import (
	"net/http"

	"activation-backend/internal/handlers"
	"activation-backend/internal/middleware"
	"activation-backend/internal/models"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(
	importHandler *handlers.ImportHandler,
	assignmentHandler *handlers.AssignmentHandler,
	referenceHandler *handlers.ReferenceHandler,
	userHandler *handlers.UserHandler,
	authHandler *handlers.AuthHandler,
	adminActionLogHandler *handlers.AdminActionLogHandler,
	healthHandler *handlers.HealthHandler,
	events http.Handler,
	authMiddleware *middleware.AuthMiddleware,
) *mux.Router {
	r := mux.NewRouter()
	// inside the router so the matched route template labels each request
	r.Use(middleware.MetricsMiddleware)

	// Public API routes - Authentication
	r.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	authAPI := r.PathPrefix("/auth").Subrouter()
	authAPI.Use(authMiddleware.Authenticate)
	authAPI.HandleFunc("/logout", authHandler.Logout).Methods("POST")
	authAPI.HandleFunc("/me", authHandler.Me).Methods("GET")

	adminOnly := func(h http.HandlerFunc) http.Handler {
		return middleware.AllowRoles(models.RoleAdmin)(h)
	}

	// Import runs - supervisors may review, only admins change state
	importsAPI := r.PathPrefix("/api/imports").Subrouter()
	importsAPI.Use(authMiddleware.RequireRole(models.RoleAdmin, models.RoleSupervisor))
	importsAPI.HandleFunc("", importHandler.ListRuns).Methods("GET")
	importsAPI.Handle("", adminOnly(importHandler.Upload)).Methods("POST")
	importsAPI.Handle("/preview", adminOnly(importHandler.Preview)).Methods("POST")
	importsAPI.HandleFunc("/{id}", importHandler.GetRun).Methods("GET")
	importsAPI.HandleFunc("/{id}/rows", importHandler.Rows).Methods("GET")
	importsAPI.HandleFunc("/{id}/rejected.csv", importHandler.RejectedCSV).Methods("GET")
	importsAPI.HandleFunc("/{id}/report.pdf", importHandler.ReportPDF).Methods("GET")
	importsAPI.Handle("/{id}/promote", adminOnly(importHandler.PromoteRun)).Methods("POST")
	importsAPI.Handle("/{id}/fail", adminOnly(importHandler.FailRun)).Methods("POST")

	promotionAPI := r.PathPrefix("/api/promotions").Subrouter()
	promotionAPI.Use(authMiddleware.RequireAdmin)
	promotionAPI.HandleFunc("", importHandler.Promote).Methods("POST")

	// Dashboard
	assignmentsAPI := r.PathPrefix("/api/assignments").Subrouter()
	assignmentsAPI.Use(authMiddleware.Authenticate)
	assignmentsAPI.HandleFunc("", assignmentHandler.ListAssignments).Methods("GET")

	// Admin-only routes
	adminAPI := r.PathPrefix("/api/admin").Subrouter()
	adminAPI.Use(authMiddleware.RequireAdmin)
	adminAPI.HandleFunc("/references", referenceHandler.Upload).Methods("POST")
	adminAPI.HandleFunc("/users", userHandler.CreateUser).Methods("POST")
	adminAPI.HandleFunc("/users/{id}", userHandler.GetUser).Methods("GET")
	adminAPI.HandleFunc("/action-logs", adminActionLogHandler.ListActionLogs).Methods("GET")

	// Live import events
	ws := r.PathPrefix("/ws").Subrouter()
	ws.Use(authMiddleware.RequireRole(models.RoleAdmin, models.RoleSupervisor))
	ws.Handle("/imports", events).Methods("GET")

	// Health check endpoints (no authentication required)
	r.HandleFunc("/health", healthHandler.BasicHealth).Methods("GET")
	r.HandleFunc("/health/ready", healthHandler.ReadinessHealth).Methods("GET")
	r.Handle("/health/detailed", authMiddleware.RequireAdmin(http.HandlerFunc(healthHandler.DetailedHealth))).Methods("GET")

	// Prometheus metrics endpoint
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return r
}
