package main

import (
	"context"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/formsage/backend/internal/application/services"
	"github.com/formsage/backend/internal/bootstrap"
	"github.com/formsage/backend/internal/infrastructure/database"
	"github.com/formsage/backend/internal/interfaces/middleware"
	"github.com/formsage/backend/internal/interfaces/rest"
)

func main() {
	// Load .env if present; real deployments set the environment directly
	for _, p := range []string{".env", "../.env"} {
		if err := godotenv.Load(p); err == nil {
			log.Printf("Loaded .env from %s", p)
			break
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "3001"
	}

	db, err := database.GetInstance()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("✅ Database connection established")

	if err := bootstrap.InitializeSchema(db); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	svcMgr := services.NewServiceManager(db)
	log.Println("🔧 Service manager initialized")

	ctx := context.Background()
	if err := bootstrap.InitializeSystemData(ctx, svcMgr.Auth.Users()); err != nil {
		log.Fatalf("Failed to initialize system data: %v", err)
	}

	// Armed deadlines live in memory; reconstruct them for submissions
	// that were mid-step when the previous process stopped
	if err := svcMgr.RearmDeadlines(ctx); err != nil {
		log.Printf("⚠️  Warning: failed to re-arm timeout deadlines: %v", err)
	}

	router := gin.Default()
	router.Use(middleware.Cors())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
			"server": "golang",
		})
	})

	// Debug/pprof endpoints for goroutine debugging
	// Goroutine stacks: http://localhost:3001/debug/pprof/goroutine?debug=2
	debug := router.Group("/debug/pprof")
	{
		debug.GET("/goroutine", gin.WrapH(http.DefaultServeMux))
		debug.GET("/heap", gin.WrapH(http.DefaultServeMux))
		debug.GET("/profile", gin.WrapH(http.DefaultServeMux))
		debug.GET("/trace", gin.WrapH(http.DefaultServeMux))
	}

	authHandler := rest.NewAuthHandler(svcMgr.Auth)
	submissionHandler := rest.NewSubmissionHandler(svcMgr.Submission)
	approvalHandler := rest.NewApprovalHandler(svcMgr.Submission)
	workflowHandler := rest.NewWorkflowHandler(svcMgr.Workflow)
	actionLogHandler := rest.NewActionLogHandler(svcMgr.ActionLog)

	requireAuth := middleware.RequireAuth(svcMgr.Auth)
	requireAdmin := middleware.RequireAdmin()

	api := router.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/register", requireAuth, requireAdmin, authHandler.Register)
			auth.GET("/me", requireAuth, authHandler.GetMe)
		}

		// Submission intake is public: form respondents have no account
		submissions := api.Group("/submissions")
		{
			submissions.POST("", submissionHandler.Create)
			submissions.POST("/:id/resubmit", submissionHandler.Resubmit)
			submissions.GET("/:id", requireAuth, submissionHandler.Get)
			submissions.GET("/:id/history", requireAuth, submissionHandler.GetHistory)
			submissions.GET("/:id/actions", requireAuth, requireAdmin, actionLogHandler.ListBySubmission)
		}

		approvals := api.Group("/approvals")
		approvals.Use(requireAuth)
		{
			approvals.GET("/pending", approvalHandler.GetPending)
			approvals.POST("/:submissionId/approve", approvalHandler.Approve)
			approvals.POST("/:submissionId/reject", approvalHandler.Reject)
		}

		workflows := api.Group("/workflows")
		workflows.Use(requireAuth, requireAdmin)
		{
			workflows.POST("", workflowHandler.Save)
			workflows.POST("/validate", workflowHandler.Validate)
			workflows.GET("/:id", workflowHandler.Get)
			workflows.GET("/form/:formId", workflowHandler.GetForForm)
			workflows.DELETE("/:id", workflowHandler.Delete)
		}
	}

	if err := svcMgr.StartWorkers(); err != nil {
		log.Fatalf("Failed to start background workers: %v", err)
	}
	log.Println("⏰ Timeout scheduler and archive sweep started")

	log.Println("\n═══════════════════════════════════════════════════════════════════════════")
	log.Println("🚀 FormSage Backend Started Successfully")
	log.Println("═══════════════════════════════════════════════════════════════════════════")
	log.Printf("\n📍 Server:          http://localhost:%s", port)
	log.Printf("🔐 Auth API:        http://localhost:%s/api/auth", port)
	log.Printf("📝 Submissions API: http://localhost:%s/api/submissions", port)
	log.Printf("✅ Approvals API:   http://localhost:%s/api/approvals", port)
	log.Printf("⚙️ Workflows API:   http://localhost:%s/api/workflows", port)
	log.Printf("💚 Health check:    http://localhost:%s/health\n", port)

	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	svcMgr.StopWorkers()
	log.Println("🛑 Background workers stopped")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	log.Println("Server exiting")
}
