package routes

import (
	"context"
	"net/http"

	"research-grant-api/authz"
	"research-grant-api/controllers"
	"research-grant-api/middleware"
	"research-grant-api/models"
	"research-grant-api/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies are the services the HTTP layer is built from.
type Dependencies struct {
	Auth      *services.AuthService
	Workflow  *services.WorkflowService
	Dashboard *services.DashboardService
	Authz     *authz.Authorizer

	// HealthCheck reports store reachability on /health when set.
	HealthCheck func(ctx context.Context) error

	// AuthRateLimit guards register and login when set.
	AuthRateLimit gin.HandlerFunc
	Metrics       bool
}

func SetupRoutes(router *gin.Engine, deps Dependencies) {
	authController := controllers.NewAuthController(deps.Auth, deps.Authz)
	dashboardController := controllers.NewDashboardController(deps.Dashboard)
	callController := controllers.NewCallController(deps.Workflow)
	proposalController := controllers.NewProposalController(deps.Workflow)
	reviewController := controllers.NewReviewController(deps.Workflow)
	budgetController := controllers.NewBudgetController(deps.Workflow)

	if deps.Metrics {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Public routes
		public := v1.Group("")
		{
			auth := public.Group("/auth")
			if deps.AuthRateLimit != nil {
				auth.Use(deps.AuthRateLimit)
			}
			auth.POST("/register", authController.Register)
			auth.POST("/login", authController.Login)

			// Health check
			public.GET("/health", func(c *gin.Context) {
				if deps.HealthCheck != nil {
					if err := deps.HealthCheck(c.Request.Context()); err != nil {
						_ = c.Error(err)
						c.JSON(http.StatusServiceUnavailable, gin.H{
							"status":  "unavailable",
							"message": "Database is not reachable",
						})
						return
					}
				}
				c.JSON(http.StatusOK, gin.H{
					"status":  "ok",
					"message": "Research Grant API is running",
				})
			})
		}

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(deps.Auth))
		{
			// Auth management
			protected.POST("/auth/logout", authController.Logout)
			protected.POST("/auth/logout-all", authController.LogoutAll)
			protected.GET("/profile", authController.GetProfile)

			protected.GET("/dashboard", dashboardController.GetDashboard)

			// Calls for papers
			calls := protected.Group("/calls")
			{
				calls.GET("", callController.GetCalls)
				calls.POST("", middleware.RequireRole(models.RoleDirector), callController.CreateCall)
				calls.POST("/:id/proposals", callController.SubmitProposal)
			}

			protected.GET("/reviewers", proposalController.GetReviewers)

			// Proposals
			proposals := protected.Group("/proposals")
			{
				proposals.GET("", proposalController.GetProposals)
				proposals.GET("/:id", proposalController.GetProposal)
				proposals.POST("/:id/decision", middleware.RequireRole(models.RoleDirector), proposalController.DecideProposal)

				proposals.GET("/:id/reviewers", proposalController.GetAssignedReviewers)
				proposals.POST("/:id/reviewers", proposalController.AssignReviewer)
				proposals.DELETE("/:id/reviewers/:reviewer_id", proposalController.UnassignReviewer)

				proposals.GET("/:id/reviews", reviewController.GetReviews)
				proposals.POST("/:id/reviews", reviewController.SubmitReview)

				proposals.POST("/:id/budget-requests", budgetController.RequestBudget)
			}

			// Budget requests
			budgets := protected.Group("/budget-requests")
			{
				budgets.GET("", budgetController.GetBudgetRequests)
				budgets.POST("/:id/decision", middleware.RequireRole(models.RoleVicePresident), budgetController.DecideBudget)
			}
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Endpoint not found"})
	})
}
