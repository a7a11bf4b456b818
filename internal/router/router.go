package router

import (
	"rentcheck/internal/bank"
	"rentcheck/internal/config"
	"rentcheck/internal/handler"
	"rentcheck/internal/middleware"
	"rentcheck/internal/store"
	"rentcheck/internal/syncer"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// SetupRouter configures the Gin engine and the API surface.
func SetupRouter(cfg *config.Config, db *gorm.DB, st *store.Store, bankClient bank.Client, orch *syncer.Orchestrator, log zerolog.Logger) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()
	r.Use(middleware.RequestLogger(log), gin.Recovery())

	api := r.Group("/api")

	jwtSecret := cfg.JWT.Secret

	// signup and login need no auth
	authHandler := handler.NewAuthHandler(db, jwtSecret, cfg.JWT.ExpireHours)
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("")
	protected.Use(
		middleware.AuthMiddleware(jwtSecret, db),
		middleware.AuditMiddleware(db),
	)

	userHandler := handler.NewUserHandler()
	protected.GET("/me", userHandler.GetMe)
	protected.POST("/profile", handler.UpdateProfile(db))
	protected.POST("/profile/password", handler.ChangePassword(db))

	propertyHandler := handler.NewPropertyHandler(st)
	protected.POST("/properties", propertyHandler.CreateProperty)
	protected.GET("/properties", propertyHandler.ListProperties)
	protected.GET("/properties/:id", propertyHandler.GetProperty)
	protected.PUT("/properties/:id", propertyHandler.UpdateProperty)
	protected.DELETE("/properties/:id", propertyHandler.DeleteProperty)
	protected.GET("/properties/:id/transactions", propertyHandler.ListTransactions)

	bankHandler := handler.NewBankHandler(st, bankClient, orch, cfg.Security.EncryptionKey)
	protected.POST("/bank/connect", bankHandler.Connect)
	protected.POST("/bank/disconnect", bankHandler.Disconnect)
	protected.GET("/bank/accounts", bankHandler.Accounts)
	protected.POST("/properties/:id/sync", bankHandler.SyncProperty)

	matchHandler := handler.NewMatchHandler(st, orch)
	protected.GET("/matches/unmatched", matchHandler.ListUnmatched)
	protected.POST("/matches/:id/assign", matchHandler.Assign)

	dashboardHandler := handler.NewDashboardHandler(st)
	protected.GET("/dashboard/summary", dashboardHandler.Summary)
	protected.GET("/notifications", dashboardHandler.ListNotifications)

	return r
}
