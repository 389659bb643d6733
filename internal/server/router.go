package server

import (
	"net/http"

	"labdesk/internal/config"
	"labdesk/internal/handlers"
	"labdesk/internal/logger"
	"labdesk/internal/metrics"
	"labdesk/internal/middleware"
	"labdesk/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const sessionName = "labdesk_session"

type Deps struct {
	DB      *gorm.DB
	Handler *handlers.Handler
	Log     *logger.Logger
	// Metrics may be nil; /metrics is then not mounted.
	Metrics *metrics.Metrics
}

func NewRouter(cfg *config.Config, d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Metrics(d.Metrics))
	r.Use(middleware.RequestLogger(d.Log))

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   12 * 60 * 60,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(middleware.InjectUser(d.DB))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	h := d.Handler
	api := r.Group("/api")

	api.POST("/auth/login", h.Login)
	api.POST("/auth/logout", h.Logout)

	auth := api.Group("")
	auth.Use(middleware.RequireAuth())

	auth.GET("/auth/me", h.Me)

	// clients and projects
	auth.GET("/clients", h.ListClients)
	auth.GET("/clients/:id", h.GetClient)
	auth.POST("/clients", middleware.RequirePermission(models.PermClientManage), h.CreateClient)
	auth.PUT("/clients/:id", middleware.RequirePermission(models.PermClientManage), h.UpdateClient)
	auth.GET("/projects", h.ListProjects)
	auth.POST("/projects/:id/status", h.ChangeProjectStatus)

	// test catalog
	auth.GET("/tests", h.ListTests)
	auth.POST("/tests", middleware.RequirePermission(models.PermCatalogManage), h.CreateTest)

	// intake
	samples := auth.Group("/samples")
	samples.GET("", h.ListSamples)
	samples.GET("/:id", h.GetSample)
	samples.POST("/receive", middleware.RequirePermission(models.PermSampleReceive), h.ReceiveSample)
	samples.POST("/:id/sets/:setId/log", middleware.RequirePermission(models.PermSampleReceive), h.RetrySetLog)

	// billing
	invoices := auth.Group("/invoices")
	invoices.GET("", middleware.RequirePermission(models.PermInvoiceIssue), h.ListInvoices)
	invoices.GET("/:id", middleware.RequirePermission(models.PermInvoiceIssue), h.GetInvoice)
	invoices.POST("", middleware.RequirePermission(models.PermInvoiceIssue), h.CreateInvoice)
	invoices.POST("/:id/cancel", middleware.RequirePermission(models.PermInvoiceIssue), h.CancelInvoice)
	invoices.GET("/:id/payments", middleware.RequirePermission(models.PermBillingProceed), h.ListInvoicePayments)
	auth.POST("/payments", middleware.RequirePermission(models.PermBillingProceed), h.CreatePayment)

	auth.GET("/audit", middleware.RequirePermission(models.PermAuditView), h.ListAuditLogs)

	return r
}
