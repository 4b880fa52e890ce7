package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/qwertys/qwertys-api/handlers"
	"github.com/qwertys/qwertys-api/middleware"
	"github.com/qwertys/qwertys-api/policy"
)

// Handlers groups every HTTP handler mounted under /api.
type Handlers struct {
	Auth        *handlers.AuthHandler
	Users       *handlers.UserHandler
	Programmes  *handlers.ProgrammeHandler
	Partenaires *handlers.PartenaireHandler
	Duplicates  *handlers.DuplicateHandler
	TestsSite   *handlers.TestSiteHandler
	TestsLigne  *handlers.TestLigneHandler
	Alertes     *handlers.AlerteHandler
	Messages    *handlers.MessageHandler
	Statistics  *handlers.StatisticsHandler
	Exports     *handlers.ExportHandler
	WS          *handlers.WSHandler
}

// SetupAuthRoutes sets up public authentication routes.
func SetupAuthRoutes(rg *gin.RouterGroup, h *Handlers) {
	rg.POST("/auth/login", h.Auth.Login)
}

// SetupAccountRoutes sets up the routes every authenticated user can reach.
func SetupAccountRoutes(rg *gin.RouterGroup, h *Handlers) {
	rg.GET("/auth/me", h.Auth.Me)
	rg.GET("/auth/pages", h.Auth.Pages)

	rg.GET("/user/profile", h.Users.GetProfile)
	rg.PUT("/user/profile", h.Users.UpdateProfile)
	rg.POST("/user/password", h.Users.ChangePassword)
	rg.POST("/user/2fa/setup", h.Users.SetupTOTP)
	rg.POST("/user/2fa/verify", h.Users.VerifyTOTP)
	rg.POST("/user/2fa/disable", h.Users.DisableTOTP)
}

// SetupReferentialRoutes sets up programmes and partenaires. Reads are only
// scoped since every test form lists them; writes need the manage actions.
func SetupReferentialRoutes(rg *gin.RouterGroup, h *Handlers) {
	rg.GET("/programmes", h.Programmes.List)
	rg.GET("/programmes/:id", h.Programmes.Get)
	rg.POST("/programmes", middleware.RequireAction(policy.ActionProgrammeManage), h.Programmes.Create)
	rg.PUT("/programmes/:id", middleware.RequireAction(policy.ActionProgrammeManage), h.Programmes.Update)
	rg.DELETE("/programmes/:id", middleware.RequireAction(policy.ActionProgrammeManage), h.Programmes.Delete)

	rg.GET("/partenaires", h.Partenaires.List)
	rg.GET("/partenaires/:id", h.Partenaires.Get)
	rg.POST("/partenaires", middleware.RequireAction(policy.ActionPartenaireManage), h.Partenaires.Create)
	rg.PUT("/partenaires/:id", middleware.RequireAction(policy.ActionPartenaireManage), h.Partenaires.Update)
	rg.DELETE("/partenaires/:id", middleware.RequireAction(policy.ActionPartenaireManage), h.Partenaires.Delete)
}

// SetupTestRoutes sets up tests site, tests ligne and the duplicate check.
func SetupTestRoutes(rg *gin.RouterGroup, h *Handlers) {
	rg.GET("/check-duplicate-test", h.Duplicates.Check)

	site := rg.Group("/tests-site", middleware.RequirePage(policy.PageTestsSite))
	site.GET("", h.TestsSite.List)
	site.GET("/:id", h.TestsSite.Get)
	site.POST("", middleware.RequireAction(policy.ActionTestCreate), h.TestsSite.Create)
	site.PUT("/:id", middleware.RequireAction(policy.ActionTestUpdate), h.TestsSite.Update)
	site.DELETE("/:id", middleware.RequireAction(policy.ActionTestDelete), h.TestsSite.Delete)

	ligne := rg.Group("/tests-ligne", middleware.RequirePage(policy.PageTestsLigne))
	ligne.GET("", h.TestsLigne.List)
	ligne.GET("/:id", h.TestsLigne.Get)
	ligne.POST("", middleware.RequireAction(policy.ActionTestCreate), h.TestsLigne.Create)
	ligne.PUT("/:id", middleware.RequireAction(policy.ActionTestUpdate), h.TestsLigne.Update)
	ligne.DELETE("/:id", middleware.RequireAction(policy.ActionTestDelete), h.TestsLigne.Delete)
}

// SetupAlerteRoutes sets up alert management and the alert websocket.
func SetupAlerteRoutes(rg *gin.RouterGroup, h *Handlers) {
	// Test forms open alerts by hand, so creation is not tied to the page.
	rg.POST("/alertes", middleware.RequireAction(policy.ActionAlerteCreate), h.Alertes.Create)

	alertes := rg.Group("/alertes", middleware.RequirePage(policy.PageAlertes))
	alertes.GET("", h.Alertes.List)
	alertes.GET("/count", h.Alertes.Count)
	alertes.GET("/:id", h.Alertes.Get)
	alertes.PUT("/:id", middleware.RequireAction(policy.ActionAlerteResolve), h.Alertes.Resolve)
	alertes.DELETE("/:id", middleware.RequireAction(policy.ActionAlerteDelete), h.Alertes.Delete)

	rg.GET("/ws/alertes", middleware.RequirePage(policy.PageAlertes), h.WS.HandleWS)
}

// SetupAdminRoutes sets up identifiants, messagerie and connection logs.
func SetupAdminRoutes(rg *gin.RouterGroup, h *Handlers) {
	users := rg.Group("/users", middleware.RequirePage(policy.PageIdentifiants))
	users.GET("", h.Users.ListUsers)
	users.POST("", middleware.RequireAction(policy.ActionUserManage), h.Users.CreateUser)
	users.PUT("/:id", middleware.RequireAction(policy.ActionUserManage), h.Users.UpdateUser)
	users.DELETE("/:id", middleware.RequireAction(policy.ActionUserManage), h.Users.DeleteUser)

	messages := rg.Group("/messages", middleware.RequirePage(policy.PageMessagerie))
	messages.GET("/templates", h.Messages.ListTemplates)
	messages.POST("/templates", middleware.AdminOnly(), h.Messages.CreateTemplate)
	messages.PUT("/templates/:id", middleware.AdminOnly(), h.Messages.UpdateTemplate)
	messages.DELETE("/templates/:id", middleware.AdminOnly(), h.Messages.DeleteTemplate)
	messages.POST("/send", middleware.RequireAction(policy.ActionMessageSend), h.Messages.Send)

	rg.GET("/connection-logs", middleware.SuperAdminOnly(), h.Users.ListConnectionLogs)
}

// SetupReportingRoutes sets up statistics, AI insights and exports.
func SetupReportingRoutes(rg *gin.RouterGroup, h *Handlers) {
	rg.GET("/statistiques", middleware.RequirePage(policy.PageStatistiques), h.Statistics.Monthly)
	rg.POST("/insights",
		middleware.RequirePage(policy.PageStatistiques),
		middleware.RequireAction(policy.ActionInsightsGenerate),
		h.Statistics.Insights)

	exports := rg.Group("/exports", middleware.RequireAction(policy.ActionExportGenerate))
	exports.GET("/tests-site.xlsx", middleware.RequirePage(policy.PageTestsSite), h.Exports.TestsSite)
	exports.GET("/tests-ligne.xlsx", middleware.RequirePage(policy.PageTestsLigne), h.Exports.TestsLigne)
	exports.GET("/bilan-partenaire/:id", middleware.RequirePage(policy.PageBilanPartenaire), h.Exports.BilanPartenaire)
}

// Setup mounts the whole API on router.
func Setup(router *gin.Engine, h *Handlers, auth gin.HandlerFunc) {
	api := router.Group("/api")
	SetupAuthRoutes(api, h)

	protected := api.Group("")
	protected.Use(auth)
	{
		SetupAccountRoutes(protected, h)
		SetupReferentialRoutes(protected, h)
		SetupTestRoutes(protected, h)
		SetupAlerteRoutes(protected, h)
		SetupAdminRoutes(protected, h)
		SetupReportingRoutes(protected, h)
	}
}
