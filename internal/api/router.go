package api

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Conceptual-Machines/melody-bridge/internal/api/handlers"
	apimiddleware "github.com/Conceptual-Machines/melody-bridge/internal/api/middleware"
	"github.com/Conceptual-Machines/melody-bridge/internal/bridge"
	"github.com/Conceptual-Machines/melody-bridge/internal/config"
)

// Dependencies are the collaborators the HTTP layer serves. DB, Completer,
// Recorder, History and Metrics may be nil.
type Dependencies struct {
	Config    *config.Config
	Version   string
	DB        *gorm.DB
	Store     *bridge.Store
	Notifier  handlers.EventSender
	Recorder  handlers.StoredRecorder
	History   handlers.HistoryReader
	Completer handlers.Completer
	Metrics   apimiddleware.APIRecorder
}

func SetupRouter(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	router := gin.New()

	// Recovery middleware (must be first)
	router.Use(apimiddleware.RecoverWithSentry())

	// Sentry middleware for error tracking
	router.Use(apimiddleware.SentryMiddleware())

	// Request tracking and structured logging
	router.Use(apimiddleware.RequestTracking(deps.Metrics))

	router.Use(apimiddleware.CORS(cfg.CORSAllowOrigins, cfg.CORSAllowsCredentials()))

	// Health check
	healthHandler := handlers.NewHealthHandler(deps.DB, cfg.ListenAddr, cfg.MaxAddr())
	router.GET("/health", healthHandler.HealthCheck)

	// Metrics endpoint
	metricsHandler := handlers.NewMetricsHandler(deps.Version, deps.Store)
	router.GET("/api/metrics", metricsHandler.GetMetrics)

	// Completion
	completeHandler := handlers.NewCompleteHandler(deps.Completer)
	router.GET("/default", completeHandler.Default)
	router.POST("/complete", apimiddleware.Auth(cfg), completeHandler.Complete)

	bridgeHandler := handlers.NewBridgeHandler(deps.Store, deps.Notifier, deps.Recorder, deps.History)

	// Reads are public
	router.GET("/bridge/latest", bridgeHandler.Latest)
	router.GET("/bridge/status", bridgeHandler.Status)
	router.GET("/bridge/history", bridgeHandler.History)

	// Mutations require a token when AUTH_MODE=token
	mutating := router.Group("/bridge")
	mutating.Use(apimiddleware.Auth(cfg))
	{
		mutating.POST("/start-capture", bridgeHandler.StartCapture)
		mutating.POST("/result", bridgeHandler.StoreResult)
		mutating.POST("/notify-max", bridgeHandler.NotifyMax)
	}

	return router
}
