package server

import (
	"context"
	"net/http"

	"nutrisync/internal/food"
	"nutrisync/internal/models"
	"nutrisync/internal/realtime"
	"nutrisync/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Analyzer turns a meal description or photo into foods.
type Analyzer interface {
	AnalyzeText(ctx context.Context, description string) ([]models.NutritionData, error)
	AnalyzePhoto(ctx context.Context, imageURL, hint string) ([]models.NutritionData, error)
}

type RouterDeps struct {
	Service   *food.Service
	Analyzer  Analyzer
	Hub       *realtime.Hub
	Gatherer  prometheus.Gatherer
	JWTSecret []byte
	Logger    *logger.Logger

	// AllowedOrigins limits browser websocket upgrades. Empty means same
	// host only.
	AllowedOrigins []string
}

func NewRouter(deps RouterDeps) *gin.Engine {
	h := &handlers{
		svc:      deps.Service,
		analyzer: deps.Analyzer,
		hub:      deps.Hub,
		logger:   logger.OrNop(deps.Logger).Named("api"),
		origins:  deps.AllowedOrigins,
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(deps.Logger))

	r.GET("/health", h.health)
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	api.Use(AuthMiddleware(deps.JWTSecret))
	{
		api.POST("/entries", h.createEntry)
		api.GET("/entries", h.listEntries)
		api.GET("/entries/search", h.searchEntries)
		api.POST("/entries/analyze", h.analyze)
		api.PATCH("/entries/:id", h.updateEntry)
		api.DELETE("/entries/:id", h.deleteEntry)

		api.GET("/nutrition/daily/:date", h.dailyNutrition)
		api.GET("/nutrition/reports/:period", h.periodReport)

		api.GET("/goals", h.getGoals)
		api.PUT("/goals", h.setGoals)

		api.GET("/favorites", h.listFavorites)
		api.POST("/favorites", h.addFavorite)

		api.GET("/sync/status", h.syncStatus)
		api.POST("/sync", h.forceSync)

		api.DELETE("/local-data", h.clearLocalData)

		api.GET("/ws", h.websocket)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}
