package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aiwendy/roundtable/internal/config"
	"github.com/aiwendy/roundtable/internal/middleware"
	"github.com/aiwendy/roundtable/internal/modules/handler"
	"github.com/aiwendy/roundtable/internal/modules/repo"
	"github.com/aiwendy/roundtable/internal/modules/serializer"
)

type RouterDeps struct {
	Config            *config.Config
	Users             repo.UserRepo
	Log               *zap.Logger
	PresetHandler     *handler.PresetHandler
	SessionHandler    *handler.SessionHandler
	RoundtableHandler *handler.RoundtableHandler
}

func NewRouter(d RouterDeps) *gin.Engine {
	// Initialize logger for serializer package
	serializer.SetLogger(d.Log)
	handler.RegisterValidators()

	r := gin.New()
	r.Use(gin.Recovery())

	// Add OpenTelemetry middleware if enabled (using configuration system)
	if d.Config.Telemetry.Enabled && d.Config.Telemetry.OtlpEndpoint != "" {
		r.Use(middleware.OtelTracing(d.Config.App.Name))
		// Add trace ID to response header
		r.Use(middleware.TraceID())
	}

	r.Use(middleware.ZapLogger(d.Log))

	// health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, serializer.Response{Msg: "ok"}) })

	v1 := r.Group("/api/v1")
	{
		v1.Use(middleware.UserAuth(d.Config, d.Users))

		// ping endpoint
		v1.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, serializer.Response{Msg: "pong"}) })

		roundtable := v1.Group("/roundtable")
		{
			roundtable.GET("/coaches", d.PresetHandler.ListCoaches)
			roundtable.GET("/presets", d.PresetHandler.ListPresets)
			roundtable.GET("/presets/:preset_id", d.PresetHandler.GetPreset)

			roundtable.POST("/sessions", d.SessionHandler.CreateSession)
			roundtable.GET("/sessions", d.SessionHandler.ListSessions)
			roundtable.GET("/sessions/:session_id", d.SessionHandler.GetSessionDetail)
			roundtable.PATCH("/sessions/:session_id/settings", d.SessionHandler.UpdateSettings)
			roundtable.POST("/sessions/:session_id/end", d.SessionHandler.EndSession)

			roundtable.POST("/chat", d.RoundtableHandler.Chat)
		}
	}
	return r
}
