package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/proctorlab/Proctor/internal/adapters/signal"
	"github.com/proctorlab/Proctor/internal/config"
	"github.com/proctorlab/Proctor/internal/core"
	"github.com/proctorlab/Proctor/internal/domain"
	"github.com/proctorlab/Proctor/internal/metrics"
)

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// CORSMiddleware reflects configured origins for browser callers. With an
// empty allow-list nothing is reflected and browsers stay same-origin.
func CORSMiddleware(allowed []string) gin.HandlerFunc {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := set[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				c.Header("Access-Control-Allow-Headers", "Content-Type")
				c.Header("Access-Control-Allow-Credentials", "true")
			}
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// SetupRouter wires HTTP routes (REST + WS) with the registry, the signal
// controller and the media handlers.
func SetupRouter(
	ctx context.Context,
	cfg *config.Config,
	reg *core.Registry,
	ctl *signal.Controller,
	mh *MediaHandlers,
	m *metrics.Metrics,
) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("ProctorSessions", store))
	r.Use(ClientTokenMiddleware())
	r.Use(CORSMiddleware(cfg.AllowedOrigins))

	log.Info().Str("module", "adapters.http").Msg("router setup")

	r.GET("/healthz", func(c *gin.Context) {
		rooms, students, proctors := reg.Counts()
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"rooms":    rooms,
			"students": students,
			"proctors": proctors,
		})
	})

	r.GET("/metrics", gin.WrapH(m.Handler(func() {
		m.SetPresence(reg.Counts())
	})))

	api := r.Group("/api")

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("session", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctl.HandleSignal(ctx, c)
	})

	// derived room queries, cheap reads over registry state
	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": reg.Rooms()})
	})
	api.GET("/rooms/:id", func(c *gin.Context) {
		roster, ok := reg.Roster(domain.RoomID(c.Param("id")))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusOK, roster)
	})

	// negotiation surface for publishers and direct viewers
	api.POST("/stream/:stream/publish", mh.Publish)
	api.POST("/stream/:stream/subscribe", mh.Subscribe)
	api.GET("/stream/:stream/status", mh.StreamStatus)
	api.POST("/stream/:stream/create", mh.CreateStream)

	return r
}
