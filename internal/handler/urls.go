package handlers

import (
	"time"

	"SafeCircle/internal/reminder"
	"SafeCircle/internal/sos"
	"SafeCircle/internal/store"
	"SafeCircle/pkg/metrics"
	"SafeCircle/pkg/middleware"
	pkgws "SafeCircle/pkg/websocket"
	"SafeCircle/pkg/presence"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Handlers struct {
	db           *gorm.DB
	coordinators *sos.Registry
	presence     *presence.Store
	planner      *reminder.Planner

	sessions     *store.SessionStore
	events       *store.EventStore
	friends      *store.FriendStore
	participants *store.ParticipantStore

	ws *pkgws.Handler
}

func NewHandlers(db *gorm.DB, coordinators *sos.Registry, presenceStore *presence.Store,
	planner *reminder.Planner, hub *pkgws.Hub) *Handlers {
	return &Handlers{
		db:           db,
		coordinators: coordinators,
		presence:     presenceStore,
		planner:      planner,
		sessions:     store.NewSessionStore(db),
		events:       store.NewEventStore(db),
		friends:      store.NewFriendStore(db),
		participants: store.NewParticipantStore(db),
		ws:           pkgws.NewHandler(hub),
	}
}

func (h *Handlers) Register(engine *gin.Engine, apiPrefix string) {
	engine.GET("/health", h.HealthCheck)
	engine.GET("/metrics", metrics.Handler())

	r := engine.Group(apiPrefix)
	r.Use(middleware.Identity())
	r.Use(middleware.RateLimit("240-M"))
	r.Use(middleware.Idempotency(nil, 5*time.Minute))

	h.registerSosRoutes(r)
	h.registerPresenceRoutes(r)
	h.registerEventRoutes(r)
	h.registerFriendRoutes(r)

	r.GET("/ws", h.ws.Serve)
	r.GET("/ws/stats", h.ws.GetStats)
}

func (h *Handlers) registerSosRoutes(r *gin.RouterGroup) {
	g := r.Group("/sos")
	{
		g.POST("/trigger", h.TriggerSos)
		g.POST("/cancel", h.CancelSos)
		g.GET("/state", h.SosState)
		g.GET("/watch", h.WatchSos)
		g.GET("/sessions", h.ListSosSessions)
		g.GET("/sessions/:id", h.GetSosSession)
	}
}

func (h *Handlers) registerPresenceRoutes(r *gin.RouterGroup) {
	r.POST("/location", h.ReportLocation)
	g := r.Group("/presence")
	{
		g.GET("/:id", h.GetPresence)
		g.GET("/:id/watch", h.WatchPresence)
	}
}

func (h *Handlers) registerEventRoutes(r *gin.RouterGroup) {
	g := r.Group("/events")
	{
		g.GET("", h.ListEvents)
		g.POST("", h.SaveEvent)
		g.GET("/:id", h.GetEvent)
	}
}

func (h *Handlers) registerFriendRoutes(r *gin.RouterGroup) {
	g := r.Group("/friends")
	{
		g.GET("", h.ListFriends)
		g.POST("", h.AddFriend)
	}
}
