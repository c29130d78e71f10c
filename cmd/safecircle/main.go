package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	handlers "SafeCircle/internal/handler"
	"SafeCircle/internal/reminder"
	"SafeCircle/internal/sos"
	"SafeCircle/internal/store"
	"SafeCircle/pkg/cache"
	"SafeCircle/pkg/config"
	"SafeCircle/pkg/logger"
	"SafeCircle/pkg/notification"
	"SafeCircle/pkg/presence"
	"SafeCircle/pkg/scheduler"
	"SafeCircle/pkg/util"
	pkgws "SafeCircle/pkg/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "loading configuration:", err)
		os.Exit(1)
	}
	logger.Init(cfg.Log)
	defer logger.Sync()

	db, err := util.InitDatabase(cfg.DBDriver, cfg.DSN)
	if err != nil {
		logger.Error("opening database", zap.Error(err))
		os.Exit(1)
	}
	if err := store.AutoMigrate(db); err != nil {
		logger.Error("migrating schema", zap.Error(err))
		os.Exit(1)
	}

	c, err := cache.NewCache(cfg.Cache)
	if err != nil {
		logger.Error("initializing cache", zap.Error(err))
		os.Exit(1)
	}
	defer c.Close()

	hub := pkgws.NewHub(nil)
	defer hub.Close()

	var sink notification.Sink = notification.NewHubSink(hub)
	if cfg.PushEndpoint != "" {
		pushCfg := notification.PushConfig{AppKey: cfg.PushAppKey, MasterSecret: cfg.PushMasterSecret}
		push := notification.NewPushSink(pushCfg, notification.NewHTTPPushClient(cfg.PushEndpoint, pushCfg))
		sink = notification.MultiSink{sink, push}
	}

	presenceStore := presence.NewStore(c, hub)
	locator := presence.NewLocator(presenceStore, cfg.LocationMaxAge)

	sessions := store.NewSessionStore(db)
	friends := store.NewFriendStore(db)
	participants := store.NewParticipantStore(db)

	var planner *reminder.Planner
	sched := scheduler.New(store.NewJobStore(db), func(ctx context.Context, rec scheduler.JobRecord) {
		planner.HandleFire(ctx, rec)
	})
	planner = reminder.NewPlanner(sched, sink)
	if err := sched.Start(); err != nil {
		logger.Error("starting scheduler", zap.Error(err))
		os.Exit(1)
	}
	defer sched.Stop()

	sosCfg := sos.Config{
		CountdownTicks: cfg.SosCountdownTicks,
		TickInterval:   cfg.SosTickInterval,
		LocationWindow: cfg.LocationFetchWindow,
	}
	coordinators := sos.NewRegistry(func(id string) *sos.Coordinator {
		return sos.New(sos.BoundIdentity(id, participants), friends, locator, sessions, presenceStore, sink, sosCfg)
	})

	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	h := handlers.NewHandlers(db, coordinators, presenceStore, planner, hub)
	h.Register(engine, cfg.APIPrefix)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
