package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"SocialNet/global/config"
	"SocialNet/logger"
	mid "SocialNet/middleware"
	midsec "SocialNet/middleware/security"
	"SocialNet/module/conversation"
	convstore "SocialNet/module/conversation/store"
	"SocialNet/module/message"
	msgstore "SocialNet/module/message/store"
	"SocialNet/module/notification"
	notifstore "SocialNet/module/notification/store"
	poststore "SocialNet/module/post/store"
	userstore "SocialNet/module/user/store"
	"SocialNet/service/chat"
	"SocialNet/service/eventbus"
	mgoSrv "SocialNet/service/mgo"
	"SocialNet/service/storage"
	redisx "SocialNet/service/storage/redis"
	"SocialNet/tools/ids"
	"SocialNet/tools/safe"
	"SocialNet/tools/security"
)

func main() {
	cfgPath := flag.String("config", os.Getenv("SOCIALNET_CONFIG"), "path to app.yaml")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Errorf("load config: %v", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Log)
	defer logger.Sync()

	ids.SetNodeID(cfg.Node.Snowflake)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1) Mongo：异步连接，首次连上建索引
	mgr := mgoSrv.NewManager(&cfg.Mongo)
	mgr.OnConnect = ensureIndexes
	mgr.Start(ctx)
	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	db, err := mgr.WaitReady(waitCtx)
	cancel()
	if err != nil {
		logger.Errorf("mongo not ready: %v", err)
		os.Exit(1)
	}

	// 2) 事件总线
	bus, err := eventbus.New(cfg.EventBus)
	if err != nil {
		logger.Errorf("eventbus: %v", err)
		os.Exit(1)
	}
	defer func() { _ = bus.Close() }()

	// 3) 实时层 + 业务服务
	users := userstore.NewMongo(db)
	registry := chat.NewRegistry()
	notifs := notification.NewService(notifstore.NewMongo(db), users, poststore.NewMongo(db), chat.NewOutbox(registry), bus)
	router := chat.NewRouter(cfg.Realtime, registry, notifs)

	convs := conversation.NewService(convstore.NewMongo(db), users)
	msgs := message.NewService(msgstore.NewMongo(db), convs, message.Options{
		Users:    users,
		Out:      router.Outbox(),
		Notifier: notifs,
		Bus:      bus,
	})
	convs.SetPurger(msgs)

	var mirror *storage.Mirror
	if cfg.Redis.Enabled {
		rdb, err := redisx.NewClient(ctx, cfg.Redis)
		if err != nil {
			logger.Errorf("redis: %v", err)
			os.Exit(1)
		}
		defer func() { _ = rdb.Close() }()
		mirror = storage.NewMirror(storage.NewRedisPresence(rdb), cfg.Node.ID, cfg.Redis.PresenceTTL, cfg.Realtime.InboundQueue)
		router.SetHooks(mirror)
		safe.Go("presence-mirror", func() { mirror.Run(ctx) })
	}
	safe.Go("router", func() { router.Run(ctx) })

	// 4) HTTP
	auth := midsec.Options{
		JWT: security.Options{
			Secret: []byte(cfg.JWT.Secret),
			Alg:    cfg.JWT.Alg,
			TTL:    cfg.JWT.TTL,
		},
		CookieName: cfg.JWT.CookieName,
	}
	engine := newEngine(cfg, mgr)
	rt := mid.Routes{R: engine, Auth: midsec.Middleware(auth)}
	notification.NewHandler(notifs).Register(rt)
	conversation.NewHandler(convs).Register(rt)
	message.NewHandler(msgs).Register(rt)
	chat.NewWSServer(cfg.Realtime, router, auth).Register(rt)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           engine,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
	}
	safe.Go("http", func() {
		logger.Infof("[HTTP] listening on %s", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("[HTTP] serve: %v", err)
			stop()
		}
	})

	// 5) gRPC 健康检查
	var gs *grpc.Server
	if cfg.GRPC.Addr != "" {
		gs = startHealth(ctx, cfg.GRPC.Addr, mgr)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("[HTTP] shutdown: %v", err)
	}
	if gs != nil {
		gs.GracefulStop()
	}
	select {
	case <-router.Done():
	case <-shutdownCtx.Done():
	}
	if mirror != nil {
		select {
		case <-mirror.Done():
		case <-shutdownCtx.Done():
		}
	}
}

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	if err := notifstore.NewMongo(db).EnsureIndexes(ctx); err != nil {
		return err
	}
	if err := convstore.NewMongo(db).EnsureIndexes(ctx); err != nil {
		return err
	}
	return msgstore.NewMongo(db).EnsureIndexes(ctx)
}

func newEngine(cfg *config.AppConfig, mgr *mgoSrv.Manager) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	// 访问日志在最外层，CORS 等前置中间件交给 manager 统一调度
	mids := mid.NewManager(mid.CORS(cfg.Realtime.AllowedOrigins))
	engine.Use(mid.AccessLog(), mid.Recovery(), mids.Use())

	engine.GET("/healthz", func(c *gin.Context) {
		if !mgr.Healthy() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "mongo": errString(mgr.Err())})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return engine
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// startHealth 按 Mongo 健康状态切换 SERVING / NOT_SERVING
func startHealth(ctx context.Context, addr string, mgr *mgoSrv.Manager) *grpc.Server {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Errorf("[gRPC] listen %s: %v", addr, err)
		return nil
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	safe.Go("grpc-health", func() {
		logger.Infof("[gRPC] health listening on %s", addr)
		if err := gs.Serve(lis); err != nil {
			logger.Warnf("[gRPC] serve: %v", err)
		}
	})
	safe.Go("grpc-health-watch", func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			status := healthpb.HealthCheckResponse_NOT_SERVING
			if mgr.Healthy() {
				status = healthpb.HealthCheckResponse_SERVING
			}
			hs.SetServingStatus("", status)
			hs.SetServingStatus("socialnet.Realtime", status)
			select {
			case <-ctx.Done():
				hs.Shutdown()
				return
			case <-ticker.C:
			}
		}
	})
	return gs
}
