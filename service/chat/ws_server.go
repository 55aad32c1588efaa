package chat

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"SocialNet/logger"
	"SocialNet/middleware"
	midsec "SocialNet/middleware/security"
	"SocialNet/tools/apiresp"
	"SocialNet/tools/errs"
	"SocialNet/tools/safe"
)

// WSServer GET /ws 握手与会话生命周期
type WSServer struct {
	cfg      Config
	router   *Router
	auth     midsec.Options
	upgrader websocket.Upgrader
}

func NewWSServer(cfg Config, router *Router, auth midsec.Options) *WSServer {
	cfg.norm()
	w := &WSServer{cfg: cfg, router: router, auth: auth}
	w.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return middleware.OriginAllowed(cfg.AllowedOrigins, r.Header.Get("Origin"))
		},
	}
	return w
}

// HandleWS 带合法令牌的连接绑定到令牌用户；令牌无效直接拒绝
func (w *WSServer) HandleWS(c *gin.Context) {
	authUser, err := midsec.Authenticate(c.Request, w.auth)
	if err != nil {
		if w.cfg.RequireAuth || !errors.Is(err, errs.ErrTokenMissing) {
			apiresp.Fail(c, err)
			return
		}
		authUser = ""
	}

	ws, err := w.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// 非 websocket 请求 / Origin 不允许，Upgrade 已写回错误
		logger.Infof("[HandleWS] upgrade websocket error: %v", err)
		return
	}

	s := newSession(uuid.NewString(), ws, authUser, w.cfg)
	if !w.router.Connect(s) {
		_ = ws.Close()
		return
	}
	logger.Debug("ws connected", zap.String("conn", s.id), zap.String("auth", authUser), zap.String("remote", c.ClientIP()))

	safe.Go("ws-writer", s.writePump)
	s.readPump(w.router.Frame)
	w.router.Disconnect(s)
	s.Close()
	logger.Debug("ws closed", zap.String("conn", s.id))
}

// Register 挂载 /ws 和在线列表
func (w *WSServer) Register(rt middleware.Routes) {
	rt.R.GET("/ws", w.HandleWS)
	rt.GET("/api/presence/online", w.Online, middleware.RouteOpt{IsAuth: true})
}

func (w *WSServer) Online(c *gin.Context) {
	apiresp.OK(c, gin.H{"online": w.router.Presence().Snapshot()})
}
