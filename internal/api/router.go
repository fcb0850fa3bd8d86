package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/guess-game/internal/game"
	"github.com/wfunc/guess-game/internal/middleware"
	"github.com/wfunc/guess-game/internal/repository"
	"github.com/wfunc/guess-game/internal/utils"
	ws "github.com/wfunc/guess-game/internal/websocket"
	"go.uber.org/zap"
)

// RouterConfig 路由依赖
type RouterConfig struct {
	Service        *game.GameService
	Rounds         repository.RoundRepository
	Hub            *ws.Hub
	Tokens         *utils.JWTManager
	WebSocket      ws.Options
	WebSocketPath  string
	DefaultUserID  string
	DefaultSession string
	Logger         *zap.Logger
}

// Router API路由器
type Router struct {
	engine      *gin.Engine
	gameHandler *GameHandler
	authHandler *AuthHandler
	wsHandler   *WebSocketHandler
	identity    *middleware.IdentityMiddleware
	wsPath      string
	log         *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(cfg *RouterConfig) *Router {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	wsPath := cfg.WebSocketPath
	if wsPath == "" {
		wsPath = "/ws"
	}

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(middleware.RequestLogger())
	engine.Use(middleware.Recovery())

	router := &Router{
		engine:      engine,
		gameHandler: NewGameHandler(cfg.Service, cfg.Rounds, log),
		identity:    middleware.NewIdentityMiddleware(cfg.Tokens, cfg.DefaultUserID),
		wsPath:      wsPath,
		log:         log,
	}
	if cfg.Tokens != nil {
		router.authHandler = NewAuthHandler(cfg.Tokens)
	}
	if cfg.Hub != nil {
		router.wsHandler = NewWebSocketHandler(cfg.Hub, cfg.WebSocket, cfg.DefaultSession, log)
	}

	router.setupRoutes()
	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.healthCheck)

	v1 := r.engine.Group("/api/v1")
	{
		if r.authHandler != nil {
			v1.POST("/auth/token", r.authHandler.IssueToken)
		}

		sessions := v1.Group("/game/sessions")
		sessions.Use(r.identity.Resolve())
		{
			sessions.POST("", r.gameHandler.CreateSession)
			sessions.GET("/:sessionId", r.gameHandler.GetSession)
			sessions.POST("/:sessionId/join", r.gameHandler.Join)
			sessions.POST("/:sessionId/question", r.gameHandler.SetQuestion)
			sessions.POST("/:sessionId/start", r.gameHandler.StartGame)
			sessions.GET("/:sessionId/rounds", r.gameHandler.ListRounds)
			sessions.GET("/:sessionId/rounds/stats", r.gameHandler.RoundStatistics)
		}

		if r.wsHandler != nil {
			v1.GET("/ws/online", r.wsHandler.OnlineCount)
		}
	}

	if r.wsHandler != nil {
		r.engine.GET(r.wsPath, r.identity.Resolve(), r.wsHandler.GameWebSocket)
	}

	r.engine.NoRoute(notFound)
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	c.String(http.StatusOK, "API is running.")
}

// Handler HTTP处理器
func (r *Router) Handler() http.Handler {
	return r.engine
}

// GetEngine 获取Gin引擎（用于测试）
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
