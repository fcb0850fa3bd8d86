package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/wfunc/guess-game/internal/api"
	"github.com/wfunc/guess-game/internal/config"
	"github.com/wfunc/guess-game/internal/database"
	"github.com/wfunc/guess-game/internal/errors"
	"github.com/wfunc/guess-game/internal/events"
	"github.com/wfunc/guess-game/internal/game"
	"github.com/wfunc/guess-game/internal/logger"
	"github.com/wfunc/guess-game/internal/repository"
	"github.com/wfunc/guess-game/internal/utils"
	ws "github.com/wfunc/guess-game/internal/websocket"
	"go.uber.org/zap"
)

// Server 服务器实例
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	engine    *game.Engine
	service   *game.GameService
	hub       *ws.Hub
	publisher *events.NATSPublisher
	httpSrv   *http.Server

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer 创建服务器实例
func NewServer(cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:    cfg,
		logger: logger.GetLogger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start 初始化组件并开始监听
func (s *Server) Start() error {
	s.logger.Info("正在启动猜题游戏服务器...",
		zap.String("version", Version),
		zap.String("mode", s.cfg.Server.Mode),
	)

	var rounds repository.RoundRepository
	if s.cfg.Database.Enabled {
		repo, err := s.initDatabase()
		if err != nil {
			return err
		}
		rounds = repo
	}

	var publisher game.EventPublisher
	if s.cfg.Events.Enabled {
		p, err := events.NewNATSPublisher(&s.cfg.Events)
		if err != nil {
			return errors.Wrap(err, errors.ErrEventPublish, "初始化事件发布失败")
		}
		s.publisher = p
		publisher = p
	}

	s.initGame(rounds, publisher)

	if _, err := s.service.CreateSession(s.ctx, s.cfg.Game.DefaultSession); err != nil {
		return errors.Wrap(err, errors.ErrUnknown, "创建默认会话失败")
	}

	tokens := utils.NewJWTManager(s.cfg.Security.JWT.Secret, time.Duration(s.cfg.Security.JWT.ExpireHours)*time.Hour)
	gin.SetMode(ginMode(s.cfg.Server.Mode))
	router := api.NewRouter(&api.RouterConfig{
		Service:        s.service,
		Rounds:         rounds,
		Hub:            s.hub,
		Tokens:         tokens,
		WebSocket:      ws.OptionsFromConfig(&s.cfg.WebSocket),
		WebSocketPath:  s.cfg.WebSocket.Path,
		DefaultUserID:  s.cfg.Security.DefaultUserID,
		DefaultSession: s.cfg.Game.DefaultSession,
		Logger:         logger.GetModuleLogger(logger.ModuleHTTP),
	})

	s.httpSrv = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      corsHandler(&s.cfg.CORS, router.Handler()),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("HTTP服务异常退出", zap.Error(err))
		}
	}()

	config.Watch(func(newCfg *config.Config) {
		s.logger.Info("配置已更新，正在重新加载...")
		s.reloadConfig(newCfg)
	})

	s.logger.Info("服务器启动成功",
		zap.String("http", s.cfg.Server.Addr()),
		zap.String("websocket", s.cfg.WebSocket.Path),
		zap.String("default_session", s.cfg.Game.DefaultSession),
	)
	return nil
}

// initDatabase 初始化回合归档数据库
func (s *Server) initDatabase() (repository.RoundRepository, error) {
	s.logger.Info("初始化数据库...")

	if err := database.Init(&s.cfg.Database); err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseConnect, "初始化数据库连接失败")
	}

	if s.cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(database.GetDB()); err != nil {
			return nil, errors.Wrap(err, errors.ErrDatabaseConnect, "数据库迁移失败")
		}
	}

	if !database.IsConnected() {
		return nil, errors.New(errors.ErrDatabaseConnect, "数据库连接检查失败")
	}

	s.logger.Info("数据库初始化完成")
	return repository.NewRoundRepository(database.GetDB()), nil
}

// initGame 组装引擎、超时协调器、推送与游戏服务
func (s *Server) initGame(rounds repository.RoundRepository, publisher game.EventPublisher) {
	gameLogger := logger.GetModuleLogger(logger.ModuleGame)
	clock := clockwork.NewRealClock()

	s.engine = game.NewEngine(game.NewMemoryStore(),
		game.WithClock(clock),
		game.WithRules(gameRules(&s.cfg.Game)),
		game.WithLogger(gameLogger),
	)

	s.hub = ws.NewHub(logger.GetModuleLogger(logger.ModuleWebSocket))

	var recorder game.RoundRecorder
	if rounds != nil {
		recorder = repository.NewRoundArchive(rounds)
	}

	s.service = game.NewGameService(&game.ServiceConfig{
		Engine:      s.engine,
		Timers:      game.NewTimerCoordinator(clock, gameLogger),
		Broadcaster: s.hub,
		Publisher:   publisher,
		Recorder:    recorder,
		Logger:      gameLogger,
	})
	ws.NewGameMessageHandler(s.hub, s.service, nil)

	go s.hub.Run(s.ctx)
}

// WaitForShutdown 等待关闭信号
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)

	sig := <-sigCh
	s.logger.Info("收到退出信号", zap.String("signal", sig.String()))
}

// Shutdown 优雅关闭服务器
func (s *Server) Shutdown() error {
	s.logger.Info("正在优雅关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	var shutdownErr error
	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("HTTP服务关闭超时", zap.Error(err))
			shutdownErr = errors.Wrap(err, errors.ErrTimeout, "关闭超时")
		}
	}

	if s.service != nil {
		s.service.Shutdown()
	}

	// 停止Hub，断开所有WebSocket连接
	s.cancel()

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			s.logger.Error("关闭NATS连接失败", zap.Error(err))
		}
	}

	if err := database.Close(); err != nil {
		s.logger.Error("关闭数据库失败", zap.Error(err))
	}

	logger.Cleanup()
	return shutdownErr
}

// reloadConfig 应用可热更新的配置：游戏规则与日志级别
func (s *Server) reloadConfig(newCfg *config.Config) {
	s.cfg = newCfg
	if s.engine != nil {
		s.engine.SetRules(gameRules(&newCfg.Game))
	}
	logger.SetLevel(newCfg.Log.Level)
	s.logger.Info("配置重新加载完成",
		zap.Duration("round_duration", newCfg.Game.RoundDuration),
		zap.String("log_level", newCfg.Log.Level))
}

// gameRules 配置转换为游戏规则
func gameRules(cfg *config.GameConfig) game.Rules {
	return game.Rules{
		RoundDuration:       cfg.RoundDuration,
		AttemptsLimit:       cfg.AttemptsLimit,
		WinPoints:           cfg.WinPoints,
		MinPlayers:          cfg.MinPlayers,
		ChatLogLimit:        cfg.ChatLogLimit,
		PlaceholderQuestion: cfg.PlaceholderQuestion,
	}
}

// corsHandler 跨域处理
func corsHandler(cfg *config.CORSConfig, h http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: cfg.AllowedMethods,
		AllowedHeaders: cfg.AllowedHeaders,
		ExposedHeaders: []string{"X-Request-ID"},
	})
	return c.Handler(h)
}

func ginMode(mode string) string {
	switch mode {
	case gin.ReleaseMode, gin.TestMode:
		return mode
	default:
		return gin.DebugMode
	}
}
