package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/guess-game/internal/middleware"
	ws "github.com/wfunc/guess-game/internal/websocket"
	"go.uber.org/zap"
)

// WebSocketHandler WebSocket处理器
type WebSocketHandler struct {
	hub            *ws.Hub
	opts           ws.Options
	defaultSession string
	logger         *zap.Logger
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(hub *ws.Hub, opts ws.Options, defaultSession string, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:            hub,
		opts:           opts,
		defaultSession: defaultSession,
		logger:         logger,
	}
}

// GameWebSocket 游戏WebSocket连接，加入 session_id 指定的房间
func (h *WebSocketHandler) GameWebSocket(c *gin.Context) {
	playerID := middleware.PlayerID(c)
	sessionID := c.DefaultQuery("session_id", h.defaultSession)

	client, err := ws.Upgrade(h.hub, c.Writer, c.Request, playerID, sessionID, h.opts)
	if err != nil {
		h.logger.Error("WebSocket升级失败",
			zap.String("player_id", playerID),
			zap.Error(err))
		return
	}

	h.logger.Info("WebSocket连接建立",
		zap.String("client_id", client.ID),
		zap.String("player_id", playerID),
		zap.String("session_id", sessionID))
}

// OnlineCount 在线连接数
func (h *WebSocketHandler) OnlineCount(c *gin.Context) {
	sessionID := c.DefaultQuery("session_id", h.defaultSession)
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"online_count":   h.hub.GetOnlineCount(),
		"session_id":     sessionID,
		"session_online": h.hub.SessionClientCount(sessionID),
	})
}
