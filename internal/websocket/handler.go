package websocket

import (
	"context"
	"encoding/json"
	"strings"

	apperrors "github.com/wfunc/guess-game/internal/errors"
	"github.com/wfunc/guess-game/internal/game"
	"github.com/wfunc/guess-game/internal/logger"
	"go.uber.org/zap"
)

// GameMessageHandler WebSocket游戏消息处理器
type GameMessageHandler struct {
	hub     *Hub
	service *game.GameService
	logger  *zap.Logger
}

// NewGameMessageHandler 创建游戏消息处理器并挂到Hub上
func NewGameMessageHandler(hub *Hub, service *game.GameService, l *zap.Logger) *GameMessageHandler {
	if l == nil {
		l = hub.logger
	}
	h := &GameMessageHandler{
		hub:     hub,
		service: service,
		logger:  l,
	}
	hub.SetHandler(h)
	return h
}

// OnConnect 连接建立后推送当前会话状态
func (h *GameMessageHandler) OnConnect(client *Client) {
	h.pushState(client)
}

// HandleClientMessage 处理客户端消息
func (h *GameMessageHandler) HandleClientMessage(client *Client, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.Warn("解析消息失败",
			zap.String("client_id", client.ID),
			zap.Error(err))
		h.sendError(client, MessageTypeError, apperrors.New(apperrors.ErrMessageFormat))
		return
	}

	logger.LogWebSocketMessage("receive", msg.Type, map[string]interface{}{
		"client_id": client.ID,
		"player_id": client.PlayerID,
	})

	switch msg.Type {
	case MessageTypePing:
		client.Send(MessageTypePong, nil)

	case MessageTypeGuess:
		h.handleGuess(client, &msg)

	case MessageTypeSubscribe:
		h.handleSubscribe(client, &msg)

	default:
		h.logger.Warn("未知消息类型",
			zap.String("client_id", client.ID),
			zap.String("type", msg.Type))
		h.sendError(client, MessageTypeError,
			apperrors.New(apperrors.ErrMessageFormat, "unsupported message type: "+msg.Type))
	}
}

// handleGuess 提交猜测，失败只通知发送者
func (h *GameMessageHandler) handleGuess(client *Client, msg *Message) {
	var req GuessRequest
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			h.sendError(client, MessageTypeGuessErr, apperrors.New(apperrors.ErrMessageFormat))
			return
		}
	}

	sessionID := firstNonEmpty(req.SessionID, msg.SessionID, client.SessionID)
	guess := strings.TrimSpace(req.Guess)
	if guess == "" {
		h.sendError(client, MessageTypeGuessErr, apperrors.New(apperrors.ErrInvalidParam, "guess is required"))
		return
	}

	// 结果通过会话广播下发
	if _, err := h.service.SubmitGuess(context.Background(), sessionID, client.PlayerID, guess); err != nil {
		h.logger.Debug("猜测被拒绝",
			zap.String("session_id", sessionID),
			zap.String("player_id", client.PlayerID),
			zap.Error(err))
		h.sendError(client, MessageTypeGuessErr, err)
	}
}

// handleSubscribe 切换到另一个会话房间
func (h *GameMessageHandler) handleSubscribe(client *Client, msg *Message) {
	var req SubscribeRequest
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			h.sendError(client, MessageTypeError, apperrors.New(apperrors.ErrMessageFormat))
			return
		}
	}

	sessionID := firstNonEmpty(req.SessionID, msg.SessionID)
	if sessionID == "" {
		h.sendError(client, MessageTypeError, apperrors.New(apperrors.ErrInvalidParam, "sessionId is required"))
		return
	}
	if _, err := h.service.GetSession(context.Background(), sessionID); err != nil {
		h.sendError(client, MessageTypeError, err)
		return
	}

	h.hub.Subscribe(client, sessionID)
	h.pushState(client)
}

// pushState 推送客户端所在会话的脱敏状态
func (h *GameMessageHandler) pushState(client *Client) {
	if client.SessionID == "" {
		return
	}
	view, err := h.service.GetSession(context.Background(), client.SessionID)
	if err != nil {
		h.logger.Debug("会话不存在，跳过状态推送", zap.String("session_id", client.SessionID))
		return
	}
	if err := client.Send(MessageTypeUpdate, view); err != nil {
		h.logger.Warn("推送会话状态失败", zap.String("client_id", client.ID), zap.Error(err))
	}
}

func (h *GameMessageHandler) sendError(client *Client, msgType string, err error) {
	payload := ErrorPayload{
		Error:  apperrors.MessageOf(err),
		Code:   int(apperrors.GetCode(err)),
		Reason: apperrors.ReasonOf(err),
	}
	if sendErr := client.Send(msgType, payload); sendErr != nil {
		h.logger.Warn("发送错误消息失败", zap.String("client_id", client.ID), zap.Error(sendErr))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
