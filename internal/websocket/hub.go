package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/wfunc/guess-game/internal/game"
	"github.com/wfunc/guess-game/internal/logger"
	"go.uber.org/zap"
)

// MessageHandler 处理客户端连接与消息
type MessageHandler interface {
	OnConnect(client *Client)
	HandleClientMessage(client *Client, data []byte)
}

// Hub WebSocket连接管理中心，按会话分房间推送
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	handler MessageHandler
	logger  *zap.Logger
}

// NewHub 创建Hub
func NewHub(l *zap.Logger) *Hub {
	if l == nil {
		l = logger.GetModuleLogger(logger.ModuleWebSocket)
	}
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     l,
	}
}

// SetHandler 设置消息处理器
func (h *Hub) SetHandler(handler MessageHandler) {
	h.handler = handler
}

// Run 运行Hub，ctx 取消后断开所有连接
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.send)
				delete(h.clients, id)
			}
			h.rooms = make(map[string]map[string]*Client)
			h.mu.Unlock()
			h.logger.Info("WebSocket Hub已停止")
			return
		}
	}
}

// registerClient 注册客户端并加入其会话房间
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.joinRoom(client, client.SessionID)
	h.mu.Unlock()

	h.logger.Info("WebSocket客户端连接",
		zap.String("client_id", client.ID),
		zap.String("player_id", client.PlayerID),
		zap.String("session_id", client.SessionID))

	h.SendToClient(client.ID, MessageTypeConnected, client.SessionID, map[string]string{
		"clientId": client.ID,
		"playerId": client.PlayerID,
	})
	if h.handler != nil {
		h.handler.OnConnect(client)
	}
}

// unregisterClient 注销客户端
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		h.leaveRoom(client)
		close(client.send)
	}
	h.mu.Unlock()

	h.logger.Info("WebSocket客户端断开",
		zap.String("client_id", client.ID),
		zap.String("player_id", client.PlayerID))
}

// joinRoom 调用方持有写锁
func (h *Hub) joinRoom(client *Client, sessionID string) {
	if sessionID == "" {
		return
	}
	room, ok := h.rooms[sessionID]
	if !ok {
		room = make(map[string]*Client)
		h.rooms[sessionID] = room
	}
	room[client.ID] = client
	client.SessionID = sessionID
}

// leaveRoom 调用方持有写锁
func (h *Hub) leaveRoom(client *Client) {
	room, ok := h.rooms[client.SessionID]
	if !ok {
		return
	}
	delete(room, client.ID)
	if len(room) == 0 {
		delete(h.rooms, client.SessionID)
	}
}

// Subscribe 将客户端移到另一个会话房间
func (h *Hub) Subscribe(client *Client, sessionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return false
	}
	h.leaveRoom(client)
	h.joinRoom(client, sessionID)
	return true
}

// enqueue 非阻塞写入发送队列，调用方持有读锁
func (h *Hub) enqueue(client *Client, data []byte) bool {
	select {
	case client.send <- data:
		return true
	default:
		h.logger.Warn("客户端发送缓冲区满",
			zap.String("client_id", client.ID),
			zap.String("session_id", client.SessionID))
		return false
	}
}

// SendToClient 发送消息给指定客户端
func (h *Hub) SendToClient(clientID, msgType, sessionID string, data interface{}) error {
	msg, err := NewMessage(msgType, sessionID, data)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[clientID]
	if !ok {
		return ErrClientNotFound
	}
	if !h.enqueue(client, raw) {
		return ErrSendBufferFull
	}
	return nil
}

// SendToSession 发送消息给会话房间内所有客户端，返回送达数
func (h *Hub) SendToSession(sessionID, msgType string, data interface{}) int {
	msg, err := NewMessage(msgType, sessionID, data)
	if err != nil {
		h.logger.Error("序列化消息失败", zap.String("type", msgType), zap.Error(err))
		return 0
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("序列化消息失败", zap.String("type", msgType), zap.Error(err))
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for _, client := range h.rooms[sessionID] {
		if h.enqueue(client, raw) {
			sent++
		}
	}
	logger.LogWebSocketMessage("send", msgType, map[string]interface{}{
		"session_id": sessionID,
		"clients":    sent,
	})
	return sent
}

// BroadcastSession 推送会话状态
func (h *Hub) BroadcastSession(sessionID string, view game.SessionView) {
	h.SendToSession(sessionID, MessageTypeUpdate, view)
}

// BroadcastWin 推送猜中通知
func (h *Hub) BroadcastWin(sessionID, winnerName, answer string) {
	h.SendToSession(sessionID, MessageTypeWin, WinPayload{WinnerName: winnerName, Answer: answer})
}

// BroadcastTimeout 推送超时通知
func (h *Hub) BroadcastTimeout(sessionID, answer string) {
	h.SendToSession(sessionID, MessageTypeTimeout, TimeoutPayload{Answer: answer})
}

// GetOnlineCount 获取在线连接数
func (h *Hub) GetOnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SessionClientCount 获取会话房间连接数
func (h *Hub) SessionClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}

// Register 注册客户端
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

var _ game.Broadcaster = (*Hub)(nil)
