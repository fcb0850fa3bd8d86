package websocket

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wfunc/guess-game/internal/config"
	"go.uber.org/zap"
)

// 错误定义
var (
	ErrClientNotFound = errors.New("客户端未找到")
	ErrSendBufferFull = errors.New("发送缓冲区已满")
)

const sendBufferSize = 256

// Options 连接参数
type Options struct {
	ReadBufferSize    int
	WriteBufferSize   int
	MaxMessageSize    int64
	PingInterval      time.Duration
	PongTimeout       time.Duration
	WriteTimeout      time.Duration
	EnableCompression bool
}

// OptionsFromConfig 从配置生成连接参数
func OptionsFromConfig(cfg *config.WebSocketConfig) Options {
	return Options{
		ReadBufferSize:    cfg.ReadBufferSize,
		WriteBufferSize:   cfg.WriteBufferSize,
		MaxMessageSize:    cfg.MaxMessageSize,
		PingInterval:      cfg.PingInterval,
		PongTimeout:       cfg.PongTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		EnableCompression: cfg.EnableCompression,
	}
}

func (o Options) withDefaults() Options {
	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = 1024
	}
	if o.WriteBufferSize <= 0 {
		o.WriteBufferSize = 1024
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 8192
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = 60 * time.Second
	}
	// ping周期必须小于pong超时
	if o.PingInterval <= 0 || o.PingInterval >= o.PongTimeout {
		o.PingInterval = o.PongTimeout * 9 / 10
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	return o
}

// Client WebSocket客户端
type Client struct {
	ID         string
	PlayerID   string
	PlayerName string
	SessionID  string

	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	opts Options
}

// NewClient 创建新客户端
func NewClient(hub *Hub, conn *websocket.Conn, playerID, sessionID string, opts Options) *Client {
	return &Client{
		ID:        uuid.New().String(),
		PlayerID:  playerID,
		SessionID: sessionID,
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		opts:      opts.withDefaults(),
	}
}

// Upgrade 升级HTTP连接，注册客户端并启动读写循环
func Upgrade(hub *Hub, w http.ResponseWriter, r *http.Request, playerID, sessionID string, opts Options) (*Client, error) {
	opts = opts.withDefaults()
	upgrader := websocket.Upgrader{
		ReadBufferSize:    opts.ReadBufferSize,
		WriteBufferSize:   opts.WriteBufferSize,
		EnableCompression: opts.EnableCompression,
		// 跨域由外层CORS处理
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	client := NewClient(hub, conn, playerID, sessionID, opts)
	go client.WritePump()
	if !hub.Register(client) {
		conn.Close()
		return nil, ErrClientNotFound
	}
	go client.ReadPump()
	return client, nil
}

// ReadPump 读取消息
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("WebSocket读取错误",
					zap.String("client_id", c.ID),
					zap.Error(err))
			}
			return
		}

		if c.hub.handler != nil {
			c.hub.handler.HandleClientMessage(c, message)
		}
	}
}

// WritePump 写入消息，每条消息单独一帧
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if !ok {
				// Hub关闭了通道
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Send 发送消息给当前客户端
func (c *Client) Send(msgType string, data interface{}) error {
	return c.hub.SendToClient(c.ID, msgType, c.SessionID, data)
}

// Close 关闭客户端连接
func (c *Client) Close() {
	c.hub.Unregister(c)
}
