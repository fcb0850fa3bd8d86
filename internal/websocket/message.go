package websocket

import (
	"encoding/json"
	"time"
)

// Message WebSocket消息
type Message struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// 消息类型
const (
	// 系统消息
	MessageTypeConnected = "connected"
	MessageTypePing      = "ping"
	MessageTypePong      = "pong"
	MessageTypeError     = "error"

	// 游戏消息
	MessageTypeGuess     = "game:guess"
	MessageTypeSubscribe = "game:subscribe"
	MessageTypeUpdate    = "game:update"
	MessageTypeWin       = "game:win"
	MessageTypeTimeout   = "game:timeout"
	MessageTypeGuessErr  = "error:guess"
)

// GuessRequest 客户端猜测
type GuessRequest struct {
	SessionID  string `json:"sessionId"`
	Guess      string `json:"guess"`
	PlayerName string `json:"playerName,omitempty"`
}

// SubscribeRequest 切换订阅的会话
type SubscribeRequest struct {
	SessionID string `json:"sessionId"`
}

// WinPayload 猜中通知
type WinPayload struct {
	WinnerName string `json:"winnerName"`
	Answer     string `json:"answer"`
}

// TimeoutPayload 超时通知
type TimeoutPayload struct {
	Answer string `json:"answer"`
}

// ErrorPayload 错误通知
type ErrorPayload struct {
	Error  string `json:"error"`
	Code   int    `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// NewMessage 构造消息
func NewMessage(msgType, sessionID string, data interface{}) (*Message, error) {
	msg := &Message{
		Type:      msgType,
		SessionID: sessionID,
		Timestamp: time.Now().Unix(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = raw
	}
	return msg, nil
}
