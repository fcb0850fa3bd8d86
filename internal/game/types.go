package game

import (
	"sync"
	"time"
)

// SessionStatus 会话状态
type SessionStatus string

const (
	StatusLobby      SessionStatus = "LOBBY"       // 大厅，等待出题/开局
	StatusInProgress SessionStatus = "IN_PROGRESS" // 回合进行中
	StatusEnded      SessionStatus = "ENDED"       // 回合结束
)

// HiddenAnswer 未结束时对外展示的答案占位
const HiddenAnswer = "HIDDEN"

// ChatType 聊天记录类型
type ChatType string

const (
	ChatSystem ChatType = "system"
	ChatGuess  ChatType = "guess"
)

// Player 玩家
type Player struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Score        int    `json:"score"`
	AttemptsUsed int    `json:"attemptsUsed"`
}

// ChatEntry 聊天记录条目
type ChatEntry struct {
	Type       ChatType `json:"type"`
	Message    string   `json:"message"`
	PlayerID   string   `json:"playerId,omitempty"`
	PlayerName string   `json:"playerName,omitempty"`
}

// Rules 游戏规则
type Rules struct {
	RoundDuration       time.Duration
	AttemptsLimit       int
	WinPoints           int
	MinPlayers          int
	ChatLogLimit        int // 0 表示不限制
	PlaceholderQuestion string
}

// DefaultRules 默认规则
func DefaultRules() Rules {
	return Rules{
		RoundDuration:       60 * time.Second,
		AttemptsLimit:       3,
		WinPoints:           10,
		MinPlayers:          3,
		ChatLogLimit:        0,
		PlaceholderQuestion: "Waiting for GM to set a question.",
	}
}

// Session 游戏会话
//
// 除 ID 外的字段只能在持有 mu 时读写，由 Engine 负责加锁。
type Session struct {
	mu sync.Mutex

	ID           string
	Status       SessionStatus
	GameMasterID string // 空串表示尚未指定
	Question     string
	Answer       string // 已归一化（小写）
	Players      map[string]*Player
	WinnerID     string
	TimeoutTime  *time.Time
	ChatLog      []ChatEntry

	// 回合信息
	Round          int
	RoundStartedAt time.Time
	RoundGuesses   int

	order []string // 加入顺序
}

// NewSession 创建处于大厅状态的空会话
func NewSession(id, placeholder string) *Session {
	return &Session{
		ID:       id,
		Status:   StatusLobby,
		Question: placeholder,
		Players:  make(map[string]*Player),
		ChatLog:  []ChatEntry{},
	}
}

// upsertPlayer 插入或更新玩家，已存在时保留分数、尝试次数与加入顺序
func (s *Session) upsertPlayer(id, name string) *Player {
	if p, ok := s.Players[id]; ok {
		p.Name = name
		return p
	}
	p := &Player{ID: id, Name: name}
	s.Players[id] = p
	s.order = append(s.order, id)
	return p
}

// appendChat 追加聊天记录，limit > 0 时丢弃最旧的条目
func (s *Session) appendChat(entry ChatEntry, limit int) {
	s.ChatLog = append(s.ChatLog, entry)
	if limit > 0 && len(s.ChatLog) > limit {
		trimmed := make([]ChatEntry, limit)
		copy(trimmed, s.ChatLog[len(s.ChatLog)-limit:])
		s.ChatLog = trimmed
	}
}

func (s *Session) playerName(id string) string {
	if p, ok := s.Players[id]; ok {
		return p.Name
	}
	return ""
}

// view 生成深拷贝视图，调用方需持有 mu
func (s *Session) view() SessionView {
	v := SessionView{
		SessionID:   s.ID,
		Status:      s.Status,
		Question:    s.Question,
		Answer:      s.Answer,
		Players:     make(map[string]Player, len(s.Players)),
		PlayerOrder: append([]string{}, s.order...),
		ChatLog:     append([]ChatEntry{}, s.ChatLog...),
		Round:       s.Round,
	}
	for id, p := range s.Players {
		v.Players[id] = *p
	}
	if s.GameMasterID != "" {
		gm := s.GameMasterID
		v.GameMasterID = &gm
	}
	if s.WinnerID != "" {
		w := s.WinnerID
		v.WinnerID = &w
	}
	if s.TimeoutTime != nil {
		ms := s.TimeoutTime.UnixMilli()
		v.TimeoutTime = &ms
	}
	return v
}

// SessionView 会话快照（对外数据形态）
type SessionView struct {
	SessionID    string            `json:"sessionId"`
	Status       SessionStatus     `json:"status"`
	GameMasterID *string           `json:"gameMasterId"`
	Question     string            `json:"question"`
	Answer       string            `json:"answer"`
	Players      map[string]Player `json:"players"`
	PlayerOrder  []string          `json:"playerOrder"`
	WinnerID     *string           `json:"winnerId"`
	TimeoutTime  *int64            `json:"timeoutTime"` // epoch 毫秒
	ChatLog      []ChatEntry       `json:"chatLog"`
	Round        int               `json:"round"`
}

// Redacted 未结束时隐藏答案
func (v SessionView) Redacted() SessionView {
	if v.Status != StatusEnded {
		v.Answer = HiddenAnswer
	}
	return v
}

// GameMaster 当前主持人ID
func (v SessionView) GameMaster() string {
	if v.GameMasterID == nil {
		return ""
	}
	return *v.GameMasterID
}

// Winner 获胜者ID
func (v SessionView) Winner() string {
	if v.WinnerID == nil {
		return ""
	}
	return *v.WinnerID
}

// OrderedPlayers 按加入顺序返回玩家
func (v SessionView) OrderedPlayers() []Player {
	out := make([]Player, 0, len(v.PlayerOrder))
	for _, id := range v.PlayerOrder {
		out = append(out, v.Players[id])
	}
	return out
}

// LastChat 最后一条聊天记录
func (v SessionView) LastChat() (ChatEntry, bool) {
	if len(v.ChatLog) == 0 {
		return ChatEntry{}, false
	}
	return v.ChatLog[len(v.ChatLog)-1], true
}

// Outcome 回合结果类型
type Outcome string

const (
	OutcomeWin     Outcome = "win"
	OutcomeTimeout Outcome = "timeout"
)

// RoundOutcome 回合结束摘要
type RoundOutcome struct {
	SessionID        string
	Round            int
	Question         string
	Answer           string
	Outcome          Outcome
	WinnerID         string
	WinnerName       string
	GameMasterID     string
	NextGameMasterID string
	Guesses          int
	StartedAt        time.Time
	EndedAt          time.Time
}

// Result 引擎操作结果
type Result struct {
	Session        SessionView
	Message        string
	TimeoutSeconds int
	IsWinner       bool
	Outcome        *RoundOutcome // 回合结束时非空
}
