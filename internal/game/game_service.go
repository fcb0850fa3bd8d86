package game

import (
	"context"
	"time"

	apperrors "github.com/wfunc/guess-game/internal/errors"
	"go.uber.org/zap"
)

// Broadcaster 向会话内所有连接推送
type Broadcaster interface {
	BroadcastSession(sessionID string, view SessionView)
	BroadcastWin(sessionID, winnerName, answer string)
	BroadcastTimeout(sessionID, answer string)
}

// GameEventType 对外发布的事件类型
type GameEventType string

const (
	EventPlayerJoined GameEventType = "player_joined"
	EventQuestionSet  GameEventType = "question_set"
	EventRoundStarted GameEventType = "round_started"
	EventRoundWon     GameEventType = "round_won"
	EventRoundTimeout GameEventType = "round_timeout"
)

// GameEvent 对外发布的游戏事件
type GameEvent struct {
	Type      GameEventType          `json:"type"`
	SessionID string                 `json:"sessionId"`
	Round     int                    `json:"round"`
	PlayerID  string                 `json:"playerId,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// EventPublisher 游戏事件发布
type EventPublisher interface {
	PublishGameEvent(ctx context.Context, event GameEvent) error
}

// RoundRecorder 回合归档
type RoundRecorder interface {
	RecordRound(ctx context.Context, outcome *RoundOutcome) error
}

type nopBroadcaster struct{}

func (nopBroadcaster) BroadcastSession(string, SessionView) {}
func (nopBroadcaster) BroadcastWin(string, string, string)  {}
func (nopBroadcaster) BroadcastTimeout(string, string)      {}

type nopPublisher struct{}

func (nopPublisher) PublishGameEvent(context.Context, GameEvent) error { return nil }

type nopRecorder struct{}

func (nopRecorder) RecordRound(context.Context, *RoundOutcome) error { return nil }

// ServiceConfig 游戏服务配置
type ServiceConfig struct {
	Engine      *Engine
	Timers      *TimerCoordinator
	Broadcaster Broadcaster
	Publisher   EventPublisher
	Recorder    RoundRecorder
	Logger      *zap.Logger
}

// GameService 游戏服务，负责引擎之外的调用方职责：超时、推送、归档、事件
type GameService struct {
	engine      *Engine
	timers      *TimerCoordinator
	broadcaster Broadcaster
	publisher   EventPublisher
	recorder    RoundRecorder
	logger      *zap.Logger
}

// NewGameService 创建游戏服务
func NewGameService(cfg *ServiceConfig) *GameService {
	s := &GameService{
		engine:      cfg.Engine,
		timers:      cfg.Timers,
		broadcaster: cfg.Broadcaster,
		publisher:   cfg.Publisher,
		recorder:    cfg.Recorder,
		logger:      cfg.Logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.engine == nil {
		s.engine = NewEngine(NewMemoryStore(), WithLogger(s.logger))
	}
	if s.timers == nil {
		s.timers = NewTimerCoordinator(s.engine.clock, s.logger)
	}
	if s.broadcaster == nil {
		s.broadcaster = nopBroadcaster{}
	}
	if s.publisher == nil {
		s.publisher = nopPublisher{}
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	return s
}

// Engine 底层引擎
func (s *GameService) Engine() *Engine {
	return s.engine
}

// SetBroadcaster 设置推送器（连接层在服务之后创建时使用）
func (s *GameService) SetBroadcaster(b Broadcaster) {
	if b != nil {
		s.broadcaster = b
	}
}

// CreateSession 创建会话
func (s *GameService) CreateSession(ctx context.Context, sessionID string) (SessionView, error) {
	view, err := s.engine.CreateSession(sessionID)
	if err != nil {
		return SessionView{}, err
	}
	return view.Redacted(), nil
}

// GetSession 获取脱敏后的会话
func (s *GameService) GetSession(ctx context.Context, sessionID string) (SessionView, error) {
	view, err := s.engine.GetSession(sessionID)
	if err != nil {
		return SessionView{}, err
	}
	return view.Redacted(), nil
}

// Join 加入会话
func (s *GameService) Join(ctx context.Context, sessionID, playerID, playerName string) (*Result, error) {
	res, err := s.engine.Join(sessionID, playerID, playerName)
	if err != nil {
		return nil, err
	}
	s.afterMutation(res)
	s.publish(ctx, GameEvent{
		Type:      EventPlayerJoined,
		SessionID: sessionID,
		Round:     res.Session.Round,
		PlayerID:  playerID,
		Payload:   map[string]interface{}{"playerName": playerName},
	})
	return res, nil
}

// SetQuestion 出题
func (s *GameService) SetQuestion(ctx context.Context, sessionID, gmID, question, answer string) (*Result, error) {
	res, err := s.engine.SetQuestion(sessionID, gmID, question, answer)
	if err != nil {
		return nil, err
	}
	s.afterMutation(res)
	s.publish(ctx, GameEvent{
		Type:      EventQuestionSet,
		SessionID: sessionID,
		Round:     res.Session.Round,
		PlayerID:  gmID,
		Payload:   map[string]interface{}{"question": question},
	})
	return res, nil
}

// StartGame 开局并设置超时
func (s *GameService) StartGame(ctx context.Context, sessionID, gmID string) (*Result, error) {
	res, err := s.engine.StartGame(sessionID, gmID)
	if err != nil {
		return nil, err
	}

	round := res.Session.Round
	s.timers.Arm(sessionID, time.Duration(res.TimeoutSeconds)*time.Second, func() {
		s.onTimeout(sessionID, round)
	})

	s.afterMutation(res)
	s.publish(ctx, GameEvent{
		Type:      EventRoundStarted,
		SessionID: sessionID,
		Round:     round,
		PlayerID:  gmID,
		Payload: map[string]interface{}{
			"question":       res.Session.Question,
			"timeoutSeconds": res.TimeoutSeconds,
		},
	})
	return res, nil
}

// SubmitGuess 提交猜测，猜中时取消超时
func (s *GameService) SubmitGuess(ctx context.Context, sessionID, playerID, guess string) (*Result, error) {
	res, err := s.engine.SubmitGuess(sessionID, playerID, guess)
	if err != nil {
		return nil, err
	}

	if res.IsWinner {
		s.timers.Disarm(sessionID)
	}
	s.afterMutation(res)

	if res.IsWinner && res.Outcome != nil {
		s.broadcaster.BroadcastWin(sessionID, res.Outcome.WinnerName, res.Outcome.Answer)
		s.archive(ctx, res.Outcome)
	}
	return res, nil
}

// onTimeout 超时回调
func (s *GameService) onTimeout(sessionID string, round int) {
	res, err := s.engine.HandleRoundTimeout(sessionID, round)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrAlreadyEnded) {
			s.logger.Debug("回合已结束，忽略超时",
				zap.String("session_id", sessionID),
				zap.Int("round", round))
			return
		}
		s.logger.Warn("处理超时失败", zap.String("session_id", sessionID), zap.Error(err))
		return
	}

	s.afterMutation(res)
	if res.Outcome != nil {
		s.broadcaster.BroadcastTimeout(sessionID, res.Outcome.Answer)
		s.archive(context.Background(), res.Outcome)
	}
}

// afterMutation 脱敏并推送
func (s *GameService) afterMutation(res *Result) {
	res.Session = res.Session.Redacted()
	s.broadcaster.BroadcastSession(res.Session.SessionID, res.Session)
}

// archive 归档并发布回合结果，失败只记录日志
func (s *GameService) archive(ctx context.Context, o *RoundOutcome) {
	if err := s.recorder.RecordRound(ctx, o); err != nil {
		s.logger.Warn("回合归档失败",
			zap.String("session_id", o.SessionID),
			zap.Int("round", o.Round),
			zap.Error(err))
	}

	eventType := EventRoundWon
	if o.Outcome == OutcomeTimeout {
		eventType = EventRoundTimeout
	}
	s.publish(ctx, GameEvent{
		Type:      eventType,
		SessionID: o.SessionID,
		Round:     o.Round,
		PlayerID:  o.WinnerID,
		Payload: map[string]interface{}{
			"answer":           o.Answer,
			"winnerName":       o.WinnerName,
			"nextGameMasterId": o.NextGameMasterID,
			"guesses":          o.Guesses,
		},
	})
}

func (s *GameService) publish(ctx context.Context, event GameEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = s.engine.clock.Now()
	}
	if err := s.publisher.PublishGameEvent(ctx, event); err != nil {
		s.logger.Warn("事件发布失败",
			zap.String("session_id", event.SessionID),
			zap.String("type", string(event.Type)),
			zap.Error(err))
	}
}

// Shutdown 停止所有超时任务
func (s *GameService) Shutdown() {
	s.timers.Stop()
	s.logger.Info("游戏服务已停止")
}
