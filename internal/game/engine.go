package game

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	apperrors "github.com/wfunc/guess-game/internal/errors"
	"go.uber.org/zap"
)

// Engine 会话生命周期引擎
//
// 同一会话上的所有操作通过会话锁串行执行，不同会话互不影响。
type Engine struct {
	store   Store
	sm      *StateMachine
	matcher AnswerMatcher
	clock   clockwork.Clock
	logger  *zap.Logger

	rulesMu sync.RWMutex
	rules   Rules
}

// EngineOption 引擎选项
type EngineOption func(*Engine)

// WithClock 指定时钟
func WithClock(clock clockwork.Clock) EngineOption {
	return func(e *Engine) { e.clock = clock }
}

// WithMatcher 指定答案比对方式
func WithMatcher(m AnswerMatcher) EngineOption {
	return func(e *Engine) { e.matcher = m }
}

// WithRules 指定规则
func WithRules(r Rules) EngineOption {
	return func(e *Engine) { e.rules = r }
}

// WithLogger 指定日志器
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine 创建引擎
func NewEngine(store Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:   store,
		sm:      NewStateMachine(),
		matcher: PlainMatcher{},
		clock:   clockwork.NewRealClock(),
		logger:  zap.NewNop(),
		rules:   DefaultRules(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rules 当前规则
func (e *Engine) Rules() Rules {
	e.rulesMu.RLock()
	defer e.rulesMu.RUnlock()
	return e.rules
}

// SetRules 更新规则，对下一次操作生效
func (e *Engine) SetRules(r Rules) {
	e.rulesMu.Lock()
	e.rules = r
	e.rulesMu.Unlock()
	e.logger.Info("游戏规则已更新",
		zap.Duration("round_duration", r.RoundDuration),
		zap.Int("attempts_limit", r.AttemptsLimit),
		zap.Int("win_points", r.WinPoints),
		zap.Int("min_players", r.MinPlayers))
}

// CreateSession 创建大厅状态的新会话，ID 为空时自动生成
func (e *Engine) CreateSession(sessionID string) (SessionView, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	s := NewSession(sessionID, e.Rules().PlaceholderQuestion)
	if err := e.store.Insert(s); err != nil {
		return SessionView{}, err
	}
	e.logger.Info("会话已创建", zap.String("session_id", sessionID))

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(), nil
}

// GetSession 获取会话快照（未脱敏）
func (e *Engine) GetSession(sessionID string) (SessionView, error) {
	s, ok := e.store.Get(sessionID)
	if !ok {
		return SessionView{}, apperrors.Newf(apperrors.ErrSessionNotFound, "session_id: %s", sessionID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(), nil
}

// Join 玩家加入会话
func (e *Engine) Join(sessionID, playerID, playerName string) (*Result, error) {
	s, ok := e.store.Get(sessionID)
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrSessionNotFound, "session_id: %s", sessionID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status != StatusLobby {
		return nil, apperrors.Newf(apperrors.ErrGameInProgress, "status: %s", s.Status)
	}

	rules := e.Rules()
	if s.GameMasterID == "" {
		s.GameMasterID = playerID
	}
	_, rejoin := s.Players[playerID]
	s.upsertPlayer(playerID, playerName)
	s.appendChat(ChatEntry{Type: ChatSystem, Message: fmt.Sprintf("%s joined!", playerName)}, rules.ChatLogLimit)

	e.logger.Info("玩家加入",
		zap.String("session_id", sessionID),
		zap.String("player_id", playerID),
		zap.Bool("rejoin", rejoin),
		zap.Int("players", len(s.Players)))

	return &Result{Session: s.view(), Message: "Joined successfully."}, nil
}

// SetQuestion 主持人出题，可在结束后为下一回合出题
func (e *Engine) SetQuestion(sessionID, gmID, question, answer string) (*Result, error) {
	s, ok := e.store.Get(sessionID)
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrUnauthorized, "session_id: %s", sessionID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.GameMasterID == "" || s.GameMasterID != gmID {
		return nil, apperrors.Newf(apperrors.ErrUnauthorized, "player_id: %s", gmID)
	}
	if !e.sm.CanTransition(s.Status, EventSetQuestion) {
		return nil, apperrors.Newf(apperrors.ErrGameInProgress, "status: %s", s.Status)
	}

	s.Question = question
	s.Answer = e.matcher.Normalize(answer)
	s.WinnerID = ""
	s.TimeoutTime = nil
	if err := e.sm.apply(s, EventSetQuestion); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrUnknown)
	}
	s.appendChat(ChatEntry{Type: ChatSystem, Message: "GM set a new question. Ready to start!"}, e.Rules().ChatLogLimit)

	e.logger.Info("主持人出题", zap.String("session_id", sessionID), zap.String("gm_id", gmID))

	return &Result{Session: s.view(), Message: "Question set."}, nil
}

// StartGame 开始回合，返回回合时长供调用方设置超时
func (e *Engine) StartGame(sessionID, gmID string) (*Result, error) {
	s, ok := e.store.Get(sessionID)
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrSessionNotFound, "session_id: %s", sessionID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rules := e.Rules()
	switch {
	case s.GameMasterID == "" || s.GameMasterID != gmID:
		return nil, apperrors.CannotStart(apperrors.ReasonNotGM)
	case !e.sm.CanTransition(s.Status, EventStart):
		return nil, apperrors.CannotStart(apperrors.ReasonWrongState).WithDetails(string(s.Status))
	case len(s.Players) < rules.MinPlayers:
		return nil, apperrors.CannotStart(apperrors.ReasonTooFewPlayers).
			WithDetails(fmt.Sprintf("players: %d, required: %d", len(s.Players), rules.MinPlayers))
	case s.Answer == "":
		return nil, apperrors.CannotStart(apperrors.ReasonNoAnswerSet)
	}

	for _, p := range s.Players {
		p.AttemptsUsed = 0
	}
	if err := e.sm.apply(s, EventStart); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrUnknown)
	}

	now := e.clock.Now()
	deadline := now.Add(rules.RoundDuration)
	seconds := durationSeconds(rules.RoundDuration)

	s.Round++
	s.RoundStartedAt = now
	s.RoundGuesses = 0
	s.WinnerID = ""
	s.TimeoutTime = &deadline
	s.appendChat(ChatEntry{
		Type:    ChatSystem,
		Message: fmt.Sprintf("Game Started! %d seconds on the clock.", seconds),
	}, rules.ChatLogLimit)

	e.logger.Info("回合开始",
		zap.String("session_id", sessionID),
		zap.Int("round", s.Round),
		zap.Int("players", len(s.Players)),
		zap.Time("timeout_time", deadline))

	return &Result{Session: s.view(), Message: "Game starting now!", TimeoutSeconds: seconds}, nil
}

// SubmitGuess 提交猜测
func (e *Engine) SubmitGuess(sessionID, playerID, guess string) (*Result, error) {
	s, ok := e.store.Get(sessionID)
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrSessionNotFound, "session_id: %s", sessionID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status != StatusInProgress {
		return nil, apperrors.Newf(apperrors.ErrSessionNotActive, "status: %s", s.Status)
	}
	player, ok := s.Players[playerID]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrPlayerNotInSession, "player_id: %s", playerID)
	}
	rules := e.Rules()
	if player.AttemptsUsed >= rules.AttemptsLimit {
		return nil, apperrors.Newf(apperrors.ErrNoAttemptsLeft, "player_id: %s", playerID)
	}

	correct := e.matcher.Match(s.Answer, guess)
	player.AttemptsUsed++
	s.RoundGuesses++
	s.appendChat(ChatEntry{Type: ChatGuess, Message: guess, PlayerID: playerID, PlayerName: player.Name}, rules.ChatLogLimit)

	if !correct {
		if player.AttemptsUsed >= rules.AttemptsLimit {
			s.appendChat(ChatEntry{Type: ChatSystem, Message: fmt.Sprintf("%s ran out of attempts.", player.Name)}, rules.ChatLogLimit)
		}
		e.logger.Debug("猜测错误",
			zap.String("session_id", sessionID),
			zap.String("player_id", playerID),
			zap.Int("attempts_used", player.AttemptsUsed))
		return &Result{Session: s.view(), Message: "Guess recorded."}, nil
	}

	if err := e.sm.apply(s, EventWin); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrUnknown)
	}
	player.Score += rules.WinPoints
	s.WinnerID = playerID
	prevGM := s.GameMasterID
	s.GameMasterID = nextGameMaster(s.order, prevGM)
	s.appendChat(ChatEntry{
		Type:    ChatSystem,
		Message: fmt.Sprintf("%s WON! Answer: %s. New GM: %s.", player.Name, s.Answer, s.playerName(s.GameMasterID)),
	}, rules.ChatLogLimit)

	e.logger.Info("回合猜中",
		zap.String("session_id", sessionID),
		zap.Int("round", s.Round),
		zap.String("winner_id", playerID),
		zap.String("prev_gm", prevGM),
		zap.String("next_gm", s.GameMasterID))

	outcome := e.outcome(s, OutcomeWin, prevGM)
	return &Result{
		Session:  s.view(),
		Message:  fmt.Sprintf("%s WON!", player.Name),
		IsWinner: true,
		Outcome:  outcome,
	}, nil
}

// HandleTimeout 当前回合超时
func (e *Engine) HandleTimeout(sessionID string) (*Result, error) {
	return e.HandleRoundTimeout(sessionID, 0)
}

// HandleRoundTimeout 指定回合超时，round 为 0 表示当前回合；过期回合返回 AlreadyEnded
func (e *Engine) HandleRoundTimeout(sessionID string, round int) (*Result, error) {
	s, ok := e.store.Get(sessionID)
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrSessionNotFound, "session_id: %s", sessionID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status != StatusInProgress {
		return nil, apperrors.Newf(apperrors.ErrAlreadyEnded, "status: %s", s.Status)
	}
	if round != 0 && round != s.Round {
		return nil, apperrors.Newf(apperrors.ErrAlreadyEnded, "stale round %d, current %d", round, s.Round)
	}

	if err := e.sm.apply(s, EventTimeout); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrUnknown)
	}
	s.WinnerID = ""
	s.appendChat(ChatEntry{
		Type:    ChatSystem,
		Message: fmt.Sprintf("Time expired! Answer was: %s. No points awarded.", s.Answer),
	}, e.Rules().ChatLogLimit)
	prevGM := s.GameMasterID
	s.GameMasterID = nextGameMaster(s.order, prevGM)

	e.logger.Info("回合超时",
		zap.String("session_id", sessionID),
		zap.Int("round", s.Round),
		zap.String("prev_gm", prevGM),
		zap.String("next_gm", s.GameMasterID))

	outcome := e.outcome(s, OutcomeTimeout, prevGM)
	return &Result{Session: s.view(), Message: "Time expired!", Outcome: outcome}, nil
}

func (e *Engine) outcome(s *Session, kind Outcome, prevGM string) *RoundOutcome {
	return &RoundOutcome{
		SessionID:        s.ID,
		Round:            s.Round,
		Question:         s.Question,
		Answer:           s.Answer,
		Outcome:          kind,
		WinnerID:         s.WinnerID,
		WinnerName:       s.playerName(s.WinnerID),
		GameMasterID:     prevGM,
		NextGameMasterID: s.GameMasterID,
		Guesses:          s.RoundGuesses,
		StartedAt:        s.RoundStartedAt,
		EndedAt:          e.clock.Now(),
	}
}

// nextGameMaster 按加入顺序轮换主持人；当前主持人不在列表中时回退到第一个玩家
func nextGameMaster(order []string, current string) string {
	if len(order) == 0 {
		return current
	}
	for i, id := range order {
		if id == current {
			return order[(i+1)%len(order)]
		}
	}
	return order[0]
}

func durationSeconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}
