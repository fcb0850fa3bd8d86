package game

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// TimerCoordinator 每个会话至多一个待触发的超时任务
type TimerCoordinator struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	logger  *zap.Logger
	pending map[string]*pendingTimer
	seq     uint64
	stopped bool
}

type pendingTimer struct {
	timer clockwork.Timer
	gen   uint64
}

// NewTimerCoordinator 创建超时协调器
func NewTimerCoordinator(clock clockwork.Clock, logger *zap.Logger) *TimerCoordinator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimerCoordinator{
		clock:   clock,
		logger:  logger,
		pending: make(map[string]*pendingTimer),
	}
}

// Arm 设置超时任务，替换该会话已有的任务
func (tc *TimerCoordinator) Arm(sessionID string, delay time.Duration, onFire func()) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.stopped {
		return
	}
	if existing, ok := tc.pending[sessionID]; ok {
		existing.timer.Stop()
		tc.logger.Debug("替换已有超时任务", zap.String("session_id", sessionID))
	}

	tc.seq++
	gen := tc.seq
	t := tc.clock.AfterFunc(delay, func() {
		tc.fire(sessionID, gen, onFire)
	})
	tc.pending[sessionID] = &pendingTimer{timer: t, gen: gen}

	tc.logger.Debug("超时任务已设置",
		zap.String("session_id", sessionID),
		zap.Duration("delay", delay))
}

// fire 先从待触发集合移除再执行回调，保证只触发一次
func (tc *TimerCoordinator) fire(sessionID string, gen uint64, onFire func()) {
	tc.mu.Lock()
	p, ok := tc.pending[sessionID]
	if !ok || p.gen != gen {
		tc.mu.Unlock()
		return
	}
	delete(tc.pending, sessionID)
	tc.mu.Unlock()

	tc.logger.Debug("超时任务触发", zap.String("session_id", sessionID))
	onFire()
}

// Disarm 取消超时任务，返回是否存在待触发任务
func (tc *TimerCoordinator) Disarm(sessionID string) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	p, ok := tc.pending[sessionID]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(tc.pending, sessionID)
	tc.logger.Debug("超时任务已取消", zap.String("session_id", sessionID))
	return true
}

// Pending 是否存在待触发任务
func (tc *TimerCoordinator) Pending(sessionID string) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	_, ok := tc.pending[sessionID]
	return ok
}

// PendingCount 待触发任务数
func (tc *TimerCoordinator) PendingCount() int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return len(tc.pending)
}

// Stop 取消所有任务，之后的 Arm 被忽略
func (tc *TimerCoordinator) Stop() {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	for id, p := range tc.pending {
		p.timer.Stop()
		delete(tc.pending, id)
	}
	tc.stopped = true
}
